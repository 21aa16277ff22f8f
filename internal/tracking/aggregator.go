package tracking

import (
	"errors"
	"math"

	"stride/internal/geo"
	"stride/internal/models"
	"stride/internal/providers"
)

var (
	ErrFinalized     = errors.New("session already finalized")
	ErrPaused        = errors.New("session is paused")
	ErrTimeRegressed = errors.New("sample timestamp does not advance")
	ErrInvalidSample = errors.New("malformed sample")
)

// Aggregator accumulates location samples into one in-progress session.
// It is not safe for concurrent use; a single owner must serialize calls.
type Aggregator struct {
	clock  Clock
	ids    *IDGenerator
	logger providers.Logger

	session   models.Session
	last      models.PositionSample
	anchored  bool
	current   float64
	paused    bool
	pausedAt  int64
	pausedFor int64
	finalized bool
}

// Begin starts a new active session at the current clock time.
func Begin(clock Clock, ids *IDGenerator, logger providers.Logger) *Aggregator {
	a := &Aggregator{
		clock:  clock,
		ids:    ids,
		logger: logger,
	}
	a.session.StartTime = clock()
	a.session.Locations = make([]models.PositionSample, 0, 64)
	return a
}

// OnSample folds one sample into the running totals. Rejected samples leave
// every accumulator untouched.
func (a *Aggregator) OnSample(sample models.PositionSample) error {
	if a.finalized {
		return ErrFinalized
	}
	if a.paused {
		return ErrPaused
	}
	if !geo.ValidCoordinate(sample.Latitude, sample.Longitude) ||
		sample.Speed < 0 || math.IsNaN(sample.Speed) || math.IsInf(sample.Speed, 0) ||
		sample.Timestamp < 0 {
		a.logger.Warnf(providers.TypeApp, "Discarding malformed sample %+v", sample)
		return ErrInvalidSample
	}
	if sample.Timestamp == 0 {
		sample.Timestamp = a.clock()
	}

	if len(a.session.Locations) > 0 && sample.Timestamp <= a.last.Timestamp {
		a.logger.Warnf(providers.TypeApp, "Discarding sample at %d: previous sample at %d", sample.Timestamp, a.last.Timestamp)
		return ErrTimeRegressed
	}

	if a.anchored {
		step := geo.HaversineMeters(a.last.Latitude, a.last.Longitude, sample.Latitude, sample.Longitude)
		a.session.Distance += step

		speed := sample.Speed
		if speed <= 0 {
			speed = step / (float64(sample.Timestamp-a.last.Timestamp) / 1000)
		}
		a.updateSpeed(speed)
	} else if sample.Speed > 0 {
		a.updateSpeed(sample.Speed)
	}

	a.session.Calories = models.EstimateCalories(a.session.Distance)
	a.session.Locations = append(a.session.Locations, sample)
	a.last = sample
	a.anchored = true
	return nil
}

func (a *Aggregator) updateSpeed(speed float64) {
	a.current = speed
	if speed > a.session.MaxSpeed {
		a.session.MaxSpeed = speed
	}
}

// Pause stops accumulation and starts excluding elapsed time. Pausing a
// paused or finalized session does nothing.
func (a *Aggregator) Pause() {
	if a.finalized || a.paused {
		return
	}
	a.paused = true
	a.pausedAt = a.clock()
}

// Resume restarts accumulation. The first sample after a resume anchors the
// track again, so ground covered while paused is not counted.
func (a *Aggregator) Resume() {
	if a.finalized || !a.paused {
		return
	}
	now := a.clock()
	if now > a.pausedAt {
		a.pausedFor += now - a.pausedAt
	}
	a.paused = false
	a.pausedAt = 0
	a.anchored = false
}

// End finalizes the session exactly once. Later calls return the same
// session and false.
func (a *Aggregator) End() (models.Session, bool) {
	if a.finalized {
		return a.session.Clone(), false
	}

	now := a.clock()
	if a.paused {
		if now > a.pausedAt {
			a.pausedFor += now - a.pausedAt
		}
		a.paused = false
	}
	if now < a.session.StartTime {
		now = a.session.StartTime
	}

	a.session.EndTime = now
	a.session.Duration = a.activeDuration(now)
	a.session.Calories = models.EstimateCalories(a.session.Distance)
	a.session.AverageSpeed = models.AverageSpeed(a.session.Distance, a.session.Duration)
	if a.session.ID == 0 {
		a.session.ID = a.ids.Next()
	}
	a.finalized = true
	a.anchored = false
	return a.session.Clone(), true
}

// Snapshot returns a copy of the session with live duration and speed figures.
func (a *Aggregator) Snapshot() models.Session {
	s := a.session.Clone()
	if a.finalized {
		return s
	}
	now := a.clock()
	if a.paused {
		now = a.pausedAt
	}
	s.Duration = a.activeDuration(now)
	s.AverageSpeed = models.AverageSpeed(s.Distance, s.Duration)
	return s
}

func (a *Aggregator) CurrentSpeed() float64 {
	return a.current
}

func (a *Aggregator) Paused() bool {
	return a.paused
}

func (a *Aggregator) Finalized() bool {
	return a.finalized
}

func (a *Aggregator) activeDuration(now int64) int64 {
	d := now - a.session.StartTime - a.pausedFor
	if d < 0 {
		return 0
	}
	return d
}
