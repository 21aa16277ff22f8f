// Package sampler produces location readings for the active run.
package sampler

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"time"

	"stride/internal/geo"
	"stride/internal/models"
	"stride/internal/providers"
	"stride/internal/structures"
	"stride/internal/tracking"
)

var (
	ErrAlreadyStarted = errors.New("sampler already started")
	ErrNotListening   = errors.New("sampler is not accepting readings")
	ErrNoFix          = errors.New("reading carries no location fix")
)

// Reading is one provider callback. A non-zero ErrorCode marks a failed fix
// whose Sample must not be used.
type Reading struct {
	Sample    models.PositionSample `json:"sample"`
	ErrorCode int                   `json:"error_code"`
	ErrorInfo string                `json:"error_info,omitempty"`
}

type Sampler interface {
	Start(ctx context.Context, emit func(Reading) error) error
	Stop()
}

// PushSampler relays readings delivered from outside the process, such as
// a phone posting fixes over HTTP.
type PushSampler struct {
	mu   sync.RWMutex
	emit func(Reading) error
}

func NewPushSampler() *PushSampler {
	return &PushSampler{}
}

func (p *PushSampler) Start(_ context.Context, emit func(Reading) error) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.emit != nil {
		return ErrAlreadyStarted
	}
	p.emit = emit
	return nil
}

func (p *PushSampler) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.emit = nil
}

// Push forwards r. A nil error means the sample was recorded; otherwise
// the error says why it was not.
func (p *PushSampler) Push(r Reading) error {
	p.mu.RLock()
	emit := p.emit
	p.mu.RUnlock()
	if emit == nil {
		return ErrNotListening
	}
	return emit(r)
}

const (
	minSimulatedKmh = 5.0
	maxSimulatedKmh = 12.0
)

// SimulatedSampler walks a straight line from an origin at a random jogging
// pace, one reading per interval.
type SimulatedSampler struct {
	interval time.Duration
	bearing  float64
	clock    tracking.Clock
	rnd      *rand.Rand

	mu       sync.Mutex
	lat, lon float64
	cancel   context.CancelFunc
	done     chan struct{}
}

func NewSimulatedSampler(conf *structures.Config, clock tracking.Clock) *SimulatedSampler {
	interval := conf.Sampler.Interval
	if interval <= 0 {
		interval = time.Second
	}
	return &SimulatedSampler{
		interval: interval,
		bearing:  45,
		clock:    clock,
		rnd:      rand.New(rand.NewPCG(uint64(clock()), 0x5eed)),
		lat:      conf.Sampler.OriginLat,
		lon:      conf.Sampler.OriginLon,
	}
}

func (s *SimulatedSampler) Start(ctx context.Context, emit func(Reading) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return ErrAlreadyStarted
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go func(done chan struct{}) {
		defer close(done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				_ = emit(Reading{Sample: s.Next()})
			}
		}
	}(s.done)
	return nil
}

func (s *SimulatedSampler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()
	if cancel != nil {
		cancel()
		<-done
	}
}

// Next advances the simulated position by one interval.
func (s *SimulatedSampler) Next() models.PositionSample {
	s.mu.Lock()
	defer s.mu.Unlock()

	kmh := minSimulatedKmh + s.rnd.Float64()*(maxSimulatedKmh-minSimulatedKmh)
	speed := kmh / 3.6
	s.lat, s.lon = geo.Offset(s.lat, s.lon, s.bearing, speed*s.interval.Seconds())
	return models.PositionSample{
		Latitude:  s.lat,
		Longitude: s.lon,
		Timestamp: s.clock(),
		Speed:     speed,
	}
}

// NewSampler builds the configured primary sampler.
func NewSampler(conf *structures.Config, push *PushSampler, simulated *SimulatedSampler) Sampler {
	if conf.Sampler.Mode == "simulated" {
		return simulated
	}
	return push
}

// Feed routes readings into a sink. When the primary sampler cannot start,
// or reports a failed fix before the run's first good one, the simulator
// takes over. The primary keeps listening, and its next good fix stops the
// simulator again.
type Feed struct {
	primary  Sampler
	fallback Sampler
	sink     func(models.PositionSample) error
	logger   providers.Logger
	metrics  providers.MetricsProviderInterface

	mu         sync.Mutex
	ctx        context.Context
	listening  bool
	simulating bool
	gotFix     bool
}

func NewFeed(primary, fallback Sampler, sink func(models.PositionSample) error, logger providers.Logger, metrics providers.MetricsProviderInterface) *Feed {
	return &Feed{
		primary:  primary,
		fallback: fallback,
		sink:     sink,
		logger:   logger,
		metrics:  metrics,
	}
}

// Sink receives samples once the provider reported a good fix.
type Sink interface {
	Sample(sample models.PositionSample) error
}

// NewConfiguredFeed feeds sink from the sampler chosen by conf, falling back
// to the simulator.
func NewConfiguredFeed(conf *structures.Config, push *PushSampler, simulated *SimulatedSampler, sink Sink, logger providers.Logger, metrics providers.MetricsProviderInterface) *Feed {
	return NewFeed(NewSampler(conf, push, simulated), simulated, sink.Sample, logger, metrics)
}

func (f *Feed) Start(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ctx = ctx
	if f.primary == f.fallback {
		return f.startFallbackLocked()
	}
	if err := f.primary.Start(ctx, f.Accept); err != nil {
		f.logger.Warnf(providers.TypeApp, "Location sampler failed to start: %s, using simulated data", err)
		return f.startFallbackLocked()
	}
	f.listening = true
	return nil
}

func (f *Feed) Stop() {
	f.mu.Lock()
	listening, simulating := f.listening, f.simulating
	f.listening, f.simulating = false, false
	f.mu.Unlock()
	if listening {
		f.primary.Stop()
	}
	if simulating {
		f.fallback.Stop()
	}
}

// Reset starts a new run: the simulator is dropped when the primary is
// listening, and a failed fix may trigger it again until a good one arrives.
func (f *Feed) Reset() {
	f.mu.Lock()
	f.gotFix = false
	stop := f.simulating && f.listening
	if stop {
		f.simulating = false
	}
	f.mu.Unlock()
	if stop {
		f.fallback.Stop()
		f.logger.Infof(providers.TypeApp, "New run, listening to the location sampler again")
	}
}

// Accept hands one primary reading to the sink and returns why it was not
// recorded, if it was not.
func (f *Feed) Accept(r Reading) error {
	if r.ErrorCode != 0 {
		f.logger.Warnf(providers.TypeApp, "Location fix failed: %d %s", r.ErrorCode, r.ErrorInfo)
		f.metrics.IncSamplesDiscarded("provider_error")
		f.mu.Lock()
		if !f.gotFix && !f.simulating && f.ctx != nil {
			if err := f.startFallbackLocked(); err != nil {
				f.logger.Errorf(providers.TypeApp, "Simulated sampler failed to start: %s", err)
			}
		}
		f.mu.Unlock()
		return ErrNoFix
	}

	f.mu.Lock()
	stop := f.simulating && f.listening
	if stop {
		f.simulating = false
	}
	f.mu.Unlock()
	if stop {
		f.fallback.Stop()
		f.logger.Infof(providers.TypeApp, "Location fix received, leaving simulated data")
	}

	if err := f.record(r.Sample); err != nil {
		return err
	}
	f.mu.Lock()
	f.gotFix = true
	f.mu.Unlock()
	return nil
}

func (f *Feed) acceptSimulated(r Reading) error {
	f.mu.Lock()
	simulating := f.simulating
	f.mu.Unlock()
	if !simulating {
		return ErrNotListening
	}
	if r.ErrorCode != 0 {
		f.metrics.IncSamplesDiscarded("provider_error")
		return ErrNoFix
	}
	return f.record(r.Sample)
}

func (f *Feed) record(sample models.PositionSample) error {
	if err := f.sink(sample); err != nil {
		f.metrics.IncSamplesDiscarded(discardReason(err))
		f.logger.Debugf(providers.TypeApp, "Sample not recorded: %s", err)
		return err
	}
	return nil
}

// Simulated reports whether readings currently come from the simulator.
func (f *Feed) Simulated() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.simulating
}

func (f *Feed) startFallbackLocked() error {
	if err := f.fallback.Start(f.ctx, f.acceptSimulated); err != nil {
		return err
	}
	f.simulating = true
	return nil
}

func discardReason(err error) string {
	switch {
	case errors.Is(err, tracking.ErrInvalidSample):
		return "malformed"
	case errors.Is(err, tracking.ErrTimeRegressed):
		return "time_regressed"
	case errors.Is(err, tracking.ErrPaused):
		return "paused"
	default:
		return "inactive"
	}
}
