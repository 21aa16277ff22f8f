package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"stride/internal/achievement"
	"stride/internal/geo"
	"stride/internal/models"
	"stride/internal/outbox"
	"stride/internal/providers"
	"stride/internal/statistic"
	"stride/internal/storage"
	"stride/internal/structures"
	"stride/internal/tracking"
)

var (
	ErrNoActiveRun      = errors.New("no active run")
	ErrRunInProgress    = errors.New("a run is already in progress")
	ErrDuplicateSession = errors.New("session id already recorded")
	ErrInvalidSession   = errors.New("invalid session")
)

const (
	taskSession     = "session"
	taskDelete      = "delete"
	taskAchievement = "achievement"
	taskReset       = "achievement_reset"
)

// EndResult describes a finalized run. Unlocked lists the achievements that
// this run unlocked; it is empty on repeated End calls.
type EndResult struct {
	Session  models.Session       `json:"session"`
	Unlocked []models.Achievement `json:"unlocked"`
	First    bool                 `json:"first"`
}

type RunServiceInterface interface {
	Load(ctx context.Context) error
	Begin() (models.Session, error)
	Sample(sample models.PositionSample) error
	Pause() (models.Session, error)
	Resume() (models.Session, error)
	End() (EndResult, error)
	Current() (models.Session, bool)
	Save(ctx context.Context, session models.Session) (EndResult, error)
	Delete(ctx context.Context, id int64) error
	Get(ctx context.Context, id int64) (models.Session, error)
	Recent(n int) []models.Session
	Totals() models.Totals
	StoreTotals(ctx context.Context) (models.Totals, error)
	Achievements() []models.Achievement
	Unlocked() []models.Achievement
	Locked() []models.Achievement
	ResetAchievements() []models.Achievement
	RemoveDuplicates() int
	SessionCount() int
	PendingWrites() int
}

// RunService owns the in-memory view of every session and achievement and
// the run currently being tracked. Mutations update memory first and hand
// the durable write to the outbox.
type RunService struct {
	mu           sync.Mutex
	active       *tracking.Aggregator
	sessions     []models.Session
	known        map[int64]struct{}
	achievements []models.Achievement

	conf    *structures.Config
	store   storage.RecordStore
	writes  outbox.OutboxInterface
	cache   providers.CacheProviderInterface
	clock   tracking.Clock
	ids     *tracking.IDGenerator
	logger  providers.Logger
	metrics providers.MetricsProviderInterface
}

func NewRunService(
	conf *structures.Config,
	store storage.RecordStore,
	writes outbox.OutboxInterface,
	cache providers.CacheProviderInterface,
	clock tracking.Clock,
	logger providers.Logger,
	metrics providers.MetricsProviderInterface,
) *RunService {
	return &RunService{
		sessions:     make([]models.Session, 0),
		known:        make(map[int64]struct{}),
		achievements: models.DefaultCatalog(),
		conf:         conf,
		store:        store,
		writes:       writes,
		cache:        cache,
		clock:        clock,
		ids:          tracking.NewIDGenerator(clock),
		logger:       logger,
		metrics:      metrics,
	}
}

// Load fills the mirror from the store and seeds the achievement catalog
// when the store has none. On error the service keeps running on whatever
// was loaded.
func (s *RunService) Load(ctx context.Context) error {
	limit := s.conf.Store.LoadLimit
	if limit <= 0 {
		limit = -1
	}
	sessions, err := s.store.Recent(ctx, limit)
	if err != nil {
		return fmt.Errorf("load sessions: %w", err)
	}
	stored, err := s.store.AllAchievements(ctx)
	if err != nil {
		return fmt.Errorf("load achievements: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions = sessions
	if removed := s.removeDuplicatesLocked(); removed > 0 {
		s.logger.Warnf(providers.TypeApp, "Dropped %d duplicate sessions while loading", removed)
	}
	for _, session := range s.sessions {
		s.ids.Observe(session.ID)
	}

	if len(stored) == 0 {
		s.achievements = models.DefaultCatalog()
		for _, a := range s.achievements {
			if err := s.store.InsertOrReplaceAchievement(ctx, a); err != nil {
				return fmt.Errorf("seed achievement %d: %w", a.ID, err)
			}
		}
		s.logger.Infof(providers.TypeApp, "Seeded %d achievements", len(s.achievements))
	} else {
		s.achievements = stored
	}

	s.metrics.SetSessionsTotal(len(s.sessions))
	s.logger.Infof(providers.TypeApp, "Loaded %d sessions and %d achievements", len(s.sessions), len(s.achievements))
	return nil
}

func (s *RunService) Begin() (models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active != nil && !s.active.Finalized() {
		return models.Session{}, ErrRunInProgress
	}
	s.active = tracking.Begin(s.clock, s.ids, s.logger)
	s.logger.Infof(providers.TypeApp, "Run started")
	return s.active.Snapshot(), nil
}

func (s *RunService) Sample(sample models.PositionSample) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil || s.active.Finalized() {
		return ErrNoActiveRun
	}
	return s.active.OnSample(sample)
}

func (s *RunService) Pause() (models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil || s.active.Finalized() {
		return models.Session{}, ErrNoActiveRun
	}
	s.active.Pause()
	return s.active.Snapshot(), nil
}

func (s *RunService) Resume() (models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil || s.active.Finalized() {
		return models.Session{}, ErrNoActiveRun
	}
	s.active.Resume()
	return s.active.Snapshot(), nil
}

// Current returns the live snapshot of the tracked run, if any.
func (s *RunService) Current() (models.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return models.Session{}, false
	}
	return s.active.Snapshot(), true
}

// End finalizes the tracked run, records it and evaluates achievements.
// Calling End again returns the same session without re-recording it.
func (s *RunService) End() (EndResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return EndResult{}, ErrNoActiveRun
	}

	session, first := s.active.End()
	if !first {
		return EndResult{Session: session}, nil
	}
	s.metrics.IncSessionsFinalized()
	s.logger.Infof(providers.TypeApp, "Run %d finished: %.0f m in %d ms", session.ID, session.Distance, session.Duration)

	unlocked, err := s.recordLocked(session)
	if err != nil {
		return EndResult{Session: session, First: true}, err
	}
	return EndResult{Session: session, Unlocked: unlocked, First: true}, nil
}

// Save records a finalized session produced elsewhere, assigning an ID when
// it has none. Derived fields are recomputed from distance and duration. An
// ID already present in memory or in the store is rejected.
func (s *RunService) Save(ctx context.Context, session models.Session) (EndResult, error) {
	session, err := normalizeImport(session)
	if err != nil {
		return EndResult{}, err
	}

	if session.ID != 0 {
		if err := s.checkStored(ctx, session.ID); err != nil {
			return EndResult{}, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if session.ID == 0 {
		session.ID = s.ids.Next()
	} else {
		s.ids.Observe(session.ID)
	}

	unlocked, err := s.recordLocked(session)
	if err != nil {
		return EndResult{}, err
	}
	return EndResult{Session: session, Unlocked: unlocked, First: true}, nil
}

// checkStored fails with ErrDuplicateSession when id is already recorded,
// including sessions older than the load window that live only in the store.
func (s *RunService) checkStored(ctx context.Context, id int64) error {
	s.mu.Lock()
	_, dup := s.known[id]
	s.mu.Unlock()
	if !dup {
		_, err := s.store.GetByID(ctx, id)
		switch {
		case errors.Is(err, storage.ErrNotFound):
			return nil
		case err != nil:
			return fmt.Errorf("look up session %d: %w", id, err)
		}
	}
	s.logger.Warnf(providers.TypeApp, "Session %d already recorded, skipping", id)
	return ErrDuplicateSession
}

// normalizeImport checks that session is a finalized run and rebuilds the
// fields derived from distance and duration. A zero duration is taken as
// the whole span between start and end.
func normalizeImport(session models.Session) (models.Session, error) {
	span := session.EndTime - session.StartTime
	switch {
	case session.StartTime < 0, session.EndTime <= 0, span < 0:
		return models.Session{}, fmt.Errorf("%w: start %d end %d", ErrInvalidSession, session.StartTime, session.EndTime)
	case session.Duration < 0, session.Duration > span:
		return models.Session{}, fmt.Errorf("%w: duration %d outside span %d", ErrInvalidSession, session.Duration, span)
	case !finite(session.Distance) || session.Distance < 0:
		return models.Session{}, fmt.Errorf("%w: distance %v", ErrInvalidSession, session.Distance)
	case !finite(session.MaxSpeed) || session.MaxSpeed < 0:
		return models.Session{}, fmt.Errorf("%w: max speed %v", ErrInvalidSession, session.MaxSpeed)
	}
	for _, l := range session.Locations {
		if !geo.ValidCoordinate(l.Latitude, l.Longitude) {
			return models.Session{}, fmt.Errorf("%w: location %v,%v", ErrInvalidSession, l.Latitude, l.Longitude)
		}
	}

	session = session.Clone()
	if session.Locations == nil {
		session.Locations = []models.PositionSample{}
	}
	if session.Duration == 0 {
		session.Duration = span
	}
	session.Calories = models.EstimateCalories(session.Distance)
	session.AverageSpeed = models.AverageSpeed(session.Distance, session.Duration)
	return session, nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// recordLocked adds session to the mirror, queues its write and folds it
// into achievement progress. A known ID is skipped, never overwritten.
func (s *RunService) recordLocked(session models.Session) ([]models.Achievement, error) {
	if _, dup := s.known[session.ID]; dup {
		s.logger.Warnf(providers.TypeApp, "Session %d already recorded, skipping", session.ID)
		return nil, ErrDuplicateSession
	}

	s.insertLocked(session)
	s.enqueue(taskSession, func(ctx context.Context) error {
		err := s.store.Insert(ctx, session)
		if errors.Is(err, storage.ErrAlreadyExists) {
			s.logger.Warnf(providers.TypeApp, "Session %d already stored, skipping", session.ID)
			return nil
		}
		return err
	})

	results := achievement.Evaluate(s.achievements, session.Summary(), s.clock())
	s.achievements = achievement.Achievements(results)

	var unlocked []models.Achievement
	for _, r := range results {
		if !r.Changed {
			continue
		}
		a := r.Achievement
		s.enqueue(taskAchievement, func(ctx context.Context) error {
			return s.store.InsertOrReplaceAchievement(ctx, a)
		})
		if r.JustUnlocked {
			unlocked = append(unlocked, a)
			s.metrics.IncAchievementsUnlocked()
			s.logger.Infof(providers.TypeApp, "Achievement unlocked: %s", a.Name)
		}
	}

	s.metrics.SetSessionsTotal(len(s.sessions))
	s.cache.Purge()
	return unlocked, nil
}

func (s *RunService) insertLocked(session models.Session) {
	i := sort.Search(len(s.sessions), func(i int) bool {
		return s.sessions[i].StartTime <= session.StartTime
	})
	s.sessions = append(s.sessions, models.Session{})
	copy(s.sessions[i+1:], s.sessions[i:])
	s.sessions[i] = session
	s.known[session.ID] = struct{}{}
}

// Delete removes a session from memory and the store. Sessions older than
// the load window are looked up in the store. Achievement progress is kept.
func (s *RunService) Delete(ctx context.Context, id int64) error {
	if s.deleteLoaded(id) {
		return nil
	}
	if _, err := s.store.GetByID(ctx, id); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.enqueue(taskDelete, func(ctx context.Context) error {
		return s.store.DeleteByID(ctx, id)
	})
	s.cache.Purge()
	return nil
}

func (s *RunService) deleteLoaded(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i := range s.sessions {
		if s.sessions[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false
	}
	s.sessions = append(s.sessions[:idx], s.sessions[idx+1:]...)
	delete(s.known, id)

	s.enqueue(taskDelete, func(ctx context.Context) error {
		return s.store.DeleteByID(ctx, id)
	})
	s.metrics.SetSessionsTotal(len(s.sessions))
	s.cache.Purge()
	return true
}

// Get looks the session up in memory first and falls back to the store for
// sessions older than the load window.
func (s *RunService) Get(ctx context.Context, id int64) (models.Session, error) {
	s.mu.Lock()
	for i := range s.sessions {
		if s.sessions[i].ID == id {
			found := s.sessions[i].Clone()
			s.mu.Unlock()
			return found, nil
		}
	}
	s.mu.Unlock()
	return s.store.GetByID(ctx, id)
}

func (s *RunService) Recent(n int) []models.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return statistic.TopN(s.sessions, n)
}

func (s *RunService) Totals() models.Totals {
	s.mu.Lock()
	defer s.mu.Unlock()
	return statistic.Totals(s.sessions)
}

func (s *RunService) StoreTotals(ctx context.Context) (models.Totals, error) {
	return statistic.FromStore(ctx, s.store)
}

func (s *RunService) Achievements() []models.Achievement {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Achievement, len(s.achievements))
	copy(out, s.achievements)
	return out
}

func (s *RunService) Unlocked() []models.Achievement {
	s.mu.Lock()
	defer s.mu.Unlock()
	return achievement.Filter(s.achievements, true)
}

func (s *RunService) Locked() []models.Achievement {
	s.mu.Lock()
	defer s.mu.Unlock()
	return achievement.Filter(s.achievements, false)
}

// ResetAchievements clears all progress and rewrites the stored set.
func (s *RunService) ResetAchievements() []models.Achievement {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.achievements = achievement.Reset(s.achievements)
	snapshot := make([]models.Achievement, len(s.achievements))
	copy(snapshot, s.achievements)

	s.enqueue(taskReset, func(ctx context.Context) error {
		if err := s.store.ClearAchievements(ctx); err != nil {
			return err
		}
		for _, a := range snapshot {
			if err := s.store.InsertOrReplaceAchievement(ctx, a); err != nil {
				return err
			}
		}
		return nil
	})
	s.cache.Purge()
	s.logger.Infof(providers.TypeApp, "Achievements reset")

	out := make([]models.Achievement, len(snapshot))
	copy(out, snapshot)
	return out
}

// RemoveDuplicates drops sessions whose ID appears earlier in the mirror and
// returns how many were removed.
func (s *RunService) RemoveDuplicates() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := s.removeDuplicatesLocked()
	if removed > 0 {
		s.logger.Infof(providers.TypeApp, "Removed %d duplicate sessions", removed)
		s.metrics.SetSessionsTotal(len(s.sessions))
	}
	return removed
}

func (s *RunService) removeDuplicatesLocked() int {
	s.known = make(map[int64]struct{}, len(s.sessions))
	unique := s.sessions[:0]
	for _, session := range s.sessions {
		if _, dup := s.known[session.ID]; dup {
			continue
		}
		s.known[session.ID] = struct{}{}
		unique = append(unique, session)
	}
	removed := len(s.sessions) - len(unique)
	s.sessions = unique
	return removed
}

func (s *RunService) SessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *RunService) PendingWrites() int {
	return s.writes.Pending()
}

func (s *RunService) enqueue(kind string, run func(ctx context.Context) error) {
	if _, err := s.writes.Enqueue(kind, run); err != nil {
		s.logger.Errorf(providers.TypeApp, "Could not queue %s write: %s", kind, err)
	}
}
