package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"stride/internal/models"
	"stride/internal/providers"
	"stride/internal/storage"
)

// MockLogger implements providers.Logger and records calls.
type MockLogger struct {
	mu   sync.Mutex
	Logs []LogEntry
}

type LogEntry struct {
	Level  string
	Type   providers.TypeEnum
	Format string
	Args   []interface{}
}

func (m *MockLogger) record(level string, t providers.TypeEnum, format string, args ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Logs = append(m.Logs, LogEntry{Level: level, Type: t, Format: format, Args: args})
}

func (m *MockLogger) Errorf(t providers.TypeEnum, format string, args ...interface{}) {
	m.record("error", t, format, args...)
}
func (m *MockLogger) Warnf(t providers.TypeEnum, format string, args ...interface{}) {
	m.record("warn", t, format, args...)
}
func (m *MockLogger) Debugf(t providers.TypeEnum, format string, args ...interface{}) {
	m.record("debug", t, format, args...)
}
func (m *MockLogger) Infof(t providers.TypeEnum, format string, args ...interface{}) {
	m.record("info", t, format, args...)
}
func (m *MockLogger) Fatalf(t providers.TypeEnum, format string, args ...interface{}) {
	m.record("fatal", t, format, args...)
}
func (m *MockLogger) Close() {}

// ByLevel returns the recorded entries for one level.
func (m *MockLogger) ByLevel(level string) []LogEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []LogEntry
	for _, e := range m.Logs {
		if e.Level == level {
			out = append(out, e)
		}
	}
	return out
}

// MockStore is an in-memory storage.RecordStore with injectable failures.
type MockStore struct {
	mu           sync.Mutex
	Sessions     map[int64]models.Session
	Achievements map[int]models.Achievement

	// Fail, when set, is consulted before every operation; a non-nil
	// result is returned instead of performing it.
	Fail func(op string) error

	Calls []string
}

func NewMockStore() *MockStore {
	return &MockStore{
		Sessions:     make(map[int64]models.Session),
		Achievements: make(map[int]models.Achievement),
	}
}

func (m *MockStore) enter(op string) error {
	m.Calls = append(m.Calls, op)
	if m.Fail != nil {
		return m.Fail(op)
	}
	return nil
}

func (m *MockStore) CallCount(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.Calls {
		if c == op {
			n++
		}
	}
	return n
}

func (m *MockStore) Insert(_ context.Context, session models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("Insert"); err != nil {
		return err
	}
	if _, ok := m.Sessions[session.ID]; ok {
		return storage.ErrAlreadyExists
	}
	m.Sessions[session.ID] = session.Clone()
	return nil
}

func (m *MockStore) InsertOrReplace(_ context.Context, session models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("InsertOrReplace"); err != nil {
		return err
	}
	m.Sessions[session.ID] = session.Clone()
	return nil
}

func (m *MockStore) DeleteByID(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("DeleteByID"); err != nil {
		return err
	}
	delete(m.Sessions, id)
	return nil
}

func (m *MockStore) GetByID(_ context.Context, id int64) (models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("GetByID"); err != nil {
		return models.Session{}, err
	}
	s, ok := m.Sessions[id]
	if !ok {
		return models.Session{}, storage.ErrNotFound
	}
	return s.Clone(), nil
}

func (m *MockStore) Count(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("Count"); err != nil {
		return 0, err
	}
	return len(m.Sessions), nil
}

func (m *MockStore) SumField(_ context.Context, field storage.Field) (float64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("SumField"); err != nil {
		return 0, false, err
	}
	if err := field.Validate(); err != nil {
		return 0, false, err
	}
	if len(m.Sessions) == 0 {
		return 0, false, nil
	}
	var sum float64
	for _, s := range m.Sessions {
		switch field {
		case storage.FieldDistance:
			sum += s.Distance
		case storage.FieldDuration:
			sum += float64(s.Duration)
		case storage.FieldCalories:
			sum += s.Calories
		}
	}
	return sum, true, nil
}

func (m *MockStore) Recent(_ context.Context, limit int) ([]models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("Recent"); err != nil {
		return nil, err
	}
	out := make([]models.Session, 0, len(m.Sessions))
	for _, s := range m.Sessions {
		out = append(out, s.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime > out[j].StartTime })
	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MockStore) InsertOrReplaceAchievement(_ context.Context, a models.Achievement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("InsertOrReplaceAchievement"); err != nil {
		return err
	}
	m.Achievements[a.ID] = a
	return nil
}

func (m *MockStore) AllAchievements(_ context.Context) ([]models.Achievement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("AllAchievements"); err != nil {
		return nil, err
	}
	out := make([]models.Achievement, 0, len(m.Achievements))
	for _, a := range m.Achievements {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MockStore) ClearAchievements(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("ClearAchievements"); err != nil {
		return err
	}
	m.Achievements = make(map[int]models.Achievement)
	return nil
}

func (m *MockStore) Close() error { return nil }

// MockMetrics implements providers.MetricsProviderInterface and counts events.
type MockMetrics struct {
	mu                   sync.Mutex
	SessionsFinalized    int
	AchievementsUnlocked int
	Discarded            map[string]int
	PersistenceFailures  map[string]int
	SessionsTotal        int
	OutboxPending        int
	Requests             map[string]int
}

func (m *MockMetrics) IncRequestsTotal(endpoint string, _ int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Requests == nil {
		m.Requests = make(map[string]int)
	}
	m.Requests[endpoint]++
}

func (m *MockMetrics) ObserveRequestDuration(_ string, _ time.Duration) {}
func (m *MockMetrics) IncCacheHits()                                    {}
func (m *MockMetrics) IncCacheMisses()                                  {}
func (m *MockMetrics) ObservePersistenceDuration(_ time.Duration)       {}

func (m *MockMetrics) IncPersistenceFailures(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.PersistenceFailures == nil {
		m.PersistenceFailures = make(map[string]int)
	}
	m.PersistenceFailures[kind]++
}

func (m *MockMetrics) IncSessionsFinalized() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SessionsFinalized++
}

func (m *MockMetrics) IncSamplesDiscarded(reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Discarded == nil {
		m.Discarded = make(map[string]int)
	}
	m.Discarded[reason]++
}

func (m *MockMetrics) IncAchievementsUnlocked() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.AchievementsUnlocked++
}

func (m *MockMetrics) SetSessionsTotal(count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SessionsTotal = count
}

func (m *MockMetrics) SetOutboxPending(count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.OutboxPending = count
}

// MockCache implements providers.CacheProviderInterface.
type MockCache struct {
	mu     sync.Mutex
	Data   map[string][]byte
	Purges int
}

func NewMockCache() *MockCache {
	return &MockCache{Data: make(map[string][]byte)}
}

func (m *MockCache) Get(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	val, ok := m.Data[key]
	return val, ok
}

func (m *MockCache) Set(key string, value []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Data[key] = value
}

func (m *MockCache) Purge() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Data = make(map[string][]byte)
	m.Purges++
}

// MockCompressor is an identity compressor with injectable behavior.
type MockCompressor struct {
	CompressFn   func([]byte) ([]byte, error)
	DecompressFn func([]byte) ([]byte, error)
}

func (m *MockCompressor) Compress(val []byte) ([]byte, error) {
	if m.CompressFn != nil {
		return m.CompressFn(val)
	}
	out := make([]byte, len(val))
	copy(out, val)
	return out, nil
}

func (m *MockCompressor) Decompress(val []byte) ([]byte, error) {
	if m.DecompressFn != nil {
		return m.DecompressFn(val)
	}
	out := make([]byte, len(val))
	copy(out, val)
	return out, nil
}

func (m *MockCompressor) Close() {}
