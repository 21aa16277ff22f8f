// Package snapshot keeps records in memory and persists them as a single
// zstd-compressed JSON file.
package snapshot

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	json "github.com/goccy/go-json"

	"stride/internal/models"
	"stride/internal/providers"
	"stride/internal/statistic/interfaces"
	"stride/internal/storage"
)

// File is the on-disk layout.
type File struct {
	Version      int                  `json:"version"`
	Sessions     []models.Session     `json:"sessions"`
	Achievements []models.Achievement `json:"achievements"`
}

const fileVersion = 1

type Store struct {
	mu           sync.RWMutex
	path         string
	sessions     map[int64]models.Session
	achievements map[int]models.Achievement
	dirty        bool
	compressor   interfaces.CompressorInterface
	logger       providers.Logger
}

func New(path string, compressor interfaces.CompressorInterface, logger providers.Logger) *Store {
	return &Store{
		path:         path,
		sessions:     make(map[int64]models.Session),
		achievements: make(map[int]models.Achievement),
		compressor:   compressor,
		logger:       logger,
	}
}

func (s *Store) Insert(_ context.Context, session models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[session.ID]; ok {
		return storage.ErrAlreadyExists
	}
	s.sessions[session.ID] = session.Clone()
	s.dirty = true
	return nil
}

func (s *Store) InsertOrReplace(_ context.Context, session models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = session.Clone()
	s.dirty = true
	return nil
}

func (s *Store) DeleteByID(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; ok {
		delete(s.sessions, id)
		s.dirty = true
	}
	return nil
}

func (s *Store) GetByID(_ context.Context, id int64) (models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[id]
	if !ok {
		return models.Session{}, storage.ErrNotFound
	}
	return session.Clone(), nil
}

func (s *Store) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions), nil
}

func (s *Store) SumField(_ context.Context, field storage.Field) (float64, bool, error) {
	if err := field.Validate(); err != nil {
		return 0, false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.sessions) == 0 {
		return 0, false, nil
	}
	var sum float64
	for _, session := range s.sessions {
		switch field {
		case storage.FieldDistance:
			sum += session.Distance
		case storage.FieldDuration:
			sum += float64(session.Duration)
		case storage.FieldCalories:
			sum += session.Calories
		}
	}
	return sum, true, nil
}

// Recent returns sessions newest first; a negative limit returns all.
func (s *Store) Recent(_ context.Context, limit int) ([]models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		out = append(out, session.Clone())
	}
	sortNewestFirst(out)
	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) InsertOrReplaceAchievement(_ context.Context, achievement models.Achievement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.achievements[achievement.ID] = achievement
	s.dirty = true
	return nil
}

func (s *Store) AllAchievements(_ context.Context) ([]models.Achievement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Achievement, 0, len(s.achievements))
	for _, a := range s.achievements {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) ClearAchievements(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.achievements) > 0 {
		s.achievements = make(map[int]models.Achievement)
		s.dirty = true
	}
	return nil
}

// Load replaces the in-memory state with the file contents. A missing file
// leaves the store empty.
func (s *Store) Load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	decompressed, err := s.compressor.Decompress(data)
	if err != nil {
		return fmt.Errorf("decompress %s: %w", s.path, err)
	}

	var f File
	if err := json.Unmarshal(decompressed, &f); err != nil {
		return fmt.Errorf("parse %s: %w", s.path, err)
	}
	if f.Version != fileVersion {
		return fmt.Errorf("unsupported snapshot version %d in %s", f.Version, s.path)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions = make(map[int64]models.Session, len(f.Sessions))
	for _, session := range f.Sessions {
		if _, dup := s.sessions[session.ID]; dup {
			s.logger.Warnf(providers.TypeApp, "Snapshot %s holds session %d twice, keeping the first", s.path, session.ID)
			continue
		}
		s.sessions[session.ID] = session
	}
	s.achievements = make(map[int]models.Achievement, len(f.Achievements))
	for _, a := range f.Achievements {
		s.achievements[a.ID] = a
	}
	s.dirty = false
	s.logger.Infof(providers.TypeApp, "Loaded %d sessions and %d achievements from %s", len(s.sessions), len(s.achievements), s.path)
	return nil
}

// Flush writes the snapshot when anything changed since the last write.
func (s *Store) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.dirty {
		return nil
	}

	f := File{
		Version:      fileVersion,
		Sessions:     make([]models.Session, 0, len(s.sessions)),
		Achievements: make([]models.Achievement, 0, len(s.achievements)),
	}
	for _, session := range s.sessions {
		f.Sessions = append(f.Sessions, session)
	}
	sortNewestFirst(f.Sessions)
	for _, a := range s.achievements {
		f.Achievements = append(f.Achievements, a)
	}
	sort.Slice(f.Achievements, func(i, j int) bool { return f.Achievements[i].ID < f.Achievements[j].ID })

	if err := s.write(f); err != nil {
		return err
	}
	s.dirty = false
	return nil
}

func (s *Store) Close() error {
	err := s.Flush()
	s.compressor.Close()
	return err
}

func (s *Store) write(f File) error {
	jsonData, err := json.Marshal(f)
	if err != nil {
		return err
	}
	data, err := s.compressor.Compress(jsonData)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return err
	}

	tmpFile := s.path + ".tmp"
	file, err := os.Create(tmpFile)
	if err != nil {
		return err
	}

	if _, err = file.Write(data); err != nil {
		file.Close()
		os.Remove(tmpFile)
		return err
	}

	if err = file.Sync(); err != nil {
		file.Close()
		os.Remove(tmpFile)
		return err
	}

	if err = file.Close(); err != nil {
		os.Remove(tmpFile)
		return err
	}

	return os.Rename(tmpFile, s.path)
}

func sortNewestFirst(sessions []models.Session) {
	sort.Slice(sessions, func(i, j int) bool {
		if sessions[i].StartTime != sessions[j].StartTime {
			return sessions[i].StartTime > sessions[j].StartTime
		}
		return sessions[i].ID > sessions[j].ID
	})
}
