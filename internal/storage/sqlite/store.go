// Package sqlite provides a SQLite-backed record store.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	json "github.com/goccy/go-json"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"stride/internal/models"
	"stride/internal/storage"
	"stride/internal/storage/sqlite/migrations"
	"stride/internal/storage/sqlitemigrate"
)

// Store persists sessions and achievements in SQLite.
type Store struct {
	sqlDB *sql.DB
}

// Open opens a SQLite record store and applies embedded migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := sqlitemigrate.ApplyMigrations(ctx, sqlDB, migrations.FS, ""); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

const sessionColumns = `id, start_time, end_time, distance, duration, calories, average_speed, max_speed, locations`

func (s *Store) InsertOrReplace(ctx context.Context, session models.Session) error {
	locations, err := encodeLocations(session.Locations)
	if err != nil {
		return err
	}
	_, err = s.sqlDB.ExecContext(ctx,
		`INSERT OR REPLACE INTO run_records (`+sessionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		session.ID,
		session.StartTime,
		session.EndTime,
		session.Distance,
		session.Duration,
		session.Calories,
		session.AverageSpeed,
		session.MaxSpeed,
		locations,
	)
	if err != nil {
		return fmt.Errorf("insert session %d: %w", session.ID, err)
	}
	return nil
}

// Insert stores a session and fails with storage.ErrAlreadyExists when the
// ID is taken.
func (s *Store) Insert(ctx context.Context, session models.Session) error {
	locations, err := encodeLocations(session.Locations)
	if err != nil {
		return err
	}
	_, err = s.sqlDB.ExecContext(ctx,
		`INSERT INTO run_records (`+sessionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		session.ID,
		session.StartTime,
		session.EndTime,
		session.Distance,
		session.Duration,
		session.Calories,
		session.AverageSpeed,
		session.MaxSpeed,
		locations,
	)
	if err != nil {
		if isPrimaryKeyViolation(err) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("insert session %d: %w", session.ID, err)
	}
	return nil
}

func (s *Store) DeleteByID(ctx context.Context, id int64) error {
	if _, err := s.sqlDB.ExecContext(ctx, `DELETE FROM run_records WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete session %d: %w", id, err)
	}
	return nil
}

func (s *Store) GetByID(ctx context.Context, id int64) (models.Session, error) {
	row := s.sqlDB.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM run_records WHERE id = ?`, id)
	session, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Session{}, storage.ErrNotFound
	}
	if err != nil {
		return models.Session{}, fmt.Errorf("get session %d: %w", id, err)
	}
	return session, nil
}

func (s *Store) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.sqlDB.QueryRowContext(ctx, `SELECT COUNT(*) FROM run_records`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count sessions: %w", err)
	}
	return count, nil
}

func (s *Store) SumField(ctx context.Context, field storage.Field) (float64, bool, error) {
	if err := field.Validate(); err != nil {
		return 0, false, err
	}
	var sum sql.NullFloat64
	// field is restricted to a fixed column set by Validate.
	query := `SELECT SUM(` + string(field) + `) FROM run_records`
	if err := s.sqlDB.QueryRowContext(ctx, query).Scan(&sum); err != nil {
		return 0, false, fmt.Errorf("sum %s: %w", field, err)
	}
	return sum.Float64, sum.Valid, nil
}

func (s *Store) Recent(ctx context.Context, limit int) ([]models.Session, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM run_records ORDER BY start_time DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	sessions := make([]models.Session, 0)
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}

const achievementColumns = `id, name, description, icon, category, target, progress, unlocked, unlocked_at`

func (s *Store) InsertOrReplaceAchievement(ctx context.Context, a models.Achievement) error {
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT OR REPLACE INTO achievements (`+achievementColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Name, a.Description, a.Icon, string(a.Category), a.Target, a.Progress, a.Unlocked, a.UnlockedAt,
	)
	if err != nil {
		return fmt.Errorf("save achievement %d: %w", a.ID, err)
	}
	return nil
}

func (s *Store) AllAchievements(ctx context.Context) ([]models.Achievement, error) {
	rows, err := s.sqlDB.QueryContext(ctx, `SELECT `+achievementColumns+` FROM achievements ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list achievements: %w", err)
	}
	defer rows.Close()

	achievements := make([]models.Achievement, 0)
	for rows.Next() {
		var (
			a        models.Achievement
			category string
		)
		if err := rows.Scan(&a.ID, &a.Name, &a.Description, &a.Icon, &category, &a.Target, &a.Progress, &a.Unlocked, &a.UnlockedAt); err != nil {
			return nil, fmt.Errorf("scan achievement: %w", err)
		}
		a.Category = models.Category(category)
		achievements = append(achievements, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate achievements: %w", err)
	}
	return achievements, nil
}

func (s *Store) ClearAchievements(ctx context.Context) error {
	if _, err := s.sqlDB.ExecContext(ctx, `DELETE FROM achievements`); err != nil {
		return fmt.Errorf("clear achievements: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (models.Session, error) {
	var (
		session   models.Session
		locations string
	)
	if err := row.Scan(
		&session.ID,
		&session.StartTime,
		&session.EndTime,
		&session.Distance,
		&session.Duration,
		&session.Calories,
		&session.AverageSpeed,
		&session.MaxSpeed,
		&locations,
	); err != nil {
		return models.Session{}, err
	}
	decoded, err := decodeLocations(locations)
	if err != nil {
		return models.Session{}, fmt.Errorf("session %d: %w", session.ID, err)
	}
	session.Locations = decoded
	return session, nil
}

func encodeLocations(locations []models.PositionSample) (string, error) {
	if locations == nil {
		locations = []models.PositionSample{}
	}
	data, err := json.Marshal(locations)
	if err != nil {
		return "", fmt.Errorf("encode locations: %w", err)
	}
	return string(data), nil
}

// decodeLocations tolerates an empty column so rows written by older
// schemas still load.
func decodeLocations(value string) ([]models.PositionSample, error) {
	locations := []models.PositionSample{}
	if strings.TrimSpace(value) == "" {
		return locations, nil
	}
	if err := json.Unmarshal([]byte(value), &locations); err != nil {
		return nil, fmt.Errorf("decode locations: %w", err)
	}
	return locations, nil
}

func isPrimaryKeyViolation(err error) bool {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}
