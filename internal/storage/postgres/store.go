// Package postgres provides a PostgreSQL-backed record store.
package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"stride/internal/models"
	"stride/internal/storage"
)

//go:embed schema.sql
var schemaSQL string

const uniqueViolation = "23505"

type Store struct {
	db   Querier
	pool *pgxpool.Pool
}

// New wraps an existing connection. The caller keeps ownership of db.
func New(db Querier) *Store {
	return &Store{db: db}
}

// Open connects to url, verifies the connection and ensures the schema.
func Open(ctx context.Context, url string) (*Store, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	store := &Store{db: pool, pool: pool}
	if err := store.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

const sessionColumns = `id, start_time, end_time, distance, duration, calories, average_speed, max_speed, locations`

func (s *Store) Insert(ctx context.Context, session models.Session) error {
	locations, err := encodeLocations(session.Locations)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO run_records (`+sessionColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9::jsonb)
	`, sessionArgs(session, locations)...)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("insert session %d: %w", session.ID, err)
	}
	return nil
}

func (s *Store) InsertOrReplace(ctx context.Context, session models.Session) error {
	locations, err := encodeLocations(session.Locations)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO run_records (`+sessionColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9::jsonb)
		ON CONFLICT (id) DO UPDATE SET
		    start_time=EXCLUDED.start_time, end_time=EXCLUDED.end_time,
		    distance=EXCLUDED.distance, duration=EXCLUDED.duration, calories=EXCLUDED.calories,
		    average_speed=EXCLUDED.average_speed, max_speed=EXCLUDED.max_speed,
		    locations=EXCLUDED.locations
	`, sessionArgs(session, locations)...)
	if err != nil {
		return fmt.Errorf("upsert session %d: %w", session.ID, err)
	}
	return nil
}

func (s *Store) DeleteByID(ctx context.Context, id int64) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM run_records WHERE id=$1`, id); err != nil {
		return fmt.Errorf("delete session %d: %w", id, err)
	}
	return nil
}

func (s *Store) GetByID(ctx context.Context, id int64) (models.Session, error) {
	row := s.db.QueryRow(ctx, `SELECT `+sessionColumns+` FROM run_records WHERE id=$1`, id)
	session, err := scanSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Session{}, storage.ErrNotFound
	}
	if err != nil {
		return models.Session{}, fmt.Errorf("get session %d: %w", id, err)
	}
	return session, nil
}

func (s *Store) Count(ctx context.Context) (int, error) {
	var count int64
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM run_records`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count sessions: %w", err)
	}
	return int(count), nil
}

func (s *Store) SumField(ctx context.Context, field storage.Field) (float64, bool, error) {
	if err := field.Validate(); err != nil {
		return 0, false, err
	}
	var (
		sum  float64
		rows int64
	)
	query := `SELECT COALESCE(SUM(` + string(field) + `), 0)::float8, COUNT(*) FROM run_records`
	if err := s.db.QueryRow(ctx, query).Scan(&sum, &rows); err != nil {
		return 0, false, fmt.Errorf("sum %s: %w", field, err)
	}
	return sum, rows > 0, nil
}

// Recent lists sessions newest first; a negative limit lists all of them.
func (s *Store) Recent(ctx context.Context, limit int) ([]models.Session, error) {
	var limitArg any
	if limit >= 0 {
		limitArg = limit
	}
	rows, err := s.db.Query(ctx, `
		SELECT `+sessionColumns+` FROM run_records
		ORDER BY start_time DESC, id DESC
		LIMIT $1
	`, limitArg)
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
	_, err := s.db.Exec(ctx, `
		INSERT INTO achievements (`+achievementColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (id) DO UPDATE SET
		    name=EXCLUDED.name, description=EXCLUDED.description, icon=EXCLUDED.icon,
		    category=EXCLUDED.category, target=EXCLUDED.target, progress=EXCLUDED.progress,
		    unlocked=EXCLUDED.unlocked, unlocked_at=EXCLUDED.unlocked_at
	`, a.ID, a.Name, a.Description, a.Icon, string(a.Category), a.Target, a.Progress, a.Unlocked, a.UnlockedAt)
	if err != nil {
		return fmt.Errorf("save achievement %d: %w", a.ID, err)
	}
	return nil
}

func (s *Store) AllAchievements(ctx context.Context) ([]models.Achievement, error) {
	rows, err := s.db.Query(ctx, `SELECT `+achievementColumns+` FROM achievements ORDER BY id`)
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
	if _, err := s.db.Exec(ctx, `DELETE FROM achievements`); err != nil {
		return fmt.Errorf("clear achievements: %w", err)
	}
	return nil
}

func sessionArgs(session models.Session, locations string) []any {
	return []any{
		session.ID,
		session.StartTime,
		session.EndTime,
		session.Distance,
		session.Duration,
		session.Calories,
		session.AverageSpeed,
		session.MaxSpeed,
		locations,
	}
}

func scanSession(row pgx.Row) (models.Session, error) {
	var (
		session   models.Session
		locations []byte
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
	session.Locations = []models.PositionSample{}
	if len(locations) > 0 {
		if err := json.Unmarshal(locations, &session.Locations); err != nil {
			return models.Session{}, fmt.Errorf("decode locations of session %d: %w", session.ID, err)
		}
	}
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
