// Package storage defines the record store contract shared by every driver.
package storage

import (
	"context"
	"errors"
	"fmt"

	"stride/internal/models"
)

var (
	ErrNotFound      = errors.New("record not found")
	ErrAlreadyExists = errors.New("record already exists")
)

// Field names a numeric session column that supports SUM aggregation.
type Field string

const (
	FieldDistance Field = "distance"
	FieldDuration Field = "duration"
	FieldCalories Field = "calories"
)

func (f Field) Validate() error {
	switch f {
	case FieldDistance, FieldDuration, FieldCalories:
		return nil
	}
	return fmt.Errorf("unsupported aggregate field %q", string(f))
}

type SessionStore interface {
	// Insert fails with ErrAlreadyExists when the ID is taken.
	Insert(ctx context.Context, session models.Session) error
	InsertOrReplace(ctx context.Context, session models.Session) error
	DeleteByID(ctx context.Context, id int64) error
	GetByID(ctx context.Context, id int64) (models.Session, error)
	Count(ctx context.Context) (int, error)
	// SumField returns false when the table is empty.
	SumField(ctx context.Context, field Field) (float64, bool, error)
	Recent(ctx context.Context, limit int) ([]models.Session, error)
}

type AchievementStore interface {
	InsertOrReplaceAchievement(ctx context.Context, achievement models.Achievement) error
	AllAchievements(ctx context.Context) ([]models.Achievement, error)
	ClearAchievements(ctx context.Context) error
}

type RecordStore interface {
	SessionStore
	AchievementStore
	Close() error
}
