package statistic

import (
	"context"
	"fmt"
	"sort"

	"stride/internal/models"
	"stride/internal/storage"
)

// Totals reduces sessions to cumulative figures. An empty slice yields zeros.
func Totals(sessions []models.Session) models.Totals {
	var t models.Totals
	for i := range sessions {
		t.Count++
		t.Distance += sessions[i].Distance
		t.Duration += sessions[i].Duration
		t.Calories += sessions[i].Calories
	}
	return t
}

// TopN returns up to n sessions ordered by start time, newest first. The
// input is left untouched.
func TopN(sessions []models.Session, n int) []models.Session {
	if n <= 0 || len(sessions) == 0 {
		return []models.Session{}
	}
	sorted := make([]models.Session, len(sessions))
	copy(sorted, sessions)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].StartTime > sorted[j].StartTime
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

// FromStore computes the same figures as Totals through the store's
// aggregate queries.
func FromStore(ctx context.Context, store storage.SessionStore) (models.Totals, error) {
	count, err := store.Count(ctx)
	if err != nil {
		return models.Totals{}, fmt.Errorf("count sessions: %w", err)
	}

	sums := make(map[storage.Field]float64, 3)
	for _, field := range []storage.Field{storage.FieldDistance, storage.FieldDuration, storage.FieldCalories} {
		sum, ok, err := store.SumField(ctx, field)
		if err != nil {
			return models.Totals{}, fmt.Errorf("sum %s: %w", field, err)
		}
		if ok {
			sums[field] = sum
		}
	}

	return models.Totals{
		Count:    count,
		Distance: sums[storage.FieldDistance],
		Duration: int64(sums[storage.FieldDuration]),
		Calories: sums[storage.FieldCalories],
	}, nil
}
