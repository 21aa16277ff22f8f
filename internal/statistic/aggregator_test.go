package statistic

import (
	"context"
	"errors"
	"testing"

	"stride/internal/models"
	"stride/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixtureSessions() []models.Session {
	return []models.Session{
		{ID: 1, StartTime: 1_000, Distance: 5000, Duration: 1_800_000, Calories: 300},
		{ID: 2, StartTime: 3_000, Distance: 1200.5, Duration: 420_000, Calories: 72.03},
		{ID: 3, StartTime: 2_000, Distance: 0, Duration: 15_000, Calories: 0},
	}
}

func TestTotals_Empty(t *testing.T) {
	assert.Equal(t, models.Totals{}, Totals(nil))
	assert.Equal(t, models.Totals{}, Totals([]models.Session{}))
}

func TestTotals_Sums(t *testing.T) {
	got := Totals(fixtureSessions())

	assert.Equal(t, 3, got.Count)
	assert.InDelta(t, 6200.5, got.Distance, 1e-9)
	assert.Equal(t, int64(2_235_000), got.Duration)
	assert.InDelta(t, 372.03, got.Calories, 1e-9)
}

func TestTopN_OrdersNewestFirst(t *testing.T) {
	sessions := fixtureSessions()
	top := TopN(sessions, 2)

	require.Len(t, top, 2)
	assert.Equal(t, int64(2), top[0].ID)
	assert.Equal(t, int64(3), top[1].ID)
	assert.Equal(t, int64(1), sessions[0].ID, "input must not be reordered")
}

func TestTopN_Bounds(t *testing.T) {
	assert.Empty(t, TopN(fixtureSessions(), 0))
	assert.Empty(t, TopN(nil, 5))
	assert.Len(t, TopN(fixtureSessions(), 10), 3)
}

func TestFromStore_MatchesScan(t *testing.T) {
	store := testutil.NewMockStore()
	ctx := context.Background()
	for _, s := range fixtureSessions() {
		require.NoError(t, store.InsertOrReplace(ctx, s))
	}

	got, err := FromStore(ctx, store)
	require.NoError(t, err)

	want := Totals(fixtureSessions())
	assert.Equal(t, want.Count, got.Count)
	assert.InDelta(t, want.Distance, got.Distance, 1e-6)
	assert.Equal(t, want.Duration, got.Duration)
	assert.InDelta(t, want.Calories, got.Calories, 1e-6)
}

func TestFromStore_EmptyIsZero(t *testing.T) {
	got, err := FromStore(context.Background(), testutil.NewMockStore())
	require.NoError(t, err)
	assert.Equal(t, models.Totals{}, got)
}

func TestFromStore_PropagatesErrors(t *testing.T) {
	store := testutil.NewMockStore()
	store.Fail = func(op string) error {
		if op == "SumField" {
			return errors.New("disk I/O error")
		}
		return nil
	}

	_, err := FromStore(context.Background(), store)
	assert.ErrorContains(t, err, "disk I/O error")
}
