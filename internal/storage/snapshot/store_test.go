package snapshot

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stride/internal/models"
	"stride/internal/statistic"
	"stride/internal/storage"
	"stride/internal/testutil"
)

func newTestStore(t *testing.T, comp *testutil.MockCompressor) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "runs.snap")
	return New(path, comp, &testutil.MockLogger{}), path
}

func session(id, start int64, distance float64) models.Session {
	return models.Session{
		ID:        id,
		StartTime: start,
		EndTime:   start + 600_000,
		Distance:  distance,
		Duration:  600_000,
		Calories:  models.EstimateCalories(distance),
		Locations: []models.PositionSample{{Latitude: 1, Longitude: 2, Timestamp: start}},
	}
}

func TestStore_GetByID_NotFound(t *testing.T) {
	s, _ := newTestStore(t, &testutil.MockCompressor{})
	_, err := s.GetByID(context.Background(), 1)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestStore_InsertOrReplace_Overwrites(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t, &testutil.MockCompressor{})

	require.NoError(t, s.InsertOrReplace(ctx, session(1, 100, 1000)))
	require.NoError(t, s.InsertOrReplace(ctx, session(1, 100, 2500)))

	got, err := s.GetByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 2500.0, got.Distance)
	count, _ := s.Count(ctx)
	assert.Equal(t, 1, count)
}

func TestStore_Recent_NewestFirst(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t, &testutil.MockCompressor{})
	for i, start := range []int64{300, 100, 200} {
		require.NoError(t, s.InsertOrReplace(ctx, session(int64(i+1), start, 1000)))
	}

	recent, err := s.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, int64(300), recent[0].StartTime)
	assert.Equal(t, int64(200), recent[1].StartTime)

	all, _ := s.Recent(ctx, -1)
	assert.Len(t, all, 3)
}

func TestStore_SumField(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t, &testutil.MockCompressor{})

	_, ok, err := s.SumField(ctx, storage.FieldDistance)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.InsertOrReplace(ctx, session(1, 100, 1000)))
	require.NoError(t, s.InsertOrReplace(ctx, session(2, 200, 4000)))

	sum, ok, err := s.SumField(ctx, storage.FieldDistance)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 5000.0, sum)

	_, _, err = s.SumField(ctx, storage.Field("pace"))
	assert.Error(t, err)
}

func TestStore_MatchesScanTotals(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t, &testutil.MockCompressor{})
	sessions := []models.Session{session(1, 100, 1234.5), session(2, 200, 42), session(3, 300, 0)}
	for _, sess := range sessions {
		require.NoError(t, s.InsertOrReplace(ctx, sess))
	}

	got, err := statistic.FromStore(ctx, s)
	require.NoError(t, err)
	want := statistic.Totals(sessions)
	assert.Equal(t, want.Count, got.Count)
	assert.InDelta(t, want.Distance, got.Distance, 1e-9)
	assert.Equal(t, want.Duration, got.Duration)
	assert.InDelta(t, want.Calories, got.Calories, 1e-9)
}

func TestStore_FlushAndLoad(t *testing.T) {
	ctx := context.Background()
	comp, err := statistic.NewZstdCompressor()
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "nested", "runs.snap")
	s := New(path, comp, &testutil.MockLogger{})

	require.NoError(t, s.InsertOrReplace(ctx, session(1, 100, 1000)))
	require.NoError(t, s.InsertOrReplaceAchievement(ctx, models.DefaultCatalog()[0]))
	require.NoError(t, s.Flush())

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))

	comp2, err := statistic.NewZstdCompressor()
	require.NoError(t, err)
	restored := New(path, comp2, &testutil.MockLogger{})
	require.NoError(t, restored.Load())

	got, err := restored.GetByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1000.0, got.Distance)
	assert.Len(t, got.Locations, 1)
	achievements, _ := restored.AllAchievements(ctx)
	require.Len(t, achievements, 1)
	assert.Equal(t, models.DefaultCatalog()[0].Name, achievements[0].Name)
}

func TestStore_Flush_SkipsWhenClean(t *testing.T) {
	calls := 0
	comp := &testutil.MockCompressor{CompressFn: func(b []byte) ([]byte, error) {
		calls++
		return b, nil
	}}
	s, path := newTestStore(t, comp)

	require.NoError(t, s.Flush())
	assert.Equal(t, 0, calls)
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	require.NoError(t, s.InsertOrReplace(context.Background(), session(1, 1, 1)))
	require.NoError(t, s.Flush())
	require.NoError(t, s.Flush())
	assert.Equal(t, 1, calls)
}

func TestStore_Flush_CompressError_KeepsDirty(t *testing.T) {
	fail := true
	comp := &testutil.MockCompressor{CompressFn: func(b []byte) ([]byte, error) {
		if fail {
			return nil, errors.New("compress error")
		}
		return b, nil
	}}
	s, path := newTestStore(t, comp)
	require.NoError(t, s.InsertOrReplace(context.Background(), session(1, 1, 1)))

	assert.Error(t, s.Flush())

	fail = false
	require.NoError(t, s.Flush())
	_, err := os.Stat(path)
	assert.NoError(t, err)
}

func TestStore_Load_MissingFile(t *testing.T) {
	s, _ := newTestStore(t, &testutil.MockCompressor{})
	assert.NoError(t, s.Load())
}

func TestStore_Load_Corrupted(t *testing.T) {
	s, path := newTestStore(t, &testutil.MockCompressor{})
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0644))
	assert.Error(t, s.Load())
}

func TestStore_Load_UnknownVersion(t *testing.T) {
	s, path := newTestStore(t, &testutil.MockCompressor{})
	require.NoError(t, os.WriteFile(path, []byte(`{"version":9,"sessions":[]}`), 0644))
	assert.ErrorContains(t, s.Load(), "unsupported snapshot version 9")
}

func TestStore_Load_DuplicateSessionKeepsFirst(t *testing.T) {
	logger := &testutil.MockLogger{}
	path := filepath.Join(t.TempDir(), "dup.snap")
	body := `{"version":1,"sessions":[{"id":5,"distance":10},{"id":5,"distance":99}]}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))

	s := New(path, &testutil.MockCompressor{}, logger)
	require.NoError(t, s.Load())

	got, err := s.GetByID(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, 10.0, got.Distance)
	assert.Len(t, logger.ByLevel("warn"), 1)
}

func TestStore_ClearAchievements(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t, &testutil.MockCompressor{})
	for _, a := range models.DefaultCatalog() {
		require.NoError(t, s.InsertOrReplaceAchievement(ctx, a))
	}
	require.NoError(t, s.ClearAchievements(ctx))
	all, _ := s.AllAchievements(ctx)
	assert.Empty(t, all)
}

func TestStore_Insert_RejectsDuplicate(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t, &testutil.MockCompressor{})

	require.NoError(t, s.Insert(ctx, session(1, 100, 1000)))
	assert.ErrorIs(t, s.Insert(ctx, session(1, 100, 5000)), storage.ErrAlreadyExists)

	got, err := s.GetByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1000.0, got.Distance)
}
