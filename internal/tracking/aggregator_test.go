package tracking

import (
	"testing"

	"stride/internal/geo"
	"stride/internal/models"
	"stride/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	now int64
}

func (c *fakeClock) Now() int64 { return c.now }

func (c *fakeClock) Advance(ms int64) { c.now += ms }

func newTestAggregator(start int64) (*Aggregator, *fakeClock, *testutil.MockLogger) {
	clock := &fakeClock{now: start}
	logger := &testutil.MockLogger{}
	return Begin(clock.Now, NewIDGenerator(clock.Now), logger), clock, logger
}

func sampleAt(lat, lon float64, ts int64, speed float64) models.PositionSample {
	return models.PositionSample{Latitude: lat, Longitude: lon, Timestamp: ts, Speed: speed}
}

func TestBegin_ZeroAccumulators(t *testing.T) {
	a, _, _ := newTestAggregator(1_000)
	s := a.Snapshot()

	assert.Equal(t, int64(1_000), s.StartTime)
	assert.Zero(t, s.EndTime)
	assert.Zero(t, s.Distance)
	assert.Zero(t, s.MaxSpeed)
	assert.Empty(t, s.Locations)
}

func TestOnSample_AccumulatesDistanceAndCalories(t *testing.T) {
	a, _, _ := newTestAggregator(1_000)

	require.NoError(t, a.OnSample(sampleAt(30.0, 120.0, 2_000, 3.0)))
	require.NoError(t, a.OnSample(sampleAt(30.001, 120.0, 4_000, 3.5)))

	want := geo.HaversineMeters(30.0, 120.0, 30.001, 120.0)
	s := a.Snapshot()
	assert.InDelta(t, want, s.Distance, 1e-9)
	assert.InDelta(t, want*models.CaloriesPerMeter, s.Calories, 1e-9)
	assert.Equal(t, 3.5, s.MaxSpeed)
	assert.Equal(t, 3.5, a.CurrentSpeed())
	assert.Len(t, s.Locations, 2)
}

func TestOnSample_DerivesSpeedWhenMissing(t *testing.T) {
	a, _, _ := newTestAggregator(0)

	require.NoError(t, a.OnSample(sampleAt(0, 0, 1_000, 0)))
	require.NoError(t, a.OnSample(sampleAt(0.001, 0, 11_000, 0)))

	step := geo.HaversineMeters(0, 0, 0.001, 0)
	assert.InDelta(t, step/10, a.Snapshot().MaxSpeed, 1e-9)
}

func TestOnSample_TimeRegressionContributesNothing(t *testing.T) {
	a, _, logger := newTestAggregator(0)

	require.NoError(t, a.OnSample(sampleAt(0, 0, 5_000, 2.0)))
	before := a.Snapshot()

	assert.ErrorIs(t, a.OnSample(sampleAt(0.01, 0, 5_000, 9.0)), ErrTimeRegressed)
	assert.ErrorIs(t, a.OnSample(sampleAt(0.01, 0, 4_000, 9.0)), ErrTimeRegressed)

	after := a.Snapshot()
	assert.Equal(t, before.Distance, after.Distance)
	assert.Equal(t, before.MaxSpeed, after.MaxSpeed)
	assert.Len(t, after.Locations, 1)
	assert.NotEmpty(t, logger.ByLevel("warn"))
}

func TestOnSample_MalformedDiscarded(t *testing.T) {
	a, _, _ := newTestAggregator(0)

	assert.ErrorIs(t, a.OnSample(sampleAt(95, 0, 1_000, 1)), ErrInvalidSample)
	assert.ErrorIs(t, a.OnSample(sampleAt(0, 0, 1_000, -1)), ErrInvalidSample)
	assert.ErrorIs(t, a.OnSample(sampleAt(0, 0, -5, 1)), ErrInvalidSample)
	assert.Empty(t, a.Snapshot().Locations)
}

func TestOnSample_StampsMissingTimestamp(t *testing.T) {
	a, _, _ := newTestAggregator(7_000)

	require.NoError(t, a.OnSample(sampleAt(0, 0, 0, 1)))
	assert.Equal(t, int64(7_000), a.Snapshot().Locations[0].Timestamp)
}

func TestPause_ExcludesTimeAndSamples(t *testing.T) {
	a, clock, _ := newTestAggregator(0)

	clock.Advance(60_000)
	a.Pause()
	a.Pause() // no-op
	assert.True(t, a.Paused())
	assert.ErrorIs(t, a.OnSample(sampleAt(0, 0, 61_000, 1)), ErrPaused)

	clock.Advance(30_000)
	a.Resume()
	clock.Advance(60_000)

	s, ok := a.End()
	require.True(t, ok)
	assert.Equal(t, int64(120_000), s.Duration)
	assert.Equal(t, int64(150_000), s.EndTime)
}

func TestResume_WithoutPauseIsNoop(t *testing.T) {
	a, clock, _ := newTestAggregator(0)

	a.Resume()
	clock.Advance(10_000)
	s, _ := a.End()
	assert.Equal(t, int64(10_000), s.Duration)
}

func TestResume_ReanchorsTrack(t *testing.T) {
	a, clock, _ := newTestAggregator(0)

	require.NoError(t, a.OnSample(sampleAt(0, 0, 1_000, 1)))
	a.Pause()
	clock.Advance(5_000)
	a.Resume()
	require.NoError(t, a.OnSample(sampleAt(0.01, 0, 6_000, 1)))

	assert.Zero(t, a.Snapshot().Distance)
}

func TestEnd_WhilePausedClosesPause(t *testing.T) {
	a, clock, _ := newTestAggregator(0)

	clock.Advance(10_000)
	a.Pause()
	clock.Advance(5_000)

	s, ok := a.End()
	require.True(t, ok)
	assert.Equal(t, int64(10_000), s.Duration)
}

func TestEnd_IsIdempotent(t *testing.T) {
	a, clock, _ := newTestAggregator(0)

	require.NoError(t, a.OnSample(sampleAt(0, 0, 1_000, 2)))
	require.NoError(t, a.OnSample(sampleAt(0.001, 0, 2_000, 2)))
	clock.Advance(30_000)

	first, ok := a.End()
	require.True(t, ok)

	clock.Advance(30_000)
	second, ok := a.End()
	assert.False(t, ok)
	assert.Equal(t, first, second)
	assert.ErrorIs(t, a.OnSample(sampleAt(0.002, 0, 3_000, 2)), ErrFinalized)
}

func TestEnd_ZeroSampleSession(t *testing.T) {
	a, clock, _ := newTestAggregator(100)
	clock.Advance(45_000)

	s, ok := a.End()
	require.True(t, ok)
	assert.Zero(t, s.Distance)
	assert.Zero(t, s.AverageSpeed)
	assert.Equal(t, int64(45_000), s.Duration)
	assert.NotZero(t, s.ID)
}

func TestEnd_AverageSpeedAndCalories(t *testing.T) {
	a, clock, _ := newTestAggregator(0)

	require.NoError(t, a.OnSample(sampleAt(0, 0, 1, 0)))
	require.NoError(t, a.OnSample(sampleAt(0.01, 0, 2, 0)))
	clock.Advance(600_000)

	s, _ := a.End()
	assert.InDelta(t, s.Distance/600, s.AverageSpeed, 1e-9)
	assert.InDelta(t, s.Distance*0.06, s.Calories, 1e-9)
	assert.GreaterOrEqual(t, s.EndTime, s.StartTime)
}

func TestSnapshot_IsDetachedCopy(t *testing.T) {
	a, _, _ := newTestAggregator(0)
	require.NoError(t, a.OnSample(sampleAt(1, 1, 1_000, 1)))

	s := a.Snapshot()
	s.Locations[0].Latitude = 50

	assert.Equal(t, 1.0, a.Snapshot().Locations[0].Latitude)
}

func TestIDGenerator_StrictlyIncreasing(t *testing.T) {
	clock := &fakeClock{now: 500}
	g := NewIDGenerator(clock.Now)

	assert.Equal(t, int64(500), g.Next())
	assert.Equal(t, int64(501), g.Next())

	g.Observe(10_000)
	assert.Equal(t, int64(10_001), g.Next())

	clock.now = 20_000
	assert.Equal(t, int64(20_000), g.Next())
}
