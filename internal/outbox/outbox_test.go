package outbox

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stride/internal/structures"
	"stride/internal/testutil"
)

func testConfig(buffer int, attempts uint) *structures.Config {
	return &structures.Config{
		Outbox: structures.OutboxConfig{
			BufferSize:  buffer,
			MaxAttempts: attempts,
			BaseDelay:   time.Millisecond,
			MaxDelay:    5 * time.Millisecond,
		},
	}
}

func newTestOutbox(buffer int, attempts uint) (*Outbox, *testutil.MockMetrics, *testutil.MockLogger) {
	metrics := &testutil.MockMetrics{}
	logger := &testutil.MockLogger{}
	return NewOutbox(testConfig(buffer, attempts), logger, metrics), metrics, logger
}

func TestOutbox_RunsTasksInOrder(t *testing.T) {
	o, metrics, _ := newTestOutbox(8, 3)

	var (
		mu    sync.Mutex
		order []int
	)
	for i := 0; i < 5; i++ {
		i := i
		_, err := o.Enqueue("session", func(context.Context) error {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			return nil
		})
		require.NoError(t, err)
	}
	assert.Equal(t, 5, o.Pending())

	o.Start(context.Background())
	o.Stop()

	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
	assert.Equal(t, 0, o.Pending())
	assert.Equal(t, 0, metrics.OutboxPending)
	assert.Empty(t, metrics.PersistenceFailures)
}

func TestOutbox_RetriesUntilSuccess(t *testing.T) {
	o, _, logger := newTestOutbox(4, 5)
	var calls atomic.Int32

	_, err := o.Enqueue("session", func(context.Context) error {
		if calls.Add(1) < 3 {
			return errors.New("database is locked")
		}
		return nil
	})
	require.NoError(t, err)

	o.Start(context.Background())
	o.Stop()

	assert.Equal(t, int32(3), calls.Load())
	assert.Len(t, logger.ByLevel("warn"), 2)
	assert.Empty(t, logger.ByLevel("error"))
	select {
	case f := <-o.Errors():
		t.Fatalf("unexpected failure %+v", f)
	default:
	}
}

func TestOutbox_ExhaustedAttemptsArePublished(t *testing.T) {
	o, metrics, logger := newTestOutbox(4, 3)
	var calls atomic.Int32
	boom := errors.New("disk I/O error")

	id, err := o.Enqueue("achievement", func(context.Context) error {
		calls.Add(1)
		return boom
	})
	require.NoError(t, err)

	o.Start(context.Background())
	o.Stop()

	assert.Equal(t, int32(3), calls.Load())
	require.Len(t, o.Errors(), 1)
	f := <-o.Errors()
	assert.Equal(t, id, f.TaskID)
	assert.Equal(t, "achievement", f.Kind)
	assert.ErrorIs(t, f.Err, boom)
	assert.Equal(t, 1, metrics.PersistenceFailures["achievement"])
	assert.Len(t, logger.ByLevel("error"), 1)
}

func TestOutbox_PermanentErrorIsNotRetried(t *testing.T) {
	o, _, _ := newTestOutbox(4, 5)
	var calls atomic.Int32
	duplicate := errors.New("duplicate")

	_, err := o.Enqueue("session", func(context.Context) error {
		calls.Add(1)
		return Permanent(duplicate)
	})
	require.NoError(t, err)

	o.Start(context.Background())
	o.Stop()

	assert.Equal(t, int32(1), calls.Load())
	f := <-o.Errors()
	assert.ErrorIs(t, f.Err, duplicate)
}

func TestOutbox_QueueFull(t *testing.T) {
	o, metrics, _ := newTestOutbox(1, 1)
	noop := func(context.Context) error { return nil }

	_, err := o.Enqueue("session", noop)
	require.NoError(t, err)

	id, err := o.Enqueue("session", noop)
	assert.ErrorIs(t, err, ErrQueueFull)
	assert.Equal(t, 1, o.Pending())
	assert.Equal(t, 1, metrics.PersistenceFailures["session"])

	f := <-o.Errors()
	assert.Equal(t, id, f.TaskID)
	assert.ErrorIs(t, f.Err, ErrQueueFull)

	o.Start(context.Background())
	o.Stop()
}

func TestOutbox_EnqueueAfterStop(t *testing.T) {
	o, _, _ := newTestOutbox(4, 1)
	o.Start(context.Background())
	o.Stop()

	_, err := o.Enqueue("session", func(context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrStopped)
	o.Stop()
}

func TestOutbox_StopWithoutStartReportsLeftovers(t *testing.T) {
	o, _, _ := newTestOutbox(4, 1)
	ran := false
	_, err := o.Enqueue("session", func(context.Context) error { ran = true; return nil })
	require.NoError(t, err)

	o.Stop()

	assert.False(t, ran)
	assert.Equal(t, 0, o.Pending())
	f := <-o.Errors()
	assert.ErrorIs(t, f.Err, ErrStopped)
}

func TestOutbox_CancelledContextAbortsRetries(t *testing.T) {
	o, _, _ := newTestOutbox(4, 1000)
	ctx, cancel := context.WithCancel(context.Background())
	var calls atomic.Int32

	_, err := o.Enqueue("session", func(context.Context) error {
		if calls.Add(1) == 2 {
			cancel()
		}
		return errors.New("unreachable host")
	})
	require.NoError(t, err)

	o.Start(ctx)
	o.Stop()

	assert.Less(t, calls.Load(), int32(10))
	require.Len(t, o.Errors(), 1)
}

func TestOutbox_TaskIDsAreUUIDs(t *testing.T) {
	o, _, _ := newTestOutbox(4, 1)
	a, err := o.Enqueue("session", func(context.Context) error { return nil })
	require.NoError(t, err)
	b, err := o.Enqueue("session", func(context.Context) error { return nil })
	require.NoError(t, err)

	_, err = uuid.Parse(a)
	assert.NoError(t, err)
	assert.NotEqual(t, a, b)
	o.Start(context.Background())
	o.Stop()
}

func TestNewOutbox_Defaults(t *testing.T) {
	o := NewOutbox(&structures.Config{}, &testutil.MockLogger{}, &testutil.MockMetrics{})
	assert.Equal(t, defaultBufferSize, cap(o.tasks))
	assert.Equal(t, uint(defaultMaxAttempts), o.maxAttempts)
	assert.Equal(t, defaultBaseDelay, o.baseDelay)
	assert.Equal(t, defaultMaxDelay, o.maxDelay)
}
