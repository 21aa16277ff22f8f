// Package outbox runs durable writes off the caller's goroutine, retrying
// each one with bounded exponential backoff.
package outbox

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"

	"stride/internal/providers"
	"stride/internal/structures"
)

var (
	ErrQueueFull = errors.New("outbox queue is full")
	ErrStopped   = errors.New("outbox is stopped")
)

const (
	defaultBufferSize  = 256
	defaultMaxAttempts = 5
	defaultBaseDelay   = 200 * time.Millisecond
	defaultMaxDelay    = 5 * time.Second
)

type Task struct {
	ID   string
	Kind string
	Run  func(ctx context.Context) error
}

// Failure reports a task that was dropped or exhausted its attempts.
type Failure struct {
	TaskID string
	Kind   string
	Err    error
}

type OutboxInterface interface {
	Enqueue(kind string, run func(ctx context.Context) error) (string, error)
	Start(ctx context.Context)
	Stop()
	Errors() <-chan Failure
	Pending() int
}

type Outbox struct {
	tasks    chan Task
	failures chan Failure
	pending  atomic.Int64

	mu      sync.RWMutex
	stopped bool
	started bool
	done    chan struct{}

	maxAttempts uint
	baseDelay   time.Duration
	maxDelay    time.Duration

	logger  providers.Logger
	metrics providers.MetricsProviderInterface
}

func NewOutbox(conf *structures.Config, logger providers.Logger, metrics providers.MetricsProviderInterface) *Outbox {
	o := &Outbox{
		maxAttempts: conf.Outbox.MaxAttempts,
		baseDelay:   conf.Outbox.BaseDelay,
		maxDelay:    conf.Outbox.MaxDelay,
		logger:      logger,
		metrics:     metrics,
		done:        make(chan struct{}),
	}
	size := conf.Outbox.BufferSize
	if size <= 0 {
		size = defaultBufferSize
	}
	if o.maxAttempts == 0 {
		o.maxAttempts = defaultMaxAttempts
	}
	if o.baseDelay <= 0 {
		o.baseDelay = defaultBaseDelay
	}
	if o.maxDelay < o.baseDelay {
		o.maxDelay = max(defaultMaxDelay, o.baseDelay)
	}
	o.tasks = make(chan Task, size)
	o.failures = make(chan Failure, size)
	return o
}

// Enqueue schedules run and returns the task ID. It never blocks: a full
// queue drops the task.
func (o *Outbox) Enqueue(kind string, run func(ctx context.Context) error) (string, error) {
	task := Task{ID: uuid.NewString(), Kind: kind, Run: run}

	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.stopped {
		return task.ID, ErrStopped
	}

	pending := o.pending.Add(1)
	select {
	case o.tasks <- task:
		o.metrics.SetOutboxPending(int(pending))
		return task.ID, nil
	default:
		o.pending.Add(-1)
		o.logger.Errorf(providers.TypeApp, "Outbox full, dropping %s task %s", kind, task.ID)
		o.metrics.IncPersistenceFailures(kind)
		o.publish(Failure{TaskID: task.ID, Kind: kind, Err: ErrQueueFull})
		return task.ID, ErrQueueFull
	}
}

// Start launches the drain loop. Cancelling ctx aborts in-flight retries;
// use Stop for an orderly shutdown.
func (o *Outbox) Start(ctx context.Context) {
	o.mu.Lock()
	if o.started {
		o.mu.Unlock()
		return
	}
	o.started = true
	o.mu.Unlock()

	go func() {
		defer close(o.done)
		for task := range o.tasks {
			o.run(ctx, task)
			o.metrics.SetOutboxPending(int(o.pending.Add(-1)))
		}
	}()
}

// Stop refuses new tasks and waits until queued ones have run.
func (o *Outbox) Stop() {
	o.mu.Lock()
	if !o.stopped {
		o.stopped = true
		close(o.tasks)
	}
	started := o.started
	o.mu.Unlock()

	if started {
		<-o.done
		return
	}
	// Nothing will drain the queue; report what is left.
	for task := range o.tasks {
		o.pending.Add(-1)
		o.publish(Failure{TaskID: task.ID, Kind: task.Kind, Err: ErrStopped})
	}
}

func (o *Outbox) Errors() <-chan Failure {
	return o.failures
}

func (o *Outbox) Pending() int {
	return int(o.pending.Load())
}

func (o *Outbox) run(ctx context.Context, task Task) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = o.baseDelay
	b.MaxInterval = o.maxDelay

	start := time.Now()
	attempt := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempt++
		return struct{}{}, task.Run(ctx)
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(o.maxAttempts),
		backoff.WithNotify(func(err error, next time.Duration) {
			o.logger.Warnf(providers.TypeApp, "Outbox %s task %s attempt %d failed: %s, retrying in %s", task.Kind, task.ID, attempt, err, next)
		}),
	)
	o.metrics.ObservePersistenceDuration(time.Since(start))

	if err != nil {
		o.logger.Errorf(providers.TypeApp, "Outbox %s task %s failed after %d attempts: %s", task.Kind, task.ID, attempt, err)
		o.metrics.IncPersistenceFailures(task.Kind)
		o.publish(Failure{TaskID: task.ID, Kind: task.Kind, Err: err})
	}
}

func (o *Outbox) publish(f Failure) {
	select {
	case o.failures <- f:
	default:
	}
}

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	return backoff.Permanent(err)
}
