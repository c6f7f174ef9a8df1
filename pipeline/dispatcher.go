package pipeline

import (
	"context"
	"sync"
	"time"

	commonerrors "github.com/ClipFinance/whale-monitor/common/errors"
	"github.com/ClipFinance/whale-monitor/common/types"
	"github.com/ClipFinance/whale-monitor/metrics"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"
)

const (
	// DefaultMaxConcurrency caps the number of enrichment tasks in flight.
	DefaultMaxConcurrency = 64
	// DefaultShutdownGrace is how long in-flight tasks may run after shutdown starts.
	DefaultShutdownGrace = 10 * time.Second
)

// TaskHandler processes one transaction id. Errors are handled inside the task.
type TaskHandler interface {
	Handle(ctx context.Context, id types.TransactionID)
}

// TaskHandlerFunc adapts a function to TaskHandler.
type TaskHandlerFunc func(ctx context.Context, id types.TransactionID)

// Handle calls f(ctx, id).
func (f TaskHandlerFunc) Handle(ctx context.Context, id types.TransactionID) {
	f(ctx, id)
}

// Dispatcher is the single reader of the queue. Every id is handed to its own task
// without waiting for earlier tasks to finish.
type Dispatcher struct {
	queue   *Queue
	handler TaskHandler
	sem     *semaphore.Weighted
	grace   time.Duration
	logger  *logrus.Logger
	metrics *metrics.Metrics

	wg sync.WaitGroup
}

// NewDispatcher creates a dispatcher.
//
// Parameters:
// - queue: the queue to read from.
// - handler: the per-id task.
// - maxConcurrency: the cap on running tasks, zero or less means unbounded.
// - grace: how long tasks may keep running once ctx is done.
// - logger: the logger for logging purposes.
// - m: the metrics sink.
//
// Returns:
// - *Dispatcher: the dispatcher.
func NewDispatcher(
	queue *Queue,
	handler TaskHandler,
	maxConcurrency int,
	grace time.Duration,
	logger *logrus.Logger,
	m *metrics.Metrics,
) *Dispatcher {
	var sem *semaphore.Weighted
	if maxConcurrency > 0 {
		sem = semaphore.NewWeighted(int64(maxConcurrency))
	}
	if grace <= 0 {
		grace = DefaultShutdownGrace
	}
	return &Dispatcher{
		queue:   queue,
		handler: handler,
		sem:     sem,
		grace:   grace,
		logger:  logger,
		metrics: m,
	}
}

// Run reads the queue until it is closed and drained, then waits for running tasks.
// Tasks do not see the cancellation of ctx directly: once ctx is done they get the
// grace period, after which their context is cancelled.
//
// Parameters:
// - ctx: the context signalling shutdown.
//
// Returns:
// - error: always nil, the signature fits errgroup.
func (d *Dispatcher) Run(ctx context.Context) error {
	taskCtx, cancelTasks := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelTasks()

	finished := make(chan struct{})
	defer close(finished)
	go d.enforceGrace(ctx, finished, cancelTasks)

	for {
		id, err := d.queue.Dequeue(taskCtx)
		if err != nil {
			if !errors.Is(err, commonerrors.ErrQueueClosed) {
				d.logger.WithField("queued", d.queue.Len()).Warn("Stopped dispatching before the queue was drained")
			}
			break
		}
		d.metrics.SetQueueDepth(d.queue.Len())

		if err := d.acquire(taskCtx); err != nil {
			d.logger.WithFields(logrus.Fields{
				"signature": id,
				"queued":    d.queue.Len(),
			}).Warn("Dropping transaction, shutdown grace period elapsed")
			break
		}

		d.wg.Add(1)
		go d.runTask(taskCtx, id)
	}

	d.wg.Wait()
	return nil
}

func (d *Dispatcher) enforceGrace(ctx context.Context, finished <-chan struct{}, cancelTasks context.CancelFunc) {
	select {
	case <-finished:
		return
	case <-ctx.Done():
	}

	timer := time.NewTimer(d.grace)
	defer timer.Stop()

	select {
	case <-finished:
	case <-timer.C:
		d.logger.WithField("grace", d.grace).Warn("Shutdown grace period elapsed, cancelling in-flight tasks")
		cancelTasks()
	}
}

func (d *Dispatcher) acquire(ctx context.Context) error {
	if d.sem == nil {
		return ctx.Err()
	}
	return d.sem.Acquire(ctx, 1)
}

func (d *Dispatcher) release() {
	if d.sem != nil {
		d.sem.Release(1)
	}
}

// runTask executes one handler call. A panic ends only this task.
func (d *Dispatcher) runTask(ctx context.Context, id types.TransactionID) {
	defer d.wg.Done()
	defer d.release()

	d.metrics.TaskStarted()
	defer d.metrics.TaskFinished()

	defer func() {
		if r := recover(); r != nil {
			d.metrics.IncTasksPanicked()
			d.logger.WithFields(logrus.Fields{
				"signature": id,
				"panic":     r,
			}).Error("Recovered from panic in transaction task")
		}
	}()

	d.handler.Handle(ctx, id)
}
