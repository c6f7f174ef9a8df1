package pipeline

import (
	"context"
	"sync"

	commonerrors "github.com/ClipFinance/whale-monitor/common/errors"
	"github.com/ClipFinance/whale-monitor/common/types"
)

// DefaultQueueCapacity is the queue size used when none is configured.
const DefaultQueueCapacity = 100

// Queue is a bounded FIFO of transaction ids between the event source and the dispatcher.
// Enqueue blocks while the queue is full, nothing is ever dropped.
type Queue struct {
	items   chan types.TransactionID
	closing chan struct{}

	closeOnce sync.Once
	mu        sync.RWMutex
	closed    bool
}

// NewQueue creates a queue holding at most capacity ids.
// A non-positive capacity falls back to DefaultQueueCapacity.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	return &Queue{
		items:   make(chan types.TransactionID, capacity),
		closing: make(chan struct{}),
	}
}

// Enqueue appends id, blocking while the queue is full.
//
// Parameters:
// - ctx: the context for cancelling the wait.
// - id: the transaction id to append.
//
// Returns:
// - error: ErrQueueClosed after Close, or the context error.
func (q *Queue) Enqueue(ctx context.Context, id types.TransactionID) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return commonerrors.ErrQueueClosed
	}

	select {
	case q.items <- id:
		return nil
	case <-q.closing:
		return commonerrors.ErrQueueClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Dequeue removes the oldest id, blocking while the queue is empty.
// Ids enqueued before Close are still returned.
//
// Parameters:
// - ctx: the context for cancelling the wait.
//
// Returns:
// - types.TransactionID: the oldest id.
// - error: ErrQueueClosed once the queue is closed and drained, or the context error.
func (q *Queue) Dequeue(ctx context.Context) (types.TransactionID, error) {
	select {
	case id, ok := <-q.items:
		if !ok {
			return "", commonerrors.ErrQueueClosed
		}
		return id, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Close rejects further enqueues. It is safe to call more than once.
func (q *Queue) Close() {
	q.closeOnce.Do(func() {
		// release blocked producers before taking the write lock
		close(q.closing)

		q.mu.Lock()
		q.closed = true
		close(q.items)
		q.mu.Unlock()
	})
}

// Len returns the number of queued ids.
func (q *Queue) Len() int {
	return len(q.items)
}

// Cap returns the queue capacity.
func (q *Queue) Cap() int {
	return cap(q.items)
}
