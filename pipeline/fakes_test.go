package pipeline

import (
	"context"
	"io"
	"sync"
	"sync/atomic"

	commonerrors "github.com/ClipFinance/whale-monitor/common/errors"
	"github.com/ClipFinance/whale-monitor/common/types"
	"github.com/ClipFinance/whale-monitor/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func testMetrics() *metrics.Metrics {
	return metrics.NewMetrics("test", prometheus.NewRegistry())
}

// fakeStream replays events and ends with ErrSubscriptionClosed once the channel is closed.
type fakeStream struct {
	events chan *types.LogEvent
	closed int32
}

func newFakeStream(events ...*types.LogEvent) *fakeStream {
	s := &fakeStream{events: make(chan *types.LogEvent, len(events))}
	for _, event := range events {
		s.events <- event
	}
	return s
}

// end makes Recv report the end of the stream after the buffered events.
func (s *fakeStream) end() *fakeStream {
	close(s.events)
	return s
}

func (s *fakeStream) Recv(ctx context.Context) (*types.LogEvent, error) {
	select {
	case event, ok := <-s.events:
		if !ok {
			return nil, commonerrors.ErrSubscriptionClosed
		}
		return event, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *fakeStream) Close() {
	atomic.AddInt32(&s.closed, 1)
}

func (s *fakeStream) closeCount() int32 {
	return atomic.LoadInt32(&s.closed)
}

type fakeSubscriber struct {
	stream types.LogStream
	err    error
}

func (s *fakeSubscriber) SubscribeLogs(_ context.Context, _ types.LogFilter) (types.LogStream, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.stream, nil
}

type lookupResult struct {
	detail *types.TransactionDetail
	err    error
}

// fakeFetcher answers lookups from a table. Each id can have a sequence of results,
// the last one repeats.
type fakeFetcher struct {
	mu      sync.Mutex
	results map[types.TransactionID][]lookupResult
	calls   map[types.TransactionID]int
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		results: make(map[types.TransactionID][]lookupResult),
		calls:   make(map[types.TransactionID]int),
	}
}

func (f *fakeFetcher) withBalances(id types.TransactionID, pre, post []uint64) *fakeFetcher {
	return f.with(id, lookupResult{detail: &types.TransactionDetail{ID: id, PreBalances: pre, PostBalances: post}})
}

func (f *fakeFetcher) withError(id types.TransactionID, err error) *fakeFetcher {
	return f.with(id, lookupResult{err: err})
}

func (f *fakeFetcher) with(id types.TransactionID, results ...lookupResult) *fakeFetcher {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results[id] = append(f.results[id], results...)
	return f
}

func (f *fakeFetcher) GetTransactionDetail(_ context.Context, id types.TransactionID) (*types.TransactionDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := f.calls[id]
	f.calls[id] = n + 1

	results, ok := f.results[id]
	if !ok {
		return nil, commonerrors.ErrNotYetIndexed
	}
	if n >= len(results) {
		n = len(results) - 1
	}
	return results[n].detail, results[n].err
}

func (f *fakeFetcher) callCount(id types.TransactionID) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[id]
}

type recordingSink struct {
	mu       sync.Mutex
	messages []types.AlertMessage
}

func (s *recordingSink) Deliver(_ context.Context, msg types.AlertMessage) {
	s.mu.Lock()
	s.messages = append(s.messages, msg)
	s.mu.Unlock()
}

func (s *recordingSink) delivered() []types.AlertMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]types.AlertMessage(nil), s.messages...)
}

func okEvent(id types.TransactionID) *types.LogEvent {
	return &types.LogEvent{ID: id}
}

func failedEvent(id types.TransactionID) *types.LogEvent {
	return &types.LogEvent{ID: id, Failed: true}
}
