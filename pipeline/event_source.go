package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/ClipFinance/whale-monitor/common/types"
	"github.com/ClipFinance/whale-monitor/metrics"
	"github.com/jellydator/ttlcache/v3"
	"github.com/sirupsen/logrus"
)

// EventSource turns a log stream into a sequence of successful transaction ids.
// Failed transactions are dropped here and never reach the queue. Signatures already
// seen within the dedup window are dropped as well, which covers reconnect overlap.
type EventSource struct {
	stream  types.LogStream
	seen    *ttlcache.Cache[types.TransactionID, struct{}]
	logger  *logrus.Logger
	metrics *metrics.Metrics

	closeOnce sync.Once
}

// NewEventSource wraps stream. A dedupTTL of zero disables deduplication.
//
// Parameters:
// - stream: the opened log stream.
// - dedupTTL: how long a signature is remembered.
// - logger: the logger for logging purposes.
// - m: the metrics sink.
//
// Returns:
// - *EventSource: the event source.
func NewEventSource(stream types.LogStream, dedupTTL time.Duration, logger *logrus.Logger, m *metrics.Metrics) *EventSource {
	source := &EventSource{
		stream:  stream,
		logger:  logger,
		metrics: m,
	}

	if dedupTTL > 0 {
		source.seen = ttlcache.New[types.TransactionID, struct{}](
			ttlcache.WithTTL[types.TransactionID, struct{}](dedupTTL),
			ttlcache.WithDisableTouchOnHit[types.TransactionID, struct{}](), // keep the first-seen expiry
		)
		go source.seen.Start()
	}

	return source
}

// Next blocks until the next successful, unseen transaction id.
//
// Parameters:
// - ctx: the context for cancelling the wait.
//
// Returns:
// - types.TransactionID: the next id.
// - error: ErrSubscriptionClosed when the stream has ended, or the context error.
func (s *EventSource) Next(ctx context.Context) (types.TransactionID, error) {
	for {
		event, err := s.stream.Recv(ctx)
		if err != nil {
			return "", err
		}
		s.metrics.IncEventsReceived()

		if event.Failed {
			s.metrics.IncEventsFailed()
			s.logger.WithField("signature", event.ID).Debug("Skipping failed transaction")
			continue
		}

		if s.seen != nil {
			if s.seen.Get(event.ID) != nil {
				s.metrics.IncEventsDuplicate()
				s.logger.WithField("signature", event.ID).Debug("Skipping duplicate notification")
				continue
			}
			s.seen.Set(event.ID, struct{}{}, ttlcache.DefaultTTL)
		}

		return event.ID, nil
	}
}

// Close closes the underlying stream and stops the dedup cache.
func (s *EventSource) Close() {
	s.closeOnce.Do(func() {
		s.stream.Close()
		if s.seen != nil {
			s.seen.Stop()
		}
	})
}
