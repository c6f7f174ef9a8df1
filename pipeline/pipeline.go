package pipeline

import (
	"context"
	"time"

	"github.com/ClipFinance/whale-monitor/common/types"
	"github.com/ClipFinance/whale-monitor/metrics"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Pipeline wires the event source, queue and dispatcher together.
type Pipeline struct {
	subscriber types.LogSubscriber
	filter     types.LogFilter
	dedupTTL   time.Duration
	queue      *Queue
	dispatcher *Dispatcher
	logger     *logrus.Logger
	metrics    *metrics.Metrics
}

// Run subscribes, then runs the producer and the dispatcher until ctx is done or the
// stream ends. The subscription is opened before anything else so that a failure to
// subscribe is returned right away. A pipeline runs once.
//
// Parameters:
// - ctx: the context signalling shutdown.
//
// Returns:
// - error: nil on shutdown through ctx, otherwise the subscription or stream error.
func (p *Pipeline) Run(ctx context.Context) error {
	stream, err := p.subscriber.SubscribeLogs(ctx, p.filter)
	if err != nil {
		return errors.Wrap(err, "failed to subscribe to logs")
	}

	source := NewEventSource(stream, p.dedupTTL, p.logger, p.metrics)
	defer source.Close()

	p.logger.WithFields(logrus.Fields{
		"program":    p.filter.ProgramID,
		"commitment": p.filter.Commitment,
		"queue":      p.queue.Cap(),
	}).Info("Monitoring started")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return p.produce(gctx, source)
	})
	g.Go(func() error {
		return p.dispatcher.Run(gctx)
	})

	err = g.Wait()
	p.logger.Info("Monitoring stopped")
	return err
}

// produce moves ids from the source into the queue and closes the queue on exit.
func (p *Pipeline) produce(ctx context.Context, source *EventSource) error {
	defer p.queue.Close()

	for {
		id, err := source.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return errors.Wrap(err, "log stream ended")
		}

		if err := p.queue.Enqueue(ctx, id); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return errors.Wrap(err, "failed to enqueue transaction")
		}
		p.metrics.IncEventsEnqueued()
		p.metrics.SetQueueDepth(p.queue.Len())
	}
}
