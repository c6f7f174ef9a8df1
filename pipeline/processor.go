package pipeline

import (
	"context"

	"github.com/ClipFinance/whale-monitor/common/types"
	"github.com/ClipFinance/whale-monitor/metrics"
	"github.com/sirupsen/logrus"
)

// AlertSink receives qualifying alerts. Deliver must not return before the alert is
// handled and never reports failure back to the pipeline.
type AlertSink interface {
	Deliver(ctx context.Context, msg types.AlertMessage)
}

// Processor is the enrichment task: resolve, classify, deliver.
type Processor struct {
	resolver *Resolver
	sink     AlertSink
	logger   *logrus.Logger
	metrics  *metrics.Metrics
}

// NewProcessor creates the per-transaction task handler.
func NewProcessor(resolver *Resolver, sink AlertSink, logger *logrus.Logger, m *metrics.Metrics) *Processor {
	return &Processor{
		resolver: resolver,
		sink:     sink,
		logger:   logger,
		metrics:  m,
	}
}

// Handle implements TaskHandler.
func (p *Processor) Handle(ctx context.Context, id types.TransactionID) {
	delta, ok := p.resolver.Resolve(ctx, id)
	if !ok {
		return
	}

	log := p.logger.WithFields(logrus.Fields{
		"signature": id,
		"amount":    delta.Amount,
	})

	if !Qualifies(*delta, p.resolver.Threshold()) {
		p.metrics.IncResolveOutcome(metrics.OutcomeBelowThreshold)
		log.Debug("Transfer below threshold")
		return
	}

	p.metrics.IncResolveOutcome(metrics.OutcomeQualified)
	p.metrics.IncAlertsQualified()
	log.Info("Whale transfer detected")

	p.sink.Deliver(ctx, p.resolver.BuildAlert(*delta))
}
