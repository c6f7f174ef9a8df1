package alert

import (
	"context"

	"github.com/ClipFinance/whale-monitor/common/types"
	"github.com/ClipFinance/whale-monitor/metrics"
	"github.com/sirupsen/logrus"
)

// Dispatcher writes every qualifying alert to the log and forwards it to the notifier.
// Delivery failures are logged and counted, never returned.
type Dispatcher struct {
	notifier Notifier
	policy   DeliveryPolicy
	logger   *logrus.Logger
	metrics  *metrics.Metrics
}

// NewDispatcher creates an alert dispatcher.
//
// Parameters:
// - notifier: the outbound channel.
// - policy: the delivery policy, nil means best effort.
// - logger: the logger for logging purposes.
// - m: the metrics sink, may be nil.
//
// Returns:
// - *Dispatcher: the dispatcher.
func NewDispatcher(notifier Notifier, policy DeliveryPolicy, logger *logrus.Logger, m *metrics.Metrics) *Dispatcher {
	if policy == nil {
		policy = BestEffort{}
	}
	return &Dispatcher{
		notifier: notifier,
		policy:   policy,
		logger:   logger,
		metrics:  m,
	}
}

// Enabled reports whether alerts leave the process.
func (d *Dispatcher) Enabled() bool {
	return d.notifier != nil && d.notifier.Enabled()
}

// Deliver logs msg and sends it according to the delivery policy.
//
// Parameters:
// - ctx: the context for managing the request.
// - msg: the alert to deliver.
func (d *Dispatcher) Deliver(ctx context.Context, msg types.AlertMessage) {
	log := d.logger.WithFields(logrus.Fields{
		"signature": msg.ID,
		"link":      msg.Link,
		"text":      msg.Text,
	})
	log.Info("Whale alert")

	if !d.Enabled() {
		log.Debug("Notifier disabled, alert not sent")
		d.record(metrics.DeliveryDisabled)
		return
	}

	if err := d.policy.Deliver(ctx, d.notifier, msg); err != nil {
		log.WithError(err).WithField("policy", d.policy.Name()).Warn("Failed to deliver alert")
		d.record(metrics.DeliveryFailed)
		return
	}

	log.Debug("Alert delivered")
	d.record(metrics.DeliveryDelivered)
}

func (d *Dispatcher) record(outcome string) {
	if d.metrics != nil {
		d.metrics.IncDelivery(outcome)
	}
}
