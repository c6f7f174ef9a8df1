package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Resolve outcomes.
const (
	OutcomeQualified      = "qualified"
	OutcomeBelowThreshold = "below_threshold"
	OutcomeNotFound       = "not_found"
	OutcomeMalformed      = "malformed"
	OutcomeTransport      = "transport_error"
)

// Delivery outcomes.
const (
	DeliveryDelivered = "delivered"
	DeliveryFailed    = "failed"
	DeliveryDisabled  = "disabled"
)

type Metrics struct {
	eventsReceived  prometheus.Counter
	eventsFailed    prometheus.Counter
	eventsDuplicate prometheus.Counter
	eventsEnqueued  prometheus.Counter
	queueDepth      prometheus.Gauge
	tasksInFlight   prometheus.Gauge
	tasksPanicked   prometheus.Counter
	resolveOutcomes *prometheus.CounterVec
	lookupRetries   prometheus.Counter
	alertsQualified prometheus.Counter
	deliveries      *prometheus.CounterVec
	rpcHealthy      prometheus.Gauge
}

// NewMetrics registers the monitor metrics on reg. Pass prometheus.DefaultRegisterer in production.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	m := Metrics{
		// ingestion
		eventsReceived: factory.NewCounter(prometheus.CounterOpts{
			Name: fmt.Sprintf("%s_events_received_total", namespace),
			Help: "Log notifications received from the subscription",
		}),
		eventsFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: fmt.Sprintf("%s_events_failed_total", namespace),
			Help: "Notifications dropped because the transaction failed",
		}),
		eventsDuplicate: factory.NewCounter(prometheus.CounterOpts{
			Name: fmt.Sprintf("%s_events_duplicate_total", namespace),
			Help: "Notifications dropped because the signature was already seen",
		}),
		eventsEnqueued: factory.NewCounter(prometheus.CounterOpts{
			Name: fmt.Sprintf("%s_events_enqueued_total", namespace),
			Help: "Signatures accepted into the queue",
		}),
		queueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: fmt.Sprintf("%s_queue_depth", namespace),
			Help: "Signatures waiting in the queue",
		}),
		// enrichment
		tasksInFlight: factory.NewGauge(prometheus.GaugeOpts{
			Name: fmt.Sprintf("%s_tasks_in_flight", namespace),
			Help: "Enrichment tasks currently running",
		}),
		tasksPanicked: factory.NewCounter(prometheus.CounterOpts{
			Name: fmt.Sprintf("%s_tasks_panicked_total", namespace),
			Help: "Enrichment tasks that panicked",
		}),
		resolveOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: fmt.Sprintf("%s_resolve_outcomes_total", namespace),
			Help: "Transaction lookups by outcome",
		}, []string{"outcome"}),
		lookupRetries: factory.NewCounter(prometheus.CounterOpts{
			Name: fmt.Sprintf("%s_lookup_retries_total", namespace),
			Help: "Lookups retried because the transaction was not yet indexed",
		}),
		// alerting
		alertsQualified: factory.NewCounter(prometheus.CounterOpts{
			Name: fmt.Sprintf("%s_alerts_qualified_total", namespace),
			Help: "Transactions above the alert threshold",
		}),
		deliveries: factory.NewCounterVec(prometheus.CounterOpts{
			Name: fmt.Sprintf("%s_alert_deliveries_total", namespace),
			Help: "Alert deliveries by outcome",
		}, []string{"outcome"}),
		rpcHealthy: factory.NewGauge(prometheus.GaugeOpts{
			Name: fmt.Sprintf("%s_rpc_healthy", namespace),
			Help: "1 if the last RPC health check succeeded",
		}),
	}
	return &m
}

func (metrics *Metrics) IncEventsReceived() {
	metrics.eventsReceived.Inc()
}

func (metrics *Metrics) IncEventsFailed() {
	metrics.eventsFailed.Inc()
}

func (metrics *Metrics) IncEventsDuplicate() {
	metrics.eventsDuplicate.Inc()
}

func (metrics *Metrics) IncEventsEnqueued() {
	metrics.eventsEnqueued.Inc()
}

func (metrics *Metrics) SetQueueDepth(depth int) {
	metrics.queueDepth.Set(float64(depth))
}

func (metrics *Metrics) TaskStarted() {
	metrics.tasksInFlight.Inc()
}

func (metrics *Metrics) TaskFinished() {
	metrics.tasksInFlight.Dec()
}

func (metrics *Metrics) IncTasksPanicked() {
	metrics.tasksPanicked.Inc()
}

func (metrics *Metrics) IncResolveOutcome(outcome string) {
	metrics.resolveOutcomes.WithLabelValues(outcome).Inc()
}

func (metrics *Metrics) IncLookupRetries() {
	metrics.lookupRetries.Inc()
}

func (metrics *Metrics) IncAlertsQualified() {
	metrics.alertsQualified.Inc()
}

func (metrics *Metrics) IncDelivery(outcome string) {
	metrics.deliveries.WithLabelValues(outcome).Inc()
}

func (metrics *Metrics) SetRpcHealthy(healthy bool) {
	if healthy {
		metrics.rpcHealthy.Set(1)
		return
	}
	metrics.rpcHealthy.Set(0)
}
