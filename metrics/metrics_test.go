package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Counters(t *testing.T) {
	m := NewMetrics("test", prometheus.NewRegistry())

	m.IncEventsReceived()
	m.IncEventsReceived()
	m.IncEventsFailed()
	m.IncResolveOutcome(OutcomeNotFound)
	m.IncResolveOutcome(OutcomeNotFound)
	m.IncDelivery(DeliveryFailed)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.eventsReceived))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.eventsFailed))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.resolveOutcomes.WithLabelValues(OutcomeNotFound)))
	assert.Equal(t, float64(0), testutil.ToFloat64(m.resolveOutcomes.WithLabelValues(OutcomeQualified)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.deliveries.WithLabelValues(DeliveryFailed)))
}

func TestMetrics_Gauges(t *testing.T) {
	m := NewMetrics("test", prometheus.NewRegistry())

	m.TaskStarted()
	m.TaskStarted()
	m.TaskFinished()
	m.SetQueueDepth(7)
	m.SetRpcHealthy(true)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.tasksInFlight))
	assert.Equal(t, float64(7), testutil.ToFloat64(m.queueDepth))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.rpcHealthy))

	m.SetRpcHealthy(false)
	assert.Equal(t, float64(0), testutil.ToFloat64(m.rpcHealthy))
}

func TestNewMetrics_SeparateRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		NewMetrics("test", prometheus.NewRegistry())
		NewMetrics("test", prometheus.NewRegistry())
	})
}
