package pipeline

import (
	"time"

	"github.com/ClipFinance/whale-monitor/common/types"
	"github.com/ClipFinance/whale-monitor/metrics"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

// Options holds the pipeline tunables.
//
// Fields:
// - QueueCapacity: size of the queue between source and dispatcher.
// - MaxConcurrency: cap on running enrichment tasks, zero or less means unbounded.
// - ShutdownGrace: time in-flight tasks get after shutdown starts.
// - DedupTTL: how long a signature is remembered, zero disables dedup.
// - Resolver: the resolver settings.
type Options struct {
	QueueCapacity  int
	MaxConcurrency int
	ShutdownGrace  time.Duration
	DedupTTL       time.Duration
	Resolver       ResolverConfig
}

// DefaultOptions returns the pipeline defaults.
func DefaultOptions() Options {
	return Options{
		QueueCapacity:  DefaultQueueCapacity,
		MaxConcurrency: DefaultMaxConcurrency,
		ShutdownGrace:  DefaultShutdownGrace,
		DedupTTL:       2 * time.Minute,
		Resolver:       DefaultResolverConfig(),
	}
}

// Builder is a builder pattern implementation for the pipeline.
// It allows setting the subscriber, detail fetcher and alert sink separately.
type Builder struct {
	subscriber types.LogSubscriber // Source of log notifications.
	fetcher    types.DetailFetcher // Source of transaction details.
	sink       AlertSink           // Receiver of qualifying alerts.
	filter     types.LogFilter     // Subscription filter.
	options    Options             // Pipeline tunables.
	logger     *logrus.Logger      // Shared logger.
	metrics    *metrics.Metrics    // Metrics sink.
}

// NewBuilder creates a new pipeline builder with default options.
//
// Parameters:
// - logger: the logger passed to every stage.
//
// Returns:
// - *Builder: a new Builder instance.
func NewBuilder(logger *logrus.Logger) *Builder {
	return &Builder{
		logger:  logger,
		options: DefaultOptions(),
	}
}

// WithChain sets both the subscriber and the detail fetcher from one chain adapter.
//
// Parameters:
// - chain: the chain adapter.
//
// Returns:
// - *Builder: the updated Builder instance.
func (b *Builder) WithChain(chain types.Chain) *Builder {
	b.subscriber = chain
	b.fetcher = chain
	return b
}

// WithSubscriber sets the log subscriber.
func (b *Builder) WithSubscriber(subscriber types.LogSubscriber) *Builder {
	b.subscriber = subscriber
	return b
}

// WithDetailFetcher sets the transaction detail source.
func (b *Builder) WithDetailFetcher(fetcher types.DetailFetcher) *Builder {
	b.fetcher = fetcher
	return b
}

// WithAlertSink sets the receiver of qualifying alerts.
func (b *Builder) WithAlertSink(sink AlertSink) *Builder {
	b.sink = sink
	return b
}

// WithFilter sets the subscription filter.
func (b *Builder) WithFilter(filter types.LogFilter) *Builder {
	b.filter = filter
	return b
}

// WithOptions replaces the pipeline tunables.
func (b *Builder) WithOptions(options Options) *Builder {
	b.options = options
	return b
}

// WithMetrics sets the metrics sink.
func (b *Builder) WithMetrics(m *metrics.Metrics) *Builder {
	b.metrics = m
	return b
}

// Build creates the pipeline with the configured stages.
//
// Returns:
// - *Pipeline: the pipeline, ready to Run.
// - error: an error if a required stage is missing.
func (b *Builder) Build() (*Pipeline, error) {
	if b.subscriber == nil {
		return nil, errors.New("pipeline requires a log subscriber")
	}
	if b.fetcher == nil {
		return nil, errors.New("pipeline requires a detail fetcher")
	}
	if b.sink == nil {
		return nil, errors.New("pipeline requires an alert sink")
	}

	logger := b.logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	m := b.metrics
	if m == nil {
		// unexported registry, nothing is scraped
		m = metrics.NewMetrics("whale_monitor", prometheus.NewRegistry())
	}

	queue := NewQueue(b.options.QueueCapacity)
	resolver := NewResolver(b.fetcher, b.options.Resolver, logger, m)
	processor := NewProcessor(resolver, b.sink, logger, m)
	dispatcher := NewDispatcher(queue, processor, b.options.MaxConcurrency, b.options.ShutdownGrace, logger, m)

	return &Pipeline{
		subscriber: b.subscriber,
		filter:     b.filter,
		dedupTTL:   b.options.DedupTTL,
		queue:      queue,
		dispatcher: dispatcher,
		logger:     logger,
		metrics:    m,
	}, nil
}
