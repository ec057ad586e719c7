package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsClient records operational metrics for the caching core
type MetricsClient interface {
	// RecordCacheOperation records a cache operation with its outcome
	// (result is "hit", "miss", "error", "ok" or "degraded")
	RecordCacheOperation(operation string, result string, duration time.Duration)
	// RecordCacheMode records the current store mode (1=connected, 0=degraded)
	RecordCacheMode(connected bool)
	// RecordEvictions adds to the memo cache eviction counter
	RecordEvictions(count int)
	// IncrementCounter increments a named counter
	IncrementCounter(name string, value float64)
}

// PrometheusMetricsClient implements MetricsClient using Prometheus collectors
type PrometheusMetricsClient struct {
	operations *prometheus.CounterVec
	durations  *prometheus.HistogramVec
	mode       prometheus.Gauge
	evictions  prometheus.Counter
	counters   *prometheus.CounterVec
}

// NewPrometheusMetricsClient creates a metrics client registered against the
// default Prometheus registry
func NewPrometheusMetricsClient(namespace string) *PrometheusMetricsClient {
	return newPrometheusMetricsClient(namespace, prometheus.DefaultRegisterer)
}

// NewPrometheusMetricsClientWithRegistry creates a metrics client against a
// caller-supplied registry (used in tests to avoid duplicate registration)
func NewPrometheusMetricsClientWithRegistry(namespace string, reg prometheus.Registerer) *PrometheusMetricsClient {
	return newPrometheusMetricsClient(namespace, reg)
}

func newPrometheusMetricsClient(namespace string, reg prometheus.Registerer) *PrometheusMetricsClient {
	factory := promauto.With(reg)
	return &PrometheusMetricsClient{
		operations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_operations_total",
			Help:      "Total cache operations by operation and result",
		}, []string{"operation", "result"}),
		durations: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cache_operation_duration_seconds",
			Help:      "Cache operation duration",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		mode: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cache_connected",
			Help:      "Cache backend mode (1=connected, 0=degraded)",
		}),
		evictions: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_memo_evictions_total",
			Help:      "Entries evicted from the in-process embedding memo cache",
		}),
		counters: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Miscellaneous named events",
		}, []string{"name"}),
	}
}

// RecordCacheOperation records a cache operation with its outcome
func (c *PrometheusMetricsClient) RecordCacheOperation(operation string, result string, duration time.Duration) {
	c.operations.WithLabelValues(operation, result).Inc()
	c.durations.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordCacheMode records the current store mode
func (c *PrometheusMetricsClient) RecordCacheMode(connected bool) {
	if connected {
		c.mode.Set(1)
	} else {
		c.mode.Set(0)
	}
}

// RecordEvictions adds to the memo cache eviction counter
func (c *PrometheusMetricsClient) RecordEvictions(count int) {
	c.evictions.Add(float64(count))
}

// IncrementCounter increments a named counter
func (c *PrometheusMetricsClient) IncrementCounter(name string, value float64) {
	c.counters.WithLabelValues(name).Add(value)
}

// NoopMetricsClient discards all metrics. Used when metrics are disabled.
type NoopMetricsClient struct{}

// NewNoopMetricsClient creates a metrics client that records nothing
func NewNoopMetricsClient() MetricsClient {
	return &NoopMetricsClient{}
}

// RecordCacheOperation is a no-op
func (c *NoopMetricsClient) RecordCacheOperation(operation string, result string, duration time.Duration) {
}

// RecordCacheMode is a no-op
func (c *NoopMetricsClient) RecordCacheMode(connected bool) {}

// RecordEvictions is a no-op
func (c *NoopMetricsClient) RecordEvictions(count int) {}

// IncrementCounter is a no-op
func (c *NoopMetricsClient) IncrementCounter(name string, value float64) {}
