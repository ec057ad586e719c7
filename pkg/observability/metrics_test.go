package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusMetricsClient(t *testing.T) {
	reg := prometheus.NewRegistry()
	client := NewPrometheusMetricsClientWithRegistry("test", reg)

	client.RecordCacheOperation("get", "hit", 5*time.Millisecond)
	client.RecordCacheOperation("get", "hit", 5*time.Millisecond)
	client.RecordCacheOperation("get", "miss", 5*time.Millisecond)
	client.RecordCacheMode(true)
	client.RecordEvictions(3)
	client.IncrementCounter("something", 1)

	assert.Equal(t, float64(2), testutil.ToFloat64(client.operations.WithLabelValues("get", "hit")))
	assert.Equal(t, float64(1), testutil.ToFloat64(client.operations.WithLabelValues("get", "miss")))
	assert.Equal(t, float64(1), testutil.ToFloat64(client.mode))
	assert.Equal(t, float64(3), testutil.ToFloat64(client.evictions))

	client.RecordCacheMode(false)
	assert.Equal(t, float64(0), testutil.ToFloat64(client.mode))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestNoopMetricsClient(t *testing.T) {
	client := NewNoopMetricsClient()

	// Must not panic
	client.RecordCacheOperation("get", "hit", time.Millisecond)
	client.RecordCacheMode(false)
	client.RecordEvictions(1)
	client.IncrementCounter("x", 1)
}
