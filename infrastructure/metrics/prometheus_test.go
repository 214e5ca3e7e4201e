package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCollector(t *testing.T) (*PrometheusCollector, *prometheus.Registry) {
	t.Helper()
	registry := prometheus.NewRegistry()
	return NewPrometheusCollectorWith(registry), registry
}

func TestRecordCounter_OracleRequests(t *testing.T) {
	collector, registry := newTestCollector(t)

	labels := map[string]string{"provider": "openai", "model": "gpt-4o", "status": "success"}
	collector.RecordCounter("oracle_requests_total", 1, labels)
	collector.RecordCounter("oracle_requests_total", 1, labels)

	count := testutil.ToFloat64(collector.requestsTotal.WithLabelValues("openai", "gpt-4o", "success"))
	assert.Equal(t, float64(2), count)

	families, err := registry.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "oracle_requests_total")
}

func TestRecordCounter_TokensByDirection(t *testing.T) {
	collector, _ := newTestCollector(t)

	labels := map[string]string{"provider": "anthropic", "model": "claude-3-5-sonnet-20241022"}
	labels["token_type"] = "input"
	collector.RecordCounter("oracle_tokens_total", 120, labels)
	labels["token_type"] = "output"
	collector.RecordCounter("oracle_tokens_total", 40, labels)

	input := testutil.ToFloat64(collector.tokensTotal.WithLabelValues("anthropic", "claude-3-5-sonnet-20241022", "input"))
	output := testutil.ToFloat64(collector.tokensTotal.WithLabelValues("anthropic", "claude-3-5-sonnet-20241022", "output"))
	assert.Equal(t, float64(120), input)
	assert.Equal(t, float64(40), output)
}

func TestRecordCounter_GenericOperation(t *testing.T) {
	collector, _ := newTestCollector(t)

	collector.RecordCounter("consistency_corrections", 3, nil)

	count := testutil.ToFloat64(collector.operations.WithLabelValues("consistency_corrections", "success"))
	assert.Equal(t, float64(3), count)
}

func TestRecordGauge(t *testing.T) {
	collector, _ := newTestCollector(t)

	collector.RecordGauge("inflight_analyses", 4, nil)
	assert.Equal(t, float64(4), testutil.ToFloat64(collector.gauges.WithLabelValues("inflight_analyses")))

	collector.RecordGauge("inflight_analyses", 1, nil)
	assert.Equal(t, float64(1), testutil.ToFloat64(collector.gauges.WithLabelValues("inflight_analyses")))
}

func TestRecordHistogramAndLatency(t *testing.T) {
	collector, registry := newTestCollector(t)

	collector.RecordHistogram("oracle_latency_seconds", 0.25,
		map[string]string{"provider": "google", "model": "gemini-2.0-flash", "status": "success"})
	collector.RecordHistogram("overall_score", 7.5, nil)
	collector.RecordLatency("ranking", 30*time.Millisecond, nil)
	collector.RecordLatency("oracle_call", 80*time.Millisecond,
		map[string]string{"provider": "google", "model": "gemini-2.0-flash", "status": "success"})

	families, err := registry.Gather()
	require.NoError(t, err)

	byName := make(map[string]bool, len(families))
	for _, f := range families {
		byName[f.GetName()] = true
	}
	assert.True(t, byName["oracle_latency_seconds"])
	assert.True(t, byName["analysis_values"])
}
