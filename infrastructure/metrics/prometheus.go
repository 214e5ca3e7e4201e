// Package metrics implements ports.MetricsCollector on Prometheus,
// exposing oracle traffic and analysis activity for scraping.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/arbiterlabs/fuseval/internal/ports"
)

// PrometheusCollector implements ports.MetricsCollector with Prometheus
// counters, gauges, and histograms. The oracle metrics middleware feeds
// it request outcomes and token usage.
type PrometheusCollector struct {
	requestsTotal  *prometheus.CounterVec
	tokensTotal    *prometheus.CounterVec
	latencySeconds *prometheus.HistogramVec
	operations     *prometheus.CounterVec
	gauges         *prometheus.GaugeVec
	histograms     *prometheus.HistogramVec
}

// NewPrometheusCollector registers the collector's metrics in the default
// Prometheus registry.
func NewPrometheusCollector() *PrometheusCollector {
	return NewPrometheusCollectorWith(prometheus.DefaultRegisterer)
}

// NewPrometheusCollectorWith registers the metrics with an explicit
// registerer, which keeps tests isolated from the global registry.
func NewPrometheusCollectorWith(reg prometheus.Registerer) *PrometheusCollector {
	factory := promauto.With(reg)

	return &PrometheusCollector{
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oracle_requests_total",
				Help: "Scoring oracle requests by provider, model, and outcome.",
			},
			[]string{"provider", "model", "status"},
		),
		tokensTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oracle_tokens_total",
				Help: "Tokens exchanged with the scoring oracle by direction.",
			},
			[]string{"provider", "model", "token_type"},
		),
		latencySeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "oracle_latency_seconds",
				Help:    "Scoring oracle request latency.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"provider", "model", "status"},
		),
		operations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "analysis_operations_total",
				Help: "Analysis operations by name and status.",
			},
			[]string{"operation", "status"},
		),
		gauges: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "analysis_state",
				Help: "Current analysis state values.",
			},
			[]string{"metric"},
		),
		histograms: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "analysis_values",
				Help:    "Analysis value distributions such as scores.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"metric"},
		),
	}
}

// RecordLatency records an operation duration. Durations carrying oracle
// provider labels go to the oracle latency histogram; everything else is
// recorded under the operation name.
func (c *PrometheusCollector) RecordLatency(operation string, duration time.Duration, labels map[string]string) {
	if _, ok := labels["provider"]; ok {
		c.latencySeconds.WithLabelValues(
			labels["provider"], labels["model"], statusOrDefault(labels),
		).Observe(duration.Seconds())
		return
	}
	c.histograms.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordCounter increments a counter. Oracle request and token metrics go
// to their dedicated vectors; everything else lands in the generic
// operations counter.
func (c *PrometheusCollector) RecordCounter(metric string, value float64, labels map[string]string) {
	switch metric {
	case "oracle_requests_total":
		c.requestsTotal.WithLabelValues(
			labels["provider"], labels["model"], statusOrDefault(labels),
		).Add(value)
	case "oracle_tokens_total":
		c.tokensTotal.WithLabelValues(
			labels["provider"], labels["model"], labels["token_type"],
		).Add(value)
	default:
		c.operations.WithLabelValues(metric, statusOrDefault(labels)).Add(value)
	}
}

// RecordGauge sets a gauge value.
func (c *PrometheusCollector) RecordGauge(metric string, value float64, labels map[string]string) {
	c.gauges.WithLabelValues(metric).Set(value)
}

// RecordHistogram records a value distribution. Oracle latency goes to
// the dedicated histogram; other metrics use the generic one.
func (c *PrometheusCollector) RecordHistogram(metric string, value float64, labels map[string]string) {
	if metric == "oracle_latency_seconds" {
		c.latencySeconds.WithLabelValues(
			labels["provider"], labels["model"], statusOrDefault(labels),
		).Observe(value)
		return
	}
	c.histograms.WithLabelValues(metric).Observe(value)
}

func statusOrDefault(labels map[string]string) string {
	if status, ok := labels["status"]; ok {
		return status
	}
	return "success"
}

var _ ports.MetricsCollector = (*PrometheusCollector)(nil)
