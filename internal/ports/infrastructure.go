package ports

import (
	"context"
	"time"
)

// ScoringOracle defines the interface for the LLM-backed judgment calls the
// analysis pipeline delegates: comparative scoring, dimensional evaluation,
// and narrative profiling.
// Implementations should handle provider-specific details like
// authentication, request formatting, and response parsing.
type ScoringOracle interface {
	// Complete sends a judgment prompt to the oracle and returns the raw
	// generated text. Callers parse the response themselves and fall back
	// to documented defaults when parsing fails; implementations should
	// handle rate limiting, retries, and timeouts.
	//
	// The options map allows flexibility for different providers without
	// changing the interface. Common options include:
	//   - "temperature": float64 (0.0-1.0)
	//   - "max_tokens": int
	//   - "model": string (specific model version)
	Complete(ctx context.Context, prompt string, options map[string]any) (string, error)

	// EstimateTokens calculates the approximate token count for a given
	// text. This is useful for cost estimation and staying within model
	// limits. The estimation method may vary by provider.
	EstimateTokens(text string) (int, error)

	// GetModel returns the model identifier being used by this oracle.
	// This is useful for logging and debugging purposes.
	GetModel() string
}

// MetricsCollector defines the interface for collecting operational metrics.
// Implementations should integrate with observability platforms like
// Prometheus, OpenTelemetry, or custom monitoring solutions.
type MetricsCollector interface {
	// RecordLatency records the execution time of an operation.
	// The labels map provides additional context for the metric.
	RecordLatency(operation string, duration time.Duration, labels map[string]string)

	// RecordCounter increments a counter metric.
	// This is useful for tracking events like fallbacks, errors, etc.
	RecordCounter(metric string, value float64, labels map[string]string)

	// RecordGauge sets the current value of a gauge metric.
	// This is useful for tracking values like in-flight oracle calls.
	RecordGauge(metric string, value float64, labels map[string]string)

	// RecordHistogram records a value in a histogram.
	// This is useful for tracking distributions like scores and response
	// sizes.
	RecordHistogram(metric string, value float64, labels map[string]string)
}
