package oracle

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/arbiterlabs/fuseval/internal/ports"
)

// metricsProvider records latency, request counts, and token usage for
// every oracle call.
type metricsProvider struct {
	next      Provider
	collector ports.MetricsCollector
}

// MetricsMiddleware wraps a provider with metrics collection, labeled by
// provider, model, and outcome status.
func MetricsMiddleware(collector ports.MetricsCollector) Middleware {
	return func(next Provider) Provider {
		return &metricsProvider{next: next, collector: collector}
	}
}

// Generate forwards the request and records its outcome. Token counters
// are only recorded for successful requests, split by direction.
func (m *metricsProvider) Generate(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error) {
	start := time.Now()
	response, tokensIn, tokensOut, err := m.next.Generate(ctx, prompt, opts)

	labels := map[string]string{
		"provider": m.providerLabel(),
		"model":    m.next.GetModel(),
		"status":   "success",
	}

	if err != nil {
		switch {
		case errors.Is(err, ErrCircuitOpen):
			labels["status"] = "circuit_open"
		case errors.Is(ctx.Err(), context.DeadlineExceeded):
			labels["status"] = "timeout"
		default:
			labels["status"] = "error"
		}
	}

	if m.collector != nil {
		m.collector.RecordHistogram("oracle_latency_seconds", time.Since(start).Seconds(), labels)
		m.collector.RecordCounter("oracle_requests_total", 1, labels)

		if err == nil {
			labels["token_type"] = "input"
			m.collector.RecordCounter("oracle_tokens_total", float64(tokensIn), labels)

			labels["token_type"] = "output"
			m.collector.RecordCounter("oracle_tokens_total", float64(tokensOut), labels)
		}
	}

	return response, tokensIn, tokensOut, err
}

// providerLabel infers the provider from the model name. The middleware
// sits above the provider and never sees its concrete type.
func (m *metricsProvider) providerLabel() string {
	model := m.next.GetModel()
	switch {
	case strings.Contains(model, "gpt"), strings.HasPrefix(model, "o1"), strings.HasPrefix(model, "o3"):
		return "openai"
	case strings.Contains(model, "claude"):
		return "anthropic"
	case strings.Contains(model, "gemini"):
		return "google"
	default:
		return "unknown"
	}
}

func (m *metricsProvider) GetModel() string { return m.next.GetModel() }

func (m *metricsProvider) SetModel(model string) { m.next.SetModel(model) }
