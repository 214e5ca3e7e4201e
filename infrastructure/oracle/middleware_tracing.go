package oracle

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// tracedProvider wraps every oracle call in an OpenTelemetry span.
type tracedProvider struct {
	next   Provider
	tracer trace.Tracer
}

// TracingMiddleware wraps a provider with distributed tracing. Spans carry
// the model, prompt length, and on success the token counts.
func TracingMiddleware(tracerName string) Middleware {
	tracer := otel.Tracer(tracerName)

	return func(next Provider) Provider {
		return &tracedProvider{next: next, tracer: tracer}
	}
}

// Generate runs the request inside a span named oracle.generate.
func (t *tracedProvider) Generate(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error) {
	ctx, span := t.tracer.Start(ctx, "oracle.generate",
		trace.WithAttributes(
			attribute.String("oracle.model", t.next.GetModel()),
			attribute.Int("oracle.prompt_length", len(prompt)),
		),
	)
	defer span.End()

	response, tokensIn, tokensOut, err := t.next.Generate(ctx, prompt, opts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return response, tokensIn, tokensOut, err
	}

	span.SetAttributes(
		attribute.Int("oracle.tokens_in", tokensIn),
		attribute.Int("oracle.tokens_out", tokensOut),
	)
	return response, tokensIn, tokensOut, nil
}

func (t *tracedProvider) GetModel() string { return t.next.GetModel() }

func (t *tracedProvider) SetModel(m string) { t.next.SetModel(m) }
