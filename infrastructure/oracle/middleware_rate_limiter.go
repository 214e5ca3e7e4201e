package oracle

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// rateLimitedProvider paces requests with a token bucket so the pipeline
// stays inside provider rate limits even when layers fan out.
type rateLimitedProvider struct {
	next    Provider
	limiter *rate.Limiter
}

// RateLimitMiddleware wraps a provider with a token bucket limiter.
// The limit is sustained requests per second; burst allows short spikes.
// All providers wrapped by the same middleware instance share one bucket.
func RateLimitMiddleware(limit rate.Limit, burst int) Middleware {
	limiter := rate.NewLimiter(limit, burst)

	return func(next Provider) Provider {
		return &rateLimitedProvider{next: next, limiter: limiter}
	}
}

// Generate blocks until the limiter grants a token, then forwards the
// request. Context cancellation while waiting returns immediately.
func (r *rateLimitedProvider) Generate(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", 0, 0, fmt.Errorf("rate limit: %w", err)
	}
	return r.next.Generate(ctx, prompt, opts)
}

func (r *rateLimitedProvider) GetModel() string { return r.next.GetModel() }

func (r *rateLimitedProvider) SetModel(m string) { r.next.SetModel(m) }
