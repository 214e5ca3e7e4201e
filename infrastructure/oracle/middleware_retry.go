package oracle

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"
)

// retryProvider retries failed requests with exponential backoff and
// jitter. Non-retryable provider errors and circuit breaker rejections
// fail immediately.
type retryProvider struct {
	next       Provider
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
}

// RetryMiddleware wraps a provider with automatic retries. A request is
// attempted up to maxRetries+1 times, with delays doubling from baseDelay
// up to maxDelay plus jitter.
func RetryMiddleware(maxRetries int, baseDelay, maxDelay time.Duration) Middleware {
	return func(next Provider) Provider {
		return &retryProvider{
			next:       next,
			maxRetries: maxRetries,
			baseDelay:  baseDelay,
			maxDelay:   maxDelay,
		}
	}
}

// Generate executes the request with retries. Classified provider errors
// that report themselves as non-retryable stop the loop early, as do
// circuit breaker rejections and context cancellation.
func (r *retryProvider) Generate(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error) {
	var lastErr error

	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		response, tokensIn, tokensOut, err := r.next.Generate(ctx, prompt, opts)
		if err == nil {
			return response, tokensIn, tokensOut, nil
		}

		lastErr = err

		if errors.Is(err, ErrCircuitOpen) || ctx.Err() != nil {
			break
		}

		var provErr *ProviderError
		if errors.As(err, &provErr) && !provErr.IsRetryable() {
			break
		}

		if attempt == r.maxRetries {
			break
		}

		select {
		case <-ctx.Done():
			return "", 0, 0, ctx.Err()
		case <-time.After(r.backoffDelay(attempt)):
		}
	}

	return "", 0, 0, fmt.Errorf("request failed after %d attempts: %w", r.maxRetries+1, lastErr)
}

// backoffDelay computes the delay before the next attempt: exponential
// growth from baseDelay with ±25% jitter, capped at maxDelay.
func (r *retryProvider) backoffDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt > 30 {
		attempt = 30
	}
	delay := time.Duration(float64(r.baseDelay) * float64(int64(1)<<uint(attempt)))

	// #nosec G404 - weak RNG is fine for jitter
	jitter := time.Duration(rand.Float64() * float64(delay) * 0.5)
	delay = delay + jitter - delay/4

	if delay > r.maxDelay {
		delay = r.maxDelay
	}
	return delay
}

func (r *retryProvider) GetModel() string { return r.next.GetModel() }

func (r *retryProvider) SetModel(m string) { r.next.SetModel(m) }
