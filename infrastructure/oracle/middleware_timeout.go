package oracle

import (
	"context"
	"time"
)

// timeoutProvider bounds every request with its own deadline.
type timeoutProvider struct {
	next    Provider
	timeout time.Duration
}

// TimeoutMiddleware wraps a provider so that each request is cut off after
// the given duration, keeping slow oracle calls from stalling a layer.
func TimeoutMiddleware(timeout time.Duration) Middleware {
	return func(next Provider) Provider {
		return &timeoutProvider{next: next, timeout: timeout}
	}
}

// Generate runs the request with a per-call deadline derived from the
// incoming context.
func (t *timeoutProvider) Generate(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.next.Generate(ctx, prompt, opts)
}

func (t *timeoutProvider) GetModel() string { return t.next.GetModel() }

func (t *timeoutProvider) SetModel(m string) { t.next.SetModel(m) }
