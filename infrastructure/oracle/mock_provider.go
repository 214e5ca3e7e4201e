package oracle

import (
	"context"
	"errors"
	"sync"
	"time"
)

// MockProvider is a configurable Provider for middleware tests. It gives
// precise control over responses, failures, and timing, and records every
// call for assertions.
type MockProvider struct {
	mu sync.Mutex

	// Response is the text returned on success.
	Response string
	// TokensIn and TokensOut are the token counts returned on success.
	TokensIn  int
	TokensOut int
	// Err, when set, is returned instead of the response.
	Err error
	// Model is the reported model name.
	Model string
	// Delay stalls each call, observing context cancellation.
	Delay time.Duration
	// FailUntilAttempt makes the first N calls fail, then succeed.
	FailUntilAttempt int

	calls      int
	lastPrompt string
	lastOpts   map[string]any
	callTimes  []time.Time
}

// NewMockProvider builds a mock that succeeds with a fixed response.
func NewMockProvider() *MockProvider {
	return &MockProvider{
		Response:  "test response",
		TokensIn:  10,
		TokensOut: 20,
		Model:     "test-model",
	}
}

// Generate implements Provider with the configured behavior.
func (m *MockProvider) Generate(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error) {
	m.mu.Lock()
	m.calls++
	attempt := m.calls
	m.lastPrompt = prompt
	m.lastOpts = opts
	m.callTimes = append(m.callTimes, time.Now())
	delay := m.Delay
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", 0, 0, ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailUntilAttempt > 0 && attempt <= m.FailUntilAttempt {
		if m.Err != nil {
			return "", 0, 0, m.Err
		}
		return "", 0, 0, errors.New("simulated failure")
	}
	if m.Err != nil {
		return "", 0, 0, m.Err
	}
	return m.Response, m.TokensIn, m.TokensOut, nil
}

// GetModel returns the configured model name.
func (m *MockProvider) GetModel() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Model
}

// SetModel updates the model name.
func (m *MockProvider) SetModel(model string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Model = model
}

// Calls returns how many times Generate ran.
func (m *MockProvider) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// LastPrompt returns the most recent prompt received.
func (m *MockProvider) LastPrompt() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastPrompt
}

// TimeBetweenCalls returns the gap between two recorded calls, or false
// when either index is out of range.
func (m *MockProvider) TimeBetweenCalls(first, second int) (time.Duration, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if first < 0 || second < 0 || first >= len(m.callTimes) || second >= len(m.callTimes) {
		return 0, false
	}
	return m.callTimes[second].Sub(m.callTimes[first]), true
}

var _ Provider = (*MockProvider)(nil)
