// Package testutils provides deterministic test doubles for the analysis
// pipeline, most importantly a pattern-matched scoring oracle.
package testutils

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/arbiterlabs/fuseval/internal/ports"
)

// MockOracle implements ports.ScoringOracle with deterministic responses
// for consistent testing. Responses are selected by substring matching
// against the prompt, so a single mock can serve comparative scoring,
// dimensional evaluation, and narrative profiling in one pipeline run.
type MockOracle struct {
	mu sync.Mutex

	// model is the mock model identifier.
	model string
	// responses are matched against prompts in registration order.
	responses []MockResponse
	// err, when set, is returned from every Complete call.
	err error
	// calls records every prompt received, for assertions.
	calls []string
}

// MockResponse defines a pre-configured response pattern for the mock
// oracle.
type MockResponse struct {
	// Pattern is matched against prompts (substring matching, case
	// insensitive). The empty pattern matches everything.
	Pattern string
	// Response is the text returned for matching prompts.
	Response string
}

// NewMockOracle creates a MockOracle with sensible default responses for
// each judgment prompt the pipeline issues.
func NewMockOracle(model string) *MockOracle {
	o := &MockOracle{model: model}

	// Comparative scoring prompts enumerate answers and ask for "N分"
	// lines; the default gives a clear spread.
	o.AddResponse(MockResponse{
		Pattern:  "comparing answers",
		Response: "答案1: 8.5分\n答案2: 7.2分\n答案3: 6.4分\n答案4: 8.0分\n答案5: 7.6分",
	})

	// Dimensional evaluation prompts ask for labeled dimension lines.
	o.AddResponse(MockResponse{
		Pattern:  "four dimensions",
		Response: "完整性评分: 8\n准确性评分: 8.5\n清晰度评分: 7.5\n相关性评分: 8",
	})

	// Narrative profiling prompts ask for JSON profiles.
	o.AddResponse(MockResponse{
		Pattern: "profile each answer",
		Response: `{"profiles": {}}`,
	})

	return o
}

// AddResponse registers a response pattern. Later registrations take
// priority over earlier ones, so tests can override the defaults.
func (m *MockOracle) AddResponse(response MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append([]MockResponse{response}, m.responses...)
}

// FailWith makes every subsequent Complete call return err.
// Pass nil to restore normal operation.
func (m *MockOracle) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns a copy of every prompt received so far.
func (m *MockOracle) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

// Complete implements ports.ScoringOracle with deterministic pattern
// matching.
func (m *MockOracle) Complete(ctx context.Context, prompt string, options map[string]any) (string, error) {
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	if prompt == "" {
		return "", fmt.Errorf("prompt cannot be empty")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, prompt)

	if m.err != nil {
		return "", m.err
	}

	promptLower := strings.ToLower(prompt)
	for _, r := range m.responses {
		if r.Pattern == "" || strings.Contains(promptLower, strings.ToLower(r.Pattern)) {
			return r.Response, nil
		}
	}
	return "Mock response for testing purposes.", nil
}

// EstimateTokens implements ports.ScoringOracle using the common four
// characters per token approximation.
func (m *MockOracle) EstimateTokens(text string) (int, error) {
	if text == "" {
		return 0, nil
	}
	tokens := len(text) / 4
	if tokens == 0 {
		tokens = 1
	}
	return tokens, nil
}

// GetModel implements ports.ScoringOracle.
func (m *MockOracle) GetModel() string {
	return m.model
}

// SetModel updates the mock model identifier.
func (m *MockOracle) SetModel(model string) {
	m.model = model
}

// Verify interface compliance at compile time.
var _ ports.ScoringOracle = (*MockOracle)(nil)
