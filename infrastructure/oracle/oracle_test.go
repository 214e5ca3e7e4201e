package oracle

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_UnknownProvider(t *testing.T) {
	_, err := New("mystery", Config{APIKey: "key"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown provider type")
}

func TestNew_MissingAPIKey(t *testing.T) {
	_, err := New("openai", Config{})
	assert.ErrorIs(t, err, ErrEmptyAPIKey)
}

func TestNew_MiddlewareOrder(t *testing.T) {
	mock := NewMockProvider()
	RegisterProviderFactory("mock-order", func(Config) (Provider, error) {
		return mock, nil
	})

	var order []string
	tag := func(name string) Middleware {
		return func(next Provider) Provider {
			return providerFunc{
				generate: func(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error) {
					order = append(order, name)
					return next.Generate(ctx, prompt, opts)
				},
				next: next,
			}
		}
	}

	oracle, err := New("mock-order", Config{
		APIKey:     "key",
		Middleware: []Middleware{tag("outer"), tag("inner")},
	})
	require.NoError(t, err)

	_, err = oracle.Complete(context.Background(), "prompt", nil)
	require.NoError(t, err)

	// The first configured middleware runs first on the way in.
	assert.Equal(t, []string{"outer", "inner"}, order)
	assert.Equal(t, 1, mock.Calls())
}

// providerFunc adapts a function to Provider for middleware tests.
type providerFunc struct {
	generate func(context.Context, string, map[string]any) (string, int, int, error)
	next     Provider
}

func (p providerFunc) Generate(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error) {
	return p.generate(ctx, prompt, opts)
}

func (p providerFunc) GetModel() string { return p.next.GetModel() }

func (p providerFunc) SetModel(m string) { p.next.SetModel(m) }

func TestOracle_CompleteWithUsage(t *testing.T) {
	mock := NewMockProvider()
	RegisterProviderFactory("mock-usage", func(Config) (Provider, error) {
		return mock, nil
	})

	oracle, err := New("mock-usage", Config{APIKey: "key"})
	require.NoError(t, err)

	response, tokensIn, tokensOut, err := oracle.CompleteWithUsage(context.Background(), "score these answers", nil)
	require.NoError(t, err)
	assert.Equal(t, "test response", response)
	assert.Equal(t, 10, tokensIn)
	assert.Equal(t, 20, tokensOut)
	assert.Equal(t, "score these answers", mock.LastPrompt())
	assert.Equal(t, "test-model", oracle.GetModel())
}

func TestOracle_EstimateTokens(t *testing.T) {
	mock := NewMockProvider()
	RegisterProviderFactory("mock-estimate", func(Config) (Provider, error) {
		return mock, nil
	})

	oracle, err := New("mock-estimate", Config{APIKey: "key"})
	require.NoError(t, err)

	// The default estimator divides character count by four.
	tokens, err := oracle.EstimateTokens("twelve chars")
	require.NoError(t, err)
	assert.Equal(t, 3, tokens)

	custom, err := New("mock-estimate", Config{
		APIKey:         "key",
		TokenEstimator: NewWordEstimator(1.0),
	})
	require.NoError(t, err)

	tokens, err = custom.EstimateTokens("one two three")
	require.NoError(t, err)
	assert.Equal(t, 3, tokens)
}
