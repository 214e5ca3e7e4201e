package oracle

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWordEstimator(t *testing.T) {
	e := NewWordEstimator(0.75)
	assert.Equal(t, 3, e.EstimateTokens("one two three four"))
	assert.Zero(t, e.EstimateTokens(""))

	// Non-positive ratios fall back to the default.
	fallback := NewWordEstimator(-1)
	assert.Equal(t, 0.75, fallback.TokensPerWord)
}

func TestCharacterEstimator(t *testing.T) {
	e := NewCharacterEstimator(4.0)
	assert.Equal(t, 3, e.EstimateTokens("twelve chars"))
	assert.Zero(t, e.EstimateTokens(""))

	half := NewCharacterEstimator(2.0)
	assert.Equal(t, 6, half.EstimateTokens("twelve chars"))
}

func TestProviderEstimator_RoutesByProvider(t *testing.T) {
	e := NewProviderEstimator()
	e.SetProviderEstimator("openai", NewCharacterEstimator(4.0))
	e.SetProviderEstimator("anthropic", NewCharacterEstimator(2.0))

	text := "twelve chars"
	assert.Equal(t, 3, e.EstimateTokensForProvider("openai", text))
	assert.Equal(t, 6, e.EstimateTokensForProvider("anthropic", text))

	// Unknown providers use the fallback character estimator.
	assert.Equal(t, 3, e.EstimateTokensForProvider("mystery", text))
	assert.Equal(t, 3, e.EstimateTokens(text))
}

func TestCachingEstimator(t *testing.T) {
	// countingEstimator tracks how many times the underlying runs.
	calls := 0
	underlying := estimatorFunc(func(text string) int {
		calls++
		return len(text)
	})

	e := NewCachingEstimator(underlying, 2)

	assert.Equal(t, 5, e.EstimateTokens("hello"))
	assert.Equal(t, 5, e.EstimateTokens("hello"))
	assert.Equal(t, 1, calls, "repeated text hits the cache")
	assert.Equal(t, 1, e.CacheSize())

	// The cache is bounded; overflow results are computed but not stored.
	e.EstimateTokens("second")
	e.EstimateTokens("third")
	assert.Equal(t, 2, e.CacheSize())

	e.ClearCache()
	assert.Zero(t, e.CacheSize())
	e.EstimateTokens("hello")
	assert.Equal(t, 4, calls, "cleared cache recomputes")
}

// estimatorFunc adapts a function to TokenEstimator.
type estimatorFunc func(string) int

func (f estimatorFunc) EstimateTokens(text string) int { return f(text) }
