package oracle

import (
	"strings"
	"sync"
)

// WordEstimator approximates tokens from whitespace-separated word count.
// Fast and good enough for prompt budgeting on prose.
type WordEstimator struct {
	// TokensPerWord is the conversion ratio, roughly 0.75 for English.
	TokensPerWord float64
}

// NewWordEstimator builds a word-count estimator. Non-positive ratios
// fall back to 0.75.
func NewWordEstimator(tokensPerWord float64) *WordEstimator {
	if tokensPerWord <= 0 {
		tokensPerWord = 0.75
	}
	return &WordEstimator{TokensPerWord: tokensPerWord}
}

// EstimateTokens counts whitespace-separated words and applies the ratio.
func (e *WordEstimator) EstimateTokens(text string) int {
	return int(float64(len(strings.Fields(text))) * e.TokensPerWord)
}

// CharacterEstimator approximates tokens from character count. This is
// the default strategy; four characters per token tracks GPT-family
// tokenizers closely enough for cost estimation.
type CharacterEstimator struct {
	charsPerToken float64
}

// NewCharacterEstimator builds a character-count estimator. Non-positive
// ratios fall back to 4.0.
func NewCharacterEstimator(charsPerToken float64) *CharacterEstimator {
	if charsPerToken <= 0 {
		charsPerToken = 4.0
	}
	return &CharacterEstimator{charsPerToken: charsPerToken}
}

// EstimateTokens divides the character count by the configured ratio.
func (e *CharacterEstimator) EstimateTokens(text string) int {
	return int(float64(len(text)) / e.charsPerToken)
}

// ProviderEstimator routes estimation to per-provider strategies, since
// tokenizers differ across providers.
type ProviderEstimator struct {
	mu         sync.RWMutex
	estimators map[string]TokenEstimator
	fallback   TokenEstimator
}

// NewProviderEstimator builds a router with a character-count fallback.
func NewProviderEstimator() *ProviderEstimator {
	return &ProviderEstimator{
		estimators: make(map[string]TokenEstimator),
		fallback:   NewCharacterEstimator(0),
	}
}

// SetProviderEstimator registers a strategy for one provider.
func (e *ProviderEstimator) SetProviderEstimator(provider string, estimator TokenEstimator) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.estimators[provider] = estimator
}

// SetFallback replaces the estimator used for unknown providers.
func (e *ProviderEstimator) SetFallback(estimator TokenEstimator) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.fallback = estimator
}

// EstimateTokensForProvider estimates with the provider's strategy,
// falling back when none is registered.
func (e *ProviderEstimator) EstimateTokensForProvider(provider, text string) int {
	e.mu.RLock()
	estimator, ok := e.estimators[provider]
	if !ok {
		estimator = e.fallback
	}
	e.mu.RUnlock()
	return estimator.EstimateTokens(text)
}

// EstimateTokens estimates with the fallback strategy.
func (e *ProviderEstimator) EstimateTokens(text string) int {
	e.mu.RLock()
	fallback := e.fallback
	e.mu.RUnlock()
	return fallback.EstimateTokens(text)
}

// CachingEstimator memoizes another estimator's results. Judgment prompts
// repeat candidate content across pipeline stages, so repeated estimates
// of identical text are common.
type CachingEstimator struct {
	mu         sync.Mutex
	underlying TokenEstimator
	cache      map[string]int
	maxSize    int
}

// NewCachingEstimator wraps an estimator with a bounded cache. Once full,
// new results are computed but not stored.
func NewCachingEstimator(underlying TokenEstimator, maxSize int) *CachingEstimator {
	if maxSize <= 0 {
		maxSize = 1000
	}
	return &CachingEstimator{
		underlying: underlying,
		cache:      make(map[string]int),
		maxSize:    maxSize,
	}
}

// EstimateTokens returns the cached count when available and delegates
// otherwise. Safe for concurrent use.
func (e *CachingEstimator) EstimateTokens(text string) int {
	e.mu.Lock()
	if tokens, ok := e.cache[text]; ok {
		e.mu.Unlock()
		return tokens
	}
	e.mu.Unlock()

	tokens := e.underlying.EstimateTokens(text)

	e.mu.Lock()
	if len(e.cache) < e.maxSize {
		e.cache[text] = tokens
	}
	e.mu.Unlock()

	return tokens
}

// ClearCache drops all memoized results.
func (e *CachingEstimator) ClearCache() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cache = make(map[string]int)
}

// CacheSize returns the number of memoized results.
func (e *CachingEstimator) CacheSize() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.cache)
}
