// Package oracle connects the analysis pipeline to its scoring oracle, the
// LLM that answers comparative, dimensional, and profiling judgment prompts.
//
// The package hides provider-specific APIs (OpenAI, Anthropic, Google) behind
// a common Provider interface and layers cross-cutting concerns on top
// through a middleware chain. The analyzers only see ports.ScoringOracle;
// everything below it, retries, rate limiting, circuit breaking, metrics and
// tracing, is assembled here.
//
// Basic usage:
//
//	scorer, err := oracle.New("openai", oracle.Config{
//	    APIKey: os.Getenv("OPENAI_API_KEY"),
//	    Model:  "gpt-4o",
//	})
//	response, err := scorer.Complete(ctx, prompt, nil)
//
// With middleware:
//
//	scorer, err := oracle.New("anthropic", oracle.Config{
//	    APIKey: os.Getenv("ANTHROPIC_API_KEY"),
//	    Model:  "claude-3-5-sonnet-20241022",
//	    Middleware: []oracle.Middleware{
//	        oracle.RetryMiddleware(3, 500*time.Millisecond, 10*time.Second),
//	        oracle.RateLimitMiddleware(10, 20),
//	        oracle.CircuitBreakerMiddleware(5, 30*time.Second),
//	    },
//	})
package oracle

import (
	"context"
	"fmt"
	"time"

	"github.com/arbiterlabs/fuseval/internal/ports"
)

// Provider is the minimal surface a concrete oracle backend must implement.
// Middleware wraps any conforming implementation, so resilience and
// observability stay independent of the provider SDKs.
type Provider interface {
	// Generate sends a judgment prompt to the backing model and returns
	// the raw response text together with input and output token counts.
	// The opts map carries per-request settings such as temperature,
	// max_tokens, or a model override.
	Generate(ctx context.Context, prompt string, opts map[string]any) (response string, tokensIn, tokensOut int, err error)

	// GetModel returns the currently configured model name.
	GetModel() string

	// SetModel switches the model used for subsequent requests.
	SetModel(model string)
}

// TokenEstimator approximates token counts before a request is made.
// Providers tokenize differently, so the strategy is pluggable.
type TokenEstimator interface {
	// EstimateTokens returns an approximate token count for text.
	EstimateTokens(text string) int
}

// Config collects everything needed to build a scoring oracle: credentials,
// model selection, and the middleware chain.
type Config struct {
	// APIKey authenticates against the provider.
	APIKey string

	// Model names the model to use. Empty selects the provider default.
	Model string

	// BaseURL overrides the provider's default endpoint, empty keeps it.
	BaseURL string

	// Timeout bounds individual requests. Zero means no client timeout.
	Timeout time.Duration

	// TokenEstimator overrides the default character-ratio estimator.
	TokenEstimator TokenEstimator

	// Middleware wraps the provider, first entry outermost.
	Middleware []Middleware
}

// Middleware wraps a Provider to add behavior around every request.
type Middleware func(Provider) Provider

// Oracle adapts a middleware-wrapped Provider to ports.ScoringOracle.
type Oracle struct {
	provider  Provider
	estimator TokenEstimator
}

var _ ports.ScoringOracle = (*Oracle)(nil)

// New builds a scoring oracle for the named provider type with the full
// middleware chain applied. Registered provider types are "openai",
// "anthropic", and "google".
func New(providerType string, config Config) (*Oracle, error) {
	if config.APIKey == "" {
		return nil, ErrEmptyAPIKey
	}

	factory, ok := providerFactories[providerType]
	if !ok {
		return nil, fmt.Errorf("unknown provider type %q", providerType)
	}

	provider, err := factory(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s provider: %w", providerType, err)
	}

	// Apply in reverse so the first configured middleware sits outermost.
	for i := len(config.Middleware) - 1; i >= 0; i-- {
		provider = config.Middleware[i](provider)
	}

	estimator := config.TokenEstimator
	if estimator == nil {
		estimator = NewCharacterEstimator(0)
	}

	return &Oracle{provider: provider, estimator: estimator}, nil
}

// Complete sends a judgment prompt and returns the response text,
// discarding token usage.
func (o *Oracle) Complete(ctx context.Context, prompt string, options map[string]any) (string, error) {
	response, _, _, err := o.CompleteWithUsage(ctx, prompt, options)
	return response, err
}

// CompleteWithUsage sends a judgment prompt and returns the response text
// together with input and output token counts.
func (o *Oracle) CompleteWithUsage(ctx context.Context, prompt string, options map[string]any) (string, int, int, error) {
	return o.provider.Generate(ctx, prompt, options)
}

// EstimateTokens approximates the token count of text using the configured
// estimator.
func (o *Oracle) EstimateTokens(text string) (int, error) {
	return o.estimator.EstimateTokens(text), nil
}

// GetModel returns the model the underlying provider is configured with.
func (o *Oracle) GetModel() string { return o.provider.GetModel() }

// ProviderFactory builds a Provider from a Config. Factories register
// themselves so the package can route provider types without import cycles.
type ProviderFactory func(Config) (Provider, error)

var providerFactories = map[string]ProviderFactory{}

// RegisterProviderFactory makes a provider type available to New.
// Registering an existing type replaces the previous factory.
func RegisterProviderFactory(providerType string, factory ProviderFactory) {
	providerFactories[providerType] = factory
}
