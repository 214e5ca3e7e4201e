package oracle

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/arbiterlabs/fuseval/internal/ports"
)

// Registry manages scoring oracles across multiple providers with shared
// defaults. Clients are created lazily per provider/model pair and cached,
// so the dimensional evaluator and a catalog selector can share one oracle
// while a different model serves ad hoc requests.
type Registry struct {
	// providers maps provider names to their configuration.
	providers map[string]ProviderConfig
	// oracles caches built clients keyed by "provider/model".
	oracles map[string]ports.ScoringOracle
	// defaultProvider is used when a spec names no provider.
	defaultProvider string
	// defaultMiddleware is applied to every client, before any
	// provider-specific middleware.
	defaultMiddleware []Middleware
	// defaultTimeout bounds requests for every client.
	defaultTimeout time.Duration

	mu sync.RWMutex
}

// ProviderConfig describes one provider entry in the registry.
type ProviderConfig struct {
	// Type selects the provider implementation (openai, anthropic, google).
	Type string
	// EnvVar names the environment variable holding the API key.
	EnvVar string
	// DefaultModel is used when a spec names only the provider.
	DefaultModel string
	// SupportedModels restricts model selection. Empty allows any model.
	SupportedModels []string
	// BaseURL overrides the provider's default endpoint.
	BaseURL string
	// Middleware is appended after the registry defaults.
	Middleware []Middleware
}

// RegistryConfig configures a Registry.
type RegistryConfig struct {
	// Providers lists the available providers.
	Providers map[string]ProviderConfig
	// DefaultProvider must name an entry in Providers.
	DefaultProvider string
	// DefaultTimeout applies to every client unless overridden.
	DefaultTimeout time.Duration
	// DefaultMiddleware applies to every client, outermost first.
	DefaultMiddleware []Middleware
}

// DefaultProviders is a ready-to-use provider table for the three
// supported backends.
var DefaultProviders = map[string]ProviderConfig{
	"openai": {
		Type:         "openai",
		EnvVar:       "OPENAI_API_KEY",
		DefaultModel: "gpt-4o",
		SupportedModels: []string{
			"gpt-4.1", "gpt-4.1-mini", "gpt-4.1-nano",
			"gpt-4o", "gpt-4o-mini",
			"gpt-4", "gpt-4-turbo",
			"gpt-3.5-turbo",
			"o4-mini", "o3", "o3-mini", "o1", "o1-mini",
		},
	},
	"anthropic": {
		Type:         "anthropic",
		EnvVar:       "ANTHROPIC_API_KEY",
		DefaultModel: "claude-3-5-sonnet-20241022",
		SupportedModels: []string{
			"claude-3-5-sonnet-20241022", "claude-3-5-haiku-20241022",
			"claude-3-opus-20240229", "claude-3-sonnet-20240229",
			"claude-3-haiku-20240307",
		},
	},
	"google": {
		Type:         "google",
		EnvVar:       "GOOGLE_API_KEY",
		DefaultModel: "gemini-2.0-flash",
		SupportedModels: []string{
			"gemini-2.5-pro", "gemini-2.5-flash",
			"gemini-2.0-flash", "gemini-2.0-flash-lite",
			"gemini-1.5-pro", "gemini-1.5-flash",
		},
	},
}

// NewRegistry validates the configuration and builds an empty registry.
// Clients are created on first request.
func NewRegistry(config RegistryConfig) (*Registry, error) {
	if config.DefaultProvider == "" {
		return nil, fmt.Errorf("default provider cannot be empty")
	}
	if _, ok := config.Providers[config.DefaultProvider]; !ok {
		return nil, fmt.Errorf("default provider %q not found in providers configuration", config.DefaultProvider)
	}

	return &Registry{
		providers:         config.Providers,
		oracles:           make(map[string]ports.ScoringOracle),
		defaultProvider:   config.DefaultProvider,
		defaultMiddleware: config.DefaultMiddleware,
		defaultTimeout:    config.DefaultTimeout,
	}, nil
}

// GetDefaultOracle returns the client for the default provider's default
// model.
func (r *Registry) GetDefaultOracle() (ports.ScoringOracle, error) {
	providerConfig, ok := r.providers[r.defaultProvider]
	if !ok {
		return nil, fmt.Errorf("default provider %q not found in configuration", r.defaultProvider)
	}
	return r.GetOracle(r.defaultProvider + "/" + providerConfig.DefaultModel)
}

// GetOracle resolves a client from a spec of the form "provider" or
// "provider/model". Clients are built lazily and cached per pair.
func (r *Registry) GetOracle(spec string) (ports.ScoringOracle, error) {
	if spec == "" {
		return nil, fmt.Errorf("provider specification cannot be empty; use GetDefaultOracle for the default")
	}

	provider, model := r.parseSpec(spec)
	key := cacheKey(provider, model)

	r.mu.RLock()
	if oracle, ok := r.oracles[key]; ok {
		r.mu.RUnlock()
		return oracle, nil
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()

	if oracle, ok := r.oracles[key]; ok {
		return oracle, nil
	}

	oracle, err := r.buildOracle(provider, model)
	if err != nil {
		return nil, err
	}
	r.oracles[key] = oracle
	return oracle, nil
}

// RegisterOracle installs a client built from an explicit configuration,
// inheriting registry defaults for timeout and middleware.
func (r *Registry) RegisterOracle(name string, config Config) error {
	if name == "" {
		return fmt.Errorf("oracle name cannot be empty")
	}

	provider, model := r.parseSpec(name)
	if model == "" {
		model = config.Model
	}

	providerConfig, ok := r.providers[provider]
	if !ok {
		return fmt.Errorf("unknown provider %q", provider)
	}

	if config.Timeout == 0 {
		config.Timeout = r.defaultTimeout
	}
	config.Middleware = append(append([]Middleware{}, r.defaultMiddleware...), config.Middleware...)

	oracle, err := New(providerConfig.Type, config)
	if err != nil {
		return fmt.Errorf("failed to create oracle %q: %w", name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.oracles[cacheKey(provider, model)] = oracle
	return nil
}

// InitializeProviders eagerly builds clients for every provider whose API
// key environment variable is set. A missing key for the default provider
// is an error; other providers are skipped.
func (r *Registry) InitializeProviders() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	foundDefault := false

	for name, providerConfig := range r.providers {
		apiKey := os.Getenv(providerConfig.EnvVar)
		if apiKey == "" {
			if name == r.defaultProvider {
				return fmt.Errorf("%s environment variable not set for default provider %q",
					providerConfig.EnvVar, name)
			}
			continue
		}
		if name == r.defaultProvider {
			foundDefault = true
		}

		oracle, err := New(providerConfig.Type, Config{
			APIKey:     apiKey,
			Model:      providerConfig.DefaultModel,
			BaseURL:    providerConfig.BaseURL,
			Timeout:    r.defaultTimeout,
			Middleware: append(append([]Middleware{}, r.defaultMiddleware...), providerConfig.Middleware...),
		})
		if err != nil {
			return fmt.Errorf("failed to create %s oracle: %w", name, err)
		}

		r.oracles[cacheKey(name, providerConfig.DefaultModel)] = oracle
	}

	if !foundDefault {
		return fmt.Errorf("default provider %q not available after initialization", r.defaultProvider)
	}
	return nil
}

// RegisteredProviders lists the providers with at least one cached client.
func (r *Registry) RegisteredProviders() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]struct{})
	for key := range r.oracles {
		provider, _ := r.parseSpec(key)
		if provider != "" {
			seen[provider] = struct{}{}
		}
	}

	providers := make([]string, 0, len(seen))
	for provider := range seen {
		providers = append(providers, provider)
	}
	return providers
}

func (r *Registry) parseSpec(spec string) (provider, model string) {
	parts := strings.SplitN(spec, "/", 2)
	provider = parts[0]
	if len(parts) > 1 {
		model = parts[1]
	} else if providerConfig, ok := r.providers[provider]; ok {
		model = providerConfig.DefaultModel
	}
	return
}

func (r *Registry) buildOracle(provider, model string) (ports.ScoringOracle, error) {
	providerConfig, ok := r.providers[provider]
	if !ok {
		return nil, fmt.Errorf("unknown provider %q", provider)
	}

	if len(providerConfig.SupportedModels) > 0 && !contains(providerConfig.SupportedModels, model) {
		return nil, fmt.Errorf("model %q is not supported by provider %q (supported: %v)",
			model, provider, providerConfig.SupportedModels)
	}

	apiKey := os.Getenv(providerConfig.EnvVar)
	if apiKey == "" {
		return nil, fmt.Errorf("%s environment variable not set for provider %q", providerConfig.EnvVar, provider)
	}

	return New(providerConfig.Type, Config{
		APIKey:     apiKey,
		Model:      model,
		BaseURL:    providerConfig.BaseURL,
		Timeout:    r.defaultTimeout,
		Middleware: append(append([]Middleware{}, r.defaultMiddleware...), providerConfig.Middleware...),
	})
}

func cacheKey(provider, model string) string {
	if model == "" {
		return provider
	}
	return provider + "/" + model
}

func contains(list []string, item string) bool {
	for _, v := range list {
		if v == item {
			return true
		}
	}
	return false
}
