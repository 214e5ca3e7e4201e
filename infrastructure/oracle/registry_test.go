package oracle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRegistryConfig() RegistryConfig {
	return RegistryConfig{
		DefaultProvider: "openai",
		Providers: map[string]ProviderConfig{
			"openai": {
				Type:            "openai",
				EnvVar:          "TEST_OPENAI_KEY",
				DefaultModel:    "gpt-4o",
				SupportedModels: []string{"gpt-4o", "gpt-4o-mini"},
			},
			"anthropic": {
				Type:         "anthropic",
				EnvVar:       "TEST_ANTHROPIC_KEY",
				DefaultModel: "claude-3-5-sonnet-20241022",
			},
		},
	}
}

func TestNewRegistry_Validation(t *testing.T) {
	_, err := NewRegistry(RegistryConfig{})
	assert.ErrorContains(t, err, "default provider cannot be empty")

	_, err = NewRegistry(RegistryConfig{
		DefaultProvider: "missing",
		Providers:       map[string]ProviderConfig{"openai": {Type: "openai"}},
	})
	assert.ErrorContains(t, err, "not found in providers configuration")

	registry, err := NewRegistry(testRegistryConfig())
	require.NoError(t, err)
	require.NotNil(t, registry)
}

func TestRegistry_GetOracle_UnknownProvider(t *testing.T) {
	registry, err := NewRegistry(testRegistryConfig())
	require.NoError(t, err)

	_, err = registry.GetOracle("mystery/model")
	assert.ErrorContains(t, err, `unknown provider "mystery"`)

	_, err = registry.GetOracle("")
	assert.ErrorContains(t, err, "cannot be empty")
}

func TestRegistry_GetOracle_UnsupportedModel(t *testing.T) {
	registry, err := NewRegistry(testRegistryConfig())
	require.NoError(t, err)

	_, err = registry.GetOracle("openai/made-up-model")
	assert.ErrorContains(t, err, "not supported by provider")
}

func TestRegistry_GetOracle_MissingAPIKey(t *testing.T) {
	t.Setenv("TEST_OPENAI_KEY", "")

	registry, err := NewRegistry(testRegistryConfig())
	require.NoError(t, err)

	_, err = registry.GetOracle("openai/gpt-4o")
	assert.ErrorContains(t, err, "TEST_OPENAI_KEY environment variable not set")
}

func TestRegistry_GetOracle_CachesClients(t *testing.T) {
	t.Setenv("TEST_OPENAI_KEY", "test-key")

	registry, err := NewRegistry(testRegistryConfig())
	require.NoError(t, err)

	first, err := registry.GetOracle("openai/gpt-4o")
	require.NoError(t, err)

	second, err := registry.GetOracle("openai/gpt-4o")
	require.NoError(t, err)
	assert.Same(t, first, second, "repeated specs reuse the cached client")

	// A bare provider spec resolves to the default model, hitting the
	// same cache entry.
	third, err := registry.GetOracle("openai")
	require.NoError(t, err)
	assert.Same(t, first, third)

	assert.Equal(t, []string{"openai"}, registry.RegisteredProviders())
}

func TestRegistry_GetDefaultOracle(t *testing.T) {
	t.Setenv("TEST_OPENAI_KEY", "test-key")

	registry, err := NewRegistry(testRegistryConfig())
	require.NoError(t, err)

	oracle, err := registry.GetDefaultOracle()
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", oracle.GetModel())
}

func TestRegistry_RegisterOracle(t *testing.T) {
	registry, err := NewRegistry(testRegistryConfig())
	require.NoError(t, err)

	err = registry.RegisterOracle("openai/gpt-4o-mini", Config{
		APIKey: "explicit-key",
		Model:  "gpt-4o-mini",
	})
	require.NoError(t, err)

	oracle, err := registry.GetOracle("openai/gpt-4o-mini")
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o-mini", oracle.GetModel())

	err = registry.RegisterOracle("", Config{APIKey: "key"})
	assert.ErrorContains(t, err, "name cannot be empty")

	err = registry.RegisterOracle("mystery", Config{APIKey: "key"})
	assert.ErrorContains(t, err, `unknown provider "mystery"`)
}

func TestRegistry_InitializeProviders(t *testing.T) {
	t.Setenv("TEST_OPENAI_KEY", "openai-key")
	t.Setenv("TEST_ANTHROPIC_KEY", "")

	registry, err := NewRegistry(testRegistryConfig())
	require.NoError(t, err)

	// The anthropic key is missing, but only the default provider is
	// mandatory.
	require.NoError(t, registry.InitializeProviders())
	assert.Equal(t, []string{"openai"}, registry.RegisteredProviders())
}

func TestRegistry_InitializeProviders_MissingDefaultKey(t *testing.T) {
	t.Setenv("TEST_OPENAI_KEY", "")
	t.Setenv("TEST_ANTHROPIC_KEY", "anthropic-key")

	registry, err := NewRegistry(testRegistryConfig())
	require.NoError(t, err)

	err = registry.InitializeProviders()
	assert.ErrorContains(t, err, "default provider")
}
