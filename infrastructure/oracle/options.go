package oracle

import "sync"

// DefaultMaxTokens bounds response length when the caller does not set
// max_tokens explicitly. Judgment responses are short score listings, so
// the default stays small.
const DefaultMaxTokens = 1000

// RequestOptions is the normalized view of the per-request option map.
// Providers translate it into their own request types.
type RequestOptions struct {
	// MaxTokens caps the generated response length.
	MaxTokens int
	// Model overrides the provider's configured model for this request.
	Model string
	// Temperature controls sampling randomness, nil keeps the provider
	// default. Scoring prompts usually pin this low for stability.
	Temperature *float64
	// TopP configures nucleus sampling, nil keeps the provider default.
	TopP *float64
	// System carries instructions separate from the judgment prompt.
	System string
	// Extra holds provider-specific options outside the common set.
	Extra map[string]any
}

// ParseRequestOptions normalizes a raw option map, substituting defaults
// for missing or invalid entries. Unrecognized keys land in Extra.
func ParseRequestOptions(opts map[string]any, defaultModel string) RequestOptions {
	options := RequestOptions{
		MaxTokens: optionalInt(opts, "max_tokens", DefaultMaxTokens, isPositiveInt),
		Model:     optionalString(opts, "model", defaultModel, isNonEmptyString),
		System:    optionalString(opts, "system", "", nil),
		Extra:     make(map[string]any),
	}

	if temp := optionalFloat64(opts, "temperature", -1, IsValidTemperature); temp != -1 {
		options.Temperature = &temp
	}
	if topP := optionalFloat64(opts, "top_p", -1, IsValidTopP); topP != -1 {
		options.TopP = &topP
	}

	for k, v := range opts {
		switch k {
		case "max_tokens", "model", "system", "temperature", "top_p":
		default:
			options.Extra[k] = v
		}
	}

	return options
}

// optionalInt reads an int option, falling back to defaultVal when the key
// is absent, the type is wrong, or the validator rejects the value.
func optionalInt(opts map[string]any, key string, defaultVal int, valid func(int) bool) int {
	if opts == nil {
		return defaultVal
	}
	val, ok := opts[key]
	if !ok {
		return defaultVal
	}
	intVal, ok := val.(int)
	if !ok {
		return defaultVal
	}
	if valid != nil && !valid(intVal) {
		return defaultVal
	}
	return intVal
}

// optionalString reads a string option with the same fallback rules.
func optionalString(opts map[string]any, key string, defaultVal string, valid func(string) bool) string {
	if opts == nil {
		return defaultVal
	}
	val, ok := opts[key]
	if !ok {
		return defaultVal
	}
	strVal, ok := val.(string)
	if !ok {
		return defaultVal
	}
	if valid != nil && !valid(strVal) {
		return defaultVal
	}
	return strVal
}

// optionalFloat64 reads a float64 option with the same fallback rules.
func optionalFloat64(opts map[string]any, key string, defaultVal float64, valid func(float64) bool) float64 {
	if opts == nil {
		return defaultVal
	}
	val, ok := opts[key]
	if !ok {
		return defaultVal
	}
	floatVal, ok := val.(float64)
	if !ok {
		return defaultVal
	}
	if valid != nil && !valid(floatVal) {
		return defaultVal
	}
	return floatVal
}

func isPositiveInt(val int) bool { return val > 0 }

func isNonEmptyString(val string) bool { return val != "" }

// modelHolder gives providers a thread-safe model name they can embed.
type modelHolder struct {
	mu    sync.RWMutex
	model string
}

// GetModel returns the configured model name.
func (m *modelHolder) GetModel() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.model
}

// SetModel switches the model for subsequent requests.
func (m *modelHolder) SetModel(model string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.model = model
}

// tokenFallback resolves a token count, preferring the provider-reported
// value and estimating from text when the report is missing or zero.
func tokenFallback(actual int, text string, estimator TokenEstimator) int {
	if actual > 0 {
		return actual
	}
	return estimator.EstimateTokens(text)
}
