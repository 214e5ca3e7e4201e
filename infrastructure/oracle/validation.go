package oracle

import (
	"fmt"
	"net/url"
	"time"
)

// Valid ranges for common request parameters, shared by all providers.
const (
	// MinTemperature is the lowest accepted sampling temperature.
	MinTemperature = 0.0
	// MaxTemperature is the highest accepted sampling temperature.
	// Gemini accepts up to 2.0, so the shared bound follows it.
	MaxTemperature = 2.0
	// MinTopP is the lowest accepted nucleus sampling value.
	MinTopP = 0.0
	// MaxTopP is the highest accepted nucleus sampling value.
	MaxTopP = 1.0
	// MinPenalty is the lowest accepted frequency or presence penalty.
	MinPenalty = -2.0
	// MaxPenalty is the highest accepted frequency or presence penalty.
	MaxPenalty = 2.0
	// MinTimeout is the shortest accepted request timeout.
	MinTimeout = 1 * time.Second
	// MaxTimeout is the longest accepted request timeout.
	MaxTimeout = 10 * time.Minute
)

// IsValidTemperature reports whether val lies in [0.0, 2.0].
func IsValidTemperature(val float64) bool {
	return val >= MinTemperature && val <= MaxTemperature
}

// IsValidTopP reports whether val lies in [0.0, 1.0].
func IsValidTopP(val float64) bool {
	return val >= MinTopP && val <= MaxTopP
}

// IsValidPenalty reports whether val lies in [-2.0, 2.0].
func IsValidPenalty(val float64) bool {
	return val >= MinPenalty && val <= MaxPenalty
}

// ValidateBaseURL checks that a base URL override has an http or https
// scheme and a host. The empty string is valid and keeps the provider
// default endpoint.
func ValidateBaseURL(baseURL string) (string, error) {
	if baseURL == "" {
		return "", nil
	}

	parsed, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid URL format: %w", err)
	}
	if parsed.Scheme == "" {
		return "", fmt.Errorf("URL must include a scheme (http:// or https://)")
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", fmt.Errorf("URL scheme must be http or https, got %s", parsed.Scheme)
	}
	if parsed.Host == "" {
		return "", fmt.Errorf("URL must include a host")
	}
	return parsed.String(), nil
}

// ValidateTimeout clamps a timeout into [MinTimeout, MaxTimeout].
// Zero or negative values return zero, meaning use the system default.
func ValidateTimeout(timeout time.Duration) time.Duration {
	if timeout <= 0 {
		return 0
	}
	if timeout < MinTimeout {
		return MinTimeout
	}
	if timeout > MaxTimeout {
		return MaxTimeout
	}
	return timeout
}

// SafeFloat32 converts a numeric value to float32, rejecting values that
// overflow or lose significant precision.
func SafeFloat32(value any) (float32, bool) {
	switch v := value.(type) {
	case float32:
		return v, true
	case float64:
		if v > 3.4e38 || v < -3.4e38 {
			return 0, false
		}
		return float32(v), true
	case int:
		return float32(v), true
	case int64:
		// 2^24 is the largest integer float32 represents exactly.
		if v > 16777216 || v < -16777216 {
			return 0, false
		}
		return float32(v), true
	default:
		return 0, false
	}
}

// ClampFloat64 restricts val to [min, max].
func ClampFloat64(val, min, max float64) float64 {
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}

// ClampInt restricts val to [min, max].
func ClampInt(val, min, max int) int {
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}
