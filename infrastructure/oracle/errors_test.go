package oracle

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProviderError_Error(t *testing.T) {
	err := NewProviderError("openai", ErrorTypeRateLimit, 429, "throttled", errors.New("underlying"))
	msg := err.Error()
	assert.Contains(t, msg, "openai error")
	assert.Contains(t, msg, "HTTP 429")
	assert.Contains(t, msg, "rate_limit")
	assert.Contains(t, msg, "throttled")
	assert.Contains(t, msg, "underlying")
}

func TestProviderError_Unwrap(t *testing.T) {
	underlying := errors.New("socket closed")
	err := NewProviderError("google", ErrorTypeNetwork, 0, "", underlying)
	assert.ErrorIs(t, err, underlying)
}

func TestProviderError_IsRetryable(t *testing.T) {
	tests := []struct {
		errType   ErrorType
		retryable bool
	}{
		{ErrorTypeRateLimit, true},
		{ErrorTypeServerError, true},
		{ErrorTypeNetwork, true},
		{ErrorTypeTimeout, true},
		{ErrorTypeAuthentication, false},
		{ErrorTypeBadRequest, false},
		{ErrorTypeNotFound, false},
		{ErrorTypeContentPolicy, false},
		{ErrorTypeUnknown, false},
	}

	for _, tt := range tests {
		err := NewProviderError("test", tt.errType, 0, "", nil)
		assert.Equal(t, tt.retryable, err.IsRetryable(), "type %v", tt.errType)
	}
}

func TestErrorClassifier_ClassifyHTTPError(t *testing.T) {
	ec := &ErrorClassifier{Provider: "openai"}

	tests := []struct {
		name       string
		statusCode int
		wantType   ErrorType
	}{
		{"unauthorized", 401, ErrorTypeAuthentication},
		{"forbidden", 403, ErrorTypeAuthentication},
		{"throttled", 429, ErrorTypeRateLimit},
		{"bad request", 400, ErrorTypeBadRequest},
		{"missing model", 404, ErrorTypeNotFound},
		{"internal error", 500, ErrorTypeServerError},
		{"bad gateway", 502, ErrorTypeServerError},
		{"other client error", 418, ErrorTypeBadRequest},
		{"other server error", 599, ErrorTypeServerError},
		{"not an http failure", 0, ErrorTypeUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ec.ClassifyHTTPError(tt.statusCode, "message", nil)
			assert.Equal(t, tt.wantType, err.Type)
			assert.Equal(t, tt.statusCode, err.StatusCode)
			assert.Equal(t, "openai", err.Provider)
		})
	}
}

func TestErrorClassifier_ClassifyContextError(t *testing.T) {
	ec := &ErrorClassifier{Provider: "anthropic"}

	err := ec.ClassifyContextError(context.DeadlineExceeded)
	assert.Equal(t, ErrorTypeTimeout, err.Type)
	assert.True(t, err.IsRetryable())

	err = ec.ClassifyContextError(context.Canceled)
	assert.Equal(t, ErrorTypeNetwork, err.Type)

	err = ec.ClassifyContextError(errors.New("something else"))
	assert.Equal(t, ErrorTypeUnknown, err.Type)
}

func TestValidateBaseURL(t *testing.T) {
	url, err := ValidateBaseURL("")
	require.NoError(t, err)
	assert.Empty(t, url)

	url, err = ValidateBaseURL("https://api.example.com/v1")
	require.NoError(t, err)
	assert.Equal(t, "https://api.example.com/v1", url)

	_, err = ValidateBaseURL("ftp://example.com")
	assert.Error(t, err, "non-http schemes are rejected")

	_, err = ValidateBaseURL("not a url at all\x7f")
	assert.Error(t, err)
}

func TestValidateTimeout(t *testing.T) {
	assert.Zero(t, ValidateTimeout(0))
	assert.Zero(t, ValidateTimeout(-1))
	assert.Equal(t, MinTimeout, ValidateTimeout(MinTimeout/2))
	assert.Equal(t, MaxTimeout, ValidateTimeout(MaxTimeout*2))
	assert.Equal(t, MinTimeout*5, ValidateTimeout(MinTimeout*5))
}
