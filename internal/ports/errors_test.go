package ports

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestOracleError_IsRetryable(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
	}{
		{"rate limited", ErrRateLimited, true},
		{"service unavailable", ErrServiceUnavailable, true},
		{"timeout", ErrTimeout, true},
		{"invalid response", ErrInvalidResponse, false},
		{"authentication failed", ErrAuthenticationFailed, false},
		{"arbitrary error", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			oe := NewOracleError("gpt-4o", "complete", tt.err)
			assert.Equal(t, tt.retryable, oe.IsRetryable())
		})
	}
}

func TestOracleError_ErrorMessage(t *testing.T) {
	retryAfter := 2 * time.Second
	oe := &OracleError{
		Model:      "claude-3",
		Operation:  "complete",
		Err:        ErrRateLimited,
		TokensUsed: 128,
		RetryAfter: &retryAfter,
	}

	msg := oe.Error()
	assert.Contains(t, msg, "model=claude-3")
	assert.Contains(t, msg, "tokens_used=128")
	assert.Contains(t, msg, "retry_after=2s")
	assert.True(t, errors.Is(oe, ErrRateLimited), "OracleError should unwrap to its cause")
}
