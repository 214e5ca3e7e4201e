package oracle

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCircuitBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	cb := NewCircuitBreaker(3, time.Minute)
	failure := errors.New("downstream failure")

	for i := 0; i < 3; i++ {
		err := cb.Call(func() error { return failure })
		assert.ErrorIs(t, err, failure)
	}
	assert.Equal(t, CircuitOpen, cb.State())

	err := cb.Call(func() error { return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen, "open circuit rejects without calling")
}

func TestCircuitBreaker_SuccessResetsFailureCount(t *testing.T) {
	cb := NewCircuitBreaker(3, time.Minute)
	failure := errors.New("failure")

	require.Error(t, cb.Call(func() error { return failure }))
	require.Error(t, cb.Call(func() error { return failure }))
	require.NoError(t, cb.Call(func() error { return nil }))
	require.Error(t, cb.Call(func() error { return failure }))
	require.Error(t, cb.Call(func() error { return failure }))

	assert.Equal(t, CircuitClosed, cb.State(), "success resets the consecutive failure count")
}

func TestCircuitBreaker_HalfOpenProbe(t *testing.T) {
	cb := NewCircuitBreaker(1, 10*time.Millisecond)

	require.Error(t, cb.Call(func() error { return errors.New("failure") }))
	require.Equal(t, CircuitOpen, cb.State())

	time.Sleep(20 * time.Millisecond)

	// First probe after cooldown fails and reopens the circuit.
	require.Error(t, cb.Call(func() error { return errors.New("still down") }))
	assert.Equal(t, CircuitOpen, cb.State())

	time.Sleep(20 * time.Millisecond)

	// A successful probe closes it again.
	require.NoError(t, cb.Call(func() error { return nil }))
	assert.Equal(t, CircuitClosed, cb.State())
}

// recordingObserver captures circuit breaker events for assertions.
type recordingObserver struct {
	mu        sync.Mutex
	successes int
	failures  int
	trips     int
	lastState CircuitState
}

func (o *recordingObserver) RecordState(state CircuitState) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.lastState = state
}

func (o *recordingObserver) RecordTrip() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.trips++
}

func (o *recordingObserver) RecordSuccess() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.successes++
}

func (o *recordingObserver) RecordFailure() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.failures++
}

func TestCircuitBreakerMiddleware_ReportsToObserver(t *testing.T) {
	mock := NewMockProvider()
	mock.Err = errors.New("failure")
	observer := &recordingObserver{}
	wrapped := CircuitBreakerMiddlewareWithObserver(2, time.Minute, observer)(mock)

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		_, _, _, err := wrapped.Generate(ctx, "prompt", nil)
		require.Error(t, err)
	}

	_, _, _, err := wrapped.Generate(ctx, "prompt", nil)
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, 2, mock.Calls(), "open circuit stops reaching the provider")

	observer.mu.Lock()
	defer observer.mu.Unlock()
	assert.Equal(t, 2, observer.failures)
	assert.Equal(t, 1, observer.trips)
	assert.Equal(t, CircuitOpen, observer.lastState)
}

func TestCircuitBreakerMiddleware_PassesThroughOnSuccess(t *testing.T) {
	mock := NewMockProvider()
	wrapped := CircuitBreakerMiddleware(2, time.Minute)(mock)

	response, tokensIn, tokensOut, err := wrapped.Generate(context.Background(), "prompt", nil)
	require.NoError(t, err)
	assert.Equal(t, "test response", response)
	assert.Equal(t, 10, tokensIn)
	assert.Equal(t, 20, tokensOut)
}
