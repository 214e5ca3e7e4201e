package oracle

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned when the circuit breaker rejects a request
// without forwarding it to the provider.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitState is the current position of a circuit breaker.
type CircuitState int

const (
	// CircuitClosed passes requests through normally.
	CircuitClosed CircuitState = iota

	// CircuitOpen rejects requests immediately after repeated failures.
	CircuitOpen

	// CircuitHalfOpen lets a probe request through after the cooldown to
	// test whether the provider has recovered.
	CircuitHalfOpen
)

// CircuitBreakerObserver receives circuit breaker events for monitoring.
type CircuitBreakerObserver interface {
	// RecordState reports the state after each request.
	RecordState(state CircuitState)

	// RecordTrip counts requests rejected by an open circuit.
	RecordTrip()

	// RecordSuccess counts requests that completed.
	RecordSuccess()

	// RecordFailure counts requests that failed downstream.
	RecordFailure()
}

// CircuitBreaker opens after maxFailures consecutive errors, rejects
// requests for the cooldown period, then probes with a half-open request.
type CircuitBreaker struct {
	mu           sync.RWMutex
	state        CircuitState
	failureCount int
	maxFailures  int
	cooldown     time.Duration
	lastFailure  time.Time
}

// NewCircuitBreaker builds a closed circuit breaker.
func NewCircuitBreaker(maxFailures int, cooldown time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		state:       CircuitClosed,
		maxFailures: maxFailures,
		cooldown:    cooldown,
	}
}

// Call runs fn through the breaker. An open circuit returns ErrCircuitOpen
// without invoking fn. A half-open probe failure reopens the circuit; a
// success closes it and resets the failure count.
func (cb *CircuitBreaker) Call(fn func() error) error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitOpen:
		if time.Since(cb.lastFailure) < cb.cooldown {
			return ErrCircuitOpen
		}
		cb.state = CircuitHalfOpen
		fallthrough
	case CircuitHalfOpen:
		err := fn()
		if err != nil {
			cb.failureCount++
			cb.lastFailure = time.Now()
			cb.state = CircuitOpen
			return err
		}
		cb.failureCount = 0
		cb.state = CircuitClosed
		return nil
	case CircuitClosed:
		err := fn()
		if err != nil {
			cb.failureCount++
			cb.lastFailure = time.Now()
			if cb.failureCount >= cb.maxFailures {
				cb.state = CircuitOpen
			}
			return err
		}
		cb.failureCount = 0
		return nil
	}
	return nil
}

// State returns the current circuit position.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.state
}

// circuitBreakerProvider routes requests through a shared CircuitBreaker.
type circuitBreakerProvider struct {
	next     Provider
	cb       *CircuitBreaker
	observer CircuitBreakerObserver
}

// CircuitBreakerMiddleware wraps a provider with a circuit breaker that
// opens after maxFailures consecutive errors and cools down before
// probing recovery.
func CircuitBreakerMiddleware(maxFailures int, cooldown time.Duration) Middleware {
	return CircuitBreakerMiddlewareWithObserver(maxFailures, cooldown, nil)
}

// CircuitBreakerMiddlewareWithObserver adds an observer that receives
// state transitions and outcome counts.
func CircuitBreakerMiddlewareWithObserver(maxFailures int, cooldown time.Duration, observer CircuitBreakerObserver) Middleware {
	cb := NewCircuitBreaker(maxFailures, cooldown)

	return func(next Provider) Provider {
		return &circuitBreakerProvider{next: next, cb: cb, observer: observer}
	}
}

// Generate executes the request through the breaker, failing fast with
// ErrCircuitOpen while the circuit is open.
func (c *circuitBreakerProvider) Generate(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error) {
	var response string
	var tokensIn, tokensOut int

	err := c.cb.Call(func() error {
		var err error
		response, tokensIn, tokensOut, err = c.next.Generate(ctx, prompt, opts)
		return err
	})

	if c.observer != nil {
		switch {
		case err == nil:
			c.observer.RecordSuccess()
		case errors.Is(err, ErrCircuitOpen):
			c.observer.RecordTrip()
		default:
			c.observer.RecordFailure()
		}
		c.observer.RecordState(c.cb.State())
	}

	return response, tokensIn, tokensOut, err
}

func (c *circuitBreakerProvider) GetModel() string { return c.next.GetModel() }

func (c *circuitBreakerProvider) SetModel(m string) { c.next.SetModel(m) }
