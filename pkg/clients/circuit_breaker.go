package clients

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// CircuitState represents the state of a circuit breaker
type CircuitState int32

const (
	// StateClosed allows all requests to pass through
	StateClosed CircuitState = iota
	// StateOpen blocks all requests
	StateOpen
	// StateHalfOpen allows a limited number of requests to test if the service has recovered
	StateHalfOpen
)

// String returns a human-readable state name
func (s CircuitState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig is the configuration for circuit breaker
type CircuitBreakerConfig struct {
	FailureThreshold int           // Consecutive failures before opening
	SuccessThreshold int           // Consecutive successes before closing
	Timeout          time.Duration // Timeout before probing in half-open state
}

// CircuitBreaker implements the circuit breaker pattern for upstream
// requests to prevent cascading failures.
type CircuitBreaker struct {
	config CircuitBreakerConfig
	logger *zap.Logger

	state         int32
	nextRetryTime time.Time

	consecutiveFailures  int32
	consecutiveSuccesses int32
	halfOpenLimit        int32
	halfOpenCounter      int32

	mu sync.Mutex
}

// NewCircuitBreaker creates a new circuit breaker in the closed state
func NewCircuitBreaker(config CircuitBreakerConfig, logger *zap.Logger) *CircuitBreaker {
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = 5
	}
	if config.SuccessThreshold <= 0 {
		config.SuccessThreshold = 3
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &CircuitBreaker{
		config:        config,
		logger:        logger.With(zap.String("component", "circuit_breaker")),
		state:         int32(StateClosed),
		halfOpenLimit: 5,
	}
}

// Execute runs a function with circuit breaker protection.
// If the circuit is open, it returns an error immediately without
// executing the function.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if !cb.Allow() {
		return fmt.Errorf("circuit breaker is open")
	}

	err := fn()
	if err != nil {
		cb.RecordFailure()
		return err
	}

	cb.RecordSuccess()
	return nil
}

// Allow determines if a request should be allowed based on the current state
func (cb *CircuitBreaker) Allow() bool {
	switch CircuitState(atomic.LoadInt32(&cb.state)) {
	case StateClosed:
		return true

	case StateOpen:
		cb.mu.Lock()
		shouldRetry := time.Now().After(cb.nextRetryTime)
		cb.mu.Unlock()

		if shouldRetry {
			cb.transitionTo(StateHalfOpen)
			return cb.allowHalfOpen()
		}
		return false

	case StateHalfOpen:
		return cb.allowHalfOpen()

	default:
		return false
	}
}

// allowHalfOpen limits the number of probe requests in the half-open state
func (cb *CircuitBreaker) allowHalfOpen() bool {
	return atomic.AddInt32(&cb.halfOpenCounter, 1) <= cb.halfOpenLimit
}

// RecordSuccess records a successful request
func (cb *CircuitBreaker) RecordSuccess() {
	atomic.StoreInt32(&cb.consecutiveFailures, 0)
	successes := atomic.AddInt32(&cb.consecutiveSuccesses, 1)

	if CircuitState(atomic.LoadInt32(&cb.state)) == StateHalfOpen &&
		successes >= int32(cb.config.SuccessThreshold) {
		cb.transitionTo(StateClosed)
	}
}

// RecordFailure records a failed request
func (cb *CircuitBreaker) RecordFailure() {
	atomic.StoreInt32(&cb.consecutiveSuccesses, 0)
	failures := atomic.AddInt32(&cb.consecutiveFailures, 1)

	state := CircuitState(atomic.LoadInt32(&cb.state))
	if state == StateHalfOpen || (state == StateClosed && failures >= int32(cb.config.FailureThreshold)) {
		cb.transitionTo(StateOpen)
	}
}

// transitionTo moves the breaker to a new state
func (cb *CircuitBreaker) transitionTo(state CircuitState) {
	old := CircuitState(atomic.SwapInt32(&cb.state, int32(state)))
	if old == state {
		return
	}

	cb.mu.Lock()
	if state == StateOpen {
		cb.nextRetryTime = time.Now().Add(cb.config.Timeout)
	}
	cb.mu.Unlock()

	atomic.StoreInt32(&cb.halfOpenCounter, 0)
	atomic.StoreInt32(&cb.consecutiveSuccesses, 0)

	cb.logger.Info("circuit breaker state change",
		zap.String("from", old.String()),
		zap.String("to", state.String()))
}

// State returns the current circuit state
func (cb *CircuitBreaker) State() CircuitState {
	return CircuitState(atomic.LoadInt32(&cb.state))
}

// GetState returns a snapshot of the breaker state for metrics
func (cb *CircuitBreaker) GetState() CircuitBreakerState {
	return CircuitBreakerState{
		State:                cb.State().String(),
		ConsecutiveFailures:  atomic.LoadInt32(&cb.consecutiveFailures),
		ConsecutiveSuccesses: atomic.LoadInt32(&cb.consecutiveSuccesses),
	}
}

// Reset returns the breaker to the closed state
func (cb *CircuitBreaker) Reset() {
	cb.transitionTo(StateClosed)
	atomic.StoreInt32(&cb.consecutiveFailures, 0)
}

// CircuitBreakerState is a snapshot of breaker state for metrics
type CircuitBreakerState struct {
	State                string `json:"state"`
	ConsecutiveFailures  int32  `json:"consecutive_failures"`
	ConsecutiveSuccesses int32  `json:"consecutive_successes"`
}
