package resilience

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/deliverly/deliverly-go/core"
)

// CircuitState represents the state of the circuit breaker
type CircuitState int

const (
	// StateClosed allows all requests through
	StateClosed CircuitState = iota
	// StateOpen blocks all requests
	StateOpen
	// StateHalfOpen allows limited requests for testing
	StateHalfOpen
)

// String returns the string representation of the state
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

// CircuitBreakerConfig holds configuration for the circuit breaker
type CircuitBreakerConfig struct {
	// Name identifies the circuit breaker in logs
	Name string

	// FailureThreshold is the number of consecutive failures before opening
	FailureThreshold int

	// SleepWindow is how long to wait before entering half-open state
	SleepWindow time.Duration

	// HalfOpenRequests is the number of test requests in half-open state
	HalfOpenRequests int

	// Logger for state transitions
	Logger core.Logger
}

// DefaultCircuitBreakerConfig returns a production-ready configuration.
func DefaultCircuitBreakerConfig(name string) *CircuitBreakerConfig {
	return &CircuitBreakerConfig{
		Name:             name,
		FailureThreshold: 5,
		SleepWindow:      30 * time.Second,
		HalfOpenRequests: 2,
		Logger:           &core.NoOpLogger{},
	}
}

// CircuitBreaker protects one remote dependency. One instance guards the
// whole remote API here: the client talks to a single backend, so a dead
// backend should fail every gateway fast.
type CircuitBreaker struct {
	config *CircuitBreakerConfig

	mu             sync.Mutex
	state          CircuitState
	failures       int
	openedAt       time.Time
	halfOpenInUse  int
	halfOpenPassed int
}

// NewCircuitBreaker creates a circuit breaker from config, applying
// defaults for missing values.
func NewCircuitBreaker(config *CircuitBreakerConfig) *CircuitBreaker {
	if config == nil {
		config = DefaultCircuitBreakerConfig("default")
	}
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = 5
	}
	if config.SleepWindow <= 0 {
		config.SleepWindow = 30 * time.Second
	}
	if config.HalfOpenRequests <= 0 {
		config.HalfOpenRequests = 2
	}
	if config.Logger == nil {
		config.Logger = &core.NoOpLogger{}
	}
	return &CircuitBreaker{config: config, state: StateClosed}
}

// NewCircuitBreakerFromConfig builds a breaker from the client configuration.
func NewCircuitBreakerFromConfig(name string, rc core.ResilienceConfig, logger core.Logger) *CircuitBreaker {
	cfg := DefaultCircuitBreakerConfig(name)
	if rc.FailureThreshold > 0 {
		cfg.FailureThreshold = rc.FailureThreshold
	}
	if rc.SleepWindow > 0 {
		cfg.SleepWindow = rc.SleepWindow
	}
	if rc.HalfOpenRequests > 0 {
		cfg.HalfOpenRequests = rc.HalfOpenRequests
	}
	if logger != nil {
		cfg.Logger = logger
	}
	return NewCircuitBreaker(cfg)
}

// CanExecute reports whether a request may proceed right now. In half-open
// state only a limited number of probes are admitted.
func (cb *CircuitBreaker) CanExecute() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return true
	case StateOpen:
		if time.Since(cb.openedAt) >= cb.config.SleepWindow {
			cb.transition(StateHalfOpen)
			cb.halfOpenInUse = 1
			return true
		}
		return false
	case StateHalfOpen:
		if cb.halfOpenInUse < cb.config.HalfOpenRequests {
			cb.halfOpenInUse++
			return true
		}
		return false
	}
	return false
}

// RecordSuccess records a successful call.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		cb.failures = 0
	case StateHalfOpen:
		cb.halfOpenPassed++
		if cb.halfOpenPassed >= cb.config.HalfOpenRequests {
			cb.transition(StateClosed)
			cb.failures = 0
		}
	}
}

// RecordFailure records a failed call.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		cb.failures++
		if cb.failures >= cb.config.FailureThreshold {
			cb.transition(StateOpen)
			cb.openedAt = time.Now()
		}
	case StateHalfOpen:
		// A failed probe reopens immediately.
		cb.transition(StateOpen)
		cb.openedAt = time.Now()
	}
}

// Execute runs fn with circuit breaker protection.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !cb.CanExecute() {
		return fmt.Errorf("circuit breaker %q rejected request: %w", cb.config.Name, core.ErrCircuitOpen)
	}
	err := fn()
	if err != nil {
		if isBreakerFailure(err) {
			cb.RecordFailure()
		}
		return err
	}
	cb.RecordSuccess()
	return nil
}

// GetState returns the current state name.
func (cb *CircuitBreaker) GetState() string {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state.String()
}

// transition must be called with cb.mu held.
func (cb *CircuitBreaker) transition(to CircuitState) {
	from := cb.state
	if from == to {
		return
	}
	cb.state = to
	if to == StateHalfOpen {
		cb.halfOpenInUse = 0
		cb.halfOpenPassed = 0
	}
	cb.config.Logger.Info("Circuit breaker state change", map[string]interface{}{
		"operation": "circuit_state_change",
		"name":      cb.config.Name,
		"from":      from.String(),
		"to":        to.String(),
	})
}
