// Package resilience provides retry and circuit breaker primitives for the
// read path of the client. Mutations are never retried: their recovery
// path is a forced refresh owned by the synchronizers.
package resilience

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/deliverly/deliverly-go/core"
)

// RetryConfig configures retry behavior
type RetryConfig struct {
	MaxAttempts   int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
	JitterEnabled bool
}

// DefaultRetryConfig provides sensible defaults
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:   3,
		InitialDelay:  100 * time.Millisecond,
		MaxDelay:      2 * time.Second,
		BackoffFactor: 2.0,
		JitterEnabled: true,
	}
}

// FromResilienceConfig maps the client configuration onto a RetryConfig.
func FromResilienceConfig(rc core.ResilienceConfig) *RetryConfig {
	cfg := DefaultRetryConfig()
	if rc.MaxAttempts > 0 {
		cfg.MaxAttempts = rc.MaxAttempts
	}
	if rc.InitialDelay > 0 {
		cfg.InitialDelay = rc.InitialDelay
	}
	if rc.MaxDelay > 0 {
		cfg.MaxDelay = rc.MaxDelay
	}
	if rc.BackoffFactor > 0 {
		cfg.BackoffFactor = rc.BackoffFactor
	}
	return cfg
}

// Retry executes fn with exponential backoff. Errors the taxonomy marks
// non-retryable (validation, auth, server rejection) abort immediately:
// repeating a request the server has already answered deterministically
// only burns the sleep window.
func Retry(ctx context.Context, config *RetryConfig, fn func() error) error {
	if config == nil {
		config = DefaultRetryConfig()
	}

	var lastErr error
	delay := config.InitialDelay

	for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := fn()
		if err == nil {
			return nil
		}
		if !core.IsRetryable(err) {
			return err
		}
		lastErr = err

		// Don't sleep after the last attempt
		if attempt == config.MaxAttempts {
			break
		}

		if attempt > 1 {
			delay = time.Duration(float64(delay) * config.BackoffFactor)
			if delay > config.MaxDelay {
				delay = config.MaxDelay
			}
		}

		// Jitter desynchronizes retries from multiple clients
		if config.JitterEnabled {
			jitter := time.Duration(float64(delay) * 0.1 * math.Sin(float64(attempt)))
			delay += jitter
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	return fmt.Errorf("max retry attempts (%d) exceeded for %v: %w", config.MaxAttempts, lastErr, core.ErrMaxRetries)
}

// RetryWithCircuitBreaker combines retry logic with circuit breaker
func RetryWithCircuitBreaker(ctx context.Context, config *RetryConfig, cb core.CircuitBreaker, fn func() error) error {
	return Retry(ctx, config, func() error {
		if !cb.CanExecute() {
			return core.ErrCircuitOpen
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
	})
}

// isBreakerFailure reports whether an error should count toward opening
// the circuit. Deterministic client-side outcomes (validation, missing
// token, not found) say nothing about the remote service's health.
func isBreakerFailure(err error) bool {
	if err == nil {
		return false
	}
	if core.IsValidation(err) || core.IsAuthError(err) || core.IsNotFound(err) {
		return false
	}
	if err == context.Canceled || err == context.DeadlineExceeded {
		return false
	}
	return true
}
