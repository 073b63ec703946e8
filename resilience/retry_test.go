package resilience

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/deliverly/deliverly-go/core"
)

func retryConfigForTest() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:   3,
		InitialDelay:  time.Millisecond,
		MaxDelay:      10 * time.Millisecond,
		BackoffFactor: 2.0,
		JitterEnabled: false,
	}
}

func TestRetryBasicSuccess(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), retryConfigForTest(), func() error {
		attempts++
		return nil
	})

	if err != nil {
		t.Errorf("Expected success, got error: %v", err)
	}
	if attempts != 1 {
		t.Errorf("Expected 1 attempt, got %d", attempts)
	}
}

func TestRetryEventualSuccess(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), retryConfigForTest(), func() error {
		attempts++
		if attempts < 3 {
			return core.ErrNetworkUnreachable
		}
		return nil
	})

	if err != nil {
		t.Errorf("Expected eventual success, got error: %v", err)
	}
	if attempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts)
	}
}

func TestRetryMaxAttemptsExceeded(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), retryConfigForTest(), func() error {
		attempts++
		return fmt.Errorf("fetch: %w", core.ErrNetworkUnreachable)
	})

	if !errors.Is(err, core.ErrMaxRetries) {
		t.Errorf("Expected ErrMaxRetries, got: %v", err)
	}
	if attempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts)
	}
}

func TestRetryStopsOnNonRetryableError(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), retryConfigForTest(), func() error {
		attempts++
		return fmt.Errorf("cart add: %w", core.ErrServerRejected)
	})

	if !errors.Is(err, core.ErrServerRejected) {
		t.Errorf("Expected ErrServerRejected passthrough, got: %v", err)
	}
	if attempts != 1 {
		t.Errorf("Expected no retries for deterministic error, got %d attempts", attempts)
	}
}

func TestRetryContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Retry(ctx, retryConfigForTest(), func() error {
		return core.ErrNetworkUnreachable
	})

	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got: %v", err)
	}
}

func TestRetryWithCircuitBreakerOpenCircuit(t *testing.T) {
	cb := NewCircuitBreaker(&CircuitBreakerConfig{
		Name:             "test",
		FailureThreshold: 1,
		SleepWindow:      time.Hour,
	})
	cb.RecordFailure()

	calls := 0
	err := RetryWithCircuitBreaker(context.Background(), retryConfigForTest(), cb, func() error {
		calls++
		return nil
	})

	if !errors.Is(err, core.ErrMaxRetries) && !errors.Is(err, core.ErrCircuitOpen) {
		t.Errorf("Expected circuit open failure, got: %v", err)
	}
	if calls != 0 {
		t.Errorf("Expected no calls through an open circuit, got %d", calls)
	}
}

func TestRetryWithCircuitBreakerRecordsOutcomes(t *testing.T) {
	cb := NewCircuitBreaker(&CircuitBreakerConfig{
		Name:             "test",
		FailureThreshold: 2,
		SleepWindow:      time.Hour,
	})

	_ = RetryWithCircuitBreaker(context.Background(), retryConfigForTest(), cb, func() error {
		return core.ErrNetworkUnreachable
	})

	if cb.GetState() != "open" {
		t.Errorf("Expected circuit to open after repeated failures, state: %s", cb.GetState())
	}
}
