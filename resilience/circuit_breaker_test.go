package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/deliverly/deliverly-go/core"
)

func TestCircuitBreakerOpensAfterThreshold(t *testing.T) {
	cb := NewCircuitBreaker(&CircuitBreakerConfig{
		Name:             "cart-api",
		FailureThreshold: 3,
		SleepWindow:      time.Hour,
	})

	for i := 0; i < 2; i++ {
		cb.RecordFailure()
	}
	if !cb.CanExecute() {
		t.Fatalf("circuit opened before the threshold")
	}

	cb.RecordFailure()
	if cb.CanExecute() {
		t.Errorf("circuit did not open at the threshold")
	}
	if cb.GetState() != "open" {
		t.Errorf("expected open state, got %s", cb.GetState())
	}
}

func TestCircuitBreakerSuccessResetsFailureCount(t *testing.T) {
	cb := NewCircuitBreaker(&CircuitBreakerConfig{
		Name:             "cart-api",
		FailureThreshold: 2,
		SleepWindow:      time.Hour,
	})

	cb.RecordFailure()
	cb.RecordSuccess()
	cb.RecordFailure()

	if cb.GetState() != "closed" {
		t.Errorf("expected closed after interleaved success, got %s", cb.GetState())
	}
}

func TestCircuitBreakerHalfOpenRecovery(t *testing.T) {
	cb := NewCircuitBreaker(&CircuitBreakerConfig{
		Name:             "cart-api",
		FailureThreshold: 1,
		SleepWindow:      time.Millisecond,
		HalfOpenRequests: 2,
	})

	cb.RecordFailure()
	if cb.GetState() != "open" {
		t.Fatalf("expected open, got %s", cb.GetState())
	}

	time.Sleep(5 * time.Millisecond)

	// First probe transitions to half-open.
	if !cb.CanExecute() {
		t.Fatalf("expected a probe after the sleep window")
	}
	if cb.GetState() != "half-open" {
		t.Fatalf("expected half-open, got %s", cb.GetState())
	}
	if !cb.CanExecute() {
		t.Fatalf("expected a second probe in half-open")
	}
	if cb.CanExecute() {
		t.Errorf("expected probe limit to be enforced in half-open")
	}

	cb.RecordSuccess()
	cb.RecordSuccess()
	if cb.GetState() != "closed" {
		t.Errorf("expected closed after successful probes, got %s", cb.GetState())
	}
}

func TestCircuitBreakerHalfOpenFailureReopens(t *testing.T) {
	cb := NewCircuitBreaker(&CircuitBreakerConfig{
		Name:             "cart-api",
		FailureThreshold: 1,
		SleepWindow:      time.Millisecond,
	})

	cb.RecordFailure()
	time.Sleep(5 * time.Millisecond)
	if !cb.CanExecute() {
		t.Fatalf("expected a probe after the sleep window")
	}

	cb.RecordFailure()
	if cb.GetState() != "open" {
		t.Errorf("expected reopen after failed probe, got %s", cb.GetState())
	}
}

func TestCircuitBreakerExecute(t *testing.T) {
	cb := NewCircuitBreaker(&CircuitBreakerConfig{
		Name:             "cart-api",
		FailureThreshold: 1,
		SleepWindow:      time.Hour,
	})

	err := cb.Execute(context.Background(), func() error {
		return core.ErrNetworkUnreachable
	})
	if !errors.Is(err, core.ErrNetworkUnreachable) {
		t.Fatalf("expected underlying error, got %v", err)
	}

	err = cb.Execute(context.Background(), func() error { return nil })
	if !errors.Is(err, core.ErrCircuitOpen) {
		t.Errorf("expected ErrCircuitOpen, got %v", err)
	}
}

func TestCircuitBreakerIgnoresDeterministicErrors(t *testing.T) {
	cb := NewCircuitBreaker(&CircuitBreakerConfig{
		Name:             "cart-api",
		FailureThreshold: 1,
		SleepWindow:      time.Hour,
	})

	_ = cb.Execute(context.Background(), func() error {
		return core.ErrValidation
	})
	if cb.GetState() != "closed" {
		t.Errorf("validation errors must not open the circuit, state: %s", cb.GetState())
	}

	_ = cb.Execute(context.Background(), func() error {
		return core.ErrUnauthenticated
	})
	if cb.GetState() != "closed" {
		t.Errorf("auth errors must not open the circuit, state: %s", cb.GetState())
	}
}
