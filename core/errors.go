package core

import (
	"errors"
	"fmt"
)

// Standard sentinel errors for comparison using errors.Is()
// These are generic errors that can be wrapped with additional context
var (
	// Request preconditions
	ErrUnauthenticated = errors.New("not authenticated")
	ErrValidation      = errors.New("validation rejected")

	// Remote outcomes
	ErrNotFound           = errors.New("resource not found")
	ErrServerRejected     = errors.New("server rejected request")
	ErrNetworkUnreachable = errors.New("network unreachable")

	// Resilience
	ErrCircuitOpen = errors.New("circuit breaker is open")
	ErrMaxRetries  = errors.New("maximum retries exceeded")

	// State
	ErrSubmitInFlight  = errors.New("checkout already submitting")
	ErrEmptyCart       = errors.New("cart is empty")
	ErrIdentityChanged = errors.New("identity changed during operation")
	ErrClosed          = errors.New("client is closed")
)

// ErrorKind categorizes errors by the component that raised them.
type ErrorKind string

const (
	KindGateway  ErrorKind = "gateway"
	KindSession  ErrorKind = "session"
	KindCart     ErrorKind = "cart"
	KindOrder    ErrorKind = "order"
	KindCheckout ErrorKind = "checkout"
	KindCache    ErrorKind = "cache"
	KindConfig   ErrorKind = "config"
)

// ClientError provides structured error information with context.
// It implements the error interface and supports error wrapping.
type ClientError struct {
	Op      string    // Operation that failed (e.g., "cart.UpdateQuantity")
	Kind    ErrorKind // Component that raised the error
	ID      string    // Optional ID of the entity involved (cartId, orderId)
	Message string    // Human-readable message, often the server's responseMessage
	Err     error     // Underlying error for wrapping
}

// Error returns the string representation of the error.
func (e *ClientError) Error() string {
	switch {
	case e.Op != "" && e.ID != "" && e.Err != nil:
		return fmt.Sprintf("%s [%s]: %v", e.Op, e.ID, e.Err)
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	case e.Message != "":
		return e.Message
	case e.Err != nil:
		return e.Err.Error()
	}
	return fmt.Sprintf("%s error", e.Kind)
}

// Unwrap returns the underlying error for use with errors.Is/As.
func (e *ClientError) Unwrap() error {
	return e.Err
}

// NewClientError creates a new ClientError.
func NewClientError(op string, kind ErrorKind, err error) *ClientError {
	return &ClientError{Op: op, Kind: kind, Err: err}
}

// IsRetryable reports whether an error is a transient network or
// availability issue worth retrying. Validation and auth failures are
// deterministic and never retryable.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrNetworkUnreachable) ||
		errors.Is(err, ErrCircuitOpen)
}

// IsAuthError reports whether an error means the bearer token is missing
// or no longer accepted. Callers seeing this must request a logout through
// the session manager rather than mutate identity themselves.
func IsAuthError(err error) bool {
	return errors.Is(err, ErrUnauthenticated)
}

// IsValidation reports whether an error was rejected client-side before
// any network call was made.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsNotFound reports whether the referenced cart line or order no longer
// exists server-side.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
