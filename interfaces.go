package deliverly

import (
	"github.com/deliverly/deliverly-go/checkout"
	"github.com/deliverly/deliverly-go/core"
)

// Re-export core types so typical applications only import the root
// package.
type (
	Identity     = core.Identity
	Role         = core.Role
	FoodSnapshot = core.FoodSnapshot
	CartLine     = core.CartLine
	CartSnapshot = core.CartSnapshot

	Order          = core.Order
	OrderStatus    = core.OrderStatus
	DeliveryPerson = core.DeliveryPerson

	PaymentDetails  = core.PaymentDetails
	RegisterRequest = core.RegisterRequest

	Config      = core.Config
	Option      = core.Option
	Logger      = core.Logger
	ClientError = core.ClientError

	CheckoutState = checkout.State
)

// Re-export constants
const (
	RoleCustomer = core.RoleCustomer
	RoleDelivery = core.RoleDelivery

	StatusPending    = core.StatusPending
	StatusProcessing = core.StatusProcessing
	StatusDelivered  = core.StatusDelivered

	CheckoutIdle       = checkout.StateIdle
	CheckoutSubmitting = checkout.StateSubmitting
	CheckoutSucceeded  = checkout.StateSucceeded
	CheckoutFailed     = checkout.StateFailed
)

// Re-export configuration options and error helpers
var (
	WithBaseURL     = core.WithBaseURL
	WithHTTPTimeout = core.WithHTTPTimeout
	WithRedisURL    = core.WithRedisURL
	WithLogLevel    = core.WithLogLevel
	WithTelemetry   = core.WithTelemetry
	WithResilience  = core.WithResilience
	LoadConfigFile  = core.LoadConfigFile

	IsRetryable  = core.IsRetryable
	IsAuthError  = core.IsAuthError
	IsValidation = core.IsValidation
	IsNotFound   = core.IsNotFound
)

// Re-export sentinel errors
var (
	ErrUnauthenticated    = core.ErrUnauthenticated
	ErrValidation         = core.ErrValidation
	ErrNotFound           = core.ErrNotFound
	ErrServerRejected     = core.ErrServerRejected
	ErrNetworkUnreachable = core.ErrNetworkUnreachable
	ErrCircuitOpen        = core.ErrCircuitOpen
	ErrMaxRetries         = core.ErrMaxRetries
	ErrSubmitInFlight     = core.ErrSubmitInFlight
	ErrEmptyCart          = core.ErrEmptyCart
	ErrIdentityChanged    = core.ErrIdentityChanged
)
