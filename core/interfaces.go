package core

import (
	"context"
)

// Logger interface - minimal logging interface shared by every component.
type Logger interface {
	Info(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Debug(msg string, fields map[string]interface{})
}

// SessionStore owns the authenticated identity. All other components hold
// it read-only: a component noticing an invalid token must call
// RequestLogout, never clear identity itself.
type SessionStore interface {
	// Identity returns the current identity. ok is false when no session
	// is active.
	Identity() (identity Identity, ok bool)

	// Epoch returns a counter that increases on every identity transition
	// (login, logout, user switch). A response captured under an older
	// epoch must be discarded rather than applied.
	Epoch() uint64

	// OnChange registers a listener invoked synchronously on every
	// identity transition. active is false after logout.
	OnChange(fn func(identity Identity, active bool))

	// RequestLogout asks the store to tear the session down, typically in
	// response to a rejected token.
	RequestLogout()
}

// CartGateway is the stateless request/response boundary for the four cart
// operations. No retries happen here; retry policy belongs to the
// synchronizer. Every call attaches the bearer token from identity and
// fails with ErrUnauthenticated before the network when the token is
// missing.
type CartGateway interface {
	FetchCart(ctx context.Context, identity Identity) ([]CartLine, error)
	AddCartLine(ctx context.Context, identity Identity, foodID string, quantity int) (cartID string, err error)
	UpdateCartLine(ctx context.Context, identity Identity, cartID string, quantity int) error
	DeleteCartLine(ctx context.Context, identity Identity, cartID string) error
}

// OrderGateway is the request/response boundary for order operations.
type OrderGateway interface {
	FetchOrdersForUser(ctx context.Context, identity Identity) ([]Order, error)
	FetchOrdersForDeliveryAgent(ctx context.Context, identity Identity) ([]Order, error)
	CreateOrder(ctx context.Context, identity Identity, req CreateOrderRequest) (orderID string, err error)
	UpdateDeliveryStatus(ctx context.Context, identity Identity, req DeliveryStatusRequest) error
}

// CreateOrderRequest is the single order-create request that represents
// payment plus order placement from the client's perspective. The cart
// lines travel with it because the server is authoritative for pricing and
// availability at order time.
type CreateOrderRequest struct {
	Payment   PaymentDetails `json:"cardDetails"`
	Amount    float64        `json:"amount"`
	Cart      []CartLine     `json:"cart"`
	RequestID string         `json:"requestId,omitempty"`
}

// DeliveryStatusRequest carries a delivery-agent status transition with a
// client-computed timestamp.
type DeliveryStatusRequest struct {
	OrderID      string      `json:"orderId"`
	Status       OrderStatus `json:"status"`
	DeliveryDate string      `json:"deliveryDate"`
	DeliveryTime string      `json:"deliveryTime"`
}

// AuthGateway is the login/register boundary. These calls carry no bearer
// token; a successful login yields the identity the session store will own.
type AuthGateway interface {
	Login(ctx context.Context, email, password string, role Role) (Identity, error)
	Register(ctx context.Context, req RegisterRequest) error
}

// RegisterRequest mirrors the remote registration payload.
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"emailId"`
	Password string `json:"password"`
	PhoneNo  string `json:"phoneNo,omitempty"`
	Address  string `json:"address,omitempty"`
	Role     Role   `json:"role"`
}

// CircuitBreaker guards a remote dependency. Implementations decide when
// to fail fast based on recorded outcomes.
type CircuitBreaker interface {
	Execute(ctx context.Context, fn func() error) error
	CanExecute() bool
	RecordSuccess()
	RecordFailure()
	GetState() string
}

// SnapshotCache stores the last server-confirmed cart snapshot per user.
// It is a read-side affordance only and never substitutes for a refresh.
type SnapshotCache interface {
	Get(ctx context.Context, userID string) (CartSnapshot, bool, error)
	Put(ctx context.Context, userID string, snapshot CartSnapshot) error
	Delete(ctx context.Context, userID string) error
}
