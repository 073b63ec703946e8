package core

import "time"

// Identity is the authenticated user's id and bearer token. An Identity
// exists only while a session is active; absence means "unauthenticated".
// It is owned by the session manager and read-only everywhere else.
type Identity struct {
	UserID string `json:"userId"`
	Token  string `json:"token,omitempty"`
	Role   Role   `json:"role,omitempty"`
}

// Valid reports whether the identity carries both a user id and a token.
func (i Identity) Valid() bool {
	return i.UserID != "" && i.Token != ""
}

// Role distinguishes the two client roles the remote API serves.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleDelivery Role = "delivery"
)

// FoodSnapshot is a read-only projection of a catalog item, embedded by
// value into cart lines and orders. The catalog itself is not managed here.
type FoodSnapshot struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Price       float64 `json:"price"`
	Description string  `json:"description,omitempty"`
	ImageRef    string  `json:"image1,omitempty"`
}

// CartLine is one server-confirmed line of the cart. CartID is the
// server-issued identity of the line and is unique within a snapshot.
// Quantity is always positive; a mutation that would bring it to zero or
// below is a removal, not an update.
type CartLine struct {
	CartID    string       `json:"cartId"`
	FoodID    string       `json:"foodId"`
	Food      FoodSnapshot `json:"food"`
	Quantity  int          `json:"quantity"`
	AddedTime int64        `json:"addedTime,omitempty"`
}

// Subtotal returns price x quantity for this line.
func (l CartLine) Subtotal() float64 {
	return l.Food.Price * float64(l.Quantity)
}

// CartSnapshot is the authoritative client-side copy of the cart. It is
// replaced wholesale on every successful fetch and never left silently
// stale after a failed mutation.
type CartSnapshot struct {
	Lines []CartLine `json:"lines"`
}

// Total returns the sum of price x quantity over all lines.
func (s CartSnapshot) Total() float64 {
	var total float64
	for _, l := range s.Lines {
		total += l.Subtotal()
	}
	return total
}

// Empty reports whether the snapshot holds no lines.
func (s CartSnapshot) Empty() bool {
	return len(s.Lines) == 0
}

// Line returns the line with the given cart id, if present.
func (s CartSnapshot) Line(cartID string) (CartLine, bool) {
	for _, l := range s.Lines {
		if l.CartID == cartID {
			return l, true
		}
	}
	return CartLine{}, false
}

// Clone returns a deep copy so callers can hold a snapshot without racing
// the synchronizer that owns the original.
func (s CartSnapshot) Clone() CartSnapshot {
	out := CartSnapshot{Lines: make([]CartLine, len(s.Lines))}
	copy(out.Lines, s.Lines)
	return out
}

// OrderStatus is the delivery-side lifecycle of an order.
type OrderStatus string

const (
	StatusPending    OrderStatus = "Pending"
	StatusProcessing OrderStatus = "Processing"
	StatusDelivered  OrderStatus = "Delivered"
)

// DeliveryPerson identifies the agent assigned to an order.
type DeliveryPerson struct {
	ID      string `json:"id"`
	Name    string `json:"name,omitempty"`
	PhoneNo string `json:"phoneNo,omitempty"`
}

// Order is immutable from the client's perspective except for status
// transitions driven by the delivery role.
type Order struct {
	OrderID        string          `json:"orderId"`
	Status         OrderStatus     `json:"status"`
	OrderTime      int64           `json:"orderTime"`
	Food           FoodSnapshot    `json:"food"`
	Quantity       int             `json:"quantity"`
	DeliveryPerson *DeliveryPerson `json:"deliveryPerson,omitempty"`
	DeliveryDate   string          `json:"deliveryDate,omitempty"`
	DeliveryTime   string          `json:"deliveryTime,omitempty"`
}

// PaymentDetails carries the card fields the remote payment endpoint
// expects. The client performs no validation beyond presence checks; the
// server is authoritative for everything payment-related.
type PaymentDetails struct {
	CardName     string `json:"cardName"`
	CardNumber   string `json:"cardNumber"`
	ValidThrough string `json:"validThrough"`
	CVV          string `json:"cvv"`
}

// Complete reports whether all card fields are present.
func (p PaymentDetails) Complete() bool {
	return p.CardName != "" && p.CardNumber != "" && p.ValidThrough != "" && p.CVV != ""
}

// EpochMillis converts a wall-clock time to the epoch-milliseconds form the
// remote API uses for orderTime and addedTime.
func EpochMillis(t time.Time) int64 {
	return t.UnixNano() / int64(time.Millisecond)
}
