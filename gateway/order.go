package gateway

import (
	"context"
	"net/http"
	"net/url"

	"github.com/deliverly/deliverly-go/core"
)

// OrderGateway wraps the order endpoints of the remote API: the two
// role-specific fetches, order creation (the checkout transaction), and
// the delivery-agent status update.
type OrderGateway struct {
	Gateway
}

// NewOrderGateway creates an order gateway over the shared HTTP client.
func NewOrderGateway(baseURL string, client *http.Client, logger core.Logger) *OrderGateway {
	return &OrderGateway{Gateway: newGateway(baseURL, client, logger)}
}

// FetchOrdersForUser returns all orders placed by the identity's user.
func (g *OrderGateway) FetchOrdersForUser(ctx context.Context, identity core.Identity) ([]core.Order, error) {
	const op = "gateway.FetchOrdersForUser"
	if err := requireToken(op, core.KindGateway, identity); err != nil {
		return nil, err
	}

	var payload struct {
		Orders []core.Order `json:"orders"`
	}
	query := url.Values{"userId": {identity.UserID}}
	if err := g.do(ctx, op, core.KindGateway, http.MethodGet, "/api/order/fetch/user-wise", query, identity.Token, nil, &payload); err != nil {
		return nil, err
	}
	return payload.Orders, nil
}

// FetchOrdersForDeliveryAgent returns all orders assigned to the
// identity's delivery person.
func (g *OrderGateway) FetchOrdersForDeliveryAgent(ctx context.Context, identity core.Identity) ([]core.Order, error) {
	const op = "gateway.FetchOrdersForDeliveryAgent"
	if err := requireToken(op, core.KindGateway, identity); err != nil {
		return nil, err
	}

	var payload struct {
		Orders []core.Order `json:"orders"`
	}
	query := url.Values{"deliveryPersonId": {identity.UserID}}
	if err := g.do(ctx, op, core.KindGateway, http.MethodGet, "/api/order/fetch/delivery-wise", query, identity.Token, nil, &payload); err != nil {
		return nil, err
	}
	return payload.Orders, nil
}

// CreateOrder submits the checkout transaction: payment details, the
// coordinator-computed amount, and the cart snapshot the server will
// reprice authoritatively.
func (g *OrderGateway) CreateOrder(ctx context.Context, identity core.Identity, req core.CreateOrderRequest) (string, error) {
	const op = "gateway.CreateOrder"
	if err := requireToken(op, core.KindGateway, identity); err != nil {
		return "", err
	}

	var payload struct {
		OrderID string `json:"orderId"`
	}
	query := url.Values{"userId": {identity.UserID}}
	if err := g.do(ctx, op, core.KindGateway, http.MethodPost, "/api/order/add", query, identity.Token, req, &payload); err != nil {
		return "", err
	}
	return payload.OrderID, nil
}

// UpdateDeliveryStatus records a delivery-side status transition with the
// client-computed timestamp carried in req.
func (g *OrderGateway) UpdateDeliveryStatus(ctx context.Context, identity core.Identity, req core.DeliveryStatusRequest) error {
	const op = "gateway.UpdateDeliveryStatus"
	if err := requireToken(op, core.KindGateway, identity); err != nil {
		return err
	}

	body := map[string]interface{}{
		"orderId":          req.OrderID,
		"deliveryPersonId": identity.UserID,
		"status":           req.Status,
		"deliveryDate":     req.DeliveryDate,
		"deliveryTime":     req.DeliveryTime,
	}
	return g.do(ctx, op, core.KindGateway, http.MethodPut, "/api/order/deliver", nil, identity.Token, body, nil)
}
