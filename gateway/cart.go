package gateway

import (
	"context"
	"net/http"
	"net/url"

	"github.com/deliverly/deliverly-go/core"
)

// CartGateway wraps the four cart endpoints of the remote API.
type CartGateway struct {
	Gateway
}

// NewCartGateway creates a cart gateway over the shared HTTP client.
func NewCartGateway(baseURL string, client *http.Client, logger core.Logger) *CartGateway {
	return &CartGateway{Gateway: newGateway(baseURL, client, logger)}
}

// wireCartLine is the server's cart line shape. The line id field is "id"
// on the wire but CartID in the domain model.
type wireCartLine struct {
	ID        string            `json:"id"`
	Food      core.FoodSnapshot `json:"food"`
	Quantity  int               `json:"quantity"`
	AddedTime int64             `json:"addedTime"`
}

func (w wireCartLine) toDomain() core.CartLine {
	return core.CartLine{
		CartID:    w.ID,
		FoodID:    w.Food.ID,
		Food:      w.Food,
		Quantity:  w.Quantity,
		AddedTime: w.AddedTime,
	}
}

// FetchCart returns every cart line the server holds for the identity.
func (g *CartGateway) FetchCart(ctx context.Context, identity core.Identity) ([]core.CartLine, error) {
	const op = "gateway.FetchCart"
	if err := requireToken(op, core.KindGateway, identity); err != nil {
		return nil, err
	}

	var payload struct {
		Carts []wireCartLine `json:"carts"`
	}
	query := url.Values{"userId": {identity.UserID}}
	if err := g.do(ctx, op, core.KindGateway, http.MethodGet, "/api/cart/fetch", query, identity.Token, nil, &payload); err != nil {
		return nil, err
	}

	lines := make([]core.CartLine, 0, len(payload.Carts))
	for _, w := range payload.Carts {
		lines = append(lines, w.toDomain())
	}
	return lines, nil
}

// AddCartLine adds quantity of a food to the cart and returns the
// server-issued cart line id.
func (g *CartGateway) AddCartLine(ctx context.Context, identity core.Identity, foodID string, quantity int) (string, error) {
	const op = "gateway.AddCartLine"
	if err := requireToken(op, core.KindGateway, identity); err != nil {
		return "", err
	}

	body := map[string]interface{}{
		"userId":   identity.UserID,
		"foodId":   foodID,
		"quantity": quantity,
	}
	var payload struct {
		CartID string `json:"cartId"`
	}
	if err := g.do(ctx, op, core.KindGateway, http.MethodPost, "/api/cart/add", nil, identity.Token, body, &payload); err != nil {
		return "", err
	}
	return payload.CartID, nil
}

// UpdateCartLine sets the quantity of an existing cart line.
func (g *CartGateway) UpdateCartLine(ctx context.Context, identity core.Identity, cartID string, quantity int) error {
	const op = "gateway.UpdateCartLine"
	if err := requireToken(op, core.KindGateway, identity); err != nil {
		return err
	}

	body := map[string]interface{}{
		"id":       cartID,
		"userId":   identity.UserID,
		"quantity": quantity,
	}
	return g.do(ctx, op, core.KindGateway, http.MethodPut, "/api/cart/update", nil, identity.Token, body, nil)
}

// DeleteCartLine removes a cart line.
func (g *CartGateway) DeleteCartLine(ctx context.Context, identity core.Identity, cartID string) error {
	const op = "gateway.DeleteCartLine"
	if err := requireToken(op, core.KindGateway, identity); err != nil {
		return err
	}

	body := map[string]interface{}{
		"id":     cartID,
		"userId": identity.UserID,
	}
	return g.do(ctx, op, core.KindGateway, http.MethodDelete, "/api/cart/delete", nil, identity.Token, body, nil)
}
