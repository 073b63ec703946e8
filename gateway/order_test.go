package gateway

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deliverly/deliverly-go/core"
	"github.com/deliverly/deliverly-go/internal/apitest"
)

func newOrderFixture(t *testing.T) (*apitest.Server, *OrderGateway) {
	t.Helper()
	server := apitest.NewServer()
	t.Cleanup(server.Close)
	server.AddUser("u1", "tok-u1")
	server.AddUser("d1", "tok-d1")
	gw := NewOrderGateway(server.URL(), &http.Client{Timeout: 5 * time.Second}, &core.NoOpLogger{})
	return server, gw
}

func TestOrderGatewayFetchForUser(t *testing.T) {
	server, gw := newOrderFixture(t)
	server.SeedOrder("u1", core.Order{Status: core.StatusPending, OrderTime: 111, Quantity: 1})

	orders, err := gw.FetchOrdersForUser(context.Background(), testIdentity)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, core.StatusPending, orders[0].Status)
}

func TestOrderGatewayFetchForDeliveryAgent(t *testing.T) {
	server, gw := newOrderFixture(t)
	server.SeedOrder("u1", core.Order{OrderID: "o1", Status: core.StatusProcessing})
	server.AssignOrder("o1", core.DeliveryPerson{ID: "d1", PhoneNo: "+700"})

	agent := core.Identity{UserID: "d1", Token: "tok-d1", Role: core.RoleDelivery}
	orders, err := gw.FetchOrdersForDeliveryAgent(context.Background(), agent)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, "o1", orders[0].OrderID)
}

func TestOrderGatewayCreateOrder(t *testing.T) {
	server, gw := newOrderFixture(t)

	orderID, err := gw.CreateOrder(context.Background(), testIdentity, core.CreateOrderRequest{
		Payment: core.PaymentDetails{CardName: "A", CardNumber: "4111", ValidThrough: "12/27", CVV: "123"},
		Amount:  250,
		Cart: []core.CartLine{
			{CartID: "c1", FoodID: "f1", Food: core.FoodSnapshot{ID: "f1", Price: 125}, Quantity: 2},
		},
		RequestID: "req-1",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, orderID)
	assert.Equal(t, 1, server.Calls("order/add"))
}

func TestOrderGatewayUpdateDeliveryStatus(t *testing.T) {
	server, gw := newOrderFixture(t)
	server.SeedOrder("u1", core.Order{OrderID: "o1", Status: core.StatusProcessing})
	server.AssignOrder("o1", core.DeliveryPerson{ID: "d1"})

	agent := core.Identity{UserID: "d1", Token: "tok-d1", Role: core.RoleDelivery}
	err := gw.UpdateDeliveryStatus(context.Background(), agent, core.DeliveryStatusRequest{
		OrderID:      "o1",
		Status:       core.StatusDelivered,
		DeliveryDate: "2026-09-01",
		DeliveryTime: "14:05",
	})
	require.NoError(t, err)

	status, ok := server.OrderStatus("o1")
	require.True(t, ok)
	assert.Equal(t, core.StatusDelivered, status)
}

func TestOrderGatewayMissingOrderIsRejected(t *testing.T) {
	_, gw := newOrderFixture(t)

	agent := core.Identity{UserID: "d1", Token: "tok-d1"}
	err := gw.UpdateDeliveryStatus(context.Background(), agent, core.DeliveryStatusRequest{
		OrderID: "ghost",
		Status:  core.StatusDelivered,
	})
	assert.ErrorIs(t, err, core.ErrServerRejected)
}

func TestOrderGatewayRequiresToken(t *testing.T) {
	server, gw := newOrderFixture(t)

	_, err := gw.CreateOrder(context.Background(), core.Identity{UserID: "u1"}, core.CreateOrderRequest{})
	assert.ErrorIs(t, err, core.ErrUnauthenticated)
	assert.Zero(t, server.Calls("order/add"))
}
