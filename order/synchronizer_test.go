package order

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deliverly/deliverly-go/core"
	"github.com/deliverly/deliverly-go/gateway"
	"github.com/deliverly/deliverly-go/internal/apitest"
	"github.com/deliverly/deliverly-go/session"
)

type fixture struct {
	server   *apitest.Server
	sessions *session.Manager
	sync     *Synchronizer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	server := apitest.NewServer()
	t.Cleanup(server.Close)
	server.AddUser("u1", "tok-u1")
	server.AddUser("d1", "tok-d1")

	sessions := session.NewManager(nil, session.NewMemoryPersistence(), &core.NoOpLogger{})
	gw := gateway.NewOrderGateway(server.URL(), server.Client(), &core.NoOpLogger{})
	return &fixture{
		server:   server,
		sessions: sessions,
		sync:     NewSynchronizer(gw, sessions),
	}
}

func (f *fixture) loginAs(t *testing.T, userID, token string, role core.Role) {
	t.Helper()
	err := f.sessions.SetIdentity(context.Background(), core.Identity{
		UserID: userID, Token: token, Role: role,
	})
	require.NoError(t, err)
}

func TestRefreshAsCustomerListsOwnOrdersNewestFirst(t *testing.T) {
	f := newFixture(t)
	f.loginAs(t, "u1", "tok-u1", core.RoleCustomer)
	f.server.SeedOrder("u1", core.Order{
		OrderID: "old", Status: core.StatusPending, OrderTime: 1000,
		Food: core.FoodSnapshot{ID: "f1", Name: "Margherita"}, Quantity: 1,
	})
	f.server.SeedOrder("u1", core.Order{
		OrderID: "new", Status: core.StatusProcessing, OrderTime: 2000,
		Food: core.FoodSnapshot{ID: "f2", Name: "Caesar Salad"}, Quantity: 2,
	})

	require.NoError(t, f.sync.Refresh(context.Background()))

	orders := f.sync.Orders()
	require.Len(t, orders, 2)
	assert.Equal(t, "new", orders[0].OrderID)
	assert.Equal(t, "old", orders[1].OrderID)
	assert.Equal(t, 1, f.server.Calls("order/fetch/user-wise"))
	assert.Zero(t, f.server.Calls("order/fetch/delivery-wise"))
}

func TestRefreshAsDeliveryAgentListsAssignedOrders(t *testing.T) {
	f := newFixture(t)
	f.loginAs(t, "d1", "tok-d1", core.RoleDelivery)
	f.server.SeedOrder("u1", core.Order{
		OrderID: "o1", Status: core.StatusProcessing, OrderTime: 1000,
		Food: core.FoodSnapshot{ID: "f1"}, Quantity: 1,
	})
	f.server.AssignOrder("o1", core.DeliveryPerson{ID: "d1", Name: "Sam"})

	require.NoError(t, f.sync.Refresh(context.Background()))

	orders := f.sync.Orders()
	require.Len(t, orders, 1)
	assert.Equal(t, "o1", orders[0].OrderID)
	assert.Equal(t, 1, f.server.Calls("order/fetch/delivery-wise"))
	assert.Zero(t, f.server.Calls("order/fetch/user-wise"))
}

func TestRefreshWithoutIdentityYieldsEmptyList(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.sync.Refresh(context.Background()))

	assert.Empty(t, f.sync.Orders())
	assert.Zero(t, f.server.Calls("order/fetch/user-wise"))
}

func TestMarkDeliveredStampsClientClock(t *testing.T) {
	f := newFixture(t)
	f.loginAs(t, "d1", "tok-d1", core.RoleDelivery)
	f.server.SeedOrder("u1", core.Order{
		OrderID: "o1", Status: core.StatusProcessing, OrderTime: 1000,
		Food: core.FoodSnapshot{ID: "f1"}, Quantity: 1,
	})
	f.server.AssignOrder("o1", core.DeliveryPerson{ID: "d1"})
	require.NoError(t, f.sync.Refresh(context.Background()))

	fixed := time.Date(2025, 3, 14, 18, 45, 0, 0, time.UTC)
	f.sync.SetClock(func() time.Time { return fixed })

	require.NoError(t, f.sync.MarkDelivered(context.Background(), "o1"))

	orders := f.sync.Orders()
	require.Len(t, orders, 1)
	assert.Equal(t, core.StatusDelivered, orders[0].Status)
	assert.Equal(t, "2025-03-14", orders[0].DeliveryDate)
	assert.Equal(t, "18:45", orders[0].DeliveryTime)

	status, ok := f.server.OrderStatus("o1")
	require.True(t, ok)
	assert.Equal(t, core.StatusDelivered, status)
}

func TestMarkDeliveredRefreshesWholesale(t *testing.T) {
	f := newFixture(t)
	f.loginAs(t, "d1", "tok-d1", core.RoleDelivery)
	f.server.SeedOrder("u1", core.Order{
		OrderID: "o1", Status: core.StatusProcessing, OrderTime: 1000,
		Food: core.FoodSnapshot{ID: "f1"}, Quantity: 1,
	})
	f.server.AssignOrder("o1", core.DeliveryPerson{ID: "d1"})
	require.NoError(t, f.sync.Refresh(context.Background()))
	require.Len(t, f.sync.Orders(), 1)

	// An order assigned after the last refresh must surface through the
	// refresh a confirmed delivery triggers.
	f.server.SeedOrder("u1", core.Order{
		OrderID: "o2", Status: core.StatusProcessing, OrderTime: 2000,
		Food: core.FoodSnapshot{ID: "f2"}, Quantity: 1,
	})
	f.server.AssignOrder("o2", core.DeliveryPerson{ID: "d1"})

	require.NoError(t, f.sync.MarkDelivered(context.Background(), "o1"))

	orders := f.sync.Orders()
	require.Len(t, orders, 2)
	assert.Equal(t, "o2", orders[0].OrderID)
	assert.Equal(t, core.StatusProcessing, orders[0].Status)
	assert.Equal(t, "o1", orders[1].OrderID)
	assert.Equal(t, core.StatusDelivered, orders[1].Status)
}

func TestDeliveredStatusReachesCustomerHistory(t *testing.T) {
	f := newFixture(t)
	f.loginAs(t, "d1", "tok-d1", core.RoleDelivery)
	// Two orders so the second append grows the server's backing store.
	f.server.SeedOrder("u1", core.Order{
		OrderID: "o1", Status: core.StatusProcessing, OrderTime: 1000,
		Food: core.FoodSnapshot{ID: "f1"}, Quantity: 1,
	})
	f.server.SeedOrder("u1", core.Order{
		OrderID: "o2", Status: core.StatusPending, OrderTime: 2000,
		Food: core.FoodSnapshot{ID: "f2"}, Quantity: 1,
	})
	f.server.AssignOrder("o1", core.DeliveryPerson{ID: "d1"})
	require.NoError(t, f.sync.Refresh(context.Background()))

	require.NoError(t, f.sync.MarkDelivered(context.Background(), "o1"))

	// The customer's user-wise view must observe the same transition.
	customerSessions := session.NewManager(nil, session.NewMemoryPersistence(), &core.NoOpLogger{})
	require.NoError(t, customerSessions.SetIdentity(context.Background(), core.Identity{
		UserID: "u1", Token: "tok-u1", Role: core.RoleCustomer,
	}))
	customerGW := gateway.NewOrderGateway(f.server.URL(), f.server.Client(), &core.NoOpLogger{})
	customerSync := NewSynchronizer(customerGW, customerSessions)
	require.NoError(t, customerSync.Refresh(context.Background()))

	orders := customerSync.Orders()
	require.Len(t, orders, 2)
	assert.Equal(t, core.StatusPending, orders[0].Status)
	assert.Equal(t, "o1", orders[1].OrderID)
	assert.Equal(t, core.StatusDelivered, orders[1].Status)
}

func TestMarkDeliveredFailureLeavesStatusUntouched(t *testing.T) {
	f := newFixture(t)
	f.loginAs(t, "d1", "tok-d1", core.RoleDelivery)
	f.server.SeedOrder("u1", core.Order{
		OrderID: "o1", Status: core.StatusProcessing, OrderTime: 1000,
		Food: core.FoodSnapshot{ID: "f1"}, Quantity: 1,
	})
	f.server.AssignOrder("o1", core.DeliveryPerson{ID: "d1"})
	require.NoError(t, f.sync.Refresh(context.Background()))

	f.server.Fail("order/deliver", apitest.FailServerError, 1)
	err := f.sync.MarkDelivered(context.Background(), "o1")
	require.Error(t, err)

	// No optimistic flip on the delivery path.
	orders := f.sync.Orders()
	require.Len(t, orders, 1)
	assert.Equal(t, core.StatusProcessing, orders[0].Status)
	status, _ := f.server.OrderStatus("o1")
	assert.Equal(t, core.StatusProcessing, status)
}

func TestMarkDeliveredRejectsCustomerRole(t *testing.T) {
	f := newFixture(t)
	f.loginAs(t, "u1", "tok-u1", core.RoleCustomer)

	err := f.sync.MarkDelivered(context.Background(), "o1")
	assert.True(t, core.IsValidation(err))
	assert.Zero(t, f.server.Calls("order/deliver"))
}

func TestAppendKeepsDescendingOrder(t *testing.T) {
	f := newFixture(t)
	f.loginAs(t, "u1", "tok-u1", core.RoleCustomer)
	f.server.SeedOrder("u1", core.Order{
		OrderID: "o1", Status: core.StatusPending, OrderTime: 1000,
		Food: core.FoodSnapshot{ID: "f1"}, Quantity: 1,
	})
	require.NoError(t, f.sync.Refresh(context.Background()))

	f.sync.Append(core.Order{
		OrderID: "o2", Status: core.StatusPending, OrderTime: 3000,
		Food: core.FoodSnapshot{ID: "f2"}, Quantity: 1,
	})

	orders := f.sync.Orders()
	require.Len(t, orders, 2)
	assert.Equal(t, "o2", orders[0].OrderID)
}

func TestIdentitySwitchClearsOrders(t *testing.T) {
	f := newFixture(t)
	f.loginAs(t, "u1", "tok-u1", core.RoleCustomer)
	f.server.SeedOrder("u1", core.Order{
		OrderID: "o1", Status: core.StatusPending, OrderTime: 1000,
		Food: core.FoodSnapshot{ID: "f1"}, Quantity: 1,
	})
	require.NoError(t, f.sync.Refresh(context.Background()))
	require.NotEmpty(t, f.sync.Orders())

	f.loginAs(t, "d1", "tok-d1", core.RoleDelivery)

	assert.Empty(t, f.sync.Orders())
}

func TestUnauthorizedRefreshRequestsLogout(t *testing.T) {
	f := newFixture(t)
	f.loginAs(t, "u1", "revoked", core.RoleCustomer)

	err := f.sync.Refresh(context.Background())
	require.Error(t, err)
	assert.True(t, core.IsAuthError(err))
	_, ok := f.sessions.Identity()
	assert.False(t, ok)
}
