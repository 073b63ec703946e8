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

func newAuthFixture(t *testing.T) (*apitest.Server, *AuthGateway) {
	t.Helper()
	server := apitest.NewServer()
	t.Cleanup(server.Close)
	gw := NewAuthGateway(server.URL(), &http.Client{Timeout: 5 * time.Second}, &core.NoOpLogger{})
	return server, gw
}

func TestAuthGatewayLogin(t *testing.T) {
	server, gw := newAuthFixture(t)
	server.AddCredentials("a@b.c", "secret", "u1", "tok-u1")

	identity, err := gw.Login(context.Background(), "a@b.c", "secret", core.RoleCustomer)
	require.NoError(t, err)
	assert.Equal(t, "u1", identity.UserID)
	assert.Equal(t, "tok-u1", identity.Token)
	assert.Equal(t, core.RoleCustomer, identity.Role)
}

func TestAuthGatewayBadCredentials(t *testing.T) {
	server, gw := newAuthFixture(t)
	server.AddCredentials("a@b.c", "secret", "u1", "tok-u1")

	_, err := gw.Login(context.Background(), "a@b.c", "wrong", core.RoleCustomer)
	assert.ErrorIs(t, err, core.ErrServerRejected)
}

func TestAuthGatewayEmptyCredentialsRejectedLocally(t *testing.T) {
	server, gw := newAuthFixture(t)

	_, err := gw.Login(context.Background(), "", "", core.RoleCustomer)
	assert.ErrorIs(t, err, core.ErrValidation)
	assert.Zero(t, server.Calls("user/login"))
}

func TestAuthGatewayRegister(t *testing.T) {
	_, gw := newAuthFixture(t)

	err := gw.Register(context.Background(), core.RegisterRequest{
		Name:     "Alice",
		Email:    "alice@example.com",
		Password: "pw",
		Role:     core.RoleCustomer,
	})
	require.NoError(t, err)

	// Re-registering the same email is a server-side rejection.
	err = gw.Register(context.Background(), core.RegisterRequest{
		Name:     "Alice",
		Email:    "alice@example.com",
		Password: "pw",
		Role:     core.RoleCustomer,
	})
	assert.ErrorIs(t, err, core.ErrServerRejected)
}
