package session

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deliverly/deliverly-go/core"
	"github.com/deliverly/deliverly-go/gateway"
	"github.com/deliverly/deliverly-go/internal/apitest"
)

func newManagerFixture(t *testing.T) (*apitest.Server, *Manager) {
	t.Helper()
	server := apitest.NewServer()
	t.Cleanup(server.Close)
	server.AddCredentials("a@b.c", "secret", "u1", "tok-u1")
	auth := gateway.NewAuthGateway(server.URL(), &http.Client{Timeout: 5 * time.Second}, &core.NoOpLogger{})
	return server, NewManager(auth, NewMemoryPersistence(), &core.NoOpLogger{})
}

func TestManagerLoginInstallsIdentity(t *testing.T) {
	_, mgr := newManagerFixture(t)

	if _, ok := mgr.Identity(); ok {
		t.Fatalf("expected no identity before login")
	}

	identity, err := mgr.Login(context.Background(), "a@b.c", "secret", core.RoleCustomer)
	require.NoError(t, err)
	assert.Equal(t, "u1", identity.UserID)

	got, ok := mgr.Identity()
	require.True(t, ok)
	assert.Equal(t, "tok-u1", got.Token)
}

func TestManagerLoginFailureLeavesSessionEmpty(t *testing.T) {
	_, mgr := newManagerFixture(t)

	_, err := mgr.Login(context.Background(), "a@b.c", "wrong", core.RoleCustomer)
	require.Error(t, err)
	_, ok := mgr.Identity()
	assert.False(t, ok)
}

func TestManagerEpochAdvancesOnEveryTransition(t *testing.T) {
	_, mgr := newManagerFixture(t)
	start := mgr.Epoch()

	_, err := mgr.Login(context.Background(), "a@b.c", "secret", core.RoleCustomer)
	require.NoError(t, err)
	afterLogin := mgr.Epoch()
	assert.Greater(t, afterLogin, start)

	require.NoError(t, mgr.Logout(context.Background()))
	assert.Greater(t, mgr.Epoch(), afterLogin)
}

func TestManagerListenersRunSynchronously(t *testing.T) {
	_, mgr := newManagerFixture(t)

	var events []bool
	mgr.OnChange(func(identity core.Identity, active bool) {
		events = append(events, active)
	})

	_, err := mgr.Login(context.Background(), "a@b.c", "secret", core.RoleCustomer)
	require.NoError(t, err)
	require.NoError(t, mgr.Logout(context.Background()))

	assert.Equal(t, []bool{true, false}, events)
}

func TestManagerRequestLogoutClearsIdentity(t *testing.T) {
	_, mgr := newManagerFixture(t)
	_, err := mgr.Login(context.Background(), "a@b.c", "secret", core.RoleCustomer)
	require.NoError(t, err)

	mgr.RequestLogout()
	_, ok := mgr.Identity()
	assert.False(t, ok)
}

func TestManagerSetIdentityValidation(t *testing.T) {
	mgr := NewManager(nil, nil, nil)

	err := mgr.SetIdentity(context.Background(), core.Identity{UserID: "u1"})
	assert.ErrorIs(t, err, core.ErrValidation)

	err = mgr.SetIdentity(context.Background(), core.Identity{UserID: "u1", Token: "tok"})
	require.NoError(t, err)
	got, ok := mgr.Identity()
	require.True(t, ok)
	assert.Equal(t, "u1", got.UserID)
}

func TestManagerRestoreFromPersistence(t *testing.T) {
	persist := NewMemoryPersistence()
	require.NoError(t, persist.Save(context.Background(), core.Identity{UserID: "u1", Token: "tok"}))

	mgr := NewManager(nil, persist, nil)
	require.NoError(t, mgr.Restore(context.Background()))

	got, ok := mgr.Identity()
	require.True(t, ok)
	assert.Equal(t, "u1", got.UserID)
}

func TestManagerLoginWithoutGateway(t *testing.T) {
	mgr := NewManager(nil, nil, nil)
	_, err := mgr.Login(context.Background(), "a@b.c", "pw", core.RoleCustomer)
	assert.ErrorIs(t, err, core.ErrValidation)
}
