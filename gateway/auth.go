package gateway

import (
	"context"
	"fmt"
	"net/http"

	"github.com/deliverly/deliverly-go/core"
)

// AuthGateway wraps the login and register endpoints. These calls carry
// no bearer token; a successful login yields the identity the session
// manager will own.
type AuthGateway struct {
	Gateway
}

// NewAuthGateway creates an auth gateway over the shared HTTP client.
func NewAuthGateway(baseURL string, client *http.Client, logger core.Logger) *AuthGateway {
	return &AuthGateway{Gateway: newGateway(baseURL, client, logger)}
}

// Login exchanges credentials for an identity.
func (g *AuthGateway) Login(ctx context.Context, email, password string, role core.Role) (core.Identity, error) {
	const op = "gateway.Login"
	if email == "" || password == "" {
		return core.Identity{}, &core.ClientError{
			Op:   op,
			Kind: core.KindGateway,
			Err:  fmt.Errorf("email and password are required: %w", core.ErrValidation),
		}
	}

	body := map[string]interface{}{
		"emailId":  email,
		"password": password,
		"role":     role,
	}
	var payload struct {
		User struct {
			ID string `json:"id"`
		} `json:"user"`
		JWTToken string `json:"jwtToken"`
	}
	if err := g.do(ctx, op, core.KindGateway, http.MethodPost, "/api/user/login", nil, "", body, &payload); err != nil {
		return core.Identity{}, err
	}
	if payload.User.ID == "" || payload.JWTToken == "" {
		return core.Identity{}, &core.ClientError{
			Op:   op,
			Kind: core.KindGateway,
			Err:  fmt.Errorf("login response missing user or token: %w", core.ErrServerRejected),
		}
	}
	return core.Identity{UserID: payload.User.ID, Token: payload.JWTToken, Role: role}, nil
}

// Register creates a new account. The caller logs in afterwards; the
// remote API does not return a token on registration.
func (g *AuthGateway) Register(ctx context.Context, req core.RegisterRequest) error {
	const op = "gateway.Register"
	if req.Email == "" || req.Password == "" || req.Name == "" {
		return &core.ClientError{
			Op:   op,
			Kind: core.KindGateway,
			Err:  fmt.Errorf("name, email and password are required: %w", core.ErrValidation),
		}
	}
	return g.do(ctx, op, core.KindGateway, http.MethodPost, "/api/user/register", nil, "", req, nil)
}
