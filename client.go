// Package deliverly is the client SDK for the Deliverly ordering API.
// It keeps a mobile or desktop client's cart, order history, and session
// state synchronized with the remote service.
//
// Most applications need only the root package:
//
//	client, err := deliverly.New(deliverly.WithBaseURL("https://api.deliverly.io"))
//
// The subpackages can be imported directly when finer control is needed:
//   - github.com/deliverly/deliverly-go/core - types, errors, config
//   - github.com/deliverly/deliverly-go/gateway - raw API bindings
//   - github.com/deliverly/deliverly-go/session - identity lifecycle
//   - github.com/deliverly/deliverly-go/cart - cart synchronization
//   - github.com/deliverly/deliverly-go/order - order synchronization
//   - github.com/deliverly/deliverly-go/checkout - submit flow
package deliverly

import (
	"context"
	"io"

	"github.com/deliverly/deliverly-go/cart"
	"github.com/deliverly/deliverly-go/checkout"
	"github.com/deliverly/deliverly-go/core"
	"github.com/deliverly/deliverly-go/gateway"
	"github.com/deliverly/deliverly-go/order"
	"github.com/deliverly/deliverly-go/resilience"
	"github.com/deliverly/deliverly-go/session"
)

// Client is the assembled SDK: gateways behind one circuit breaker, a
// session manager, both synchronizers, and the checkout coordinator, all
// sharing one configuration.
type Client struct {
	config   *core.Config
	logger   core.Logger
	auth     *gateway.AuthGateway
	sessions *session.Manager
	cart     *cart.Synchronizer
	orders   *order.Synchronizer
	checkout *checkout.Coordinator
	closers  []io.Closer
}

// New builds a ready-to-use client. Configuration is resolved from
// defaults, then DELIVERLY_* environment variables, then options, in
// that order. When a Redis URL is configured the session and the cart
// read-cache persist there; otherwise both live in process memory.
func New(opts ...core.Option) (*Client, error) {
	cfg, err := core.NewConfig(opts...)
	if err != nil {
		return nil, err
	}

	logger := core.NewProductionLogger(cfg.Logging)
	breaker := resilience.NewCircuitBreakerFromConfig("remote-api", cfg.Resilience, logger)
	httpClient := gateway.NewHTTPClient(cfg, breaker)
	retry := resilience.FromResilienceConfig(cfg.Resilience)

	authGW := gateway.NewAuthGateway(cfg.BaseURL, httpClient, logger)
	cartGW := gateway.NewCartGateway(cfg.BaseURL, httpClient, logger)
	orderGW := gateway.NewOrderGateway(cfg.BaseURL, httpClient, logger)

	c := &Client{config: cfg, logger: logger, auth: authGW}

	var persist session.Persistence
	if cfg.Redis.URL != "" {
		redisPersist, err := session.NewRedisPersistence(cfg.Redis.URL, cfg.Redis.TTL)
		if err != nil {
			return nil, err
		}
		persist = redisPersist
		c.closers = append(c.closers, redisPersist)
	} else {
		persist = session.NewMemoryPersistence()
	}
	c.sessions = session.NewManager(authGW, persist, logger)

	c.cart = cart.NewSynchronizer(cartGW, c.sessions)
	c.cart.SetLogger(logger)
	c.cart.SetRetryConfig(retry)
	if cfg.Redis.URL != "" {
		cache, err := cart.NewRedisCache(cfg.Redis.URL, cfg.Redis.TTL)
		if err != nil {
			return nil, err
		}
		c.cart.SetCache(cache)
		c.closers = append(c.closers, cache)
	} else {
		c.cart.SetCache(cart.NewMemoryCache())
	}

	c.orders = order.NewSynchronizer(orderGW, c.sessions)
	c.orders.SetLogger(logger)
	c.orders.SetRetryConfig(retry)

	c.checkout = checkout.NewCoordinator(orderGW, c.sessions, c.cart, c.orders)
	c.checkout.SetLogger(logger)

	logger.Info("Deliverly client initialized", map[string]interface{}{
		"operation": "client_init",
		"base_url":  cfg.BaseURL,
		"redis":     cfg.Redis.URL != "",
		"telemetry": cfg.Telemetry.Enabled,
	})
	return c, nil
}

// Session returns the session manager.
func (c *Client) Session() *session.Manager { return c.sessions }

// Cart returns the cart synchronizer.
func (c *Client) Cart() *cart.Synchronizer { return c.cart }

// Orders returns the order synchronizer.
func (c *Client) Orders() *order.Synchronizer { return c.orders }

// Checkout returns the checkout coordinator.
func (c *Client) Checkout() *checkout.Coordinator { return c.checkout }

// Login authenticates and installs the resulting identity. The cart and
// order synchronizers observe the transition and reset before this
// returns.
func (c *Client) Login(ctx context.Context, email, password string, role core.Role) (core.Identity, error) {
	return c.sessions.Login(ctx, email, password, role)
}

// Register creates a new account. It does not log in; call Login with
// the new credentials afterwards.
func (c *Client) Register(ctx context.Context, req core.RegisterRequest) error {
	return c.auth.Register(ctx, req)
}

// Logout ends the session and clears persisted identity.
func (c *Client) Logout(ctx context.Context) error {
	return c.sessions.Logout(ctx)
}

// Restore loads a previously persisted identity, typically at app start.
func (c *Client) Restore(ctx context.Context) error {
	return c.sessions.Restore(ctx)
}

// Close releases any connections the client owns.
func (c *Client) Close() error {
	var firstErr error
	for _, closer := range c.closers {
		if err := closer.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
