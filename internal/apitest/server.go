// Package apitest provides an in-memory fake of the remote ordering API
// for tests. It mirrors the envelope shapes of the real service and
// supports per-endpoint failure injection so reconciliation paths can be
// exercised without a live backend.
package apitest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/deliverly/deliverly-go/core"
)

// FailureMode selects how an injected failure presents itself.
type FailureMode int

const (
	// FailNone disables failure injection.
	FailNone FailureMode = iota
	// FailRejected answers 200 with success=false.
	FailRejected
	// FailServerError answers 500.
	FailServerError
	// FailNetwork drops the connection without a response.
	FailNetwork
)

type wireLine struct {
	ID        string            `json:"id"`
	Food      core.FoodSnapshot `json:"food"`
	Quantity  int               `json:"quantity"`
	AddedTime int64             `json:"addedTime"`
}

// Server is the fake remote API. All exported methods are safe for
// concurrent use.
type Server struct {
	httpServer *httptest.Server

	mu        sync.Mutex
	tokens    map[string]string        // token -> userID
	carts     map[string][]wireLine    // userID -> lines
	orders    map[string][]*core.Order // userID -> orders, same pointers as byID
	assigned  map[string][]string      // deliveryPersonID -> orderIDs
	byID      map[string]*core.Order   // orderID -> order
	failures  map[string]FailureMode   // endpoint suffix -> mode
	failLeft  map[string]int           // endpoint suffix -> remaining injected failures (0 = unlimited)
	calls     map[string]int           // endpoint suffix -> count
	sequence  []string                 // endpoint suffixes in arrival order
	passwords map[string]string        // email -> password
	emailIDs  map[string]string        // email -> userID
	nextCart  int
	nextOrder int
}

// NewServer starts the fake API.
func NewServer() *Server {
	s := &Server{
		tokens:    make(map[string]string),
		carts:     make(map[string][]wireLine),
		orders:    make(map[string][]*core.Order),
		assigned:  make(map[string][]string),
		byID:      make(map[string]*core.Order),
		failures:  make(map[string]FailureMode),
		failLeft:  make(map[string]int),
		calls:     make(map[string]int),
		passwords: make(map[string]string),
		emailIDs:  make(map[string]string),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/cart/fetch", s.handleCartFetch)
	mux.HandleFunc("/api/cart/add", s.handleCartAdd)
	mux.HandleFunc("/api/cart/update", s.handleCartUpdate)
	mux.HandleFunc("/api/cart/delete", s.handleCartDelete)
	mux.HandleFunc("/api/order/fetch/user-wise", s.handleOrdersUser)
	mux.HandleFunc("/api/order/fetch/delivery-wise", s.handleOrdersDelivery)
	mux.HandleFunc("/api/order/add", s.handleOrderAdd)
	mux.HandleFunc("/api/order/deliver", s.handleOrderDeliver)
	mux.HandleFunc("/api/user/login", s.handleLogin)
	mux.HandleFunc("/api/user/register", s.handleRegister)
	s.httpServer = httptest.NewServer(mux)
	return s
}

// URL returns the base URL of the fake API.
func (s *Server) URL() string { return s.httpServer.URL }

// Client returns an HTTP client configured for the fake API.
func (s *Server) Client() *http.Client { return s.httpServer.Client() }

// Close shuts the fake API down.
func (s *Server) Close() { s.httpServer.Close() }

// AddUser registers a token for a user so authenticated calls succeed.
func (s *Server) AddUser(userID, token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[token] = userID
}

// AddCredentials registers a login for the auth endpoint.
func (s *Server) AddCredentials(email, password, userID, token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.passwords[email] = password
	s.emailIDs[email] = userID
	s.tokens[token] = userID
}

// SeedCartLine places a line directly in a user's server-side cart and
// returns its id.
func (s *Server) SeedCartLine(userID string, food core.FoodSnapshot, quantity int) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextCart++
	id := fmt.Sprintf("c%d", s.nextCart)
	s.carts[userID] = append(s.carts[userID], wireLine{
		ID:        id,
		Food:      food,
		Quantity:  quantity,
		AddedTime: time.Now().UnixMilli(),
	})
	return id
}

// SeedOrder places an order directly in the store.
func (s *Server) SeedOrder(userID string, order core.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if order.OrderID == "" {
		s.nextOrder++
		order.OrderID = fmt.Sprintf("o%d", s.nextOrder)
	}
	// One pointer shared by the per-user list and the id index, so a
	// status update through either is visible to both.
	stored := &order
	s.orders[userID] = append(s.orders[userID], stored)
	s.byID[order.OrderID] = stored
	if order.DeliveryPerson != nil {
		s.assigned[order.DeliveryPerson.ID] = append(s.assigned[order.DeliveryPerson.ID], order.OrderID)
	}
}

// AssignOrder attaches an order to a delivery person.
func (s *Server) AssignOrder(orderID string, person core.DeliveryPerson) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o, ok := s.byID[orderID]; ok {
		p := person
		o.DeliveryPerson = &p
		s.assigned[person.ID] = append(s.assigned[person.ID], orderID)
	}
}

// CartQuantities returns cartID -> quantity for a user's server cart.
func (s *Server) CartQuantities(userID string) map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int, len(s.carts[userID]))
	for _, l := range s.carts[userID] {
		out[l.ID] = l.Quantity
	}
	return out
}

// OrderStatus returns the stored status of an order.
func (s *Server) OrderStatus(orderID string) (core.OrderStatus, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o, ok := s.byID[orderID]; ok {
		return o.Status, true
	}
	return "", false
}

// Fail injects a failure mode for an endpoint suffix such as
// "cart/update". A count of 0 keeps failing until cleared.
func (s *Server) Fail(endpoint string, mode FailureMode, count int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if mode == FailNone {
		delete(s.failures, endpoint)
		delete(s.failLeft, endpoint)
		return
	}
	s.failures[endpoint] = mode
	s.failLeft[endpoint] = count
}

// Calls returns how many requests hit an endpoint suffix.
func (s *Server) Calls(endpoint string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[endpoint]
}

// CallSequence returns the endpoint suffixes in the order requests
// arrived.
func (s *Server) CallSequence() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.sequence...)
}

func endpointOf(path string) string {
	return strings.TrimPrefix(path, "/api/")
}

// begin records the call, applies failure injection, and authenticates.
// It returns the userID and true when the handler should proceed.
func (s *Server) begin(w http.ResponseWriter, r *http.Request, needAuth bool) (string, bool) {
	endpoint := endpointOf(r.URL.Path)

	s.mu.Lock()
	s.calls[endpoint]++
	s.sequence = append(s.sequence, endpoint)
	mode, injected := s.failures[endpoint]
	if injected {
		if left, limited := s.failLeft[endpoint], s.failLeft[endpoint] > 0; limited {
			s.failLeft[endpoint] = left - 1
			if left-1 == 0 {
				delete(s.failures, endpoint)
				delete(s.failLeft, endpoint)
			}
		}
	}
	var userID string
	if needAuth {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		userID = s.tokens[token]
	}
	s.mu.Unlock()

	if injected {
		switch mode {
		case FailRejected:
			writeJSON(w, http.StatusOK, map[string]interface{}{
				"success":         false,
				"responseMessage": "injected rejection",
			})
		case FailServerError:
			writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
				"success":         false,
				"responseMessage": "injected server error",
			})
		case FailNetwork:
			hj, ok := w.(http.Hijacker)
			if ok {
				conn, _, err := hj.Hijack()
				if err == nil {
					conn.Close()
				}
			}
		}
		return "", false
	}

	if needAuth && userID == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]interface{}{
			"success":         false,
			"responseMessage": "invalid token",
		})
		return "", false
	}
	return userID, true
}

func writeJSON(w http.ResponseWriter, status int, body map[string]interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (s *Server) handleCartFetch(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.begin(w, r, true); !ok {
		return
	}
	userID := r.URL.Query().Get("userId")
	s.mu.Lock()
	lines := append([]wireLine(nil), s.carts[userID]...)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"carts":   lines,
	})
}

func (s *Server) handleCartAdd(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.begin(w, r, true); !ok {
		return
	}
	var req struct {
		UserID   string `json:"userId"`
		FoodID   string `json:"foodId"`
		Quantity int    `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.FoodID == "" || req.Quantity < 1 {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"success":         false,
			"responseMessage": "invalid cart request",
		})
		return
	}
	s.mu.Lock()
	s.nextCart++
	id := fmt.Sprintf("c%d", s.nextCart)
	s.carts[req.UserID] = append(s.carts[req.UserID], wireLine{
		ID:        id,
		Food:      core.FoodSnapshot{ID: req.FoodID},
		Quantity:  req.Quantity,
		AddedTime: time.Now().UnixMilli(),
	})
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"cartId":  id,
	})
}

func (s *Server) handleCartUpdate(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.begin(w, r, true); !ok {
		return
	}
	var req struct {
		ID       string `json:"id"`
		UserID   string `json:"userId"`
		Quantity int    `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{"success": false, "responseMessage": "bad request"})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.carts[req.UserID] {
		if s.carts[req.UserID][i].ID == req.ID {
			s.carts[req.UserID][i].Quantity = req.Quantity
			writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":         false,
		"responseMessage": "cart item not found",
	})
}

func (s *Server) handleCartDelete(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.begin(w, r, true); !ok {
		return
	}
	var req struct {
		ID     string `json:"id"`
		UserID string `json:"userId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{"success": false, "responseMessage": "bad request"})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	lines := s.carts[req.UserID]
	for i := range lines {
		if lines[i].ID == req.ID {
			s.carts[req.UserID] = append(lines[:i:i], lines[i+1:]...)
			writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":         false,
		"responseMessage": "cart item not found",
	})
}

func (s *Server) handleOrdersUser(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.begin(w, r, true); !ok {
		return
	}
	userID := r.URL.Query().Get("userId")
	s.mu.Lock()
	orders := make([]core.Order, 0, len(s.orders[userID]))
	for _, o := range s.orders[userID] {
		orders = append(orders, *o)
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"orders":  orders,
	})
}

func (s *Server) handleOrdersDelivery(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.begin(w, r, true); !ok {
		return
	}
	personID := r.URL.Query().Get("deliveryPersonId")
	s.mu.Lock()
	var orders []core.Order
	for _, orderID := range s.assigned[personID] {
		if o, ok := s.byID[orderID]; ok {
			orders = append(orders, *o)
		}
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"orders":  orders,
	})
}

func (s *Server) handleOrderAdd(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.begin(w, r, true); !ok {
		return
	}
	userID := r.URL.Query().Get("userId")
	var req core.CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Cart) == 0 {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"success":         false,
			"responseMessage": "invalid order request",
		})
		return
	}

	s.mu.Lock()
	// One order per cart line, the way the real service splits a checkout.
	var firstID string
	for _, line := range req.Cart {
		s.nextOrder++
		id := fmt.Sprintf("o%d", s.nextOrder)
		if firstID == "" {
			firstID = id
		}
		stored := &core.Order{
			OrderID:   id,
			Status:    core.StatusPending,
			OrderTime: time.Now().UnixMilli(),
			Food:      line.Food,
			Quantity:  line.Quantity,
		}
		s.orders[userID] = append(s.orders[userID], stored)
		s.byID[id] = stored
	}
	// Checkout empties the server-side cart.
	s.carts[userID] = nil
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":         true,
		"orderId":         firstID,
		"responseMessage": "order placed",
	})
}

func (s *Server) handleOrderDeliver(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.begin(w, r, true); !ok {
		return
	}
	var req struct {
		OrderID          string `json:"orderId"`
		DeliveryPersonID string `json:"deliveryPersonId"`
		Status           string `json:"status"`
		DeliveryDate     string `json:"deliveryDate"`
		DeliveryTime     string `json:"deliveryTime"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{"success": false, "responseMessage": "bad request"})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.byID[req.OrderID]
	if !ok {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"success":         false,
			"responseMessage": "order not found",
		})
		return
	}
	o.Status = core.OrderStatus(req.Status)
	o.DeliveryDate = req.DeliveryDate
	o.DeliveryTime = req.DeliveryTime
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.begin(w, r, false); !ok {
		return
	}
	var req struct {
		EmailID  string `json:"emailId"`
		Password string `json:"password"`
		Role     string `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{"success": false, "responseMessage": "bad request"})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.passwords[req.EmailID] != req.Password || req.Password == "" {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"success":         false,
			"responseMessage": "invalid credentials",
		})
		return
	}
	userID := s.emailIDs[req.EmailID]
	var token string
	for t, u := range s.tokens {
		if u == userID {
			token = t
			break
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"user":     map[string]interface{}{"id": userID},
		"jwtToken": token,
	})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.begin(w, r, false); !ok {
		return
	}
	var req core.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" {
		writeJSON(w, http.StatusOK, map[string]interface{}{"success": false, "responseMessage": "bad request"})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.emailIDs[req.Email]; exists {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"success":         false,
			"responseMessage": "email already registered",
		})
		return
	}
	userID := "u-" + req.Email
	s.emailIDs[req.Email] = userID
	s.passwords[req.Email] = req.Password
	s.tokens["tok-"+req.Email] = userID
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "responseMessage": "registered"})
}
