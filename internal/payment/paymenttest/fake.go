// Package paymenttest provides an in-memory payment.Gateway for tests.
package paymenttest

import (
	"context"
	"net/http"
	"sync"

	"github.com/ambiora/techfest-backend/internal/apperr"
	"github.com/ambiora/techfest-backend/internal/payment"
)

// Gateway records created orders and answers status lookups from a
// settable per-order status. Unknown orders report ACTIVE unless marked
// missing.
type Gateway struct {
	mu        sync.Mutex
	statuses  map[string]string
	missing   map[string]bool
	lookups   map[string]int
	Orders    []payment.OrderRequest
	CreateErr error
	StatusErr error
	Unset     bool
}

func New() *Gateway {
	return &Gateway{statuses: map[string]string{}, missing: map[string]bool{}, lookups: map[string]int{}}
}

func (g *Gateway) Name() string { return "fake" }

func (g *Gateway) Configured() bool { return !g.Unset }

// SetStatus sets the gateway-side state of an order (PAID, EXPIRED, ...).
func (g *Gateway) SetStatus(orderID, status string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.statuses[orderID] = status
}

// SetMissing makes status lookups for orderID fail the way the gateway
// answers for an order it has never seen.
func (g *Gateway) SetMissing(orderID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.missing[orderID] = true
}

// Lookups returns how many status lookups orderID has received.
func (g *Gateway) Lookups(orderID string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lookups[orderID]
}

func (g *Gateway) CreateOrder(_ context.Context, req payment.OrderRequest) (payment.OrderSession, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.Unset {
		return payment.OrderSession{}, apperr.Config("Cashfree credentials not configured")
	}
	if g.CreateErr != nil {
		return payment.OrderSession{}, g.CreateErr
	}
	g.Orders = append(g.Orders, req)
	if _, ok := g.statuses[req.OrderID]; !ok {
		g.statuses[req.OrderID] = payment.StatusActive
	}
	return payment.OrderSession{OrderID: req.OrderID, PaymentSessionID: "session_" + req.OrderID, OrderStatus: payment.StatusActive}, nil
}

func (g *Gateway) GetOrderStatus(_ context.Context, orderID string) (payment.OrderStatus, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.Unset {
		return payment.OrderStatus{}, apperr.Config("Cashfree credentials not configured")
	}
	g.lookups[orderID]++
	if g.StatusErr != nil {
		return payment.OrderStatus{}, g.StatusErr
	}
	if g.missing[orderID] {
		return payment.OrderStatus{}, apperr.Upstream(http.StatusNotFound, "order_not_found", "order not found", nil)
	}
	status, ok := g.statuses[orderID]
	if !ok {
		status = payment.StatusActive
	}
	var amount float64
	for _, o := range g.Orders {
		if o.OrderID == orderID {
			amount = o.Amount
		}
	}
	return payment.NormalizeStatus(orderID, status, amount), nil
}

var _ payment.Gateway = (*Gateway)(nil)
