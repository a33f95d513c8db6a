// Package payment talks to the hosted payment gateway. Credentials stay
// in this process; callers only see order sessions and normalized status.
package payment

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/ambiora/techfest-backend/internal/apperr"
	"github.com/ambiora/techfest-backend/internal/config"
)

// Gateway order states.
const (
	StatusPaid       = "PAID"
	StatusActive     = "ACTIVE"
	StatusExpired    = "EXPIRED"
	StatusTerminated = "TERMINATED"
	StatusCancelled  = "CANCELLED"
)

type CustomerDetails struct {
	CustomerID    string `json:"customer_id"`
	CustomerName  string `json:"customer_name,omitempty"`
	CustomerEmail string `json:"customer_email,omitempty"`
	CustomerPhone string `json:"customer_phone"`
}

type OrderMeta struct {
	ReturnURL string `json:"return_url,omitempty"`
	NotifyURL string `json:"notify_url,omitempty"`
}

type OrderRequest struct {
	OrderID  string           `json:"order_id"`
	Amount   float64          `json:"order_amount"`
	Currency string           `json:"order_currency"`
	Customer *CustomerDetails `json:"customer_details"`
	Meta     OrderMeta        `json:"order_meta"`
	Note     string           `json:"order_note"`
}

// OrderSession is what the client needs to open the hosted checkout.
type OrderSession struct {
	OrderID          string `json:"order_id"`
	PaymentSessionID string `json:"payment_session_id"`
	OrderStatus      string `json:"order_status"`
}

// OrderStatus is the normalized result of a status lookup. Success is
// true only for PAID.
type OrderStatus struct {
	OrderID string  `json:"order_id"`
	Status  string  `json:"order_status"`
	Amount  float64 `json:"order_amount"`
	Success bool    `json:"success"`
}

// Failed reports whether the gateway will never settle this order.
func (s OrderStatus) Failed() bool {
	switch strings.ToUpper(s.Status) {
	case StatusExpired, StatusTerminated, StatusCancelled:
		return true
	}
	return false
}

// OrderUnknown reports whether err is the gateway answering 404 for an
// order lookup.
func OrderUnknown(err error) bool {
	return apperr.Is(err, apperr.KindUpstream) && apperr.HTTPStatus(err) == http.StatusNotFound
}

func NormalizeStatus(orderID, status string, amount float64) OrderStatus {
	status = strings.ToUpper(strings.TrimSpace(status))
	return OrderStatus{OrderID: orderID, Status: status, Amount: amount, Success: status == StatusPaid}
}

type Gateway interface {
	Name() string
	// Configured is false when credentials are missing; every call then
	// fails with a config error.
	Configured() bool
	CreateOrder(ctx context.Context, req OrderRequest) (OrderSession, error)
	GetOrderStatus(ctx context.Context, orderID string) (OrderStatus, error)
}

// NewGateway selects the provider named by PAYMENT_PROVIDER.
func NewGateway(cfg config.Config) (Gateway, error) {
	switch cfg.PaymentProvider {
	case "cashfree":
		return NewCashfree(cfg.Cashfree, nil), nil
	default:
		return nil, fmt.Errorf("unknown payment provider: %s", cfg.PaymentProvider)
	}
}
