package payment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ambiora/techfest-backend/internal/apperr"
	"github.com/ambiora/techfest-backend/internal/config"
)

func newTestCashfree(t *testing.T, h http.HandlerFunc) *Cashfree {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewCashfree(config.CashfreeConfig{
		AppID: "app", SecretKey: "secret", APIVersion: "2023-08-01", BaseURL: srv.URL,
	}, srv.Client())
}

func TestCreateOrder(t *testing.T) {
	t.Parallel()

	c := newTestCashfree(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/orders" {
			t.Errorf("Unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("x-client-id") != "app" || r.Header.Get("x-client-secret") != "secret" {
			t.Error("Expected credential headers")
		}
		if r.Header.Get("x-api-version") != "2023-08-01" {
			t.Errorf("Unexpected api version %q", r.Header.Get("x-api-version"))
		}
		var body OrderRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if body.Currency != "INR" {
			t.Errorf("Expected default currency INR, got %q", body.Currency)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"order_id": body.OrderID, "payment_session_id": "session_123", "order_status": "ACTIVE",
		})
	})

	got, err := c.CreateOrder(context.Background(), OrderRequest{
		OrderID: "AMB_1", Amount: 410, Customer: &CustomerDetails{CustomerID: "u1", CustomerPhone: "9999999999"},
	})
	if err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}
	if got.PaymentSessionID != "session_123" || got.OrderStatus != "ACTIVE" {
		t.Errorf("Unexpected session %+v", got)
	}
}

func TestCreateOrderPropagatesUpstreamError(t *testing.T) {
	t.Parallel()

	c := newTestCashfree(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"message":"order with same id is already present","code":"order_already_exists","type":"invalid_request_error"}`))
	})

	_, err := c.CreateOrder(context.Background(), OrderRequest{
		OrderID: "AMB_1", Amount: 10, Customer: &CustomerDetails{CustomerID: "u1"},
	})
	var ae *apperr.Error
	if !asAppErr(err, &ae) {
		t.Fatalf("Expected *apperr.Error, got %v", err)
	}
	if ae.Kind != apperr.KindUpstream || ae.Status != http.StatusConflict {
		t.Errorf("Expected upstream 409, got kind=%v status=%d", ae.Kind, ae.Status)
	}
	if ae.Message != "order with same id is already present" || ae.Code != "order_already_exists" {
		t.Errorf("Expected gateway wording to be kept, got %q / %q", ae.Message, ae.Code)
	}
}

func TestCreateOrderFallbackMessage(t *testing.T) {
	t.Parallel()

	c := newTestCashfree(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	_, err := c.CreateOrder(context.Background(), OrderRequest{
		OrderID: "AMB_1", Amount: 10, Customer: &CustomerDetails{CustomerID: "u1"},
	})
	var ae *apperr.Error
	if !asAppErr(err, &ae) || ae.Message != "Failed to create order with Cashfree" {
		t.Errorf("Expected fallback message, got %v", err)
	}
}

func TestCreateOrderValidation(t *testing.T) {
	t.Parallel()

	c := newTestCashfree(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("Gateway must not be called for invalid input")
	})
	for name, req := range map[string]OrderRequest{
		"no order id": {Amount: 1, Customer: &CustomerDetails{CustomerID: "u"}},
		"no amount":   {OrderID: "A", Customer: &CustomerDetails{CustomerID: "u"}},
		"no customer": {OrderID: "A", Amount: 1},
	} {
		if _, err := c.CreateOrder(context.Background(), req); !apperr.Is(err, apperr.KindValidation) {
			t.Errorf("%s: expected validation error, got %v", name, err)
		}
	}
}

func TestUnconfiguredGateway(t *testing.T) {
	t.Parallel()

	c := NewCashfree(config.CashfreeConfig{AppID: "app", SecretKey: "YOUR_SECRET_KEY_HERE"}, nil)
	if c.Configured() {
		t.Error("Expected placeholder secret to count as unconfigured")
	}
	if _, err := c.GetOrderStatus(context.Background(), "A"); !apperr.Is(err, apperr.KindConfig) {
		t.Errorf("Expected config error, got %v", err)
	}
	if _, err := c.CreateOrder(context.Background(), OrderRequest{}); !apperr.Is(err, apperr.KindConfig) {
		t.Errorf("Expected config error, got %v", err)
	}
}

func TestGetOrderStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status      string
		wantSuccess bool
		wantFailed  bool
	}{
		{"PAID", true, false},
		{"ACTIVE", false, false},
		{"EXPIRED", false, true},
		{"TERMINATED", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			t.Parallel()
			c := newTestCashfree(t, func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodGet || r.URL.Path != "/orders/AMB_9" {
					t.Errorf("Unexpected request %s %s", r.Method, r.URL.Path)
				}
				_ = json.NewEncoder(w).Encode(map[string]any{
					"order_id": "AMB_9", "order_status": tt.status, "order_amount": 410.0,
				})
			})
			got, err := c.GetOrderStatus(context.Background(), "AMB_9")
			if err != nil {
				t.Fatalf("GetOrderStatus failed: %v", err)
			}
			if got.Success != tt.wantSuccess || got.Failed() != tt.wantFailed {
				t.Errorf("Expected success=%v failed=%v, got %+v", tt.wantSuccess, tt.wantFailed, got)
			}
			if got.Amount != 410 {
				t.Errorf("Expected amount 410, got %v", got.Amount)
			}
		})
	}
}

func TestNewGateway(t *testing.T) {
	t.Parallel()

	if _, err := NewGateway(config.Config{PaymentProvider: "cashfree"}); err != nil {
		t.Errorf("Expected cashfree provider, got %v", err)
	}
	if _, err := NewGateway(config.Config{PaymentProvider: "paypal"}); err == nil {
		t.Error("Expected unknown provider error")
	}
}

func asAppErr(err error, target **apperr.Error) bool {
	e, ok := err.(*apperr.Error)
	if ok {
		*target = e
	}
	return ok
}

func TestGetOrderStatusUnknownOrder(t *testing.T) {
	t.Parallel()

	c := newTestCashfree(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message":"order not found","code":"order_not_found","type":"invalid_request_error"}`))
	})

	_, err := c.GetOrderStatus(context.Background(), "AMB_404")
	if !OrderUnknown(err) {
		t.Errorf("Expected an unknown-order error, got %v", err)
	}
	if OrderUnknown(apperr.Upstream(http.StatusBadGateway, "gateway_unreachable", "x", nil)) {
		t.Error("Expected a 502 not to count as an unknown order")
	}
}
