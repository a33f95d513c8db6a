package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ambiora/techfest-backend/internal/apperr"
	"github.com/ambiora/techfest-backend/internal/config"
)

// Cashfree calls the Cashfree PG orders API server to server.
type Cashfree struct {
	cfg    config.CashfreeConfig
	client *http.Client
}

// NewCashfree uses client when given, otherwise a client with a 15s timeout.
func NewCashfree(cfg config.CashfreeConfig, client *http.Client) *Cashfree {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Cashfree{cfg: cfg, client: client}
}

func (c *Cashfree) Name() string { return "cashfree" }

func (c *Cashfree) Configured() bool { return c.cfg.Configured() }

func (c *Cashfree) CreateOrder(ctx context.Context, req OrderRequest) (OrderSession, error) {
	if !c.Configured() {
		return OrderSession{}, apperr.Config("Cashfree credentials not configured")
	}
	if strings.TrimSpace(req.OrderID) == "" || req.Amount <= 0 || req.Customer == nil || req.Customer.CustomerID == "" {
		return OrderSession{}, apperr.Validation("Missing required order fields")
	}
	if req.Currency == "" {
		req.Currency = "INR"
	}

	log.Printf("cashfree: creating order %s amount=%.2f", req.OrderID, req.Amount)

	var out OrderSession
	if err := c.do(ctx, http.MethodPost, "/orders", req, &out, "Failed to create order with Cashfree"); err != nil {
		return OrderSession{}, err
	}
	return out, nil
}

func (c *Cashfree) GetOrderStatus(ctx context.Context, orderID string) (OrderStatus, error) {
	if !c.Configured() {
		return OrderStatus{}, apperr.Config("Cashfree credentials not configured")
	}
	if strings.TrimSpace(orderID) == "" {
		return OrderStatus{}, apperr.Validation("order id is required")
	}
	var out struct {
		OrderID     string  `json:"order_id"`
		OrderStatus string  `json:"order_status"`
		OrderAmount float64 `json:"order_amount"`
	}
	if err := c.do(ctx, http.MethodGet, "/orders/"+url.PathEscape(orderID), nil, &out, "Failed to fetch order"); err != nil {
		return OrderStatus{}, err
	}
	if out.OrderID == "" {
		out.OrderID = orderID
	}
	return NormalizeStatus(out.OrderID, out.OrderStatus, out.OrderAmount), nil
}

// do sends one request. Non-2xx answers become apperr.Upstream carrying
// the gateway's own status, code and message.
func (c *Cashfree) do(ctx context.Context, method, path string, in, out any, fallback string) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return apperr.Internal("encode gateway request", err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, body)
	if err != nil {
		return apperr.Internal("build gateway request", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("x-client-id", c.cfg.AppID)
	req.Header.Set("x-client-secret", c.cfg.SecretKey)
	req.Header.Set("x-api-version", c.cfg.APIVersion)

	resp, err := c.client.Do(req)
	if err != nil {
		return apperr.Upstream(http.StatusBadGateway, "gateway_unreachable", fallback, nil)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return apperr.Upstream(http.StatusBadGateway, "gateway_read_failed", fallback, nil)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var gwErr struct {
			Message string `json:"message"`
			Code    string `json:"code"`
			Type    string `json:"type"`
		}
		var details map[string]any
		_ = json.Unmarshal(raw, &gwErr)
		_ = json.Unmarshal(raw, &details)
		msg := gwErr.Message
		if msg == "" {
			msg = fallback
		}
		log.Printf("cashfree: %s %s -> %d %s", method, path, resp.StatusCode, gwErr.Code)
		return apperr.Upstream(resp.StatusCode, gwErr.Code, msg, details)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return apperr.Upstream(http.StatusBadGateway, "gateway_bad_response", fmt.Sprintf("%s: malformed response", fallback), nil)
	}
	return nil
}
