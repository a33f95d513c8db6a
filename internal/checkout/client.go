package checkout

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ambiora/techfest-backend/internal/catalog"
	"github.com/ambiora/techfest-backend/internal/service"
	"github.com/ambiora/techfest-backend/internal/ticket"
)

// Backend is the server surface the checkout flow calls.
type Backend interface {
	Login(ctx context.Context, email, password string) (string, error)
	Events(ctx context.Context) ([]catalog.Event, error)
	CreateOrder(ctx context.Context, token string, eventIDs []string) (service.CheckoutOrder, error)
	VerifyOrder(ctx context.Context, token, orderID string) (service.VerifyResult, error)
	Tickets(ctx context.Context, token string) ([]ticket.Ticket, error)
}

// APIError is a non-2xx answer from the API.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string { return fmt.Sprintf("%d: %s", e.Status, e.Message) }

// Unauthenticated reports whether the session must be re-established.
func (e *APIError) Unauthenticated() bool {
	return e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden
}

// APIClient talks to the HTTP API.
type APIClient struct {
	BaseURL string
	HTTP    *http.Client
}

func NewAPIClient(baseURL string) *APIClient {
	return &APIClient{BaseURL: strings.TrimRight(baseURL, "/"), HTTP: &http.Client{Timeout: 20 * time.Second}}
}

func (a *APIClient) Login(ctx context.Context, email, password string) (string, error) {
	var out struct {
		Token string `json:"token"`
	}
	err := a.call(ctx, http.MethodPost, "/api/auth/login", "", map[string]string{"email": email, "password": password}, &out)
	return out.Token, err
}

func (a *APIClient) Events(ctx context.Context) ([]catalog.Event, error) {
	var out struct {
		Events []catalog.Event `json:"events"`
	}
	err := a.call(ctx, http.MethodGet, "/api/events", "", nil, &out)
	return out.Events, err
}

func (a *APIClient) CreateOrder(ctx context.Context, token string, eventIDs []string) (service.CheckoutOrder, error) {
	var out struct {
		Order service.CheckoutOrder `json:"order"`
	}
	err := a.call(ctx, http.MethodPost, "/api/checkout/orders", token, map[string]any{"eventIds": eventIDs}, &out)
	return out.Order, err
}

func (a *APIClient) VerifyOrder(ctx context.Context, token, orderID string) (service.VerifyResult, error) {
	var out struct {
		Verification service.VerifyResult `json:"verification"`
	}
	err := a.call(ctx, http.MethodPost, "/api/checkout/orders/"+url.PathEscape(orderID)+"/verify", token, nil, &out)
	return out.Verification, err
}

func (a *APIClient) Tickets(ctx context.Context, token string) ([]ticket.Ticket, error) {
	var out struct {
		Tickets []ticket.Ticket `json:"tickets"`
	}
	err := a.call(ctx, http.MethodGet, "/api/tickets", token, nil, &out)
	return out.Tickets, err
}

func (a *APIClient) call(ctx context.Context, method, path, token string, in, out any) error {
	var body bytes.Buffer
	if in != nil {
		if err := json.NewEncoder(&body).Encode(in); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, a.BaseURL+path, &body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := a.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var env struct {
			Message string `json:"message"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&env)
		if env.Message == "" {
			env.Message = http.StatusText(resp.StatusCode)
		}
		return &APIError{Status: resp.StatusCode, Message: env.Message}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
