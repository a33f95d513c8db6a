package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/ambiora/techfest-backend/internal/apperr"
	"github.com/ambiora/techfest-backend/internal/payment/paymenttest"
)

func render(t *testing.T, err error) (int, map[string]any) {
	t.Helper()
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	if ferr := fail(c, err); ferr != nil {
		t.Fatalf("fail returned %v", ferr)
	}
	body := map[string]any{}
	if jerr := json.Unmarshal(rec.Body.Bytes(), &body); jerr != nil {
		t.Fatalf("bad json %q: %v", rec.Body.String(), jerr)
	}
	return rec.Code, body
}

func TestFailEnvelope(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{"validation", apperr.Validation("All fields are required"), 400, "All fields are required"},
		{"conflict", apperr.Conflict("Email already registered"), 400, "Email already registered"},
		{"not found", apperr.NotFound("Team not found"), 404, "Team not found"},
		{"forbidden", apperr.Forbidden("Only the team leader can remove members"), 403, "Only the team leader can remove members"},
		{"config", apperr.Config("Cashfree credentials not configured"), 500, "Cashfree credentials not configured"},
		{"internal", apperr.Internal("load user", errors.New("dial tcp: refused")), 500, "Server error"},
		{"foreign", errors.New("boom"), 500, "Server error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, body := render(t, tc.err)
			if status != tc.status || body["message"] != tc.message || body["success"] != false {
				t.Errorf("Expected %d %q, got %d %v", tc.status, tc.message, status, body)
			}
		})
	}
}

func TestFailKeepsUpstreamDetails(t *testing.T) {
	t.Parallel()
	status, body := render(t, apperr.Upstream(422, "order_amount_invalid", "order_amount must be >= 1", map[string]any{"type": "invalid_request_error"}))
	if status != 422 || body["code"] != "order_amount_invalid" || body["message"] != "order_amount must be >= 1" {
		t.Errorf("Unexpected upstream rendering %d %v", status, body)
	}
	if body["details"] == nil {
		t.Error("Expected gateway body in details")
	}
}

func TestErrorHandlerRendersHTTPError(t *testing.T) {
	t.Parallel()
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	ErrorHandler(echo.ErrMethodNotAllowed, c)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected 405, got %d", rec.Code)
	}
	var body map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	if body["success"] != false {
		t.Errorf("Expected failure envelope, got %v", body)
	}
}

type pingFunc func(context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHealth(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name      string
		ping      error
		unset     bool
		status    string
		store     string
		gatewayOK bool
	}{
		{"healthy", nil, false, "ok", "ok", true},
		{"store down", errors.New("no reachable servers"), false, "degraded", "unavailable", true},
		{"gateway unconfigured", nil, true, "ok", "ok", false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			gw := paymenttest.New()
			gw.Unset = tt.unset
			h := NewHealthHandler("production", gw, pingFunc(func(context.Context) error { return tt.ping }))
			h.AppEnv = "test"

			e := echo.New()
			rec := httptest.NewRecorder()
			c := e.NewContext(httptest.NewRequest(http.MethodGet, "/api/health", nil), rec)
			if err := h.Health(c); err != nil {
				t.Fatalf("Health returned %v", err)
			}
			if rec.Code != http.StatusOK {
				t.Errorf("Expected 200, got %d", rec.Code)
			}
			var body map[string]any
			_ = json.Unmarshal(rec.Body.Bytes(), &body)
			if body["status"] != tt.status || body["store"] != tt.store || body["cashfree_configured"] != tt.gatewayOK {
				t.Errorf("Unexpected body %v", body)
			}
			if body["environment"] != "production" {
				t.Errorf("Expected gateway environment production, got %v", body["environment"])
			}
			if body["app_environment"] != "test" {
				t.Errorf("Expected app environment test, got %v", body["app_environment"])
			}
		})
	}
}
