package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/ambiora/techfest-backend/internal/payment"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler reports liveness plus whether the gateway and store are
// usable. It never exposes credentials.
type HealthHandler struct {
	// GatewayEnv is the Cashfree environment, sandbox or production.
	GatewayEnv string
	AppEnv     string
	Gateway    payment.Gateway
	Store      Pinger
}

func NewHealthHandler(gatewayEnv string, g payment.Gateway, s Pinger) *HealthHandler {
	return &HealthHandler{GatewayEnv: gatewayEnv, Gateway: g, Store: s}
}

func (h *HealthHandler) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	status, store := "ok", "ok"
	if err := h.Store.Ping(ctx); err != nil {
		c.Logger().Warnf("health: store ping: %v", err)
		status, store = "degraded", "unavailable"
	}
	body := echo.Map{
		"status":              status,
		"cashfree_configured": h.Gateway.Configured(),
		"environment":         h.GatewayEnv,
		"store":               store,
	}
	if h.AppEnv != "" {
		body["app_environment"] = h.AppEnv
	}
	return c.JSON(http.StatusOK, body)
}
