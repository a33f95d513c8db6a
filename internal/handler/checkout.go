package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ambiora/techfest-backend/internal/middleware"
	"github.com/ambiora/techfest-backend/internal/service"
)

type CheckoutHandler struct {
	Checkout *service.CheckoutService
}

func NewCheckoutHandler(s *service.CheckoutService) *CheckoutHandler {
	return &CheckoutHandler{Checkout: s}
}

type createOrderReq struct {
	EventIDs []string `json:"eventIds"`
}

func (h *CheckoutHandler) CreateOrder(c echo.Context) error {
	var req createOrderReq
	if err := bind(c, &req); err != nil {
		return fail(c, err)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	order, err := h.Checkout.CreateOrder(ctx, middleware.UserID(c), req.EventIDs)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusCreated, echo.Map{"order": order})
}

// Verify settles an order from the gateway's status. Query parameters
// from the gateway redirect are ignored.
func (h *CheckoutHandler) Verify(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	res, err := h.Checkout.Verify(ctx, middleware.UserID(c), c.Param("orderId"))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusOK, echo.Map{"verification": res})
}
