package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ambiora/techfest-backend/internal/payment"
)

// PaymentBridgeHandler exposes the gateway to trusted internal callers.
// Responses keep the gateway's snake_case field names.
type PaymentBridgeHandler struct {
	Gateway payment.Gateway
}

func NewPaymentBridgeHandler(g payment.Gateway) *PaymentBridgeHandler {
	return &PaymentBridgeHandler{Gateway: g}
}

func (h *PaymentBridgeHandler) CreateOrder(c echo.Context) error {
	var req payment.OrderRequest
	if err := bind(c, &req); err != nil {
		return fail(c, err)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	sess, err := h.Gateway.CreateOrder(ctx, req)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, sess)
}

func (h *PaymentBridgeHandler) OrderStatus(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	st, err := h.Gateway.GetOrderStatus(ctx, c.Param("orderId"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, st)
}
