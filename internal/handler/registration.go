package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ambiora/techfest-backend/internal/middleware"
	"github.com/ambiora/techfest-backend/internal/service"
)

type RegistrationHandler struct {
	Registrations *service.RegistrationService
}

func NewRegistrationHandler(r *service.RegistrationService) *RegistrationHandler {
	return &RegistrationHandler{Registrations: r}
}

type updateRegistrationReq struct {
	PaymentStatus  *string        `json:"paymentStatus"`
	PaymentDetails map[string]any `json:"paymentDetails"`
}

func (h *RegistrationHandler) Create(c echo.Context) error {
	var req service.CreateRegistrationInput
	if err := bind(c, &req); err != nil {
		return fail(c, err)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	reg, err := h.Registrations.Create(ctx, middleware.UserID(c), req)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusCreated, echo.Map{"message": "Registration created successfully", "registration": reg})
}

func (h *RegistrationHandler) List(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	regs, err := h.Registrations.List(ctx, middleware.UserID(c))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusOK, echo.Map{"registrations": regs})
}

// Update is PATCH /api/registrations/:orderId.
func (h *RegistrationHandler) Update(c echo.Context) error {
	var req updateRegistrationReq
	if err := bind(c, &req); err != nil {
		return fail(c, err)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	reg, err := h.Registrations.UpdateStatus(ctx, middleware.UserID(c), c.Param("orderId"), req.PaymentStatus, req.PaymentDetails)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusOK, echo.Map{"message": "Registration updated successfully", "registration": reg})
}

// Tickets derives the caller's tickets from their paid registrations.
func (h *RegistrationHandler) Tickets(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	ts, err := h.Registrations.Tickets(ctx, middleware.UserID(c))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusOK, echo.Map{"tickets": ts})
}
