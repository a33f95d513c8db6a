package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ambiora/techfest-backend/internal/middleware"
	"github.com/ambiora/techfest-backend/internal/model"
	"github.com/ambiora/techfest-backend/internal/service"
)

// AuthHandler serves attendee signup, login and profile plus admin login.
type AuthHandler struct {
	Auth  *service.AuthService
	Admin *service.AdminAuth
}

func NewAuthHandler(a *service.AuthService, admin *service.AdminAuth) *AuthHandler {
	return &AuthHandler{Auth: a, Admin: admin}
}

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type adminLoginReq struct {
	Password string `json:"password"`
}

func (h *AuthHandler) Signup(c echo.Context) error {
	var req service.SignupInput
	if err := bind(c, &req); err != nil {
		return fail(c, err)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	res, err := h.Auth.Signup(ctx, req)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusCreated, echo.Map{
		"message": "User registered successfully",
		"token":   res.Token,
		"user":    res.User,
	})
}

func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := bind(c, &req); err != nil {
		return fail(c, err)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	res, err := h.Auth.Login(ctx, req.Email, req.Password)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusOK, echo.Map{"message": "Login successful", "token": res.Token, "user": res.User})
}

// Me returns the caller's sanitized profile.
func (h *AuthHandler) Me(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	u, err := h.Auth.CurrentUser(ctx, middleware.UserID(c))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusOK, echo.Map{"user": u})
}

func (h *AuthHandler) UpdateProfile(c echo.Context) error {
	var req model.ProfileUpdate
	if err := bind(c, &req); err != nil {
		return fail(c, err)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	u, err := h.Auth.UpdateProfile(ctx, middleware.UserID(c), req)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusOK, echo.Map{"message": "Profile updated successfully", "user": u})
}

func (h *AuthHandler) AdminLogin(c echo.Context) error {
	var req adminLoginReq
	if err := bind(c, &req); err != nil {
		return fail(c, err)
	}
	tok, err := h.Admin.Login(req.Password)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusOK, echo.Map{"token": tok.Token, "expiresAt": tok.ExpiresAt})
}
