// Package router mounts the HTTP API on an echo instance.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/ambiora/techfest-backend/internal/handler"
	"github.com/ambiora/techfest-backend/internal/middleware"
	"github.com/ambiora/techfest-backend/internal/model"
)

// Handlers bundles every handler the API serves.
type Handlers struct {
	Auth          *handler.AuthHandler
	Registrations *handler.RegistrationHandler
	Teams         *handler.TeamHandler
	Checkout      *handler.CheckoutHandler
	Events        *handler.EventHandler
	Admin         *handler.AdminHandler
	Bridge        *handler.PaymentBridgeHandler
	Health        *handler.HealthHandler
}

// Options carries the secrets and shared middleware the routes need.
// Nil middleware entries are skipped.
type Options struct {
	JWTSecret     string
	InternalToken string
	RateLimit     echo.MiddlewareFunc
	Cache         echo.MiddlewareFunc
}

// Register mounts all routes.
func Register(e *echo.Echo, h Handlers, opt Options) {
	RegisterPublic(e, h, opt)
	RegisterAuth(e, h.Auth, opt)
	RegisterAttendee(e, h, opt)
	RegisterAdmin(e, h.Auth, h.Admin, opt)
	RegisterInternal(e, h.Bridge, opt.InternalToken)
}

// RegisterPublic mounts health, the event catalog and the team preview.
func RegisterPublic(e *echo.Echo, h Handlers, opt Options) {
	e.GET("/api/health", h.Health.Health)
	e.GET("/api/events", h.Events.List, optional(opt.Cache)...)
	e.GET("/api/events/:id", h.Events.Get, optional(opt.Cache)...)
	e.GET("/api/teams/:inviteCode", h.Teams.Preview)
}

// RegisterAuth mounts signup and login (rate limited) and the bearer
// profile endpoints.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, opt Options) {
	limited := optional(opt.RateLimit)
	e.POST("/api/auth/signup", a.Signup, limited...)
	e.POST("/api/auth/login", a.Login, limited...)

	bearer := userOnly(opt.JWTSecret)
	e.GET("/api/auth/user", a.Me, bearer...)
	e.PUT("/api/auth/profile", a.UpdateProfile, bearer...)
}

// RegisterAttendee mounts registrations, tickets, checkout and team
// management. Every route requires a user token.
func RegisterAttendee(e *echo.Echo, h Handlers, opt Options) {
	g := e.Group("/api")
	bearer := userOnly(opt.JWTSecret)

	g.POST("/registrations", h.Registrations.Create, bearer...)
	g.GET("/registrations", h.Registrations.List, bearer...)
	g.PATCH("/registrations/:orderId", h.Registrations.Update, bearer...)
	g.GET("/tickets", h.Registrations.Tickets, bearer...)

	g.POST("/checkout/orders", h.Checkout.CreateOrder, bearer...)
	g.POST("/checkout/orders/:orderId/verify", h.Checkout.Verify, bearer...)

	g.POST("/teams", h.Teams.Create, bearer...)
	g.GET("/teams", h.Teams.List, bearer...)
	g.POST("/teams/join", h.Teams.Join, append(bearer, optional(opt.RateLimit)...)...)
	g.DELETE("/teams/:teamId/members/:userId", h.Teams.RemoveMember, bearer...)
}

// RegisterAdmin mounts admin login and the admin-token routes.
func RegisterAdmin(e *echo.Echo, a *handler.AuthHandler, h *handler.AdminHandler, opt Options) {
	e.POST("/api/admin/login", a.AdminLogin, optional(opt.RateLimit)...)

	admin := []echo.MiddlewareFunc{middleware.JWTAuth(opt.JWTSecret), middleware.RequireRole(model.RoleAdmin)}
	e.GET("/api/admin/registrations", h.ListRegistrations, admin...)
	e.GET("/api/admin/registrations/export", h.Export, admin...)
	e.GET("/api/admin/teams", h.ListTeams, admin...)
	e.GET("/api/admin/stats", h.Stats, admin...)
}

// RegisterInternal mounts the payment bridge outside /api, behind the
// shared internal token.
func RegisterInternal(e *echo.Echo, b *handler.PaymentBridgeHandler, token string) {
	g := e.Group("/internal/cashfree", middleware.InternalOnly(token))
	g.POST("/create-order", b.CreateOrder)
	g.GET("/order/:orderId", b.OrderStatus)
}

func userOnly(secret string) []echo.MiddlewareFunc {
	return []echo.MiddlewareFunc{middleware.JWTAuth(secret), middleware.RequireRole(model.RoleUser)}
}

func optional(m echo.MiddlewareFunc) []echo.MiddlewareFunc {
	if m == nil {
		return nil
	}
	return []echo.MiddlewareFunc{m}
}
