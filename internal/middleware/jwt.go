package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/ambiora/techfest-backend/internal/utils"
)

// JWTAuth validates a Bearer access token and stores its subject, role
// and email in the context. A missing token answers 401; a token that
// does not verify answers 403.
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get(echo.HeaderAuthorization)
			raw := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
			if !strings.HasPrefix(auth, "Bearer ") || raw == "" {
				return deny(c, http.StatusUnauthorized, "Access token required")
			}
			claims, err := utils.ParseAccessToken(secret, raw)
			if err != nil {
				return deny(c, http.StatusForbidden, "Invalid or expired token")
			}
			c.Set(CtxUserID, claims.Subject)
			c.Set(CtxRole, claims.Role)
			c.Set(CtxEmail, claims.Email)
			return next(c)
		}
	}
}
