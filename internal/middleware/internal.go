package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/labstack/echo/v4"
)

// InternalTokenHeader carries the shared secret for service-to-service
// routes.
const InternalTokenHeader = "X-Internal-Token"

// InternalOnly guards routes that must never be reachable by browsers.
// With no token configured every request is refused as if the route did
// not exist.
func InternalOnly(token string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if token == "" {
				return deny(c, http.StatusNotFound, "Not found")
			}
			got := c.Request().Header.Get(InternalTokenHeader)
			if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				return deny(c, http.StatusUnauthorized, "Invalid internal token")
			}
			return next(c)
		}
	}
}
