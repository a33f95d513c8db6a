package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/ambiora/techfest-backend/internal/apperr"
)

const requestTimeout = 10 * time.Second

func reqCtx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), requestTimeout)
}

func ok(c echo.Context, status int, body echo.Map) error {
	body["success"] = true
	return c.JSON(status, body)
}

// fail renders err as {success:false, message[, code, details]}. Internal
// errors are logged and answered with a generic message.
func fail(c echo.Context, err error) error {
	status := apperr.HTTPStatus(err)
	var ae *apperr.Error
	if !errors.As(err, &ae) || ae.Kind == apperr.KindInternal {
		c.Logger().Errorf("%s %s: %v", c.Request().Method, c.Path(), err)
		return c.JSON(status, echo.Map{"success": false, "message": "Server error"})
	}
	body := echo.Map{"success": false, "message": ae.Message}
	if ae.Code != "" {
		body["code"] = ae.Code
	}
	if ae.Details != nil {
		body["details"] = ae.Details
	}
	return c.JSON(status, body)
}

func bind(c echo.Context, v any) error {
	if err := c.Bind(v); err != nil {
		return apperr.Validation("Invalid request body")
	}
	return nil
}

// ErrorHandler renders framework errors (unknown route, bad method,
// recovered panics) in the same envelope as handler errors.
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg := http.StatusText(he.Code)
		if s, isStr := he.Message.(string); isStr && s != "" {
			msg = s
		}
		_ = c.JSON(he.Code, echo.Map{"success": false, "message": msg})
		return
	}
	_ = fail(c, err)
}
