package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ambiora/techfest-backend/internal/apperr"
	"github.com/ambiora/techfest-backend/internal/catalog"
)

// EventHandler serves the read-only event catalog.
type EventHandler struct {
	Catalog *catalog.Catalog
}

func NewEventHandler(c *catalog.Catalog) *EventHandler {
	return &EventHandler{Catalog: c}
}

// List supports ?category= filtering.
func (h *EventHandler) List(c echo.Context) error {
	events := h.Catalog.All()
	if cat := c.QueryParam("category"); cat != "" {
		events = h.Catalog.ByCategory(cat)
	}
	if events == nil {
		events = []catalog.Event{}
	}
	return ok(c, http.StatusOK, echo.Map{"events": events})
}

func (h *EventHandler) Get(c echo.Context) error {
	ev, found := h.Catalog.Get(c.Param("id"))
	if !found {
		return fail(c, apperr.NotFound("Event not found"))
	}
	return ok(c, http.StatusOK, echo.Map{"event": ev})
}
