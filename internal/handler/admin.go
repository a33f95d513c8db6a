package handler

import (
	"bytes"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/ambiora/techfest-backend/internal/export"
	"github.com/ambiora/techfest-backend/internal/service"
)

type AdminHandler struct {
	Registrations *service.RegistrationService
	Teams         *service.TeamService
	Admin         *service.AdminService
}

func NewAdminHandler(r *service.RegistrationService, t *service.TeamService, a *service.AdminService) *AdminHandler {
	return &AdminHandler{Registrations: r, Teams: t, Admin: a}
}

func (h *AdminHandler) ListRegistrations(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	regs, err := h.Registrations.AdminList(ctx)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusOK, echo.Map{"registrations": regs, "count": len(regs)})
}

func (h *AdminHandler) ListTeams(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	ts, err := h.Teams.AdminList(ctx)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusOK, echo.Map{"teams": ts, "count": len(ts)})
}

func (h *AdminHandler) Stats(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	st, err := h.Admin.Stats(ctx)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusOK, echo.Map{"stats": st})
}

// Export streams the registrations report as a CSV attachment.
func (h *AdminHandler) Export(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	var buf bytes.Buffer
	if err := h.Admin.ExportCSV(ctx, &buf); err != nil {
		return fail(c, err)
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+export.FileName(time.Now())+`"`)
	return c.Blob(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}
