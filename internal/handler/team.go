package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ambiora/techfest-backend/internal/middleware"
	"github.com/ambiora/techfest-backend/internal/service"
)

type TeamHandler struct {
	Teams *service.TeamService
}

func NewTeamHandler(t *service.TeamService) *TeamHandler {
	return &TeamHandler{Teams: t}
}

type createTeamReq struct {
	Name    string `json:"name"`
	EventID string `json:"eventId"`
}

type joinTeamReq struct {
	InviteCode string `json:"inviteCode"`
}

func (h *TeamHandler) Create(c echo.Context) error {
	var req createTeamReq
	if err := bind(c, &req); err != nil {
		return fail(c, err)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	t, err := h.Teams.Create(ctx, middleware.UserID(c), req.Name, req.EventID)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusCreated, echo.Map{"message": "Team created successfully", "team": t})
}

func (h *TeamHandler) List(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	ts, err := h.Teams.ListForUser(ctx, middleware.UserID(c))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusOK, echo.Map{"teams": ts})
}

// Preview is public; it exposes no member details.
func (h *TeamHandler) Preview(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	p, err := h.Teams.PublicInfo(ctx, c.Param("inviteCode"))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusOK, echo.Map{"team": p})
}

func (h *TeamHandler) Join(c echo.Context) error {
	var req joinTeamReq
	if err := bind(c, &req); err != nil {
		return fail(c, err)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	t, err := h.Teams.Join(ctx, middleware.UserID(c), req.InviteCode)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusOK, echo.Map{"message": "Joined team successfully", "team": t})
}

func (h *TeamHandler) RemoveMember(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	t, err := h.Teams.RemoveMember(ctx, middleware.UserID(c), c.Param("teamId"), c.Param("userId"))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusOK, echo.Map{"message": "Member removed successfully", "team": t})
}
