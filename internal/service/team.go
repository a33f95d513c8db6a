package service

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/ambiora/techfest-backend/internal/apperr"
	"github.com/ambiora/techfest-backend/internal/catalog"
	"github.com/ambiora/techfest-backend/internal/model"
	"github.com/ambiora/techfest-backend/internal/repository"
	"github.com/ambiora/techfest-backend/internal/utils"
)

const (
	minTeamNameLen     = 3
	inviteCodeAttempts = 5
)

type TeamService struct {
	Users         repository.UserStore
	Teams         repository.TeamStore
	Registrations repository.RegistrationStore
	Catalog       *catalog.Catalog
	Now           func() time.Time

	// NewCode generates invite codes; nil means utils.NewInviteCode.
	NewCode func() (string, error)
}

// Create makes leaderID the leader and first member of a new team. An
// invite code collision is retried with a fresh code.
func (s *TeamService) Create(ctx context.Context, leaderID, name, eventID string) (model.Team, error) {
	name = strings.TrimSpace(name)
	eventID = strings.TrimSpace(eventID)
	if name == "" || eventID == "" {
		return model.Team{}, apperr.Validation("Team name and event are required")
	}
	if len(name) < minTeamNameLen {
		return model.Team{}, apperr.Validation("Team name must be at least 3 characters")
	}
	if ev, ok := s.Catalog.Get(eventID); ok {
		eventID = ev.ID
	}

	leader, err := s.Users.UserByID(ctx, leaderID)
	if err != nil {
		return model.Team{}, notFoundOr(err, "User not found", "load user")
	}
	if leader.SAPID == "" {
		return model.Team{}, apperr.Precondition("Please add your SAP ID to your profile before creating a team")
	}

	now := clock(s.Now)
	for attempt := 0; attempt < inviteCodeAttempts; attempt++ {
		code, err := s.code()
		if err != nil {
			return model.Team{}, apperr.Internal("generate invite code", err)
		}
		t := model.Team{
			Name:       name,
			EventID:    eventID,
			LeaderID:   leader.ID,
			InviteCode: code,
			Members:    []model.TeamMember{memberOf(leader, now)},
		}
		err = s.Teams.CreateTeam(ctx, &t)
		switch {
		case err == nil:
			log.Printf("team: %s created %q for %s (%s)", leader.Email, t.Name, t.EventID, t.InviteCode)
			return t, nil
		case errors.Is(err, repository.ErrInviteCodeTaken):
			continue
		case errors.Is(err, repository.ErrTeamExists):
			return model.Team{}, apperr.Conflict("You already have a team for this event")
		default:
			return model.Team{}, storeErr("create team", err)
		}
	}
	return model.Team{}, apperr.Conflict("Could not allocate an invite code, please try again")
}

// Join adds userID to the team behind code. Unless the event bills per
// team, the joiner must already hold a paid registration for it.
func (s *TeamService) Join(ctx context.Context, userID, code string) (model.Team, error) {
	code = utils.NormalizeInviteCode(code)
	if code == "" {
		return model.Team{}, apperr.Validation("Invite code is required")
	}
	t, err := s.Teams.TeamByInviteCode(ctx, code)
	if err != nil {
		return model.Team{}, notFoundOr(err, "Invalid invite code", "load team")
	}
	if t.HasMember(userID) {
		return model.Team{}, apperr.Conflict("You are already a member of this team")
	}
	u, err := s.Users.UserByID(ctx, userID)
	if err != nil {
		return model.Team{}, notFoundOr(err, "User not found", "load user")
	}
	if u.SAPID == "" {
		return model.Team{}, apperr.Precondition("Please add your SAP ID to your profile before joining a team")
	}

	ev, known := s.Catalog.Get(t.EventID)
	if !known || !ev.BilledPerTeam() {
		paid, err := s.Registrations.HasPaidRegistration(ctx, userID, t.EventID)
		if err != nil {
			return model.Team{}, storeErr("check registration", err)
		}
		if !paid {
			return model.Team{}, apperr.PaymentRequired("You must first register for this event before joining the team")
		}
	}
	maxMembers := 0
	if known {
		maxMembers = ev.TeamSize
	}

	// The store checks capacity in the same write that adds the member.
	t, err = s.Teams.AddMember(ctx, t.ID, memberOf(u, clock(s.Now)), maxMembers)
	switch {
	case errors.Is(err, repository.ErrAlreadyMember):
		return model.Team{}, apperr.Conflict("You are already a member of this team")
	case errors.Is(err, repository.ErrTeamFull):
		return model.Team{}, apperr.Conflict("This team is already full")
	case err != nil:
		return model.Team{}, notFoundOr(err, "Team not found", "join team")
	}
	log.Printf("team: %s joined %q", u.Email, t.Name)
	return t, nil
}

func (s *TeamService) ListForUser(ctx context.Context, userID string) ([]model.Team, error) {
	ts, err := s.Teams.TeamsForUser(ctx, userID)
	if err != nil {
		return nil, storeErr("list teams", err)
	}
	if ts == nil {
		ts = []model.Team{}
	}
	return ts, nil
}

// PublicInfo is the pre-join preview; it carries no member details.
func (s *TeamService) PublicInfo(ctx context.Context, code string) (model.TeamPreview, error) {
	t, err := s.Teams.TeamByInviteCode(ctx, utils.NormalizeInviteCode(code))
	if err != nil {
		return model.TeamPreview{}, notFoundOr(err, "Team not found", "load team")
	}
	return t.Preview(), nil
}

// RemoveMember lets the leader drop a member. The leader can never be
// removed.
func (s *TeamService) RemoveMember(ctx context.Context, callerID, teamID, memberID string) (model.Team, error) {
	t, err := s.Teams.TeamByID(ctx, teamID)
	if err != nil {
		return model.Team{}, notFoundOr(err, "Team not found", "load team")
	}
	if t.LeaderID != callerID {
		return model.Team{}, apperr.Forbidden("Only the team leader can remove members")
	}
	if memberID == t.LeaderID {
		return model.Team{}, apperr.Validation("The team leader cannot be removed")
	}
	t, err = s.Teams.RemoveMember(ctx, teamID, memberID)
	switch {
	case errors.Is(err, repository.ErrMemberNotFound):
		return model.Team{}, apperr.NotFound("Member not found in this team")
	case err != nil:
		return model.Team{}, notFoundOr(err, "Team not found", "remove member")
	}
	return t, nil
}

func (s *TeamService) AdminList(ctx context.Context) ([]model.Team, error) {
	ts, err := s.Teams.AllTeams(ctx)
	if err != nil {
		return nil, storeErr("list teams", err)
	}
	if ts == nil {
		ts = []model.Team{}
	}
	return ts, nil
}

func (s *TeamService) code() (string, error) {
	if s.NewCode != nil {
		return s.NewCode()
	}
	return utils.NewInviteCode()
}

func memberOf(u model.User, at time.Time) model.TeamMember {
	return model.TeamMember{
		UserID:   u.ID,
		Name:     u.Name,
		Email:    u.Email,
		SAPID:    u.SAPID,
		JoinedAt: at,
		Status:   model.MemberAccepted,
	}
}
