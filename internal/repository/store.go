package repository

import (
	"context"
	"time"

	"github.com/ambiora/techfest-backend/internal/model"
)

type UserStore interface {
	// CreateUser assigns ID and timestamps on success.
	CreateUser(ctx context.Context, u *model.User) error
	UserByEmail(ctx context.Context, email string) (model.User, error)
	UserByID(ctx context.Context, id string) (model.User, error)
	UsersByIDs(ctx context.Context, ids []string) (map[string]model.User, error)
	UpdateUser(ctx context.Context, id string, upd model.ProfileUpdate) (model.User, error)
}

type RegistrationStore interface {
	CreateRegistration(ctx context.Context, r *model.Registration) error
	RegistrationByOrderID(ctx context.Context, orderID string) (model.Registration, error)
	// RegistrationsByUser returns newest first.
	RegistrationsByUser(ctx context.Context, userID string) ([]model.Registration, error)
	AllRegistrations(ctx context.Context) ([]model.Registration, error)
	// PendingRegistrations returns up to limit pending records created
	// before olderThan. Never-checked records come first, then the least
	// recently checked, then the oldest.
	PendingRegistrations(ctx context.Context, olderThan time.Time, limit int) ([]model.Registration, error)
	// MarkChecked stamps a pending record as looked up at the given time
	// and bumps its attempt count. It returns ErrStaleWrite once the record
	// has left pending.
	MarkChecked(ctx context.Context, orderID string, at time.Time) (model.Registration, error)
	// UpdatePayment applies upd only while the stored status equals upd.From.
	UpdatePayment(ctx context.Context, orderID string, upd model.PaymentUpdate) (model.Registration, error)
	HasPaidRegistration(ctx context.Context, userID, eventID string) (bool, error)
}

type TeamStore interface {
	CreateTeam(ctx context.Context, t *model.Team) error
	TeamByID(ctx context.Context, id string) (model.Team, error)
	TeamByInviteCode(ctx context.Context, code string) (model.Team, error)
	// TeamsForUser returns teams the user leads or belongs to.
	TeamsForUser(ctx context.Context, userID string) ([]model.Team, error)
	AllTeams(ctx context.Context) ([]model.Team, error)
	// AddMember appends m unless the team already holds maxMembers
	// members (ErrTeamFull) or already contains the user (ErrAlreadyMember).
	AddMember(ctx context.Context, teamID string, m model.TeamMember, maxMembers int) (model.Team, error)
	RemoveMember(ctx context.Context, teamID, userID string) (model.Team, error)
}

// Store is the full persistence surface the services depend on.
type Store interface {
	UserStore
	RegistrationStore
	TeamStore
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}
