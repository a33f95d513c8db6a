// Package memrepo is an in-process repository.Store. It enforces the same
// uniqueness rules as the database-backed stores and is used by tests
// and STORE_DRIVER=memory runs.
package memrepo

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ambiora/techfest-backend/internal/model"
	"github.com/ambiora/techfest-backend/internal/repository"
)

type Store struct {
	mu            sync.RWMutex
	users         map[string]model.User
	registrations map[string]model.Registration // by order id
	teams         map[string]model.Team
	now           func() time.Time
}

func New() *Store {
	return &Store{
		users:         map[string]model.User{},
		registrations: map[string]model.Registration{},
		teams:         map[string]model.Team{},
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// SetClock replaces the time source used for timestamps.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
}

func (s *Store) Ping(context.Context) error  { return nil }
func (s *Store) Close(context.Context) error { return nil }

func (s *Store) CreateUser(_ context.Context, u *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	for _, existing := range s.users {
		if existing.Email == u.Email {
			return repository.ErrEmailExists
		}
		if u.SAPID != "" && existing.SAPID == u.SAPID {
			return repository.ErrSAPIDExists
		}
	}
	u.ID = uuid.NewString()
	u.CreatedAt = s.now()
	u.UpdatedAt = u.CreatedAt
	s.users[u.ID] = *u
	return nil
}

func (s *Store) UserByEmail(_ context.Context, email string) (model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	email = strings.ToLower(strings.TrimSpace(email))
	for _, u := range s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return model.User{}, repository.ErrNotFound
}

func (s *Store) UserByID(_ context.Context, id string) (model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return model.User{}, repository.ErrNotFound
	}
	return u, nil
}

func (s *Store) UsersByIDs(_ context.Context, ids []string) (map[string]model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]model.User, len(ids))
	for _, id := range ids {
		if u, ok := s.users[id]; ok {
			out[id] = u
		}
	}
	return out, nil
}

func (s *Store) UpdateUser(_ context.Context, id string, upd model.ProfileUpdate) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return model.User{}, repository.ErrNotFound
	}
	if upd.SAPID != nil && *upd.SAPID != "" {
		for otherID, other := range s.users {
			if otherID != id && other.SAPID == *upd.SAPID {
				return model.User{}, repository.ErrSAPIDExists
			}
		}
	}
	if upd.Name != nil {
		u.Name = *upd.Name
	}
	if upd.Phone != nil {
		u.Phone = *upd.Phone
	}
	if upd.SAPID != nil {
		u.SAPID = *upd.SAPID
	}
	u.UpdatedAt = s.now()
	s.users[id] = u
	return u, nil
}

func (s *Store) CreateRegistration(_ context.Context, r *model.Registration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.registrations[r.OrderID]; dup {
		return repository.ErrOrderExists
	}
	if r.PaymentStatus == "" {
		r.PaymentStatus = model.PaymentPending
	}
	r.ID = uuid.NewString()
	r.CreatedAt = s.now()
	r.UpdatedAt = r.CreatedAt
	s.registrations[r.OrderID] = cloneRegistration(*r)
	return nil
}

func (s *Store) RegistrationByOrderID(_ context.Context, orderID string) (model.Registration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.registrations[orderID]
	if !ok {
		return model.Registration{}, repository.ErrNotFound
	}
	return cloneRegistration(r), nil
}

func (s *Store) RegistrationsByUser(_ context.Context, userID string) ([]model.Registration, error) {
	return s.filterRegistrations(func(r model.Registration) bool { return r.UserID == userID }, true, 0), nil
}

func (s *Store) AllRegistrations(context.Context) ([]model.Registration, error) {
	return s.filterRegistrations(func(model.Registration) bool { return true }, true, 0), nil
}

func (s *Store) PendingRegistrations(_ context.Context, olderThan time.Time, limit int) ([]model.Registration, error) {
	out := s.filterRegistrations(func(r model.Registration) bool {
		return r.PaymentStatus == model.PaymentPending && r.CreatedAt.Before(olderThan)
	}, false, 0)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].LastCheckedAt, out[j].LastCheckedAt
		switch {
		case a == nil || b == nil:
			return a == nil && b != nil
		default:
			return a.Before(*b)
		}
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) filterRegistrations(keep func(model.Registration) bool, newestFirst bool, limit int) []model.Registration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Registration
	for _, r := range s.registrations {
		if keep(r) {
			out = append(out, cloneRegistration(r))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return (out[i].OrderID > out[j].OrderID) == newestFirst
		}
		return out[i].CreatedAt.After(out[j].CreatedAt) == newestFirst
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (s *Store) MarkChecked(_ context.Context, orderID string, at time.Time) (model.Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.registrations[orderID]
	if !ok {
		return model.Registration{}, repository.ErrNotFound
	}
	if r.PaymentStatus != model.PaymentPending {
		return model.Registration{}, repository.ErrStaleWrite
	}
	at = at.UTC()
	r.LastCheckedAt = &at
	r.ReconcileAttempts++
	s.registrations[orderID] = r
	return cloneRegistration(r), nil
}

func (s *Store) UpdatePayment(_ context.Context, orderID string, upd model.PaymentUpdate) (model.Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.registrations[orderID]
	if !ok {
		return model.Registration{}, repository.ErrNotFound
	}
	if r.PaymentStatus != upd.From {
		return model.Registration{}, repository.ErrStaleWrite
	}
	if upd.Status != nil {
		r.PaymentStatus = *upd.Status
	}
	if upd.PaymentSessionID != nil {
		r.PaymentSessionID = *upd.PaymentSessionID
	}
	if upd.Details != nil {
		r.PaymentDetails = upd.Details
	}
	r.UpdatedAt = s.now()
	s.registrations[orderID] = r
	return cloneRegistration(r), nil
}

func (s *Store) HasPaidRegistration(_ context.Context, userID, eventID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.registrations {
		if r.UserID == userID && r.PaymentStatus == model.PaymentSuccess && r.HasEvent(eventID) {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) CreateTeam(_ context.Context, t *model.Team) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.teams {
		if existing.InviteCode == t.InviteCode {
			return repository.ErrInviteCodeTaken
		}
		if existing.LeaderID == t.LeaderID && existing.EventID == t.EventID {
			return repository.ErrTeamExists
		}
	}
	t.ID = uuid.NewString()
	t.CreatedAt = s.now()
	t.UpdatedAt = t.CreatedAt
	s.teams[t.ID] = cloneTeam(*t)
	return nil
}

func (s *Store) TeamByID(_ context.Context, id string) (model.Team, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.teams[id]
	if !ok {
		return model.Team{}, repository.ErrNotFound
	}
	return cloneTeam(t), nil
}

func (s *Store) TeamByInviteCode(_ context.Context, code string) (model.Team, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.teams {
		if t.InviteCode == code {
			return cloneTeam(t), nil
		}
	}
	return model.Team{}, repository.ErrNotFound
}

func (s *Store) TeamsForUser(_ context.Context, userID string) ([]model.Team, error) {
	return s.filterTeams(func(t model.Team) bool { return t.LeaderID == userID || t.HasMember(userID) }), nil
}

func (s *Store) AllTeams(context.Context) ([]model.Team, error) {
	return s.filterTeams(func(model.Team) bool { return true }), nil
}

func (s *Store) filterTeams(keep func(model.Team) bool) []model.Team {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Team
	for _, t := range s.teams {
		if keep(t) {
			out = append(out, cloneTeam(t))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (s *Store) AddMember(_ context.Context, teamID string, m model.TeamMember, maxMembers int) (model.Team, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.teams[teamID]
	if !ok {
		return model.Team{}, repository.ErrNotFound
	}
	if t.HasMember(m.UserID) {
		return model.Team{}, repository.ErrAlreadyMember
	}
	if maxMembers > 0 && len(t.Members) >= maxMembers {
		return model.Team{}, repository.ErrTeamFull
	}
	t = cloneTeam(t)
	t.Members = append(t.Members, m)
	t.UpdatedAt = s.now()
	s.teams[teamID] = t
	return cloneTeam(t), nil
}

func (s *Store) RemoveMember(_ context.Context, teamID, userID string) (model.Team, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.teams[teamID]
	if !ok {
		return model.Team{}, repository.ErrNotFound
	}
	kept := make([]model.TeamMember, 0, len(t.Members))
	for _, m := range t.Members {
		if m.UserID != userID {
			kept = append(kept, m)
		}
	}
	if len(kept) == len(t.Members) {
		return model.Team{}, repository.ErrMemberNotFound
	}
	t.Members = kept
	t.UpdatedAt = s.now()
	s.teams[teamID] = t
	return cloneTeam(t), nil
}

func cloneRegistration(r model.Registration) model.Registration {
	r.Events = append([]model.EventLine(nil), r.Events...)
	if r.LastCheckedAt != nil {
		at := *r.LastCheckedAt
		r.LastCheckedAt = &at
	}
	if r.PaymentDetails != nil {
		d := make(map[string]any, len(r.PaymentDetails))
		for k, v := range r.PaymentDetails {
			d[k] = v
		}
		r.PaymentDetails = d
	}
	return r
}

func cloneTeam(t model.Team) model.Team {
	t.Members = append([]model.TeamMember(nil), t.Members...)
	return t
}

var _ repository.Store = (*Store)(nil)
