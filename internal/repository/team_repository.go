package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ambiora/techfest-backend/internal/model"
)

// TeamRepo stores teams in `teams` and memberships in `team_members`.
// The (team_id, user_id) primary key makes double joins impossible.
type TeamRepo struct{ DB *sql.DB }

func NewTeamRepo(db *sql.DB) *TeamRepo { return &TeamRepo{DB: db} }

const teamColumns = "id,name,event_id,leader_id,invite_code,created_at,updated_at"

// CreateTeam inserts the team and its members in one transaction.
func (r *TeamRepo) CreateTeam(ctx context.Context, t *model.Team) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	t.CreatedAt, t.UpdatedAt = now, now

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, "INSERT INTO teams ("+teamColumns+") VALUES (?,?,?,?,?,?,?)",
		t.ID, t.Name, t.EventID, t.LeaderID, t.InviteCode, now, now)
	if key, dup := duplicateKey(err); dup {
		if strings.Contains(key, "invite") {
			return ErrInviteCodeTaken
		}
		return ErrTeamExists
	}
	if err != nil {
		return err
	}
	for _, m := range t.Members {
		if err := insertMember(ctx, tx, t.ID, m); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (r *TeamRepo) TeamByID(ctx context.Context, id string) (model.Team, error) {
	return r.one(ctx, "SELECT "+teamColumns+" FROM teams WHERE id=? LIMIT 1", id)
}

func (r *TeamRepo) TeamByInviteCode(ctx context.Context, code string) (model.Team, error) {
	return r.one(ctx, "SELECT "+teamColumns+" FROM teams WHERE invite_code=? LIMIT 1", code)
}

func (r *TeamRepo) TeamsForUser(ctx context.Context, userID string) ([]model.Team, error) {
	return r.many(ctx,
		`SELECT `+teamColumns+` FROM teams
		 WHERE leader_id=? OR id IN (SELECT team_id FROM team_members WHERE user_id=?)
		 ORDER BY created_at DESC`, userID, userID)
}

func (r *TeamRepo) AllTeams(ctx context.Context) ([]model.Team, error) {
	return r.many(ctx, "SELECT "+teamColumns+" FROM teams ORDER BY created_at DESC")
}

// AddMember holds the team row lock while it counts members, so two
// joins cannot both take the last seat.
func (r *TeamRepo) AddMember(ctx context.Context, teamID string, m model.TeamMember, maxMembers int) (model.Team, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return model.Team{}, err
	}
	defer func() { _ = tx.Rollback() }()

	var id string
	err = tx.QueryRowContext(ctx, "SELECT id FROM teams WHERE id=? FOR UPDATE", teamID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Team{}, ErrNotFound
	}
	if err != nil {
		return model.Team{}, err
	}
	var count, mine int
	err = tx.QueryRowContext(ctx,
		"SELECT COUNT(*), COALESCE(SUM(user_id=?),0) FROM team_members WHERE team_id=?", m.UserID, teamID).
		Scan(&count, &mine)
	if err != nil {
		return model.Team{}, err
	}
	if mine > 0 {
		return model.Team{}, ErrAlreadyMember
	}
	if maxMembers > 0 && count >= maxMembers {
		return model.Team{}, ErrTeamFull
	}
	if err := insertMember(ctx, tx, teamID, m); err != nil {
		return model.Team{}, err
	}
	if _, err := tx.ExecContext(ctx, "UPDATE teams SET updated_at=? WHERE id=?", time.Now().UTC(), teamID); err != nil {
		return model.Team{}, err
	}
	if err := tx.Commit(); err != nil {
		return model.Team{}, err
	}
	return r.TeamByID(ctx, teamID)
}

func (r *TeamRepo) RemoveMember(ctx context.Context, teamID, userID string) (model.Team, error) {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM team_members WHERE team_id=? AND user_id=?", teamID, userID)
	if err != nil {
		return model.Team{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := r.TeamByID(ctx, teamID); err != nil {
			return model.Team{}, err
		}
		return model.Team{}, ErrMemberNotFound
	}
	return r.TeamByID(ctx, teamID)
}

func insertMember(ctx context.Context, tx *sql.Tx, teamID string, m model.TeamMember) error {
	_, err := tx.ExecContext(ctx,
		"INSERT INTO team_members (team_id,user_id,name,email,sap_id,joined_at,status) VALUES (?,?,?,?,?,?,?)",
		teamID, m.UserID, m.Name, m.Email, m.SAPID, m.JoinedAt.UTC(), string(m.Status))
	if _, dup := duplicateKey(err); dup {
		return ErrAlreadyMember
	}
	return err
}

func (r *TeamRepo) one(ctx context.Context, q string, args ...any) (model.Team, error) {
	var t model.Team
	err := r.DB.QueryRowContext(ctx, q, args...).
		Scan(&t.ID, &t.Name, &t.EventID, &t.LeaderID, &t.InviteCode, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return t, ErrNotFound
	}
	if err != nil {
		return t, err
	}
	t.Members, err = r.members(ctx, t.ID)
	return t, err
}

func (r *TeamRepo) many(ctx context.Context, q string, args ...any) ([]model.Team, error) {
	rows, err := r.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	var out []model.Team
	for rows.Next() {
		var t model.Team
		if err := rows.Scan(&t.ID, &t.Name, &t.EventID, &t.LeaderID, &t.InviteCode, &t.CreatedAt, &t.UpdatedAt); err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, t)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		if out[i].Members, err = r.members(ctx, out[i].ID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (r *TeamRepo) members(ctx context.Context, teamID string) ([]model.TeamMember, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT user_id,name,email,sap_id,joined_at,status FROM team_members WHERE team_id=? ORDER BY joined_at ASC, seq ASC", teamID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.TeamMember
	for rows.Next() {
		var m model.TeamMember
		var status string
		if err := rows.Scan(&m.UserID, &m.Name, &m.Email, &m.SAPID, &m.JoinedAt, &status); err != nil {
			return nil, err
		}
		m.Status = model.MemberStatus(status)
		out = append(out, m)
	}
	return out, rows.Err()
}
