package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"

	"github.com/ambiora/techfest-backend/internal/model"
)

type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

const userColumns = "id,name,email,phone,sap_id,password_hash,created_at,updated_at"

// CreateUser inserts u. Email uniqueness and non-empty SAP id uniqueness
// are enforced by unique indexes; an empty SAP id is stored as NULL.
func (r *UserRepo) CreateUser(ctx context.Context, u *model.User) error {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	u.CreatedAt, u.UpdatedAt = now, now
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO users ("+userColumns+") VALUES (?,?,?,?,?,?,?,?)",
		u.ID, u.Name, u.Email, u.Phone, nullString(u.SAPID), u.PasswordHash, now, now)
	return mapUserDup(err)
}

// UserByEmail fetches a user by normalized email.
func (r *UserRepo) UserByEmail(ctx context.Context, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	row := r.DB.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1", email)
	return scanUser(row)
}

func (r *UserRepo) UserByID(ctx context.Context, id string) (model.User, error) {
	row := r.DB.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id)
	return scanUser(row)
}

func (r *UserRepo) UsersByIDs(ctx context.Context, ids []string) (map[string]model.User, error) {
	out := make(map[string]model.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id IN ("+placeholders(len(ids))+")", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out[u.ID] = u
	}
	return out, rows.Err()
}

// UpdateUser applies the non-nil fields of upd.
func (r *UserRepo) UpdateUser(ctx context.Context, id string, upd model.ProfileUpdate) (model.User, error) {
	sets := []string{"updated_at=?"}
	args := []any{time.Now().UTC()}
	if upd.Name != nil {
		sets = append(sets, "name=?")
		args = append(args, *upd.Name)
	}
	if upd.Phone != nil {
		sets = append(sets, "phone=?")
		args = append(args, *upd.Phone)
	}
	if upd.SAPID != nil {
		sets = append(sets, "sap_id=?")
		args = append(args, nullString(*upd.SAPID))
	}
	args = append(args, id)
	res, err := r.DB.ExecContext(ctx, "UPDATE users SET "+strings.Join(sets, ",")+" WHERE id=?", args...)
	if err != nil {
		return model.User{}, mapUserDup(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.User{}, ErrNotFound
	}
	return r.UserByID(ctx, id)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(s rowScanner) (model.User, error) {
	var u model.User
	var sap sql.NullString
	err := s.Scan(&u.ID, &u.Name, &u.Email, &u.Phone, &sap, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return u, ErrNotFound
	}
	u.SAPID = sap.String
	return u, err
}

func mapUserDup(err error) error {
	if key, ok := duplicateKey(err); ok {
		if strings.Contains(key, "sap") {
			return ErrSAPIDExists
		}
		return ErrEmailExists
	}
	return err
}

// duplicateKey reports whether err is MySQL error 1062 and returns the
// driver message, which names the violated index.
func duplicateKey(err error) (string, bool) {
	var me *mysql.MySQLError
	if errors.As(err, &me) && me.Number == 1062 {
		return me.Message, true
	}
	return "", false
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
