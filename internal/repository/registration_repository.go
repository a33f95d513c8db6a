package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ambiora/techfest-backend/internal/model"
)

type RegistrationRepo struct{ DB *sql.DB }

func NewRegistrationRepo(db *sql.DB) *RegistrationRepo { return &RegistrationRepo{DB: db} }

const registrationColumns = "id,user_id,user_name,user_email,user_phone,user_sap_id,events,total_amount," +
	"order_id,payment_status,payment_session_id,payment_details,reconcile_attempts,last_checked_at,created_at,updated_at"

func (r *RegistrationRepo) CreateRegistration(ctx context.Context, reg *model.Registration) error {
	if reg.ID == "" {
		reg.ID = uuid.NewString()
	}
	if reg.PaymentStatus == "" {
		reg.PaymentStatus = model.PaymentPending
	}
	now := time.Now().UTC()
	reg.CreatedAt, reg.UpdatedAt = now, now
	events, err := json.Marshal(reg.Events)
	if err != nil {
		return err
	}
	details, err := marshalDetails(reg.PaymentDetails)
	if err != nil {
		return err
	}
	_, err = r.DB.ExecContext(ctx,
		"INSERT INTO registrations ("+registrationColumns+") VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)",
		reg.ID, reg.UserID, reg.UserName, reg.UserEmail, reg.UserPhone, reg.UserSAPID, events, reg.TotalAmount,
		reg.OrderID, string(reg.PaymentStatus), reg.PaymentSessionID, details, 0, nil, now, now)
	if _, dup := duplicateKey(err); dup {
		return ErrOrderExists
	}
	return err
}

func (r *RegistrationRepo) RegistrationByOrderID(ctx context.Context, orderID string) (model.Registration, error) {
	row := r.DB.QueryRowContext(ctx,
		"SELECT "+registrationColumns+" FROM registrations WHERE order_id=? LIMIT 1", orderID)
	return scanRegistration(row)
}

func (r *RegistrationRepo) RegistrationsByUser(ctx context.Context, userID string) ([]model.Registration, error) {
	return r.query(ctx,
		"SELECT "+registrationColumns+" FROM registrations WHERE user_id=? ORDER BY created_at DESC", userID)
}

func (r *RegistrationRepo) AllRegistrations(ctx context.Context) ([]model.Registration, error) {
	return r.query(ctx, "SELECT "+registrationColumns+" FROM registrations ORDER BY created_at DESC")
}

// PendingRegistrations relies on MySQL sorting NULL last_checked_at first.
func (r *RegistrationRepo) PendingRegistrations(ctx context.Context, olderThan time.Time, limit int) ([]model.Registration, error) {
	return r.query(ctx,
		`SELECT `+registrationColumns+` FROM registrations
		 WHERE payment_status=? AND created_at<?
		 ORDER BY last_checked_at ASC, created_at ASC LIMIT ?`,
		string(model.PaymentPending), olderThan.UTC(), limit)
}

func (r *RegistrationRepo) MarkChecked(ctx context.Context, orderID string, at time.Time) (model.Registration, error) {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE registrations SET last_checked_at=?, reconcile_attempts=reconcile_attempts+1 WHERE order_id=? AND payment_status=?",
		at.UTC(), orderID, string(model.PaymentPending))
	if err != nil {
		return model.Registration{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := r.RegistrationByOrderID(ctx, orderID); err != nil {
			return model.Registration{}, err
		}
		return model.Registration{}, ErrStaleWrite
	}
	return r.RegistrationByOrderID(ctx, orderID)
}

// UpdatePayment is a single conditional UPDATE on (order_id, payment_status).
// The DSN sets clientFoundRows so a same-value write still counts as a match.
func (r *RegistrationRepo) UpdatePayment(ctx context.Context, orderID string, upd model.PaymentUpdate) (model.Registration, error) {
	sets := []string{"updated_at=?"}
	args := []any{time.Now().UTC()}
	if upd.Status != nil {
		sets = append(sets, "payment_status=?")
		args = append(args, string(*upd.Status))
	}
	if upd.PaymentSessionID != nil {
		sets = append(sets, "payment_session_id=?")
		args = append(args, *upd.PaymentSessionID)
	}
	if upd.Details != nil {
		details, err := marshalDetails(upd.Details)
		if err != nil {
			return model.Registration{}, err
		}
		sets = append(sets, "payment_details=?")
		args = append(args, details)
	}
	args = append(args, orderID, string(upd.From))
	res, err := r.DB.ExecContext(ctx,
		"UPDATE registrations SET "+strings.Join(sets, ",")+" WHERE order_id=? AND payment_status=?", args...)
	if err != nil {
		return model.Registration{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := r.RegistrationByOrderID(ctx, orderID); err != nil {
			return model.Registration{}, err
		}
		return model.Registration{}, ErrStaleWrite
	}
	return r.RegistrationByOrderID(ctx, orderID)
}

// HasPaidRegistration checks the events JSON array for a matching line.
func (r *RegistrationRepo) HasPaidRegistration(ctx context.Context, userID, eventID string) (bool, error) {
	var n int
	err := r.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM registrations
		 WHERE user_id=? AND payment_status=?
		   AND JSON_CONTAINS(events, JSON_OBJECT('eventId', ?))`,
		userID, string(model.PaymentSuccess), eventID).Scan(&n)
	return n > 0, err
}

func (r *RegistrationRepo) query(ctx context.Context, q string, args ...any) ([]model.Registration, error) {
	rows, err := r.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Registration
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, reg)
	}
	return out, rows.Err()
}

func scanRegistration(s rowScanner) (model.Registration, error) {
	var (
		reg     model.Registration
		status  string
		events  []byte
		details []byte
		checked sql.NullTime
	)
	err := s.Scan(&reg.ID, &reg.UserID, &reg.UserName, &reg.UserEmail, &reg.UserPhone, &reg.UserSAPID, &events,
		&reg.TotalAmount, &reg.OrderID, &status, &reg.PaymentSessionID, &details, &reg.ReconcileAttempts, &checked,
		&reg.CreatedAt, &reg.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return reg, ErrNotFound
	}
	if err != nil {
		return reg, err
	}
	reg.PaymentStatus = model.PaymentStatus(status)
	if checked.Valid {
		at := checked.Time
		reg.LastCheckedAt = &at
	}
	if err := json.Unmarshal(events, &reg.Events); err != nil {
		return reg, err
	}
	if len(details) > 0 {
		if err := json.Unmarshal(details, &reg.PaymentDetails); err != nil {
			return reg, err
		}
	}
	return reg, nil
}

func marshalDetails(d map[string]any) ([]byte, error) {
	if d == nil {
		return nil, nil
	}
	return json.Marshal(d)
}
