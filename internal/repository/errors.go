// Package repository defines the persistence contracts for users,
// registrations and teams, plus the MySQL implementation. Every store
// enforces uniqueness at the database layer and reports violations
// through the sentinel errors below so callers never check-then-insert.
package repository

import "errors"

var (
	// ErrNotFound is returned when the addressed record does not exist.
	ErrNotFound = errors.New("not found")

	ErrEmailExists     = errors.New("email already exists")
	ErrSAPIDExists     = errors.New("sap id already exists")
	ErrOrderExists     = errors.New("order id already exists")
	ErrTeamExists      = errors.New("team already exists for leader and event")
	ErrInviteCodeTaken = errors.New("invite code already in use")
	ErrAlreadyMember   = errors.New("user already a member")
	ErrMemberNotFound  = errors.New("member not found")
	ErrTeamFull        = errors.New("team is full")

	// ErrStaleWrite means a compare-and-set lost: the record's payment
	// status was no longer the expected one.
	ErrStaleWrite = errors.New("stale write")
)
