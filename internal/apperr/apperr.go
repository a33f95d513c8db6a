// Package apperr is the error taxonomy shared by services and handlers.
// Services return *Error values; handlers turn them into HTTP responses
// without inspecting anything but Kind, Status and Message.
package apperr

import (
	"errors"
	"net/http"
)

type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindAuth
	KindConflict
	KindNotFound
	KindPrecondition
	KindPaymentRequired
	KindForbidden
	KindUpstream
	KindConfig
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation_error"
	case KindAuth:
		return "auth_error"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	case KindPrecondition:
		return "precondition_failed"
	case KindPaymentRequired:
		return "payment_required"
	case KindForbidden:
		return "forbidden"
	case KindUpstream:
		return "upstream_error"
	case KindConfig:
		return "config_error"
	}
	return "internal_error"
}

// Error carries a user-facing message. Status overrides the kind's default
// HTTP status (used for upstream propagation and 401 vs 403 auth failures).
type Error struct {
	Kind    Kind
	Message string
	Status  int
	Code    string
	Details any
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func Validation(msg string) *Error { return &Error{Kind: KindValidation, Message: msg} }

// Auth is the 401 flavour: bad credentials or a missing token.
func Auth(msg string) *Error { return &Error{Kind: KindAuth, Message: msg} }

// TokenRejected is the 403 flavour: a token that is present but invalid,
// expired, or carries the wrong role.
func TokenRejected(msg string) *Error {
	return &Error{Kind: KindAuth, Message: msg, Status: http.StatusForbidden}
}

func Conflict(msg string) *Error        { return &Error{Kind: KindConflict, Message: msg} }
func NotFound(msg string) *Error        { return &Error{Kind: KindNotFound, Message: msg} }
func Precondition(msg string) *Error    { return &Error{Kind: KindPrecondition, Message: msg} }
func PaymentRequired(msg string) *Error { return &Error{Kind: KindPaymentRequired, Message: msg} }
func Forbidden(msg string) *Error       { return &Error{Kind: KindForbidden, Message: msg} }
func Config(msg string) *Error          { return &Error{Kind: KindConfig, Message: msg} }

// Upstream wraps a non-success gateway response. The gateway's status,
// code and message are kept verbatim.
func Upstream(status int, code, msg string, body any) *Error {
	return &Error{Kind: KindUpstream, Message: msg, Status: status, Code: code, Details: body}
}

func Internal(msg string, err error) *Error {
	return &Error{Kind: KindInternal, Message: msg, Err: err}
}

// KindOf reports the kind of err, or KindInternal for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err is an *Error of kind k.
func Is(err error, k Kind) bool { return err != nil && KindOf(err) == k }

// HTTPStatus maps err to the status code the API answers with.
func HTTPStatus(err error) int {
	var e *Error
	if !errors.As(err, &e) {
		return http.StatusInternalServerError
	}
	if e.Status != 0 {
		return e.Status
	}
	switch e.Kind {
	case KindValidation, KindConflict, KindPrecondition, KindPaymentRequired:
		return http.StatusBadRequest
	case KindAuth:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	case KindForbidden:
		return http.StatusForbidden
	case KindUpstream:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
