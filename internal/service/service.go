// Package service holds the registration, payment, team and admin rules.
// Every exported method returns *apperr.Error values for expected
// failures; anything else is an internal error.
package service

import (
	"errors"
	"strings"
	"time"

	"github.com/ambiora/techfest-backend/internal/apperr"
	"github.com/ambiora/techfest-backend/internal/repository"
)

func storeErr(op string, err error) error {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return ae
	}
	return apperr.Internal(op, err)
}

func notFoundOr(err error, msg, op string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.NotFound(msg)
	}
	return storeErr(op, err)
}

func clock(now func() time.Time) time.Time {
	if now != nil {
		return now().UTC()
	}
	return time.Now().UTC()
}

func stripSpaces(s string) string {
	return strings.Join(strings.Fields(s), "")
}
