package service

import (
	"context"
	"testing"
	"time"

	"github.com/ambiora/techfest-backend/internal/apperr"
	"github.com/ambiora/techfest-backend/internal/model"
	"github.com/ambiora/techfest-backend/internal/utils"
)

func TestSignupLoginProfileFlow(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	signed, err := f.auth.Signup(ctx, SignupInput{Name: "Alice", Email: "alice@x.com", Phone: "99999 00000", Password: "pw123456"})
	if err != nil {
		t.Fatalf("Signup failed: %v", err)
	}
	if signed.User.Phone != "9999900000" {
		t.Errorf("Expected phone whitespace stripped, got %q", signed.User.Phone)
	}

	res, err := f.auth.Login(ctx, "alice@x.com", "pw123456")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	claims, err := utils.ParseAccessToken(testSecret, res.Token)
	if err != nil {
		t.Fatalf("token did not verify: %v", err)
	}
	if claims.Subject != signed.User.ID || claims.Role != model.RoleUser || claims.Email != "alice@x.com" {
		t.Errorf("Unexpected claims %+v", claims)
	}

	if _, err := f.auth.UpdateProfile(ctx, claims.Subject, model.ProfileUpdate{SAPID: strPtr(" SAP100 ")}); err != nil {
		t.Fatalf("UpdateProfile failed: %v", err)
	}
	u, err := f.auth.CurrentUser(ctx, claims.Subject)
	if err != nil {
		t.Fatalf("CurrentUser failed: %v", err)
	}
	if u.SAPID != "SAP100" {
		t.Errorf("Expected sapId SAP100, got %q", u.SAPID)
	}
}

func TestSignupValidation(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	cases := []struct {
		name string
		in   SignupInput
	}{
		{"missing name", SignupInput{Email: "a@x.com", Phone: "1", Password: "pw123456"}},
		{"missing phone", SignupInput{Name: "A", Email: "a@x.com", Password: "pw123456"}},
		{"missing password", SignupInput{Name: "A", Email: "a@x.com", Phone: "1"}},
		{"bad email", SignupInput{Name: "A", Email: "ax.com", Phone: "1", Password: "pw123456"}},
		{"short password", SignupInput{Name: "A", Email: "a@x.com", Phone: "1", Password: "pw1"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.auth.Signup(context.Background(), tc.in)
			expectKind(t, err, apperr.KindValidation)
		})
	}
}

func TestSignupDuplicates(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	f.signup(t, "Bob@X.com", "SAP200")

	_, err := f.auth.Signup(ctx, SignupInput{Name: "B", Email: "bob@x.com", Phone: "1", Password: "pw123456"})
	expectKind(t, err, apperr.KindConflict)
	if err.Error() != "Email already registered" {
		t.Errorf("Unexpected message %q", err.Error())
	}

	_, err = f.auth.Signup(ctx, SignupInput{Name: "C", Email: "carol@x.com", Phone: "1", SAPID: "SAP200", Password: "pw123456"})
	expectKind(t, err, apperr.KindConflict)
}

func TestLoginRejectsWithoutEnumeration(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.signup(t, "dave@x.com", "")

	_, unknown := f.auth.Login(context.Background(), "nobody@x.com", "pw123456")
	_, wrong := f.auth.Login(context.Background(), "dave@x.com", "nope")
	expectKind(t, unknown, apperr.KindAuth)
	expectKind(t, wrong, apperr.KindAuth)
	if unknown.Error() != wrong.Error() {
		t.Errorf("Expected identical messages, got %q and %q", unknown, wrong)
	}
	if apperr.HTTPStatus(wrong) != 401 {
		t.Errorf("Expected 401, got %d", apperr.HTTPStatus(wrong))
	}

	if _, err := f.auth.Login(context.Background(), " DAVE@x.com ", "pw123456"); err != nil {
		t.Errorf("Expected case-insensitive login, got %v", err)
	}
}

func TestUpdateProfileSAPID(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	erin := f.signup(t, "erin@x.com", "SAP300")
	frank := f.signup(t, "frank@x.com", "")

	_, err := f.auth.UpdateProfile(ctx, frank.ID, model.ProfileUpdate{SAPID: strPtr("S1")})
	expectKind(t, err, apperr.KindValidation)

	_, err = f.auth.UpdateProfile(ctx, frank.ID, model.ProfileUpdate{SAPID: strPtr("SAP300")})
	expectKind(t, err, apperr.KindConflict)

	if _, err := f.auth.UpdateProfile(ctx, erin.ID, model.ProfileUpdate{SAPID: strPtr("SAP300"), Name: strPtr("Erin E")}); err != nil {
		t.Errorf("Expected re-saving own SAP id to succeed, got %v", err)
	}

	_, err = f.auth.UpdateProfile(ctx, "missing", model.ProfileUpdate{Name: strPtr("x")})
	expectKind(t, err, apperr.KindNotFound)
}

func TestAdminLogin(t *testing.T) {
	t.Parallel()

	_, err := (&AdminAuth{Secret: testSecret, TokenTTL: time.Hour}).Login("anything")
	expectKind(t, err, apperr.KindConfig)

	a := &AdminAuth{Password: "letmein", Secret: testSecret, TokenTTL: 24 * time.Hour}
	_, err = a.Login("wrong")
	expectKind(t, err, apperr.KindAuth)

	tok, err := a.Login("letmein")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	claims, err := utils.ParseAccessToken(testSecret, tok.Token)
	if err != nil {
		t.Fatalf("token did not verify: %v", err)
	}
	if claims.Role != model.RoleAdmin {
		t.Errorf("Expected admin role, got %q", claims.Role)
	}
}
