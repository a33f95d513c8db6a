package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/ambiora/techfest-backend/internal/apperr"
	"github.com/ambiora/techfest-backend/internal/model"
	"github.com/ambiora/techfest-backend/internal/repository"
	"github.com/ambiora/techfest-backend/internal/utils"
)

const minPasswordLen = 6

type AuthService struct {
	Users      repository.UserStore
	Secret     string
	TokenTTL   time.Duration
	BcryptCost int
}

type SignupInput struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	SAPID    string `json:"sapId"`
	Password string `json:"password"`
}

// AuthResult is returned by signup and login.
type AuthResult struct {
	Token     string           `json:"token"`
	ExpiresAt time.Time        `json:"expiresAt"`
	User      model.PublicUser `json:"user"`
}

func (s *AuthService) Signup(ctx context.Context, in SignupInput) (AuthResult, error) {
	u := model.User{
		Name:  strings.TrimSpace(in.Name),
		Email: strings.ToLower(strings.TrimSpace(in.Email)),
		Phone: stripSpaces(in.Phone),
		SAPID: strings.TrimSpace(in.SAPID),
	}
	if u.Name == "" || u.Email == "" || u.Phone == "" || in.Password == "" {
		return AuthResult{}, apperr.Validation("All fields are required")
	}
	if !strings.Contains(u.Email, "@") {
		return AuthResult{}, apperr.Validation("Please enter a valid email address")
	}
	if len(in.Password) < minPasswordLen {
		return AuthResult{}, apperr.Validation("Password must be at least 6 characters")
	}

	hash, err := utils.HashPassword(in.Password, s.BcryptCost)
	if errors.Is(err, utils.ErrPasswordTooLong) {
		return AuthResult{}, apperr.Validation("Password must be at most 72 characters")
	}
	if err != nil {
		return AuthResult{}, apperr.Internal("hash password", err)
	}
	u.PasswordHash = hash

	if err := s.Users.CreateUser(ctx, &u); err != nil {
		switch {
		case errors.Is(err, repository.ErrEmailExists):
			return AuthResult{}, apperr.Conflict("Email already registered")
		case errors.Is(err, repository.ErrSAPIDExists):
			return AuthResult{}, apperr.Conflict("SAP ID already registered")
		}
		return AuthResult{}, storeErr("create user", err)
	}
	log.Printf("auth: new user registered: %s", u.Email)
	return s.issue(u)
}

// Login answers the same message for unknown emails and wrong passwords.
func (s *AuthService) Login(ctx context.Context, email, password string) (AuthResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return AuthResult{}, apperr.Validation("Email and password are required")
	}
	u, err := s.Users.UserByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return AuthResult{}, apperr.Auth("Invalid email or password")
	}
	if err != nil {
		return AuthResult{}, storeErr("load user", err)
	}
	if !utils.VerifyPassword(u.PasswordHash, password) {
		return AuthResult{}, apperr.Auth("Invalid email or password")
	}
	return s.issue(u)
}

func (s *AuthService) CurrentUser(ctx context.Context, userID string) (model.PublicUser, error) {
	u, err := s.Users.UserByID(ctx, userID)
	if err != nil {
		return model.PublicUser{}, notFoundOr(err, "User not found", "load user")
	}
	return u.Public(), nil
}

func (s *AuthService) UpdateProfile(ctx context.Context, userID string, upd model.ProfileUpdate) (model.PublicUser, error) {
	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			return model.PublicUser{}, apperr.Validation("Name cannot be empty")
		}
		upd.Name = &name
	}
	if upd.Phone != nil {
		phone := stripSpaces(*upd.Phone)
		if phone == "" {
			return model.PublicUser{}, apperr.Validation("Phone cannot be empty")
		}
		upd.Phone = &phone
	}
	if upd.SAPID != nil {
		sap := strings.TrimSpace(*upd.SAPID)
		if sap != "" && len(sap) < 3 {
			return model.PublicUser{}, apperr.Validation("SAP ID must be at least 3 characters")
		}
		upd.SAPID = &sap
	}

	u, err := s.Users.UpdateUser(ctx, userID, upd)
	if errors.Is(err, repository.ErrSAPIDExists) {
		return model.PublicUser{}, apperr.Conflict("SAP ID already registered to another account")
	}
	if err != nil {
		return model.PublicUser{}, notFoundOr(err, "User not found", "update user")
	}
	return u.Public(), nil
}

func (s *AuthService) issue(u model.User) (AuthResult, error) {
	tok, err := utils.NewAccessToken(s.Secret, u.ID, model.RoleUser, u.Email, s.TokenTTL)
	if err != nil {
		return AuthResult{}, apperr.Internal("issue token", err)
	}
	return AuthResult{Token: tok.Token, ExpiresAt: tok.Exp, User: u.Public()}, nil
}

// AdminAuth checks the single configured admin secret. There is no admin
// user record.
type AdminAuth struct {
	Password string
	Secret   string
	TokenTTL time.Duration
}

type AdminToken struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func (a *AdminAuth) Login(password string) (AdminToken, error) {
	if a.Password == "" {
		return AdminToken{}, apperr.Config("Admin login is not configured")
	}
	if password == "" || subtle.ConstantTimeCompare([]byte(password), []byte(a.Password)) != 1 {
		return AdminToken{}, apperr.Auth("Invalid admin password")
	}
	tok, err := utils.NewAccessToken(a.Secret, "", model.RoleAdmin, "", a.TokenTTL)
	if err != nil {
		return AdminToken{}, apperr.Internal("issue token", err)
	}
	return AdminToken{Token: tok.Token, ExpiresAt: tok.Exp}, nil
}
