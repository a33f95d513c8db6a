package utils // package utils provides helper functions for token creation and hashing

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken covers every reason a bearer token is refused: bad
// signature, wrong algorithm, expiry or malformed claims.
var ErrInvalidToken = errors.New("invalid or expired token")

// AccessToken is a signed HS256 JWT along with its expiry.
type AccessToken struct {
	Token string
	Exp   time.Time
}

// Claims is the identity recovered from a verified token.
type Claims struct {
	Subject string
	Role    string
	Email   string
}

// NewAccessToken signs a token for subject. Admin tokens have an empty
// subject since the admin is not a database user.
func NewAccessToken(secret, subject, role, email string, ttl time.Duration) (AccessToken, error) {
	now := time.Now().UTC()
	exp := now.Add(ttl)
	claims := jwt.MapClaims{
		"sub":  subject,
		"role": role,
		"exp":  exp.Unix(),
		"iat":  now.Unix(),
	}
	if email != "" {
		claims["email"] = email
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString([]byte(secret))
	if err != nil {
		return AccessToken{}, err
	}
	return AccessToken{Token: signed, Exp: exp}, nil
}

// ParseAccessToken verifies signature and expiry and returns the claims.
func ParseAccessToken(secret, raw string) (Claims, error) {
	tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil || !tok.Valid {
		return Claims{}, ErrInvalidToken
	}
	mc, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return Claims{}, ErrInvalidToken
	}
	var c Claims
	c.Subject, _ = mc["sub"].(string)
	c.Role, _ = mc["role"].(string)
	c.Email, _ = mc["email"].(string)
	if c.Role == "" {
		return Claims{}, ErrInvalidToken
	}
	return c, nil
}
