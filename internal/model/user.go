package model

import "time"

// Roles carried in the token "role" claim.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User is an attendee account. Email is stored lowercased; SAPID is the
// optional college member id and is unique when non-empty.
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Phone        string    `json:"phone"`
	SAPID        string    `json:"sapId,omitempty"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// PublicUser is the sanitized view returned to clients.
type PublicUser struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	SAPID     string    `json:"sapId"`
	CreatedAt time.Time `json:"createdAt"`
}

func (u User) Public() PublicUser {
	return PublicUser{ID: u.ID, Name: u.Name, Email: u.Email, Phone: u.Phone, SAPID: u.SAPID, CreatedAt: u.CreatedAt}
}

// ProfileUpdate is a partial update; nil fields are left untouched.
type ProfileUpdate struct {
	Name  *string `json:"name"`
	Phone *string `json:"phone"`
	SAPID *string `json:"sapId"`
}
