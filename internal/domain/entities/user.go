package entities

import (
	"time"
)

// Role controls what a user may do
type Role string

const (
	RoleUser    Role = "user"
	RolePGOwner Role = "pgOwner"
	RoleAdmin   Role = "admin"
)

// User represents an account in the system
type User struct {
	ID                   string     `json:"id" db:"id"`
	Name                 string     `json:"name" db:"name"`
	Email                string     `json:"email" db:"email"`
	Phone                string     `json:"phone,omitempty" db:"phone"`
	About                string     `json:"about,omitempty" db:"about"`
	Address              string     `json:"address,omitempty" db:"address"`
	PasswordHash         string     `json:"-" db:"password_hash"`
	Role                 Role       `json:"role" db:"role"`
	PasswordChangedAt    *time.Time `json:"-" db:"password_changed_at"`
	PasswordResetToken   string     `json:"-" db:"password_reset_token"`
	PasswordResetExpires *time.Time `json:"-" db:"password_reset_expires"`
	CreatedAt            time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt            time.Time  `json:"updatedAt" db:"updated_at"`
}

// ChangedPasswordAfter reports whether the password changed after a token was issued
func (u *User) ChangedPasswordAfter(issuedAt time.Time) bool {
	if u.PasswordChangedAt == nil {
		return false
	}
	return u.PasswordChangedAt.Truncate(time.Second).After(issuedAt)
}

// HasRole reports whether the user holds any of roles
func (u *User) HasRole(roles ...Role) bool {
	for _, r := range roles {
		if u.Role == r {
			return true
		}
	}
	return false
}

// UserProfile is the response for GET /me
type UserProfile struct {
	*User
	Listings []*Listing `json:"pgs"`
}
