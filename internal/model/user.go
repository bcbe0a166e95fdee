// Package model defines the data structures used throughout the application.
package model

import "time"

// Role is the civic role a user registered with.
type Role string

const (
	RoleCitizen  Role = "Citizen"
	RoleExpert   Role = "Expert"
	RoleLawmaker Role = "Lawmaker"
)

// Valid reports whether r is one of the three known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleCitizen, RoleExpert, RoleLawmaker:
		return true
	}
	return false
}

// User represents a registered account.
//
// ID is our internal primary key (xid) and never leaves the server in a URL.
// UserID is the short public code shown to people and, for now, used as the
// bearer value on authenticated calls. Both are assigned once and never change.
//
// Password holds the bcrypt hash for accounts that registered with
// email+password. It is empty for Google-only accounts and never serialized.
//
// GoogleID marks a federated identity. It is nil for password-only accounts;
// the column is UNIQUE so one Google account maps to exactly one user.
type User struct {
	ID        string    `json:"-"`
	UserID    string    `json:"userId"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	Password  string    `json:"-"`
	GoogleID  *string   `json:"googleId,omitempty"`
	Picture   string    `json:"picture,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// HasPassword reports whether the account can log in with email+password.
func (u *User) HasPassword() bool {
	return u.Password != ""
}
