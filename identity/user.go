// Package identity holds the minimal identity model the session core
// depends on: a user record, an argon2id credential verifier, and a
// store boundary. Full account CRUD lives outside this service.
package identity

import (
	"context"
	"errors"
	"time"
)

// RoleAdmin grants access to admin-only endpoints.
const RoleAdmin = "admin"

var (
	// ErrNotFound is returned when no user matches the lookup key.
	ErrNotFound = errors.New("identity: user not found")

	// ErrInvalidCredentials is the single failure mode of Verify. Unknown
	// user and wrong password are indistinguishable on purpose.
	ErrInvalidCredentials = errors.New("identity: invalid credentials")
)

// User is an authenticated identity.
type User struct {
	ID           string       `json:"id"`
	EmailAddress string       `json:"email_address"`
	Password     PasswordHash `json:"-"`
	Roles        []string     `json:"roles"`
	CreatedAt    time.Time    `json:"created_at"`
}

// HasRole reports whether the user carries the named role.
func (u *User) HasRole(role string) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// IsAdmin reports whether the user carries the admin role.
func (u *User) IsAdmin() bool {
	return u.HasRole(RoleAdmin)
}

// Store persists users. Lookup keys are normalized email addresses.
type Store interface {
	FindByID(ctx context.Context, id string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	Create(ctx context.Context, u *User) error
	UpdatePassword(ctx context.Context, id string, hash PasswordHash) error
}
