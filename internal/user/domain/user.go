package domain

import (
	"errors"
	"strings"
	"time"
)

var (
	// ErrEmailTaken is returned by Create/Update when another user already has the email.
	ErrEmailTaken = errors.New("email already registered")
	// ErrUsernameTaken is returned by Create/Update when another user already has the username.
	ErrUsernameTaken = errors.New("username already taken")
	// ErrStorageUnavailable wraps persistence failures.
	ErrStorageUnavailable = errors.New("user storage unavailable")
)

// User is the vault account owner.
type User struct {
	ID               string
	Name             string
	Username         string
	Email            string
	PasswordHash     string
	TwoFactorEnabled bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Validate validates the user for persistence. Returns an error describing the first validation failure.
func (u *User) Validate() error {
	if u.ID == "" {
		return errors.New("id is required")
	}
	if u.Email == "" {
		return errors.New("email is required")
	}
	if strings.TrimSpace(u.Name) == "" {
		return errors.New("name is required")
	}
	if u.PasswordHash == "" {
		return errors.New("password hash is required")
	}
	if u.Username == "" {
		u.Username = UsernameFromEmail(u.Email)
	}
	return nil
}

// UsernameFromEmail derives a default username from the local part of email.
func UsernameFromEmail(email string) string {
	local, _, _ := strings.Cut(email, "@")
	return local
}
