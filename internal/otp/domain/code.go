package domain

import (
	"errors"
	"strings"
	"time"
)

// Purpose scopes a one-time code to the flow it authorizes.
type Purpose string

const (
	PurposeSignup      Purpose = "signup"
	PurposeLogin       Purpose = "login"
	PurposeReset       Purpose = "reset"
	PurposeEmailChange Purpose = "email-change"
)

var (
	// ErrCodeNotFound is returned when no active code exists for the email and purpose.
	ErrCodeNotFound = errors.New("verification code not found")
	// ErrInvalidCode is returned when the submitted code does not match.
	ErrInvalidCode = errors.New("invalid verification code")
	// ErrCodeExpired is returned when the code exists but is past its expiry.
	ErrCodeExpired = errors.New("verification code expired")
	// ErrEmailDispatchFailed is returned when the code could not be emailed.
	ErrEmailDispatchFailed = errors.New("verification email could not be sent")
	// ErrInvalidPurpose is returned for a purpose outside the known set.
	ErrInvalidPurpose = errors.New("invalid verification purpose")
	// ErrStorageUnavailable wraps persistence failures.
	ErrStorageUnavailable = errors.New("code storage unavailable")
)

// OneTimeCode is a single-use code bound to an email and a purpose. Only the
// SHA-256 digest of the code is kept. Records are never mutated after creation.
type OneTimeCode struct {
	Email     string
	Purpose   Purpose
	CodeHash  string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// ExpiredAt reports whether the code is expired at t.
func (c *OneTimeCode) ExpiredAt(t time.Time) bool {
	return !c.ExpiresAt.After(t)
}

// Valid reports whether p is one of the known purposes.
func (p Purpose) Valid() bool {
	switch p {
	case PurposeSignup, PurposeLogin, PurposeReset, PurposeEmailChange:
		return true
	}
	return false
}

// NormalizeEmail trims and lowercases an address for use as a lookup key.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
