package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrChallengeNotFound means no unexpired challenge exists for the ceremony.
	ErrChallengeNotFound = errors.New("challenge not found or expired")
	// ErrCredentialNotFound means the asserted credential is not registered to the user.
	ErrCredentialNotFound = errors.New("credential not found")
	// ErrNoCredentialsRegistered means the user has no biometric credentials.
	ErrNoCredentialsRegistered = errors.New("no biometric credentials registered")
	// ErrVerificationFailed means the attestation or assertion did not verify.
	ErrVerificationFailed = errors.New("biometric verification failed")
	// ErrSignCountNotIncreasing means the authenticator counter did not advance,
	// which indicates a cloned authenticator.
	ErrSignCountNotIncreasing = fmt.Errorf("%w: sign count did not increase", ErrVerificationFailed)
	// ErrUserNotFound means the ceremony owner does not exist.
	ErrUserNotFound = errors.New("user not found")
	// ErrStorageUnavailable wraps persistence failures.
	ErrStorageUnavailable = errors.New("credential storage unavailable")
)

// Credential is a registered WebAuthn public key credential.
type Credential struct {
	ID              []byte
	UserID          string
	PublicKey       []byte
	AttestationType string
	AAGUID          []byte
	SignCount       uint32
	Transports      []string
	BackupEligible  bool
	BackupState     bool
	CreatedAt       time.Time
	LastUsedAt      *time.Time
}

// CheckSignCount enforces a strictly increasing signature counter. Authenticators that
// do not implement counters report zero on every assertion, so 0 after 0 is accepted.
func CheckSignCount(stored, got uint32) error {
	if stored == 0 && got == 0 {
		return nil
	}
	if got <= stored {
		return ErrSignCountNotIncreasing
	}
	return nil
}
