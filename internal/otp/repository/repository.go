package repository

import (
	"context"
	"time"

	"secret-vault/backend/internal/otp/domain"
)

// DefaultCodeTTL is the lifetime of an issued code.
const DefaultCodeTTL = 10 * time.Minute

// Store persists one-time codes keyed by (email, purpose).
//
// Put replaces any prior code for the pair atomically, so at most one exists at a time.
// Get returns (nil, nil) when no code exists. It does not judge expiry; an expired code is
// returned as stored so the caller can compare it before reporting the lapse. Consume deletes the code only if it is still the one
// described by c and reports whether it did, so exactly one of several concurrent
// verifies can succeed. Storage failures are wrapped with domain.ErrStorageUnavailable.
type Store interface {
	Put(ctx context.Context, c *domain.OneTimeCode) error
	Get(ctx context.Context, email string, purpose domain.Purpose) (*domain.OneTimeCode, error)
	Consume(ctx context.Context, c *domain.OneTimeCode) (bool, error)
	InvalidateAll(ctx context.Context, email string, purpose domain.Purpose) error
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}
