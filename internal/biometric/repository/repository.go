package repository

import (
	"context"
	"time"

	"secret-vault/backend/internal/biometric/domain"
)

// Repository persists WebAuthn credentials. Get returns (nil, nil) when no credential matches.
type Repository interface {
	Create(ctx context.Context, c *domain.Credential) error
	Get(ctx context.Context, credentialID []byte) (*domain.Credential, error)
	ListByUser(ctx context.Context, userID string) ([]*domain.Credential, error)
	CountByUser(ctx context.Context, userID string) (int, error)
	UpdateSignCount(ctx context.Context, credentialID []byte, count uint32, usedAt time.Time) error
	DeleteByUser(ctx context.Context, userID string) (int64, error)
}
