package repository

import (
	"context"

	"secret-vault/backend/internal/audit/domain"
)

// Repository defines persistence for audit logs.
type Repository interface {
	Create(ctx context.Context, a *domain.AuditLog) error
	// ListByUser returns the user's events, newest first, paginated by limit and offset.
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]*domain.AuditLog, error)
}
