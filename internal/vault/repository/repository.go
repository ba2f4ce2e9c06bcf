package repository

import (
	"context"
	"time"

	"secret-vault/backend/internal/vault/domain"
)

// Repository persists sealed vault entries. Every method is scoped to one owner; an id that
// belongs to another user behaves as if it does not exist.
type Repository interface {
	// Create inserts e.
	Create(ctx context.Context, e *domain.SealedEntry) error
	// CreateMany inserts entries in one statement.
	CreateMany(ctx context.Context, entries []*domain.SealedEntry) error
	// Get returns the entry, or nil if not found.
	Get(ctx context.Context, userID, id string) (*domain.SealedEntry, error)
	// List returns matching entries, most recently updated first.
	List(ctx context.Context, userID string, f domain.Filter) ([]*domain.SealedEntry, error)
	// Update overwrites every mutable column of e. Returns domain.ErrEntryNotFound if absent.
	Update(ctx context.Context, e *domain.SealedEntry) error
	// Delete removes the entry. Returns domain.ErrEntryNotFound if absent.
	Delete(ctx context.Context, userID, id string) error
	// DeleteMany removes the listed entries and returns how many were removed.
	DeleteMany(ctx context.Context, userID string, ids []string) (int64, error)
	// SetCategory moves the listed entries to c and returns how many changed.
	SetCategory(ctx context.Context, userID string, ids []string, c domain.Category, updatedAt time.Time) (int64, error)
	// ReassignCategory moves every entry in from to to and returns how many changed.
	ReassignCategory(ctx context.Context, userID string, from, to domain.Category, updatedAt time.Time) (int64, error)
}
