package repository

import (
	"context"

	"secret-vault/backend/internal/category/domain"
)

// Repository persists each user's categories.
type Repository interface {
	// List returns the user's categories by position. An unseeded user has none.
	List(ctx context.Context, userID string) ([]*domain.Category, error)
	// Seed inserts cats, skipping values the user already has.
	Seed(ctx context.Context, cats []domain.Category) error
	// Create inserts c. Returns domain.ErrCategoryExists if the value is taken.
	Create(ctx context.Context, c *domain.Category) error
	// Update writes the label and icon of c. Returns domain.ErrCategoryNotFound if absent.
	Update(ctx context.Context, c *domain.Category) error
	// Delete removes one category. Returns domain.ErrCategoryNotFound if absent.
	Delete(ctx context.Context, userID, value string) error
}
