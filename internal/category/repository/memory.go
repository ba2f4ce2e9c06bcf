package repository

import (
	"context"
	"sort"
	"sync"

	"secret-vault/backend/internal/category/domain"
)

type key struct{ userID, value string }

// MemoryRepository is an in-memory Repository for tests and single-process development.
type MemoryRepository struct {
	mu sync.Mutex
	m  map[key]domain.Category
}

// NewMemoryRepository returns an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{m: make(map[key]domain.Category)}
}

func (r *MemoryRepository) List(ctx context.Context, userID string) ([]*domain.Category, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Category
	for k, c := range r.m {
		if k.userID != userID {
			continue
		}
		c := c
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Position != out[j].Position {
			return out[i].Position < out[j].Position
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (r *MemoryRepository) Seed(ctx context.Context, cats []domain.Category) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range cats {
		k := key{c.UserID, c.Value}
		if _, ok := r.m[k]; !ok {
			r.m[k] = c
		}
	}
	return nil
}

func (r *MemoryRepository) Create(ctx context.Context, c *domain.Category) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := key{c.UserID, c.Value}
	if _, ok := r.m[k]; ok {
		return domain.ErrCategoryExists
	}
	r.m[k] = *c
	return nil
}

func (r *MemoryRepository) Update(ctx context.Context, c *domain.Category) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := key{c.UserID, c.Value}
	cur, ok := r.m[k]
	if !ok {
		return domain.ErrCategoryNotFound
	}
	cur.Label, cur.Icon = c.Label, c.Icon
	r.m[k] = cur
	return nil
}

func (r *MemoryRepository) Delete(ctx context.Context, userID, value string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := key{userID, value}
	if _, ok := r.m[k]; !ok {
		return domain.ErrCategoryNotFound
	}
	delete(r.m, k)
	return nil
}
