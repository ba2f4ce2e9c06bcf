package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"secret-vault/backend/internal/biometric/domain"
)

// MemoryRepository is an in-memory Repository for tests and single-process development.
type MemoryRepository struct {
	mu sync.Mutex
	m  map[string]domain.Credential
}

// NewMemoryRepository returns an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{m: make(map[string]domain.Credential)}
}

func (r *MemoryRepository) Create(ctx context.Context, c *domain.Credential) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.m[string(c.ID)] = *c
	return nil
}

func (r *MemoryRepository) Get(ctx context.Context, credentialID []byte) (*domain.Credential, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.m[string(credentialID)]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (r *MemoryRepository) ListByUser(ctx context.Context, userID string) ([]*domain.Credential, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Credential
	for _, c := range r.m {
		if c.UserID == userID {
			c := c
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *MemoryRepository) CountByUser(ctx context.Context, userID string) (int, error) {
	list, _ := r.ListByUser(ctx, userID)
	return len(list), nil
}

func (r *MemoryRepository) UpdateSignCount(ctx context.Context, credentialID []byte, count uint32, usedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.m[string(credentialID)]
	if !ok {
		return nil
	}
	c.SignCount = count
	c.LastUsedAt = &usedAt
	r.m[string(credentialID)] = c
	return nil
}

func (r *MemoryRepository) DeleteByUser(ctx context.Context, userID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for k, c := range r.m {
		if c.UserID == userID {
			delete(r.m, k)
			n++
		}
	}
	return n, nil
}
