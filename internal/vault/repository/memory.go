package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"secret-vault/backend/internal/vault/domain"
)

// MemoryRepository is an in-memory Repository for tests and single-process development.
type MemoryRepository struct {
	mu sync.Mutex
	m  map[string]domain.SealedEntry
}

// NewMemoryRepository returns an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{m: make(map[string]domain.SealedEntry)}
}

func (r *MemoryRepository) Create(ctx context.Context, e *domain.SealedEntry) error {
	return r.CreateMany(ctx, []*domain.SealedEntry{e})
}

func (r *MemoryRepository) CreateMany(ctx context.Context, entries []*domain.SealedEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range entries {
		r.m[e.ID] = *e
	}
	return nil
}

func (r *MemoryRepository) Get(ctx context.Context, userID, id string) (*domain.SealedEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.m[id]
	if !ok || e.UserID != userID {
		return nil, nil
	}
	return &e, nil
}

func (r *MemoryRepository) List(ctx context.Context, userID string, f domain.Filter) ([]*domain.SealedEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	search := strings.ToLower(strings.TrimSpace(f.Search))
	var out []*domain.SealedEntry
	for _, e := range r.m {
		if e.UserID != userID {
			continue
		}
		if f.Category != "" && e.Category != f.Category {
			continue
		}
		if f.FavoriteOnly && !e.Favorite {
			continue
		}
		if search != "" && !matches(e, search) {
			continue
		}
		e := e
		out = append(out, &e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func matches(e domain.SealedEntry, search string) bool {
	for _, field := range []string{e.Title, e.Website, e.Username} {
		if strings.Contains(strings.ToLower(field), search) {
			return true
		}
	}
	return false
}

func (r *MemoryRepository) Update(ctx context.Context, e *domain.SealedEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.m[e.ID]
	if !ok || cur.UserID != e.UserID {
		return domain.ErrEntryNotFound
	}
	next := *e
	next.CreatedAt = cur.CreatedAt
	r.m[e.ID] = next
	return nil
}

func (r *MemoryRepository) Delete(ctx context.Context, userID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.m[id]
	if !ok || e.UserID != userID {
		return domain.ErrEntryNotFound
	}
	delete(r.m, id)
	return nil
}

func (r *MemoryRepository) DeleteMany(ctx context.Context, userID string, ids []string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, id := range ids {
		if e, ok := r.m[id]; ok && e.UserID == userID {
			delete(r.m, id)
			n++
		}
	}
	return n, nil
}

func (r *MemoryRepository) SetCategory(ctx context.Context, userID string, ids []string, c domain.Category, updatedAt time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, id := range ids {
		e, ok := r.m[id]
		if !ok || e.UserID != userID {
			continue
		}
		e.Category = c
		e.UpdatedAt = updatedAt
		r.m[id] = e
		n++
	}
	return n, nil
}

func (r *MemoryRepository) ReassignCategory(ctx context.Context, userID string, from, to domain.Category, updatedAt time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, e := range r.m {
		if e.UserID != userID || e.Category != from {
			continue
		}
		e.Category = to
		e.UpdatedAt = updatedAt
		r.m[id] = e
		n++
	}
	return n, nil
}
