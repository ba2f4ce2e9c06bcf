package repository

import (
	"context"
	"sort"
	"sync"

	"secret-vault/backend/internal/audit/domain"
)

// MemoryRepository is an in-memory Repository for tests and single-process development.
type MemoryRepository struct {
	mu   sync.Mutex
	logs []domain.AuditLog
}

// NewMemoryRepository returns an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

func (r *MemoryRepository) Create(ctx context.Context, a *domain.AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logs = append(r.logs, *a)
	return nil
}

func (r *MemoryRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*domain.AuditLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var mine []*domain.AuditLog
	for i := range r.logs {
		if r.logs[i].UserID == userID {
			a := r.logs[i]
			mine = append(mine, &a)
		}
	}
	sort.SliceStable(mine, func(i, j int) bool { return mine[i].CreatedAt.After(mine[j].CreatedAt) })
	if offset >= len(mine) {
		return nil, nil
	}
	mine = mine[offset:]
	if limit < len(mine) {
		mine = mine[:limit]
	}
	return mine, nil
}
