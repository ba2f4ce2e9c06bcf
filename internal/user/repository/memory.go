package repository

import (
	"context"
	"sync"

	"secret-vault/backend/internal/user/domain"
)

// MemoryRepository is an in-memory Repository for tests and single-process development.
type MemoryRepository struct {
	mu    sync.Mutex
	users map[string]domain.User
}

// NewMemoryRepository returns an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{users: make(map[string]domain.User)}
}

func (r *MemoryRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (r *MemoryRepository) find(match func(*domain.User) bool) *domain.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if match(&u) {
			u := u
			return &u
		}
	}
	return nil
}

func (r *MemoryRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.find(func(u *domain.User) bool { return u.Email == email }), nil
}

func (r *MemoryRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.find(func(u *domain.User) bool { return u.Username == username }), nil
}

func (r *MemoryRepository) Create(ctx context.Context, u *domain.User) error {
	if err := u.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.conflict(u); err != nil {
		return err
	}
	r.users[u.ID] = *u
	return nil
}

func (r *MemoryRepository) Update(ctx context.Context, u *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.conflict(u); err != nil {
		return err
	}
	r.users[u.ID] = *u
	return nil
}

// conflict mirrors the unique indexes on email and username. Callers hold r.mu.
func (r *MemoryRepository) conflict(u *domain.User) error {
	for id, existing := range r.users {
		if id == u.ID {
			continue
		}
		if existing.Email == u.Email {
			return domain.ErrEmailTaken
		}
		if u.Username != "" && existing.Username == u.Username {
			return domain.ErrUsernameTaken
		}
	}
	return nil
}

func (r *MemoryRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.users, id)
	return nil
}
