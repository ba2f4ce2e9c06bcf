package repository

import (
	"context"
	"sync"
	"time"

	"secret-vault/backend/internal/otp/domain"
)

type codeKey struct {
	email   string
	purpose domain.Purpose
}

// MemoryStore is an in-memory Store for tests and single-process development.
type MemoryStore struct {
	mu sync.Mutex
	m  map[codeKey]domain.OneTimeCode
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{m: make(map[codeKey]domain.OneTimeCode)}
}

// Put replaces the code for (c.Email, c.Purpose).
func (s *MemoryStore) Put(ctx context.Context, c *domain.OneTimeCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[codeKey{c.Email, c.Purpose}] = *c
	return nil
}

// Get returns the stored code for the pair, expired or not.
func (s *MemoryStore) Get(ctx context.Context, email string, purpose domain.Purpose) (*domain.OneTimeCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.m[codeKey{email, purpose}]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

// Consume deletes the stored code if it still matches c.
func (s *MemoryStore) Consume(ctx context.Context, c *domain.OneTimeCode) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := codeKey{c.Email, c.Purpose}
	cur, ok := s.m[k]
	if !ok || cur.CodeHash != c.CodeHash {
		return false, nil
	}
	delete(s.m, k)
	return true, nil
}

// InvalidateAll removes any code for the pair.
func (s *MemoryStore) InvalidateAll(ctx context.Context, email string, purpose domain.Purpose) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, codeKey{email, purpose})
	return nil
}

// DeleteExpired removes codes whose expiry is at or before before.
func (s *MemoryStore) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for k, c := range s.m {
		if c.ExpiredAt(before) {
			delete(s.m, k)
			n++
		}
	}
	return n, nil
}

// Len returns the number of stored codes, expired or not.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.m)
}
