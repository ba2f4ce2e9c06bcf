// Package challenge holds short-lived, single-use WebAuthn ceremony challenges keyed by owner.
package challenge

import (
	"context"
	"sync"
	"time"
)

// DefaultTTL is how long a challenge stays consumable after Set.
const DefaultTTL = 60 * time.Second

// Store holds at most one pending challenge per owner.
//
// Set replaces any earlier challenge for the owner. Consume atomically reads and deletes;
// it returns ok false both when nothing was set and when the challenge expired, and
// callers must not try to tell the two apart. A multi-instance deployment swaps in a
// shared implementation with the same read-and-delete guarantee.
type Store interface {
	Set(ctx context.Context, ownerID, value string) error
	Consume(ctx context.Context, ownerID string) (value string, ok bool, err error)
}

type entry struct {
	value     string
	expiresAt time.Time
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu   sync.Mutex
	m    map[string]entry
	ttl  time.Duration
	nowF func() time.Time
}

// NewMemoryStore returns an empty MemoryStore. Zero ttl uses DefaultTTL; nil now uses time.Now.
func NewMemoryStore(ttl time.Duration, now func() time.Time) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{m: make(map[string]entry), ttl: ttl, nowF: now}
}

// Set stores value for ownerID until now+ttl.
func (s *MemoryStore) Set(ctx context.Context, ownerID, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[ownerID] = entry{value: value, expiresAt: s.nowF().Add(s.ttl)}
	return nil
}

// Consume returns and deletes the challenge for ownerID if present and unexpired.
func (s *MemoryStore) Consume(ctx context.Context, ownerID string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.m[ownerID]
	if !ok {
		return "", false, nil
	}
	delete(s.m, ownerID)
	if !e.expiresAt.After(s.nowF()) {
		return "", false, nil
	}
	return e.value, true, nil
}

// Prune drops expired challenges and returns how many were removed.
func (s *MemoryStore) Prune() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.nowF()
	n := 0
	for k, e := range s.m {
		if !e.expiresAt.After(now) {
			delete(s.m, k)
			n++
		}
	}
	return n
}

// RunPruner calls Prune every interval until ctx is done.
func (s *MemoryStore) RunPruner(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Prune()
		}
	}
}

// Len returns the number of held challenges, expired or not.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.m)
}
