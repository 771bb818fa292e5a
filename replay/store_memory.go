package replay

import (
	"context"
	"sync"
	"time"
)

// MemoryStore provides an in-memory implementation of Store.
//
// Suitable for single-instance deployments. Entries past their TTL are
// treated as absent immediately and physically removed by Sweep.
type MemoryStore struct {
	mu      sync.Mutex
	expiry  map[string]time.Time
	nowFunc func() time.Time
}

// NewMemoryStore creates an empty in-memory replay store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		expiry:  make(map[string]time.Time),
		nowFunc: time.Now,
	}
}

// MarkIfAbsent records key unless an unexpired record exists.
func (s *MemoryStore) MarkIfAbsent(_ context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.nowFunc()
	if expiry, exists := s.expiry[key]; exists && now.Before(expiry) {
		return false, nil
	}
	s.expiry[key] = now.Add(ttl)
	return true, nil
}

// Contains reports whether an unexpired record exists for key.
func (s *MemoryStore) Contains(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	expiry, exists := s.expiry[key]
	return exists && s.nowFunc().Before(expiry), nil
}

// Sweep removes every record whose expiry is at or before now.
func (s *MemoryStore) Sweep(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, expiry := range s.expiry {
		if !now.Before(expiry) {
			delete(s.expiry, key)
			removed++
		}
	}
	return removed, nil
}

// Len returns the number of stored records, expired or not.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.expiry)
}

// Ensure MemoryStore implements Store
var _ Store = (*MemoryStore)(nil)
