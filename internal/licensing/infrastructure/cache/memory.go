package cache

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	owner   string
	expires time.Time
}

// MemoryStore is a process-local Store.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]memoryEntry), now: time.Now}
}

// Get returns the cached owner unless it is missing or past its TTL.
func (s *MemoryStore) Get(_ context.Context, tenantID string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[tenantID]
	if !ok {
		return "", false, nil
	}
	if !s.now().Before(entry.expires) {
		delete(s.entries, tenantID)
		return "", false, nil
	}
	return entry.owner, true, nil
}

// Set caches owner for ttl.
func (s *MemoryStore) Set(_ context.Context, tenantID, owner string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[tenantID] = memoryEntry{owner: owner, expires: s.now().Add(ttl)}
	return nil
}

// Delete drops the tenant's cached owner.
func (s *MemoryStore) Delete(_ context.Context, tenantID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, tenantID)
	return nil
}

// Len returns the number of stored entries, expired or not.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

var _ Store = (*MemoryStore)(nil)
