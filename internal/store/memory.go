package store

import (
	"context"
	"sync"
	"time"
)

// memoryEntry is a cached value with its absolute expiry.
type memoryEntry struct {
	expiresAt time.Time
	value     string
}

// MemoryStore is a concurrency-safe in-process TTL cache.
// Expired entries are evicted lazily on read; there is no sweeper.
type MemoryStore struct {
	mu sync.RWMutex

	// key: cache key, value: entry
	data map[string]memoryEntry

	now func() time.Time
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[string]memoryEntry),
		now:  time.Now,
	}
}

// Get returns the value for key if present and not expired.
func (s *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	entry, ok := s.data[key]
	s.mu.RUnlock()
	if !ok {
		return "", false, nil
	}

	if entry.expiresAt.Before(s.now()) {
		s.mu.Lock()
		// Only drop it if nobody rewrote the key in the meantime.
		if cur, still := s.data[key]; still && cur.expiresAt.Equal(entry.expiresAt) {
			delete(s.data, key)
		}
		s.mu.Unlock()
		return "", false, nil
	}
	return entry.value, true, nil
}

// Set stores value under key until now+ttl.
func (s *MemoryStore) Set(_ context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[key] = memoryEntry{
		expiresAt: s.now().Add(ttl),
		value:     value,
	}
	return nil
}

// Len reports the number of stored entries, expired ones included.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}
