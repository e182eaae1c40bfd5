// Package cache implements the durable response cache behind
// domain.CacheStore: a Redis backend (default), a PostgreSQL backend and an
// in-process memory store, plus a Tiered wrapper that puts the memory store
// in front of a durable one as a fast path.
package cache

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/V4T54L/gig-scout/internal/domain"
)

// MemoryStore is a process-local CacheStore. It is the fast path inside
// Tiered and the backend of choice for tests and development.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]domain.CacheEntry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]domain.CacheEntry)}
}

func entryKey(collection string, keyParts []string) string {
	return collection + "\x1f" + strings.Join(keyParts, "\x1f")
}

func (s *MemoryStore) Read(ctx context.Context, collection string, keyParts []string, ttl time.Duration) (*domain.CacheEntry, error) {
	s.mu.RLock()
	entry, ok := s.entries[entryKey(collection, keyParts)]
	s.mu.RUnlock()
	if !ok || !entry.Fresh(time.Now(), ttl) {
		return nil, nil
	}
	return &entry, nil
}

func (s *MemoryStore) Write(ctx context.Context, collection string, entry domain.CacheEntry) error {
	s.mu.Lock()
	s.entries[entryKey(collection, entry.KeyParts)] = entry
	s.mu.Unlock()
	return nil
}
