package mocks

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/V4T54L/gig-scout/internal/domain"
)

// MockCacheStore is an in-memory mock implementation of domain.CacheStore
// for testing.
type MockCacheStore struct {
	mu       sync.Mutex
	Entries  map[string]domain.CacheEntry
	ReadErr  error
	WriteErr error
	Reads    int
	Writes   int
}

func NewMockCacheStore() *MockCacheStore {
	return &MockCacheStore{Entries: make(map[string]domain.CacheEntry)}
}

func cacheKey(collection string, keyParts []string) string {
	return collection + "|" + strings.Join(keyParts, "|")
}

func (m *MockCacheStore) Read(ctx context.Context, collection string, keyParts []string, ttl time.Duration) (*domain.CacheEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Reads++
	if m.ReadErr != nil {
		return nil, m.ReadErr
	}
	entry, ok := m.Entries[cacheKey(collection, keyParts)]
	if !ok || !entry.Fresh(time.Now(), ttl) {
		return nil, nil
	}
	return &entry, nil
}

func (m *MockCacheStore) Write(ctx context.Context, collection string, entry domain.CacheEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Writes++
	if m.WriteErr != nil {
		return m.WriteErr
	}
	m.Entries[cacheKey(collection, entry.KeyParts)] = entry
	return nil
}

// MockProvider is a mock implementation of domain.Provider for testing the
// orchestrator.
type MockProvider struct {
	ProviderID string
	Result     domain.FetchResult
	Err        error
	Delay      time.Duration
	mu         sync.Mutex
	Calls      int
}

func (m *MockProvider) ID() string { return m.ProviderID }

func (m *MockProvider) Fetch(ctx context.Context, q domain.QueryContext) (domain.FetchResult, error) {
	m.mu.Lock()
	m.Calls++
	m.mu.Unlock()
	if m.Delay > 0 {
		select {
		case <-time.After(m.Delay):
		case <-ctx.Done():
			return domain.FetchResult{}, ctx.Err()
		}
	}
	if m.Err != nil {
		return domain.FetchResult{}, m.Err
	}
	return m.Result, nil
}

// MockImageFinder is a mock implementation of domain.ImageFinder.
type MockImageFinder struct {
	mu      sync.Mutex
	ByLink  map[string]string
	Err     error
	Lookups []string
}

func (m *MockImageFinder) FindImage(ctx context.Context, links []string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Lookups = append(m.Lookups, links...)
	if m.Err != nil {
		return "", m.Err
	}
	for _, l := range links {
		if img, ok := m.ByLink[l]; ok {
			return img, nil
		}
	}
	return "", nil
}
