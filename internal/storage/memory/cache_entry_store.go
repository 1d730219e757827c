package memory

import (
	"context"
	"sync"

	"vrp-edge-lab/internal/domain"
	"vrp-edge-lab/internal/storage"
)

// CacheEntryStore is an in-memory implementation of storage.CacheEntryStore.
// Used as the L2 tier in tests and -use-memory mode.
type CacheEntryStore struct {
	mu   sync.RWMutex
	data map[string]*domain.CacheEntry
}

// NewCacheEntryStore creates a new in-memory cache entry store.
func NewCacheEntryStore() *CacheEntryStore {
	return &CacheEntryStore{
		data: make(map[string]*domain.CacheEntry),
	}
}

// Put inserts or replaces the entry for a key.
func (s *CacheEntryStore) Put(_ context.Context, e *domain.CacheEntry) error {
	if e == nil || e.Key == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *e
	cp.Value = append([]byte(nil), e.Value...)
	s.data[e.Key] = &cp
	return nil
}

// Get retrieves an entry by key. Returns ErrNotFound if not exists.
func (s *CacheEntryStore) Get(_ context.Context, key string) (*domain.CacheEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.data[key]
	if !ok {
		return nil, storage.ErrNotFound
	}

	cp := *e
	cp.Value = append([]byte(nil), e.Value...)
	return &cp, nil
}

// Delete removes an entry. Deleting a missing key is not an error.
func (s *CacheEntryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.data, key)
	return nil
}

var _ storage.CacheEntryStore = (*CacheEntryStore)(nil)
