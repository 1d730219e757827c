package postgres

import (
	"context"
	"fmt"
	"time"

	"vrp-edge-lab/internal/domain"
	"vrp-edge-lab/internal/storage"
)

// CacheEntryStore implements storage.CacheEntryStore using PostgreSQL.
// Values are stored as plain JSON bytes; nothing executable crosses the
// serialization boundary.
type CacheEntryStore struct {
	pool *Pool
}

// NewCacheEntryStore creates a new CacheEntryStore.
func NewCacheEntryStore(pool *Pool) *CacheEntryStore {
	return &CacheEntryStore{pool: pool}
}

// Compile-time interface check.
var _ storage.CacheEntryStore = (*CacheEntryStore)(nil)

// Put inserts or replaces the entry for a key.
func (s *CacheEntryStore) Put(ctx context.Context, e *domain.CacheEntry) error {
	if e == nil || e.Key == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO cache_entries (key, value, inserted_at, ttl_seconds)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (key) DO UPDATE
		SET value = EXCLUDED.value,
			inserted_at = EXCLUDED.inserted_at,
			ttl_seconds = EXCLUDED.ttl_seconds
	`

	_, err := s.pool.Exec(ctx, query,
		e.Key, e.Value, e.InsertedAt, int64(e.TTL/time.Second),
	)
	if err != nil {
		return fmt.Errorf("put cache entry: %w", err)
	}
	return nil
}

// Get retrieves an entry by key. Returns ErrNotFound if not exists.
func (s *CacheEntryStore) Get(ctx context.Context, key string) (*domain.CacheEntry, error) {
	query := `
		SELECT key, value, inserted_at, ttl_seconds
		FROM cache_entries
		WHERE key = $1
	`

	row := s.pool.QueryRow(ctx, query, key)

	var e domain.CacheEntry
	var ttlSeconds int64
	if err := row.Scan(&e.Key, &e.Value, &e.InsertedAt, &ttlSeconds); err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get cache entry: %w", err)
	}
	e.TTL = time.Duration(ttlSeconds) * time.Second

	return &e, nil
}

// Delete removes an entry. Deleting a missing key is not an error.
func (s *CacheEntryStore) Delete(ctx context.Context, key string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM cache_entries WHERE key = $1`, key); err != nil {
		return fmt.Errorf("delete cache entry: %w", err)
	}
	return nil
}
