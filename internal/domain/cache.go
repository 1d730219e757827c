package domain

import "time"

// CacheEntry is a durable (L2) cache row. Value is plain structured data
// (JSON) so deserialization can never execute code; a payload that fails to
// decode surfaces as ErrCorruptedCacheEntry and the entry is invalidated.
type CacheEntry struct {
	Key        string
	Value      []byte
	InsertedAt time.Time
	TTL        time.Duration
}

// ExpiresAt returns the instant the entry stops being servable.
func (e *CacheEntry) ExpiresAt() time.Time {
	return e.InsertedAt.Add(e.TTL)
}

// Expired reports whether the entry is past its TTL at the given instant.
func (e *CacheEntry) Expired(now time.Time) bool {
	return now.After(e.ExpiresAt())
}
