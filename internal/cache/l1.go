// Package cache provides the two-tier result cache: a bounded in-memory LRU
// in front of a durable store-backed tier.
package cache

import (
	"container/list"
	"sync"
	"time"
)

// l1Item is one resident L1 entry.
type l1Item struct {
	key       string
	value     []byte
	expiresAt time.Time
}

// L1 is a bounded in-memory LRU cache with per-entry TTL. Expiry is lazy: an
// entry past its TTL is removed when the miss is discovered, never by a
// background sweeper. Safe for concurrent use.
type L1 struct {
	mu       sync.Mutex
	maxSize  int
	ttl      time.Duration
	order    *list.List // front = most recently used
	items    map[string]*list.Element
	now      func() time.Time
}

// L1Option configures an L1 cache.
type L1Option func(*L1)

// WithClock overrides the time source. Tests use this to step through TTL
// boundaries without sleeping.
func WithClock(now func() time.Time) L1Option {
	return func(c *L1) { c.now = now }
}

// NewL1 creates an L1 cache holding at most maxSize entries.
func NewL1(maxSize int, ttl time.Duration, opts ...L1Option) *L1 {
	c := &L1{
		maxSize: maxSize,
		ttl:     ttl,
		order:   list.New(),
		items:   make(map[string]*list.Element),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the cached bytes for key. An expired entry is removed and
// reported as a miss. A hit refreshes the entry's recency, not its TTL.
func (c *L1) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		return nil, false
	}

	item := elem.Value.(*l1Item)
	if c.now().After(item.expiresAt) {
		c.order.Remove(elem)
		delete(c.items, key)
		return nil, false
	}

	c.order.MoveToFront(elem)
	return item.value, true
}

// Set stores value under key, evicting the least recently used entry when
// the cache is full. Setting an existing key resets its value and TTL.
func (c *L1) Set(key string, value []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	expiresAt := c.now().Add(c.ttl)

	if elem, ok := c.items[key]; ok {
		item := elem.Value.(*l1Item)
		item.value = value
		item.expiresAt = expiresAt
		c.order.MoveToFront(elem)
		return
	}

	if c.order.Len() >= c.maxSize {
		oldest := c.order.Back()
		if oldest != nil {
			c.order.Remove(oldest)
			delete(c.items, oldest.Value.(*l1Item).key)
		}
	}

	c.items[key] = c.order.PushFront(&l1Item{key: key, value: value, expiresAt: expiresAt})
}

// Delete removes key if present.
func (c *L1) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		c.order.Remove(elem)
		delete(c.items, key)
	}
}

// Len returns the number of resident entries, expired ones included.
func (c *L1) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
