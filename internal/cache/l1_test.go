package cache

import (
	"testing"
	"time"
)

// stepClock is a manually advanced time source.
type stepClock struct {
	now time.Time
}

func (c *stepClock) Now() time.Time { return c.now }

func (c *stepClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newClock() *stepClock {
	return &stepClock{now: time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)}
}

func TestL1_TTLBoundary(t *testing.T) {
	clock := newClock()
	c := NewL1(10, 30*time.Second, WithClock(clock.Now))

	c.Set("k", []byte("v"))

	clock.Advance(29 * time.Second)
	if _, ok := c.Get("k"); !ok {
		t.Fatal("entry should still be live at t=29s")
	}

	clock.Advance(2 * time.Second)
	if _, ok := c.Get("k"); ok {
		t.Fatal("entry should be expired at t=31s")
	}
	// The missed access removed it, not just hid it.
	if c.Len() != 0 {
		t.Errorf("len = %d, want 0 after lazy removal", c.Len())
	}
}

func TestL1_LRUEvictionByAccessOrder(t *testing.T) {
	clock := newClock()
	c := NewL1(2, time.Hour, WithClock(clock.Now))

	c.Set("a", []byte("1"))
	c.Set("b", []byte("2"))

	// Touch "a" so "b" becomes least recently used.
	if _, ok := c.Get("a"); !ok {
		t.Fatal("a should be present")
	}

	c.Set("c", []byte("3"))

	if _, ok := c.Get("b"); ok {
		t.Error("b should have been evicted as least recently used")
	}
	if _, ok := c.Get("a"); !ok {
		t.Error("a should survive, it was accessed most recently")
	}
	if _, ok := c.Get("c"); !ok {
		t.Error("c should be present")
	}
}

func TestL1_SetExistingResetsTTL(t *testing.T) {
	clock := newClock()
	c := NewL1(10, 30*time.Second, WithClock(clock.Now))

	c.Set("k", []byte("v1"))
	clock.Advance(20 * time.Second)
	c.Set("k", []byte("v2"))
	clock.Advance(20 * time.Second)

	got, ok := c.Get("k")
	if !ok {
		t.Fatal("entry should be live 20s after the refresh")
	}
	if string(got) != "v2" {
		t.Errorf("value = %q, want v2", got)
	}
	if c.Len() != 1 {
		t.Errorf("len = %d, want 1", c.Len())
	}
}

func TestL1_GetDoesNotExtendTTL(t *testing.T) {
	clock := newClock()
	c := NewL1(10, 30*time.Second, WithClock(clock.Now))

	c.Set("k", []byte("v"))
	clock.Advance(20 * time.Second)
	c.Get("k")
	clock.Advance(20 * time.Second)

	if _, ok := c.Get("k"); ok {
		t.Error("a hit must refresh recency, never the TTL")
	}
}

func TestL1_Delete(t *testing.T) {
	c := NewL1(10, time.Hour)
	c.Set("k", []byte("v"))
	c.Delete("k")
	if _, ok := c.Get("k"); ok {
		t.Error("deleted entry should be gone")
	}
	c.Delete("missing") // must not panic
}
