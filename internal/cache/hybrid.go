package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"vrp-edge-lab/internal/config"
	"vrp-edge-lab/internal/domain"
	"vrp-edge-lab/internal/observability"
	"vrp-edge-lab/internal/storage"
)

// Hybrid layers the in-memory L1 over a durable L2 tier. Values are stored
// JSON-encoded; an L2 hit is promoted into L1 so repeated reads stay in
// memory. L2 rows survive restarts, which is what makes cached evaluations
// reusable across daily runs.
type Hybrid struct {
	l1     *L1
	l2     storage.CacheEntryStore
	l2TTL  time.Duration
	now    func() time.Time
	logger zerolog.Logger
}

// NewHybrid creates the two-tier cache over the given durable store.
func NewHybrid(cfg config.CacheConfig, l2 storage.CacheEntryStore, logger zerolog.Logger, opts ...L1Option) *Hybrid {
	h := &Hybrid{
		l1:     NewL1(cfg.L1MaxSize, cfg.L1TTL, opts...),
		l2:     l2,
		l2TTL:  cfg.L2TTL,
		now:    time.Now,
		logger: logger.With().Str("component", "cache").Logger(),
	}
	h.now = h.l1.now
	return h
}

// Get loads the value for key into dest. Returns false on a miss in both
// tiers. A row that no longer decodes is invalidated and reported as
// ErrCorruptedCacheEntry; callers treat that as a miss and recompute.
func (h *Hybrid) Get(ctx context.Context, key string, dest any) (bool, error) {
	if b, ok := h.l1.Get(key); ok {
		if err := json.Unmarshal(b, dest); err != nil {
			h.invalidateCorrupt(ctx, key, "l1", err)
			return false, fmt.Errorf("decode cached %q: %w", key, domain.ErrCorruptedCacheEntry)
		}
		observability.RecordCacheHit("l1")
		return true, nil
	}

	entry, err := h.l2.Get(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("l2 get %q: %w", key, err)
	}

	if entry.Expired(h.now()) {
		if derr := h.l2.Delete(ctx, key); derr != nil {
			h.logger.Warn().Err(derr).Str("key", key).Msg("delete expired l2 entry failed")
		}
		return false, nil
	}

	if err := json.Unmarshal(entry.Value, dest); err != nil {
		h.invalidateCorrupt(ctx, key, "l2", err)
		return false, fmt.Errorf("decode cached %q: %w", key, domain.ErrCorruptedCacheEntry)
	}

	h.l1.Set(key, entry.Value)
	observability.RecordCacheHit("l2")
	return true, nil
}

// Set stores value in both tiers under their respective TTLs.
func (h *Hybrid) Set(ctx context.Context, key string, value any) error {
	b, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %q for cache: %w", key, err)
	}

	h.l1.Set(key, b)

	entry := &domain.CacheEntry{
		Key:        key,
		Value:      b,
		InsertedAt: h.now(),
		TTL:        h.l2TTL,
	}
	if err := h.l2.Put(ctx, entry); err != nil {
		return fmt.Errorf("l2 put %q: %w", key, err)
	}
	return nil
}

// Invalidate removes key from both tiers.
func (h *Hybrid) Invalidate(ctx context.Context, key string) error {
	h.l1.Delete(key)
	if err := h.l2.Delete(ctx, key); err != nil {
		return fmt.Errorf("l2 delete %q: %w", key, err)
	}
	return nil
}

func (h *Hybrid) invalidateCorrupt(ctx context.Context, key, tier string, cause error) {
	observability.RecordCacheCorrupt()
	h.logger.Warn().
		Err(cause).
		Str("key", key).
		Str("tier", tier).
		Msg("corrupted cache entry invalidated")

	h.l1.Delete(key)
	if err := h.l2.Delete(ctx, key); err != nil {
		h.logger.Warn().Err(err).Str("key", key).Msg("delete corrupted l2 entry failed")
	}
}
