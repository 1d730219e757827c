// Package voltracker maintains the daily implied-volatility history and
// answers trend queries against it, backfilling gaps on demand.
package voltracker

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"vrp-edge-lab/internal/config"
	"vrp-edge-lab/internal/domain"
	"vrp-edge-lab/internal/observability"
	"vrp-edge-lab/internal/storage"
)

// SnapshotProvider fetches one day's volatility snapshot from an external
// source. Implementations return ErrDataUnavailable when the day has no data
// (weekend, holiday, missing history).
type SnapshotProvider interface {
	VolatilitySnapshot(ctx context.Context, ticker string, date time.Time) (*domain.VolatilitySnapshot, error)
}

// Tracker records daily snapshots and serves tolerance-window lookups over
// them. Missing history heals itself: a failed lookup triggers a bounded
// backfill and one retry instead of propagating the gap to the caller.
type Tracker struct {
	cfg      config.TrackerConfig
	store    storage.VolatilitySnapshotStore
	provider SnapshotProvider
	logger   zerolog.Logger
}

// NewTracker creates a volatility tracker.
func NewTracker(cfg config.TrackerConfig, store storage.VolatilitySnapshotStore, provider SnapshotProvider, logger zerolog.Logger) *Tracker {
	return &Tracker{
		cfg:      cfg,
		store:    store,
		provider: provider,
		logger:   logger.With().Str("component", "voltracker").Logger(),
	}
}

// Record stores today's snapshot. Recording the same (ticker, date) twice is
// a no-op, not an error, so repeated daily runs stay idempotent.
func (t *Tracker) Record(ctx context.Context, s *domain.VolatilitySnapshot) error {
	if s == nil || s.Ticker == "" {
		return domain.NewValidationError("snapshot", "nil or missing ticker")
	}

	err := t.store.Insert(ctx, s)
	if errors.Is(err, storage.ErrDuplicateKey) {
		return nil
	}
	return err
}

// WeeklyChange returns the percent change of implied volatility between the
// snapshot nearest to lookback days before asOf (within the tolerance window)
// and the asOf snapshot.
//
// A calendar-exact lookup would miss every weekend and holiday, so the past
// point is the stored snapshot closest to the target date within ±tolerance
// days. When no snapshot lands in the window, the tracker backfills the
// recent history and retries once before reporting ErrDataUnavailable.
func (t *Tracker) WeeklyChange(ctx context.Context, ticker string, asOf time.Time) (float64, error) {
	if ticker == "" {
		return 0, domain.NewValidationError("ticker", "empty")
	}
	asOf = domain.Day(asOf)

	current, err := t.store.GetByTickerDate(ctx, ticker, asOf)
	if errors.Is(err, storage.ErrNotFound) {
		current, err = t.healAndRetry(ctx, ticker, asOf, func() (*domain.VolatilitySnapshot, error) {
			return t.store.GetByTickerDate(ctx, ticker, asOf)
		})
	}
	if err != nil {
		return 0, err
	}

	past, err := t.nearestInWindow(ctx, ticker, asOf)
	if errors.Is(err, storage.ErrNotFound) {
		past, err = t.healAndRetry(ctx, ticker, asOf, func() (*domain.VolatilitySnapshot, error) {
			return t.nearestInWindow(ctx, ticker, asOf)
		})
	}
	if err != nil {
		return 0, err
	}

	if past.ImpliedVol <= 0 {
		return 0, fmt.Errorf("past implied vol %.4f is not positive: %w", past.ImpliedVol, domain.ErrDataUnavailable)
	}
	return (current.ImpliedVol - past.ImpliedVol) / past.ImpliedVol * 100, nil
}

// Backfill fetches and stores snapshots for the last n days up to asOf.
// Idempotent: days already stored are counted as skips, days the provider has
// no data for are skipped silently. Returns how many new rows were inserted.
func (t *Tracker) Backfill(ctx context.Context, ticker string, asOf time.Time, days int) (int, error) {
	if ticker == "" {
		return 0, domain.NewValidationError("ticker", "empty")
	}
	if days <= 0 {
		return 0, domain.NewValidationError("days", "must be positive")
	}
	asOf = domain.Day(asOf)

	inserted, skipped := 0, 0
	for i := 0; i < days; i++ {
		date := asOf.AddDate(0, 0, -i)

		snap, err := t.provider.VolatilitySnapshot(ctx, ticker, date)
		if errors.Is(err, domain.ErrDataUnavailable) {
			continue
		}
		if err != nil {
			return inserted, fmt.Errorf("backfill %s %s: %w", ticker, date.Format("2006-01-02"), err)
		}

		err = t.store.Insert(ctx, snap)
		switch {
		case errors.Is(err, storage.ErrDuplicateKey):
			skipped++
		case err != nil:
			return inserted, fmt.Errorf("store backfill %s %s: %w", ticker, date.Format("2006-01-02"), err)
		default:
			inserted++
		}
	}

	observability.RecordBackfill(inserted)
	t.logger.Info().
		Str("ticker", ticker).
		Int("inserted", inserted).
		Int("skipped", skipped).
		Msg("backfill complete")

	return inserted, nil
}

// healAndRetry backfills the recent window and retries the lookup exactly
// once. No second backfill follows a second miss.
func (t *Tracker) healAndRetry(ctx context.Context, ticker string, asOf time.Time, lookup func() (*domain.VolatilitySnapshot, error)) (*domain.VolatilitySnapshot, error) {
	t.logger.Warn().
		Str("ticker", ticker).
		Time("as_of", asOf).
		Msg("history gap, backfilling")

	if _, err := t.Backfill(ctx, ticker, asOf, t.cfg.BackfillDays); err != nil {
		return nil, err
	}

	snap, err := lookup()
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("no snapshot for %s near %s after backfill: %w",
			ticker, asOf.Format("2006-01-02"), domain.ErrDataUnavailable)
	}
	return snap, err
}

// nearestInWindow returns the stored snapshot closest to asOf-lookback within
// the tolerance window, preferring the older candidate on an exact distance
// tie. Returns storage.ErrNotFound when the window is empty.
func (t *Tracker) nearestInWindow(ctx context.Context, ticker string, asOf time.Time) (*domain.VolatilitySnapshot, error) {
	target := asOf.AddDate(0, 0, -t.cfg.LookbackDays)
	from := target.AddDate(0, 0, -t.cfg.ToleranceDays)
	to := target.AddDate(0, 0, t.cfg.ToleranceDays)

	snaps, err := t.store.GetRange(ctx, ticker, from, to)
	if err != nil {
		return nil, err
	}
	if len(snaps) == 0 {
		return nil, storage.ErrNotFound
	}

	best := snaps[0]
	bestDist := math.Abs(best.Date.Sub(target).Hours())
	for _, s := range snaps[1:] {
		if d := math.Abs(s.Date.Sub(target).Hours()); d < bestDist {
			best = s
			bestDist = d
		}
	}
	return best, nil
}
