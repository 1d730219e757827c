package voltracker

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"

	"vrp-edge-lab/internal/config"
	"vrp-edge-lab/internal/domain"
	"vrp-edge-lab/internal/observability"
	"vrp-edge-lab/internal/storage/memory"
)

// fakeProvider serves snapshots from a fixed map and counts calls.
type fakeProvider struct {
	snaps map[string]*domain.VolatilitySnapshot
	calls int
}

func (p *fakeProvider) VolatilitySnapshot(_ context.Context, ticker string, date time.Time) (*domain.VolatilitySnapshot, error) {
	p.calls++
	key := fmt.Sprintf("%s|%s", ticker, date.Format("2006-01-02"))
	snap, ok := p.snaps[key]
	if !ok {
		return nil, domain.ErrDataUnavailable
	}
	return snap, nil
}

func (p *fakeProvider) add(ticker string, date time.Time, iv float64) {
	if p.snaps == nil {
		p.snaps = make(map[string]*domain.VolatilitySnapshot)
	}
	p.snaps[fmt.Sprintf("%s|%s", ticker, date.Format("2006-01-02"))] = &domain.VolatilitySnapshot{
		Ticker:     ticker,
		Date:       domain.Day(date),
		ImpliedVol: iv,
	}
}

func trackerConfig() config.TrackerConfig {
	return config.TrackerConfig{
		LookbackDays:  7,
		ToleranceDays: 2,
		BackfillDays:  14,
	}
}

func snap(ticker string, date time.Time, iv float64) *domain.VolatilitySnapshot {
	return &domain.VolatilitySnapshot{Ticker: ticker, Date: domain.Day(date), ImpliedVol: iv}
}

func TestWeeklyChange_ToleranceWindow(t *testing.T) {
	ctx := context.Background()
	store := memory.NewVolatilitySnapshotStore()
	provider := &fakeProvider{}
	tracker := NewTracker(trackerConfig(), store, provider, zerolog.Nop())

	asOf := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)
	// Nothing exactly 7 days back, but a 6-day-old snapshot is inside ±2.
	mustInsert(t, store, snap("AAPL", asOf, 0.5))
	mustInsert(t, store, snap("AAPL", asOf.AddDate(0, 0, -6), 0.4))

	change, err := tracker.WeeklyChange(ctx, "AAPL", asOf)
	if err != nil {
		t.Fatalf("WeeklyChange failed: %v", err)
	}
	if math.Abs(change-25.0) > 1e-9 {
		t.Errorf("change = %v, want 25", change)
	}
	if provider.calls != 0 {
		t.Errorf("provider called %d times, want 0 with history present", provider.calls)
	}
}

func TestWeeklyChange_PrefersNearestToTarget(t *testing.T) {
	ctx := context.Background()
	store := memory.NewVolatilitySnapshotStore()
	tracker := NewTracker(trackerConfig(), store, &fakeProvider{}, zerolog.Nop())

	asOf := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)
	mustInsert(t, store, snap("AAPL", asOf, 0.5))
	mustInsert(t, store, snap("AAPL", asOf.AddDate(0, 0, -5), 0.9))
	mustInsert(t, store, snap("AAPL", asOf.AddDate(0, 0, -7), 0.25)) // exact target
	mustInsert(t, store, snap("AAPL", asOf.AddDate(0, 0, -9), 0.9))

	change, err := tracker.WeeklyChange(ctx, "AAPL", asOf)
	if err != nil {
		t.Fatalf("WeeklyChange failed: %v", err)
	}
	// (0.5 - 0.25) / 0.25 = +100%, against the exact-target snapshot.
	if math.Abs(change-100.0) > 1e-9 {
		t.Errorf("change = %v, want 100", change)
	}
}

func TestWeeklyChange_BackfillsOnGap(t *testing.T) {
	ctx := context.Background()
	store := memory.NewVolatilitySnapshotStore()
	provider := &fakeProvider{}
	tracker := NewTracker(trackerConfig(), store, provider, zerolog.Nop())

	asOf := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)
	provider.add("AAPL", asOf, 0.5)
	provider.add("AAPL", asOf.AddDate(0, 0, -7), 0.4)

	change, err := tracker.WeeklyChange(ctx, "AAPL", asOf)
	if err != nil {
		t.Fatalf("WeeklyChange failed: %v", err)
	}
	if math.Abs(change-25.0) > 1e-9 {
		t.Errorf("change = %v, want 25", change)
	}
	if provider.calls == 0 {
		t.Error("expected backfill to hit the provider")
	}

	// Healed history serves the second query without new provider calls.
	callsAfterFirst := provider.calls
	if _, err := tracker.WeeklyChange(ctx, "AAPL", asOf); err != nil {
		t.Fatalf("second WeeklyChange failed: %v", err)
	}
	if provider.calls != callsAfterFirst {
		t.Errorf("provider called again after healing: %d -> %d", callsAfterFirst, provider.calls)
	}
}

func TestWeeklyChange_SingleRetryThenUnavailable(t *testing.T) {
	ctx := context.Background()
	store := memory.NewVolatilitySnapshotStore()
	provider := &fakeProvider{} // has nothing
	cfg := trackerConfig()
	tracker := NewTracker(cfg, store, provider, zerolog.Nop())

	asOf := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)
	_, err := tracker.WeeklyChange(ctx, "AAPL", asOf)
	if !errors.Is(err, domain.ErrDataUnavailable) {
		t.Fatalf("expected ErrDataUnavailable, got %v", err)
	}
	// Exactly one backfill pass for the failed current-snapshot lookup.
	if provider.calls != cfg.BackfillDays {
		t.Errorf("provider called %d times, want %d (one backfill, no second retry)",
			provider.calls, cfg.BackfillDays)
	}
}

func TestBackfill_Idempotent(t *testing.T) {
	ctx := context.Background()
	store := memory.NewVolatilitySnapshotStore()
	provider := &fakeProvider{}
	tracker := NewTracker(trackerConfig(), store, provider, zerolog.Nop())

	asOf := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		provider.add("AAPL", asOf.AddDate(0, 0, -i), 0.4)
	}

	inserted, err := tracker.Backfill(ctx, "AAPL", asOf, 14)
	if err != nil {
		t.Fatalf("Backfill failed: %v", err)
	}
	if inserted != 5 {
		t.Errorf("inserted = %d, want 5", inserted)
	}

	inserted, err = tracker.Backfill(ctx, "AAPL", asOf, 14)
	if err != nil {
		t.Fatalf("second Backfill failed: %v", err)
	}
	if inserted != 0 {
		t.Errorf("second backfill inserted = %d, want 0", inserted)
	}
}

func TestBackfill_CountsRunsAndRows(t *testing.T) {
	ctx := context.Background()
	store := memory.NewVolatilitySnapshotStore()
	provider := &fakeProvider{}
	tracker := NewTracker(trackerConfig(), store, provider, zerolog.Nop())

	asOf := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		provider.add("AAPL", asOf.AddDate(0, 0, -i), 0.4)
	}

	runsBefore := testutil.ToFloat64(observability.DefaultMetrics.BackfillRuns)
	rowsBefore := testutil.ToFloat64(observability.DefaultMetrics.BackfillInserted)

	if _, err := tracker.Backfill(ctx, "AAPL", asOf, 14); err != nil {
		t.Fatalf("Backfill failed: %v", err)
	}
	if got := testutil.ToFloat64(observability.DefaultMetrics.BackfillRuns) - runsBefore; got != 1 {
		t.Errorf("run delta = %v, want 1", got)
	}
	if got := testutil.ToFloat64(observability.DefaultMetrics.BackfillInserted) - rowsBefore; got != 3 {
		t.Errorf("inserted delta = %v, want 3", got)
	}
}

func TestRecord_DuplicateIsNoop(t *testing.T) {
	ctx := context.Background()
	store := memory.NewVolatilitySnapshotStore()
	tracker := NewTracker(trackerConfig(), store, &fakeProvider{}, zerolog.Nop())

	s := snap("AAPL", time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC), 0.5)
	if err := tracker.Record(ctx, s); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if err := tracker.Record(ctx, s); err != nil {
		t.Fatalf("duplicate Record should be a no-op, got %v", err)
	}
}

func mustInsert(t *testing.T, store *memory.VolatilitySnapshotStore, s *domain.VolatilitySnapshot) {
	t.Helper()
	if err := store.Insert(context.Background(), s); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
}
