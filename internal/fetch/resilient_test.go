package fetch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"

	"vrp-edge-lab/internal/config"
	"vrp-edge-lab/internal/domain"
	"vrp-edge-lab/internal/observability"
)

// flakyClient fails a set number of times before succeeding.
type flakyClient struct {
	failures int
	err      error
	calls    int
}

func (c *flakyClient) attempt() error {
	c.calls++
	if c.calls <= c.failures {
		return c.err
	}
	return nil
}

func (c *flakyClient) Chain(_ context.Context, ticker string) (*domain.ChainSnapshot, error) {
	if err := c.attempt(); err != nil {
		return nil, err
	}
	return &domain.ChainSnapshot{Ticker: ticker, UnderlyingPrice: 100}, nil
}

func (c *flakyClient) HistoricalMoves(_ context.Context, ticker string) ([]*domain.HistoricalMove, error) {
	if err := c.attempt(); err != nil {
		return nil, err
	}
	return []*domain.HistoricalMove{{Ticker: ticker, MovePct: 5}}, nil
}

func (c *flakyClient) VolatilitySnapshot(_ context.Context, ticker string, date time.Time) (*domain.VolatilitySnapshot, error) {
	if err := c.attempt(); err != nil {
		return nil, err
	}
	return &domain.VolatilitySnapshot{Ticker: ticker, Date: date, ImpliedVol: 0.3}, nil
}

func fetchConfig() config.FetchConfig {
	return config.FetchConfig{
		Timeout:          time.Second,
		MaxRetries:       3,
		InitialBackoff:   time.Millisecond,
		BreakerThreshold: 2,
		BreakerCooldown:  time.Minute,
	}
}

func TestResilient_RetriesThenSucceeds(t *testing.T) {
	inner := &flakyClient{failures: 2, err: errors.New("transient")}
	r := NewResilient(inner, fetchConfig(), zerolog.Nop())

	chain, err := r.Chain(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("Chain failed: %v", err)
	}
	if chain.Ticker != "AAPL" {
		t.Errorf("ticker = %s, want AAPL", chain.Ticker)
	}
	if inner.calls != 3 {
		t.Errorf("calls = %d, want 3 (two failures plus success)", inner.calls)
	}
}

func TestResilient_DataUnavailablePassesThrough(t *testing.T) {
	inner := &flakyClient{failures: 100, err: domain.ErrDataUnavailable}
	r := NewResilient(inner, fetchConfig(), zerolog.Nop())

	_, err := r.Chain(context.Background(), "AAPL")
	if !errors.Is(err, domain.ErrDataUnavailable) {
		t.Fatalf("expected ErrDataUnavailable, got %v", err)
	}
	if errors.Is(err, domain.ErrExternalService) {
		t.Error("a valid no-data answer must not be tagged as a provider failure")
	}
	if inner.calls != 1 {
		t.Errorf("calls = %d, want 1 (no retries for no-data)", inner.calls)
	}
}

func TestResilient_TagsExternalService(t *testing.T) {
	inner := &flakyClient{failures: 100, err: errors.New("boom")}
	cfg := fetchConfig()
	cfg.BreakerThreshold = 100
	r := NewResilient(inner, cfg, zerolog.Nop())

	_, err := r.HistoricalMoves(context.Background(), "AAPL")
	if !errors.Is(err, domain.ErrExternalService) {
		t.Fatalf("expected ErrExternalService, got %v", err)
	}
	if inner.calls != cfg.MaxRetries+1 {
		t.Errorf("calls = %d, want %d", inner.calls, cfg.MaxRetries+1)
	}
}

func TestResilient_BreakerOpensAndCools(t *testing.T) {
	inner := &flakyClient{failures: 1000, err: errors.New("boom")}
	r := NewResilient(inner, fetchConfig(), zerolog.Nop())

	now := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }

	ctx := context.Background()

	// Two failed operations trip the threshold.
	if _, err := r.Chain(ctx, "AAPL"); err == nil {
		t.Fatal("expected failure")
	}
	if _, err := r.Chain(ctx, "AAPL"); err == nil {
		t.Fatal("expected failure")
	}

	callsBefore := inner.calls
	_, err := r.Chain(ctx, "AAPL")
	if !errors.Is(err, ErrBreakerOpen) {
		t.Fatalf("expected ErrBreakerOpen, got %v", err)
	}
	if !errors.Is(err, domain.ErrExternalService) {
		t.Error("breaker rejection should still be tagged as external")
	}
	if inner.calls != callsBefore {
		t.Errorf("open breaker must not call the provider (%d -> %d)", callsBefore, inner.calls)
	}

	// Past the cooldown the provider is probed again.
	now = now.Add(2 * time.Minute)
	if _, err := r.Chain(ctx, "AAPL"); errors.Is(err, ErrBreakerOpen) {
		t.Error("breaker should admit calls after the cooldown")
	}
	if inner.calls == callsBefore {
		t.Error("expected a probe call after the cooldown")
	}
}

func TestResilient_CountsCallsAndBreakerOpens(t *testing.T) {
	ctx := context.Background()
	m := observability.DefaultMetrics

	okBefore := testutil.ToFloat64(m.FetchCalls.WithLabelValues("chain", "ok"))
	unavailBefore := testutil.ToFloat64(m.FetchCalls.WithLabelValues("chain", "unavailable"))
	errBefore := testutil.ToFloat64(m.FetchCalls.WithLabelValues("chain", "error"))
	openedBefore := testutil.ToFloat64(m.BreakerOpens)

	ok := NewResilient(&flakyClient{}, fetchConfig(), zerolog.Nop())
	if _, err := ok.Chain(ctx, "AAPL"); err != nil {
		t.Fatalf("Chain failed: %v", err)
	}
	if got := testutil.ToFloat64(m.FetchCalls.WithLabelValues("chain", "ok")) - okBefore; got != 1 {
		t.Errorf("ok delta = %v, want 1", got)
	}

	noData := NewResilient(&flakyClient{failures: 100, err: domain.ErrDataUnavailable}, fetchConfig(), zerolog.Nop())
	if _, err := noData.Chain(ctx, "AAPL"); !errors.Is(err, domain.ErrDataUnavailable) {
		t.Fatalf("expected ErrDataUnavailable, got %v", err)
	}
	if got := testutil.ToFloat64(m.FetchCalls.WithLabelValues("chain", "unavailable")) - unavailBefore; got != 1 {
		t.Errorf("unavailable delta = %v, want 1", got)
	}

	// Two failed operations trip the two-failure threshold exactly once.
	broken := NewResilient(&flakyClient{failures: 1000, err: errors.New("boom")}, fetchConfig(), zerolog.Nop())
	for i := 0; i < 2; i++ {
		if _, err := broken.Chain(ctx, "AAPL"); err == nil {
			t.Fatal("expected failure")
		}
	}
	if got := testutil.ToFloat64(m.FetchCalls.WithLabelValues("chain", "error")) - errBefore; got != 2 {
		t.Errorf("error delta = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.BreakerOpens) - openedBefore; got != 1 {
		t.Errorf("breaker open delta = %v, want 1", got)
	}
}

func TestResilient_SuccessResetsFailures(t *testing.T) {
	inner := &flakyClient{failures: 1, err: errors.New("transient")}
	r := NewResilient(inner, fetchConfig(), zerolog.Nop())

	if _, err := r.Chain(context.Background(), "AAPL"); err != nil {
		t.Fatalf("Chain failed: %v", err)
	}
	if r.failures != 0 {
		t.Errorf("failures = %d, want 0 after a success", r.failures)
	}
}
