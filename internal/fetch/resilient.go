package fetch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"vrp-edge-lab/internal/config"
	"vrp-edge-lab/internal/domain"
	"vrp-edge-lab/internal/observability"
)

// ErrBreakerOpen is returned while the circuit breaker is cooling down after
// repeated provider failures.
var ErrBreakerOpen = errors.New("circuit breaker open")

// Resilient wraps a Client with per-call timeouts, bounded exponential-backoff
// retries, and a circuit breaker. Every failure that escapes the wrapper is
// tagged ErrExternalService so callers can tell provider trouble from their
// own bugs.
type Resilient struct {
	inner  Client
	cfg    config.FetchConfig
	logger zerolog.Logger

	mu        sync.Mutex
	failures  int
	openUntil time.Time
	now       func() time.Time
}

// Compile-time check.
var _ Client = (*Resilient)(nil)

// NewResilient wraps the given client.
func NewResilient(inner Client, cfg config.FetchConfig, logger zerolog.Logger) *Resilient {
	return &Resilient{
		inner:  inner,
		cfg:    cfg,
		logger: logger.With().Str("component", "fetch").Logger(),
		now:    time.Now,
	}
}

// Chain implements ChainProvider.
func (r *Resilient) Chain(ctx context.Context, ticker string) (*domain.ChainSnapshot, error) {
	var out *domain.ChainSnapshot
	err := r.do(ctx, "chain", func(ctx context.Context) error {
		var err error
		out, err = r.inner.Chain(ctx, ticker)
		return err
	})
	return out, err
}

// HistoricalMoves implements MoveProvider.
func (r *Resilient) HistoricalMoves(ctx context.Context, ticker string) ([]*domain.HistoricalMove, error) {
	var out []*domain.HistoricalMove
	err := r.do(ctx, "historical_moves", func(ctx context.Context) error {
		var err error
		out, err = r.inner.HistoricalMoves(ctx, ticker)
		return err
	})
	return out, err
}

// VolatilitySnapshot implements VolatilityProvider.
func (r *Resilient) VolatilitySnapshot(ctx context.Context, ticker string, date time.Time) (*domain.VolatilitySnapshot, error) {
	var out *domain.VolatilitySnapshot
	err := r.do(ctx, "volatility_snapshot", func(ctx context.Context) error {
		var err error
		out, err = r.inner.VolatilitySnapshot(ctx, ticker, date)
		return err
	})
	return out, err
}

// do runs one provider call under the resilience policy. ErrDataUnavailable
// is a valid answer, not a provider failure: it passes through without
// retries and without tripping the breaker.
func (r *Resilient) do(ctx context.Context, op string, fn func(context.Context) error) error {
	start := r.now()
	if err := r.checkBreaker(); err != nil {
		observability.RecordFetch(op, "breaker_open", r.now().Sub(start).Seconds())
		return fmt.Errorf("%s: %w: %w", op, err, domain.ErrExternalService)
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = r.cfg.InitialBackoff

	attempt := func() error {
		callCtx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
		defer cancel()

		err := fn(callCtx)
		if errors.Is(err, domain.ErrDataUnavailable) {
			return backoff.Permanent(err)
		}
		return err
	}

	err := backoff.Retry(attempt, backoff.WithContext(
		backoff.WithMaxRetries(policy, uint64(r.cfg.MaxRetries)), ctx))

	if errors.Is(err, domain.ErrDataUnavailable) {
		observability.RecordFetch(op, "unavailable", r.now().Sub(start).Seconds())
		return err
	}
	if err != nil {
		r.recordFailure(op)
		observability.RecordFetch(op, "error", r.now().Sub(start).Seconds())
		return fmt.Errorf("%s: %w: %w", op, err, domain.ErrExternalService)
	}

	r.recordSuccess()
	observability.RecordFetch(op, "ok", r.now().Sub(start).Seconds())
	return nil
}

func (r *Resilient) checkBreaker() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.now().Before(r.openUntil) {
		return ErrBreakerOpen
	}
	return nil
}

func (r *Resilient) recordFailure(op string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.failures++
	if r.failures >= r.cfg.BreakerThreshold {
		r.openUntil = r.now().Add(r.cfg.BreakerCooldown)
		r.failures = 0
		observability.RecordBreakerOpen()
		r.logger.Warn().
			Str("op", op).
			Dur("cooldown", r.cfg.BreakerCooldown).
			Msg("circuit breaker opened")
	}
}

func (r *Resilient) recordSuccess() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures = 0
}
