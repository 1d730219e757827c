// Package evaluator orchestrates a full ticker evaluation: cache lookup,
// budget accounting, data fetch, metric computation, and composite scoring.
package evaluator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"vrp-edge-lab/internal/cache"
	"vrp-edge-lab/internal/config"
	"vrp-edge-lab/internal/domain"
	"vrp-edge-lab/internal/fetch"
	"vrp-edge-lab/internal/liquidity"
	"vrp-edge-lab/internal/metrics"
	"vrp-edge-lab/internal/observability"
	"vrp-edge-lab/internal/scoring"
	"vrp-edge-lab/internal/sizing"
	"vrp-edge-lab/internal/storage"
	"vrp-edge-lab/internal/voltracker"
)

// ErrBudgetExhausted is returned when the daily external-call budget cannot
// cover an evaluation. Cached results still serve while the budget is out.
var ErrBudgetExhausted = errors.New("daily api budget exhausted")

// callsPerEvaluation is the external calls one uncached evaluation spends
// (chain snapshot, historical moves, volatility snapshot).
const callsPerEvaluation = 3

// Evaluator wires the scoring pipeline together.
type Evaluator struct {
	cfg        config.Config
	cache      *cache.Hybrid
	budget     storage.BudgetStore
	client     fetch.Client
	calculator *metrics.Calculator
	classifier *liquidity.Classifier
	scorer     *scoring.Scorer
	sizer      *sizing.Sizer
	tracker    *voltracker.Tracker
	logger     zerolog.Logger
	now        func() time.Time
}

// Options collects the evaluator's dependencies.
type Options struct {
	Config     config.Config
	Cache      *cache.Hybrid
	Budget     storage.BudgetStore
	Client     fetch.Client
	Calculator *metrics.Calculator
	Classifier *liquidity.Classifier
	Scorer     *scoring.Scorer
	Sizer      *sizing.Sizer
	Tracker    *voltracker.Tracker
	Logger     zerolog.Logger

	// Now overrides the time source for tests.
	Now func() time.Time
}

// New creates an evaluator.
func New(opts Options) (*Evaluator, error) {
	if opts.Cache == nil || opts.Budget == nil || opts.Client == nil ||
		opts.Calculator == nil || opts.Classifier == nil ||
		opts.Scorer == nil || opts.Sizer == nil || opts.Tracker == nil {
		return nil, domain.NewValidationError("options", "missing dependency")
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Evaluator{
		cfg:        opts.Config,
		cache:      opts.Cache,
		budget:     opts.Budget,
		client:     opts.Client,
		calculator: opts.Calculator,
		classifier: opts.Classifier,
		scorer:     opts.Scorer,
		sizer:      opts.Sizer,
		tracker:    opts.Tracker,
		logger:     opts.Logger.With().Str("component", "evaluator").Logger(),
		now:        now,
	}, nil
}

// ScoreTicker evaluates one ticker as of the given date.
//
// The pipeline is ordered so the cheap and shared resources come first: a
// cache hit spends no budget, and a denied budget aborts before any external
// call is made. Fresh results go back into the cache keyed by ticker, date,
// and scoring config version so a reconfigured scorer never serves stale
// composites.
func (e *Evaluator) ScoreTicker(ctx context.Context, ticker string, asOf time.Time) (*domain.CompositeScore, error) {
	if ticker == "" {
		return nil, domain.NewValidationError("ticker", "empty")
	}
	start := e.now()
	asOf = domain.Day(asOf)
	key := e.cacheKey(ticker, asOf)

	var cached domain.CompositeScore
	hit, err := e.cache.Get(ctx, key, &cached)
	if err != nil && !errors.Is(err, domain.ErrCorruptedCacheEntry) {
		return nil, err
	}
	if hit {
		observability.RecordEvaluation("cache_hit", e.now().Sub(start).Seconds())
		return &cached, nil
	}
	observability.RecordCacheMiss()

	used, granted, err := e.budget.Consume(ctx, asOf, callsPerEvaluation, e.cfg.Budget.DailyLimit)
	if err != nil {
		return nil, fmt.Errorf("consume budget: %w", err)
	}
	observability.RecordBudget(granted, callsPerEvaluation)
	if !granted {
		return nil, fmt.Errorf("%w: %d/%d used", ErrBudgetExhausted, used, e.cfg.Budget.DailyLimit)
	}

	score, err := e.evaluate(ctx, ticker, asOf)
	if err != nil {
		observability.RecordEvaluation("error", e.now().Sub(start).Seconds())
		return nil, err
	}

	if err := e.cache.Set(ctx, key, score); err != nil {
		// A failed cache write costs a future budget hit, not correctness.
		e.logger.Warn().Err(err).Str("ticker", ticker).Msg("cache write failed")
	}

	observability.RecordEvaluation("computed", e.now().Sub(start).Seconds())
	observability.RecordScoreTier(score.Tier)
	return score, nil
}

func (e *Evaluator) evaluate(ctx context.Context, ticker string, asOf time.Time) (*domain.CompositeScore, error) {
	chain, err := e.client.Chain(ctx, ticker)
	if err != nil {
		return nil, fmt.Errorf("fetch chain for %s: %w", ticker, err)
	}

	moves, err := e.client.HistoricalMoves(ctx, ticker)
	if err != nil && !errors.Is(err, domain.ErrDataUnavailable) {
		return nil, fmt.Errorf("fetch moves for %s: %w", ticker, err)
	}

	m, err := e.calculator.Compute(chain, moves)
	if err != nil {
		return nil, err
	}
	m.AsOf = asOf

	m.IVWeeklyChangePct, err = e.ivTrend(ctx, ticker, asOf)
	if err != nil {
		return nil, err
	}

	assessment := e.classifier.Classify(chain.Liquidity)
	if chain.Liquidity != nil {
		tier := assessment.Final
		m.LiquidityTier = &tier
	}

	score, err := e.scorer.Score(m)
	if err != nil {
		return nil, err
	}
	if m.IVWeeklyChangePct == nil {
		score.DataFlags = append(score.DataFlags, domain.FlagMissingIVChange)
	}
	return score, nil
}

// ivTrend records the day's volatility snapshot and asks the tracker for the
// week-over-week change. An unreachable provider or a history gap the tracker
// cannot heal degrades to nil with a flag downstream; it never fails the
// evaluation.
func (e *Evaluator) ivTrend(ctx context.Context, ticker string, asOf time.Time) (*float64, error) {
	snap, err := e.client.VolatilitySnapshot(ctx, ticker, asOf)
	switch {
	case errors.Is(err, domain.ErrDataUnavailable) || errors.Is(err, domain.ErrExternalService):
		e.logger.Warn().Err(err).Str("ticker", ticker).Msg("volatility snapshot unavailable")
	case err != nil:
		return nil, fmt.Errorf("fetch volatility for %s: %w", ticker, err)
	default:
		if err := e.tracker.Record(ctx, snap); err != nil {
			return nil, fmt.Errorf("record volatility for %s: %w", ticker, err)
		}
	}

	change, err := e.tracker.WeeklyChange(ctx, ticker, asOf)
	switch {
	case errors.Is(err, domain.ErrDataUnavailable) || errors.Is(err, domain.ErrExternalService):
		e.logger.Warn().Err(err).Str("ticker", ticker).Msg("weekly iv change unavailable")
		return nil, nil
	case err != nil:
		return nil, err
	}
	return &change, nil
}

// EvaluateBatch evaluates tickers concurrently under the configured worker
// bound and returns the successful scores ranked best-first. Individual
// failures are logged and skipped; one bad ticker never sinks the batch.
func (e *Evaluator) EvaluateBatch(ctx context.Context, tickers []string, asOf time.Time) ([]*domain.CompositeScore, error) {
	if len(tickers) == 0 {
		return nil, nil
	}

	workers := e.cfg.Workers
	if workers < 1 {
		workers = 1
	}

	results := make([]*domain.CompositeScore, len(tickers))
	jobs := make(chan int)
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				score, err := e.ScoreTicker(ctx, tickers[i], asOf)
				if err != nil {
					e.logger.Warn().Err(err).Str("ticker", tickers[i]).Msg("evaluation skipped")
					continue
				}
				results[i] = score
			}
		}()
	}

	for i := range tickers {
		select {
		case jobs <- i:
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			return nil, ctx.Err()
		}
	}
	close(jobs)
	wg.Wait()

	scores := make([]*domain.CompositeScore, 0, len(results))
	for _, s := range results {
		if s != nil {
			scores = append(scores, s)
		}
	}
	sort.Slice(scores, func(i, j int) bool {
		if scores[i].CompositeValue != scores[j].CompositeValue {
			return scores[i].CompositeValue > scores[j].CompositeValue
		}
		return scores[i].Ticker < scores[j].Ticker
	})

	return scores, nil
}

// SizePosition sizes a position for a scored ticker.
func (e *Evaluator) SizePosition(score *domain.CompositeScore, stats *domain.HistoricalStats, bankroll float64) (*domain.PositionSize, error) {
	return e.sizer.Size(score, stats, bankroll)
}

func (e *Evaluator) cacheKey(ticker string, asOf time.Time) string {
	return fmt.Sprintf("score:%s:%s:%s", e.cfg.Scoring.Version, ticker, asOf.Format("2006-01-02"))
}
