// Package backtest replays scored opportunities through the sizing rules and
// produces a deterministic trade log, equity curve, and summary statistics.
package backtest

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"vrp-edge-lab/internal/config"
	"vrp-edge-lab/internal/domain"
	"vrp-edge-lab/internal/idhash"
	"vrp-edge-lab/internal/observability"
	"vrp-edge-lab/internal/sizing"
)

// Opportunity is one scored candidate trade with its known outcome.
type Opportunity struct {
	Ticker    string
	EntryDate time.Time
	ExitDate  time.Time

	// Score is the precomputed composite score at entry.
	Score *domain.CompositeScore

	// RawOutcomePct is the realized per-position return in percent, before
	// allocation scaling. Negative for losers.
	RawOutcomePct float64
}

// Stats summarizes a completed run. A run with zero trades has no Stats at
// all rather than zero-valued ones.
type Stats struct {
	TradeCount     int
	WinRate        float64
	AvgWinPct      float64
	AvgLossPct     float64
	AvgPnlPct      float64
	ProfitFactor   float64
	SharpeLike     float64
	MaxConsecLoss  int
	TotalReturnPct float64
}

// Result is the full output of one backtest run.
type Result struct {
	RunID          string
	Trades         []*domain.Trade
	EquityCurve    []domain.EquityCurvePoint
	FinalEquity    float64
	MaxDrawdownPct float64

	// Stats is nil when the run selected zero trades.
	Stats *Stats
}

// Engine runs backtests. Replay is strictly single-threaded so two runs over
// identical inputs emit identical trade logs.
type Engine struct {
	cfg    config.BacktestConfig
	sizing config.SizingConfig
	sizer  *sizing.Sizer
	logger zerolog.Logger
}

// NewEngine creates a backtest engine. maxScore is the composite scale
// ceiling, passed through to the sizer for confidence scaling.
func NewEngine(cfg config.BacktestConfig, sizingCfg config.SizingConfig, maxScore float64, logger zerolog.Logger) (*Engine, error) {
	sizer, err := sizing.NewSizer(sizingCfg, maxScore, logger)
	if err != nil {
		return nil, err
	}
	return &Engine{
		cfg:    cfg,
		sizing: sizingCfg,
		sizer:  sizer,
		logger: logger.With().Str("component", "backtest").Logger(),
	}, nil
}

// Run replays opportunities in chronological order against the configured
// minimum score and concurrency limit.
//
// Equity compounds multiplicatively: each trade multiplies equity by
// (1 + pnl_pct/100); gains and losses are never added to equity directly.
// Per-trade pnl is the raw outcome scaled by the allocated bankroll fraction.
func (e *Engine) Run(runID string, opportunities []*Opportunity) (*Result, error) {
	return e.run(runID, opportunities, e.cfg.MinScore)
}

// RunWithCutoff is Run with an explicit min-score cutoff, used by walkforward
// validation to probe the cutoff ladder.
func (e *Engine) RunWithCutoff(runID string, opportunities []*Opportunity, minScore float64) (*Result, error) {
	return e.run(runID, opportunities, minScore)
}

func (e *Engine) run(runID string, opportunities []*Opportunity, minScore float64) (*Result, error) {
	if runID == "" {
		return nil, domain.NewValidationError("run_id", "empty")
	}
	for _, opp := range opportunities {
		if opp == nil || opp.Score == nil {
			return nil, domain.NewValidationError("opportunities", "nil entry or missing score")
		}
		if opp.ExitDate.Before(opp.EntryDate) {
			return nil, domain.NewValidationError("opportunities",
				fmt.Sprintf("%s exits before entry", opp.Ticker))
		}
	}

	ordered := make([]*Opportunity, len(opportunities))
	copy(ordered, opportunities)
	sort.SliceStable(ordered, func(i, j int) bool {
		if !ordered[i].EntryDate.Equal(ordered[j].EntryDate) {
			return ordered[i].EntryDate.Before(ordered[j].EntryDate)
		}
		return ordered[i].Ticker < ordered[j].Ticker
	})

	equity := e.cfg.StartingEquity
	peak := equity
	result := &Result{RunID: runID}
	stats := newRunningStats(e.sizing)
	var open []time.Time // exit dates of currently open positions
	var maxDD float64

	for _, opp := range ordered {
		// Release slots for positions that have exited by this entry date.
		open = releaseExited(open, opp.EntryDate)

		if opp.Score.CompositeValue < minScore {
			continue
		}
		if len(open) >= e.cfg.MaxConcurrent {
			continue
		}

		pos, err := e.sizer.Size(opp.Score, stats.snapshot(), equity)
		if err != nil {
			return nil, fmt.Errorf("size %s: %w", opp.Ticker, err)
		}
		if pos.AppliedFraction <= 0 {
			continue
		}

		pnlPct := opp.RawOutcomePct * pos.AppliedFraction
		equity *= 1 + pnlPct/100

		if equity <= 0 {
			return nil, domain.NewInvariantViolation("equity-positive",
				fmt.Sprintf("equity %.4f after %s", equity, opp.Ticker))
		}
		if equity > peak {
			peak = equity
		}
		dd := (peak - equity) / peak * 100
		if dd > 100 {
			return nil, domain.NewInvariantViolation("drawdown-bounded",
				fmt.Sprintf("drawdown %.4f%% after %s", dd, opp.Ticker))
		}
		if dd > maxDD {
			maxDD = dd
		}

		trade := &domain.Trade{
			TradeID:       idhash.ComputeTradeID(runID, opp.Ticker, opp.EntryDate),
			RunID:         runID,
			Ticker:        opp.Ticker,
			EntryDate:     opp.EntryDate,
			ExitDate:      opp.ExitDate,
			Score:         opp.Score.CompositeValue,
			AllocationPct: pos.AppliedFraction,
			RawOutcomePct: opp.RawOutcomePct,
			PnlPct:        pnlPct,
			IsWinner:      pnlPct > 0,
			EquityAfter:   equity,
		}
		result.Trades = append(result.Trades, trade)
		result.EquityCurve = append(result.EquityCurve, domain.EquityCurvePoint{
			SequenceIndex: len(result.EquityCurve),
			Equity:        equity,
			PeakEquity:    peak,
			DrawdownPct:   dd,
		})

		stats.record(opp.RawOutcomePct, pnlPct)
		open = append(open, opp.ExitDate)
	}

	result.FinalEquity = equity
	result.MaxDrawdownPct = maxDD
	result.Stats = stats.summary(e.cfg.StartingEquity, equity)

	observability.RecordBacktest("completed", len(result.Trades))
	e.logger.Info().
		Str("run_id", runID).
		Int("trades", len(result.Trades)).
		Float64("final_equity", equity).
		Float64("max_drawdown_pct", maxDD).
		Msg("backtest run complete")

	return result, nil
}

// releaseExited drops exit dates strictly before the given entry date.
func releaseExited(open []time.Time, entry time.Time) []time.Time {
	kept := open[:0]
	for _, exit := range open {
		if !exit.Before(entry) {
			kept = append(kept, exit)
		}
	}
	return kept
}

// runningStats accumulates trade outcomes during a run and blends them with
// the configured priors until enough trades accumulate.
type runningStats struct {
	cfg config.SizingConfig

	trades   int
	wins     int
	winSum   float64 // sum of positive pnl percents
	lossSum  float64 // sum of loss magnitudes in percent
	pnlSum   float64
	pnlSqSum float64
	consec   int
	maxLoss  int
}

func newRunningStats(cfg config.SizingConfig) *runningStats {
	return &runningStats{cfg: cfg}
}

func (r *runningStats) record(rawPct, pnlPct float64) {
	r.trades++
	r.pnlSum += pnlPct
	r.pnlSqSum += pnlPct * pnlPct
	if pnlPct > 0 {
		r.wins++
		r.winSum += rawPct
		r.consec = 0
	} else {
		r.lossSum += -rawPct
		r.consec++
		if r.consec > r.maxLoss {
			r.maxLoss = r.consec
		}
	}
}

// snapshot returns the stats the sizer should use for the next trade: the
// priors until PriorMinTrades trades exist, observed stats after.
func (r *runningStats) snapshot() *domain.HistoricalStats {
	if r.trades < r.cfg.PriorMinTrades {
		return &domain.HistoricalStats{
			WinRate:    r.cfg.PriorWinRate,
			AvgWinPct:  r.cfg.PriorAvgWinPct,
			AvgLossPct: r.cfg.PriorAvgLossPct,
		}
	}

	stats := &domain.HistoricalStats{
		WinRate: float64(r.wins) / float64(r.trades),
	}
	if r.wins > 0 {
		stats.AvgWinPct = r.winSum / float64(r.wins)
	}
	if losses := r.trades - r.wins; losses > 0 {
		stats.AvgLossPct = r.lossSum / float64(losses)
	}
	return stats
}

// summary produces the final Stats, or nil when no trades executed: win rate
// and averages over an empty set are undefined, not zero.
func (r *runningStats) summary(startEquity, finalEquity float64) *Stats {
	if r.trades == 0 {
		return nil
	}

	s := &Stats{
		TradeCount:     r.trades,
		WinRate:        float64(r.wins) / float64(r.trades),
		AvgPnlPct:      r.pnlSum / float64(r.trades),
		MaxConsecLoss:  r.maxLoss,
		TotalReturnPct: (finalEquity/startEquity - 1) * 100,
	}
	if r.wins > 0 {
		s.AvgWinPct = r.winSum / float64(r.wins)
	}
	if losses := r.trades - r.wins; losses > 0 {
		s.AvgLossPct = r.lossSum / float64(losses)
	}
	if r.lossSum > 0 {
		s.ProfitFactor = r.winSum / r.lossSum
	}

	if r.trades > 1 {
		mean := s.AvgPnlPct
		variance := r.pnlSqSum/float64(r.trades) - mean*mean
		if variance > 0 {
			s.SharpeLike = mean / math.Sqrt(variance)
		}
	}

	return s
}
