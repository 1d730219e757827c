// Package sizing turns historical trade statistics into a capital allocation
// using a clamped fractional-Kelly rule.
package sizing

import (
	"math"

	"github.com/rs/zerolog"

	"vrp-edge-lab/internal/config"
	"vrp-edge-lab/internal/domain"
)

// Sizer computes position sizes from historical stats and a composite score.
type Sizer struct {
	cfg config.SizingConfig

	// maxScore is the composite scale ceiling used for confidence scaling.
	maxScore float64
	logger   zerolog.Logger
}

// NewSizer creates a position sizer. maxScore is the composite scorer's
// per-factor max points, the top of the confidence scale.
func NewSizer(cfg config.SizingConfig, maxScore float64, logger zerolog.Logger) (*Sizer, error) {
	if maxScore <= 0 {
		return nil, domain.NewValidationError("max_score", "must be positive")
	}
	return &Sizer{
		cfg:      cfg,
		maxScore: maxScore,
		logger:   logger.With().Str("component", "sizer").Logger(),
	}, nil
}

// KellyFraction returns the raw Kelly fraction for the given stats:
//
//	f = (w*avg_win - (1-w)*avg_loss) / avg_win
//
// where avg_win and avg_loss are magnitudes in percent. Returns 0 when the
// edge is not positive or when avg_win is not positive, never a negative
// fraction.
func KellyFraction(stats *domain.HistoricalStats) float64 {
	if stats == nil || stats.AvgWinPct <= 0 {
		return 0
	}
	w := stats.WinRate
	if w <= 0 || w > 1 {
		return 0
	}
	f := (w*stats.AvgWinPct - (1-w)*stats.AvgLossPct) / stats.AvgWinPct
	if f <= 0 {
		return 0
	}
	return f
}

// Size computes the position for one candidate trade.
//
// The raw Kelly fraction is scaled by the configured multiplier, optionally
// scaled again by score confidence, then clamped to the configured bankroll
// range. A zero Kelly fraction produces a zero-capital position; the clamp
// floor only applies to positions that would otherwise be nonzero.
func (s *Sizer) Size(score *domain.CompositeScore, stats *domain.HistoricalStats, bankroll float64) (*domain.PositionSize, error) {
	if score == nil {
		return nil, domain.NewValidationError("score", "nil input")
	}
	if bankroll <= 0 {
		return nil, domain.NewValidationError("bankroll", "must be positive")
	}

	raw := KellyFraction(stats)
	pos := &domain.PositionSize{
		Ticker:        score.Ticker,
		KellyFraction: raw,
	}
	if raw == 0 {
		return pos, nil
	}

	applied := raw * s.cfg.KellyMultiplier
	if s.cfg.ScaleByConfidence {
		confidence := score.CompositeValue / s.maxScore
		if confidence < 0 {
			confidence = 0
		}
		if confidence > 1 {
			confidence = 1
		}
		applied *= confidence
	}

	applied = clamp(applied, s.cfg.MinAllocationPct, s.cfg.MaxAllocationPct)

	pos.AppliedFraction = applied
	pos.CapitalAllocated = applied * bankroll

	if stats.AvgContractCost > 0 {
		pos.Contracts = int(math.Floor(pos.CapitalAllocated / stats.AvgContractCost))
	}

	s.logger.Debug().
		Str("ticker", score.Ticker).
		Float64("kelly_raw", raw).
		Float64("applied_fraction", applied).
		Float64("capital", pos.CapitalAllocated).
		Int("contracts", pos.Contracts).
		Msg("position sized")

	return pos, nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
