// Package scoring combines per-factor metrics into one ranked composite
// score per ticker.
package scoring

import (
	"math"
	"sort"

	"github.com/rs/zerolog"

	"vrp-edge-lab/internal/config"
	"vrp-edge-lab/internal/domain"
)

// Scorer computes composite scores from validated TickerMetrics records.
type Scorer struct {
	cfg    config.ScoringConfig
	logger zerolog.Logger
}

// NewScorer creates a composite scorer. The weight invariants are re-checked
// here so a scorer constructed from a hand-built config cannot silently
// produce out-of-range composites.
func NewScorer(cfg config.ScoringConfig, logger zerolog.Logger) (*Scorer, error) {
	if diff := math.Abs(cfg.Weights.Sum() - 1.0); diff > 1e-6 {
		return nil, domain.NewInvariantViolation("weights-sum-to-one",
			"scoring weights must sum to 1.0")
	}
	if w := cfg.Weights; w.VRP < 0 || w.Consistency < 0 || w.Skew < 0 || w.Liquidity < 0 {
		return nil, domain.NewInvariantViolation("weights-non-negative",
			"a scoring weight is negative")
	}
	if cfg.MaxPoints <= 0 {
		return nil, domain.NewInvariantViolation("max-points-positive",
			"max points per factor must be positive")
	}
	return &Scorer{cfg: cfg, logger: logger.With().Str("component", "scorer").Logger()}, nil
}

// Score computes the composite score for one ticker.
//
// Each sub-score is clamped to [0, max_points] before weighting, so a
// negative raw input can never push the composite below zero. Missing inputs
// take conservative defaults: no VRP or consistency scores zero points,
// missing liquidity scores WARNING-tier points, and a missing skew scores the
// midpoint.
func (s *Scorer) Score(m *domain.TickerMetrics) (*domain.CompositeScore, error) {
	if m == nil {
		return nil, domain.NewValidationError("metrics", "nil input")
	}
	if m.Ticker == "" {
		return nil, domain.NewValidationError("ticker", "empty")
	}

	score := &domain.CompositeScore{
		Ticker:            m.Ticker,
		AsOfDate:          m.AsOf,
		IVWeeklyChangePct: m.IVWeeklyChangePct,
	}

	var vrpSub, consSub, skewSub, liqSub float64

	if m.VRPRatio != nil {
		vrpSub = s.ramp(*m.VRPRatio, s.cfg.VRPSkip, s.cfg.VRPExcellent)
	} else {
		score.DataFlags = append(score.DataFlags, domain.FlagMissingVRP)
	}

	if m.Consistency != nil {
		consSub = s.ramp(*m.Consistency, s.cfg.ConsistencySkip, s.cfg.ConsistencyExcellent)
	} else {
		score.DataFlags = append(score.DataFlags, domain.FlagMissingConsistency)
	}

	if m.Skew != nil {
		// Directional conviction in either direction earns points.
		skewSub = s.ramp(math.Abs(*m.Skew), 0, s.cfg.SkewExcellent)
	} else {
		skewSub = s.cfg.MaxPoints / 2
		score.DataFlags = append(score.DataFlags, domain.FlagMissingSkew)
	}

	if m.LiquidityTier != nil {
		liqSub = s.liquidityPoints(*m.LiquidityTier)
	} else {
		liqSub = s.liquidityPoints(domain.LiquidityWarning)
		score.DataFlags = append(score.DataFlags, domain.FlagMissingLiquidity)
	}

	w := s.cfg.Weights
	score.VRPComponent = w.VRP * vrpSub
	score.ConsistencyComponent = w.Consistency * consSub
	score.SkewComponent = w.Skew * skewSub
	score.LiquidityComponent = w.Liquidity * liqSub
	score.CompositeValue = score.VRPComponent + score.ConsistencyComponent +
		score.SkewComponent + score.LiquidityComponent
	score.Tier = s.tier(score.CompositeValue)

	if len(score.DataFlags) > 0 {
		s.logger.Debug().
			Str("ticker", m.Ticker).
			Strs("flags", score.DataFlags).
			Msg("conservative defaults applied")
	}

	return score, nil
}

// RankTickers scores a batch and returns it ordered best-first. Each score is
// computed exactly once and reused for ordering and display; the comparator
// only reads precomputed values. Ties break on ticker for determinism.
func (s *Scorer) RankTickers(metrics []*domain.TickerMetrics) ([]*domain.CompositeScore, error) {
	scores := make([]*domain.CompositeScore, 0, len(metrics))
	for _, m := range metrics {
		score, err := s.Score(m)
		if err != nil {
			return nil, err
		}
		scores = append(scores, score)
	}

	sort.Slice(scores, func(i, j int) bool {
		if scores[i].CompositeValue != scores[j].CompositeValue {
			return scores[i].CompositeValue > scores[j].CompositeValue
		}
		return scores[i].Ticker < scores[j].Ticker
	})

	return scores, nil
}

// ramp linearly interpolates a sub-score: 0 points at or below skip, max
// points at or above excellent. Negative raw inputs clamp to zero before
// scaling.
func (s *Scorer) ramp(value, skip, excellent float64) float64 {
	if value < 0 {
		value = 0
	}
	if value <= skip {
		return 0
	}
	if value >= excellent {
		return s.cfg.MaxPoints
	}
	return (value - skip) / (excellent - skip) * s.cfg.MaxPoints
}

// liquidityPoints maps a liquidity tier to factor points.
func (s *Scorer) liquidityPoints(tier domain.LiquidityTier) float64 {
	switch tier {
	case domain.LiquidityExcellent:
		return s.cfg.MaxPoints
	case domain.LiquidityGood:
		return s.cfg.MaxPoints * s.cfg.LiquidityGoodFraction
	case domain.LiquidityWarning:
		return s.cfg.MaxPoints * s.cfg.LiquidityWarningFraction
	default:
		return 0
	}
}

// tier maps a composite value to its discrete label.
func (s *Scorer) tier(composite float64) string {
	switch {
	case composite >= s.cfg.TierExcellentMin:
		return domain.ScoreTierExcellent
	case composite >= s.cfg.TierGoodMin:
		return domain.ScoreTierGood
	case composite >= s.cfg.TierMarginalMin:
		return domain.ScoreTierMarginal
	default:
		return domain.ScoreTierSkip
	}
}
