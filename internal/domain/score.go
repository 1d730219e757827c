package domain

import "time"

// LiquidityTier classifies how safely a position can be entered and exited.
// Ordering matters: higher values are better. The zero value is Reject so an
// unset tier can never read as tradeable.
type LiquidityTier int

// Liquidity tiers, worst to best.
const (
	LiquidityReject LiquidityTier = iota
	LiquidityWarning
	LiquidityGood
	LiquidityExcellent
)

// String returns the display label for the tier.
func (t LiquidityTier) String() string {
	switch t {
	case LiquidityExcellent:
		return "EXCELLENT"
	case LiquidityGood:
		return "GOOD"
	case LiquidityWarning:
		return "WARNING"
	default:
		return "REJECT"
	}
}

// WorseTier returns the lower of two liquidity tiers.
func WorseTier(a, b LiquidityTier) LiquidityTier {
	if a < b {
		return a
	}
	return b
}

// Score tier labels derived from the composite value.
const (
	ScoreTierExcellent = "EXCELLENT"
	ScoreTierGood      = "GOOD"
	ScoreTierMarginal  = "MARGINAL"
	ScoreTierSkip      = "SKIP"
)

// Data flags recorded on a CompositeScore when an input was missing and a
// conservative default was substituted.
const (
	FlagMissingVRP         = "MISSING_VRP"
	FlagMissingConsistency = "MISSING_CONSISTENCY"
	FlagMissingSkew        = "MISSING_SKEW"
	FlagMissingLiquidity   = "MISSING_LIQUIDITY"
	FlagMissingIVChange    = "MISSING_IV_CHANGE"
)

// TickerMetrics is the validated input record for the composite scorer.
// Optional factors are pointers: nil means the input could not be derived and
// the scorer applies its documented conservative default.
type TickerMetrics struct {
	Ticker string
	AsOf   time.Time

	ImpliedMovePct *float64 // market-priced expected move, percent
	VRPRatio       *float64 // implied move / weighted historical mean move
	Consistency    *float64 // 0..1, inverse of weighted move dispersion
	Skew           *float64 // signed directional-bias confidence, -1..1

	// IVWeeklyChangePct is the week-over-week implied-vol change in percent,
	// served by the volatility tracker. Audit context, not a scored factor.
	IVWeeklyChangePct *float64

	LiquidityTier *LiquidityTier
	Liquidity     *LiquiditySnapshot // underlying metrics for display/audit
}

// CompositeScore is the ranked output of the composite scorer. Components are
// already weighted; each was clamped to [0, max_points] before weighting.
type CompositeScore struct {
	Ticker   string
	AsOfDate time.Time

	VRPComponent         float64
	ConsistencyComponent float64
	SkewComponent        float64
	LiquidityComponent   float64

	CompositeValue float64
	Tier           string // EXCELLENT | GOOD | MARGINAL | SKIP

	IVWeeklyChangePct *float64 // carried through from TickerMetrics for display

	DataFlags []string // conservative defaults applied, for audit
}
