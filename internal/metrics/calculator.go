// Package metrics derives the scorer's raw inputs from market data: the
// implied move, the exponentially-weighted VRP ratio, historical-move
// consistency, and the directional skew fit.
package metrics

import (
	"fmt"
	"math"
	"sort"

	"vrp-edge-lab/internal/domain"
)

// Defaults for the calculator.
const (
	// DefaultDecay is the per-quarter exponential decay applied to
	// historical moves, most recent quarter first.
	DefaultDecay = 0.85

	// DefaultMinQuarters is the minimum number of historical moves required
	// before a VRP ratio or consistency value is computed.
	DefaultMinQuarters = 2
)

// Calculator derives TickerMetrics from raw market inputs.
type Calculator struct {
	decay       float64
	minQuarters int
}

// Option configures a Calculator.
type Option func(*Calculator)

// WithDecay sets the per-quarter exponential decay factor.
func WithDecay(decay float64) Option {
	return func(c *Calculator) { c.decay = decay }
}

// WithMinQuarters sets the minimum required historical quarters.
func WithMinQuarters(n int) Option {
	return func(c *Calculator) { c.minQuarters = n }
}

// NewCalculator creates a metrics calculator.
func NewCalculator(opts ...Option) *Calculator {
	c := &Calculator{
		decay:       DefaultDecay,
		minQuarters: DefaultMinQuarters,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ImpliedMove returns the market-priced expected move in percent: the
// interpolated at-the-money straddle price divided by the underlying price.
func (c *Calculator) ImpliedMove(chain *domain.ChainSnapshot) (float64, error) {
	if chain == nil {
		return 0, domain.NewValidationError("chain", "nil snapshot")
	}
	if chain.UnderlyingPrice <= 0 {
		return 0, domain.NewValidationError("underlying_price", "must be positive")
	}
	if len(chain.Quotes) == 0 {
		return 0, fmt.Errorf("no quotes in chain: %w", domain.ErrDataUnavailable)
	}

	straddle, err := atmStraddle(chain.Quotes, chain.UnderlyingPrice)
	if err != nil {
		return 0, err
	}

	return straddle / chain.UnderlyingPrice * 100, nil
}

// atmStraddle interpolates the straddle price at the underlying price from
// the two bracketing strikes. Outside the chain it uses the nearest strike.
func atmStraddle(quotes []domain.OptionQuote, spot float64) (float64, error) {
	sorted := make([]domain.OptionQuote, len(quotes))
	copy(sorted, quotes)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Strike < sorted[j].Strike })

	straddleAt := func(q domain.OptionQuote) float64 { return q.CallMid + q.PutMid }

	if spot <= sorted[0].Strike {
		return straddleAt(sorted[0]), nil
	}
	last := sorted[len(sorted)-1]
	if spot >= last.Strike {
		return straddleAt(last), nil
	}

	for i := 1; i < len(sorted); i++ {
		lo, hi := sorted[i-1], sorted[i]
		if spot > hi.Strike {
			continue
		}
		if hi.Strike == lo.Strike {
			return straddleAt(lo), nil
		}
		frac := (spot - lo.Strike) / (hi.Strike - lo.Strike)
		return straddleAt(lo) + frac*(straddleAt(hi)-straddleAt(lo)), nil
	}

	return 0, fmt.Errorf("strike interpolation failed: %w", domain.ErrDataUnavailable)
}

// VRPRatio returns implied move divided by the exponentially-weighted mean of
// historical moves. Recent quarters weigh more so the ratio tracks
// current-regime behavior rather than stale averages.
//
// Returns ErrDataUnavailable when fewer than the minimum quarters exist or
// the weighted mean is not positive; a ratio is never fabricated.
func (c *Calculator) VRPRatio(impliedMovePct float64, moves []*domain.HistoricalMove) (float64, error) {
	mean, err := c.weightedMeanMove(moves)
	if err != nil {
		return 0, err
	}
	if mean <= 0 {
		return 0, fmt.Errorf("historical mean move %.4f is not positive: %w", mean, domain.ErrDataUnavailable)
	}
	return impliedMovePct / mean, nil
}

// Consistency returns 1/(1+cv) where cv is the weighted coefficient of
// variation of historical move magnitudes. Lower dispersion means a higher
// score; the result lies in (0, 1].
func (c *Calculator) Consistency(moves []*domain.HistoricalMove) (float64, error) {
	mean, err := c.weightedMeanMove(moves)
	if err != nil {
		return 0, err
	}
	if mean <= 0 {
		return 0, fmt.Errorf("historical mean move %.4f is not positive: %w", mean, domain.ErrDataUnavailable)
	}

	weights := c.quarterWeights(len(moves))
	ordered := movesByRecency(moves)

	var wsum, varsum float64
	for i, m := range ordered {
		diff := math.Abs(m.MovePct) - mean
		varsum += weights[i] * diff * diff
		wsum += weights[i]
	}
	stddev := math.Sqrt(varsum / wsum)

	cv := stddev / mean
	return 1 / (1 + cv), nil
}

// Skew fits a degree-2 polynomial to implied vol across out-of-the-money
// strikes (moneyness on x) and maps the signed linear coefficient to a
// directional-bias confidence in [-1, 1]. Positive means call-side demand.
func (c *Calculator) Skew(ladder []domain.StrikeQuote, spot float64) (float64, error) {
	if spot <= 0 {
		return 0, domain.NewValidationError("spot", "must be positive")
	}
	if len(ladder) < 3 {
		return 0, fmt.Errorf("skew ladder has %d strikes, need 3: %w", len(ladder), domain.ErrDataUnavailable)
	}

	xs := make([]float64, len(ladder))
	ys := make([]float64, len(ladder))
	for i, q := range ladder {
		xs[i] = q.Strike/spot - 1 // moneyness offset
		ys[i] = q.ImpliedVol
	}

	_, c1, _, err := polyfit2(xs, ys)
	if err != nil {
		return 0, fmt.Errorf("skew fit: %w", domain.ErrDataUnavailable)
	}

	// The linear coefficient is the slope of the smile at the money.
	// tanh bounds it to a confidence without a hard discontinuity.
	return math.Tanh(c1), nil
}

// Compute assembles a full TickerMetrics record, degrading each optional
// factor to nil when its inputs are unavailable.
func (c *Calculator) Compute(chain *domain.ChainSnapshot, moves []*domain.HistoricalMove) (*domain.TickerMetrics, error) {
	if chain == nil || chain.Ticker == "" {
		return nil, domain.NewValidationError("chain", "nil snapshot or empty ticker")
	}

	m := &domain.TickerMetrics{
		Ticker:    chain.Ticker,
		AsOf:      chain.AsOf,
		Liquidity: chain.Liquidity,
	}

	implied, err := c.ImpliedMove(chain)
	if err == nil {
		m.ImpliedMovePct = &implied

		if vrp, verr := c.VRPRatio(implied, moves); verr == nil {
			m.VRPRatio = &vrp
		}
	}

	if cons, cerr := c.Consistency(moves); cerr == nil {
		m.Consistency = &cons
	}

	if len(chain.OTMStrikes) > 0 {
		if skew, serr := c.Skew(chain.OTMStrikes, chain.UnderlyingPrice); serr == nil {
			m.Skew = &skew
		}
	}

	return m, nil
}

// weightedMeanMove computes the exponentially-weighted mean of historical
// move magnitudes, most recent quarter weighted heaviest.
func (c *Calculator) weightedMeanMove(moves []*domain.HistoricalMove) (float64, error) {
	if len(moves) < c.minQuarters {
		return 0, fmt.Errorf("%d historical quarters, need %d: %w",
			len(moves), c.minQuarters, domain.ErrDataUnavailable)
	}

	weights := c.quarterWeights(len(moves))
	ordered := movesByRecency(moves)

	var sum, wsum float64
	for i, m := range ordered {
		sum += weights[i] * math.Abs(m.MovePct)
		wsum += weights[i]
	}
	return sum / wsum, nil
}

// quarterWeights returns decay^k for k quarters back.
func (c *Calculator) quarterWeights(n int) []float64 {
	weights := make([]float64, n)
	w := 1.0
	for i := 0; i < n; i++ {
		weights[i] = w
		w *= c.decay
	}
	return weights
}

// movesByRecency returns moves ordered most recent first.
func movesByRecency(moves []*domain.HistoricalMove) []*domain.HistoricalMove {
	ordered := make([]*domain.HistoricalMove, len(moves))
	copy(ordered, moves)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].EarningsDate.After(ordered[j].EarningsDate)
	})
	return ordered
}
