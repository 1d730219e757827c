package domain

import "time"

// Trade is one simulated backtest trade. Immutable simulation output.
type Trade struct {
	TradeID   string // deterministic hash
	RunID     string // backtest run this trade belongs to
	Ticker    string
	EntryDate time.Time
	ExitDate  time.Time

	Score         float64 // composite value at entry
	AllocationPct float64 // fraction of equity allocated, 0..1
	RawOutcomePct float64 // per-position outcome, percent
	PnlPct        float64 // portfolio-level P&L, percent of equity
	IsWinner      bool
	EquityAfter   float64
}

// EquityCurvePoint is one step of a backtest equity curve.
//
// Invariants: equity compounds multiplicatively
// (equity_t = equity_{t-1} * (1 + pnl_pct/100)) and DrawdownPct stays within
// [0, 100].
type EquityCurvePoint struct {
	SequenceIndex int
	Equity        float64
	PeakEquity    float64
	DrawdownPct   float64
}
