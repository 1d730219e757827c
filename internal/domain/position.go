package domain

// HistoricalStats summarizes past trade outcomes for position sizing.
type HistoricalStats struct {
	WinRate    float64 // 0..1
	AvgWinPct  float64 // average winner magnitude, percent
	AvgLossPct float64 // average loser magnitude, percent (positive number)

	// AvgContractCost is the typical per-contract debit for the setup, used
	// to translate a dollar allocation into whole contracts. Zero leaves
	// Contracts at 0.
	AvgContractCost float64
}

// PositionSize is a capital allocation derived from a score and historical
// win/loss statistics. Derived output; not persisted beyond one evaluation.
type PositionSize struct {
	Ticker           string
	KellyFraction    float64 // raw Kelly fraction before the multiplier
	AppliedFraction  float64 // after fractional multiplier, confidence scaling, clamps
	CapitalAllocated float64
	Contracts        int
}
