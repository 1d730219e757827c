package domain

import "time"

// VolatilitySnapshot is one daily implied/historical volatility reading for a
// ticker. Rows are append-only facts keyed by (ticker, date).
type VolatilitySnapshot struct {
	Ticker        string
	Date          time.Time // UTC, truncated to day
	ImpliedVol    float64
	HistoricalVol float64
	CreatedAt     time.Time
}

// LiquiditySnapshot captures option-market liquidity at evaluation time.
// Transient: recomputed per evaluation, never persisted.
type LiquiditySnapshot struct {
	OpenInterest    int64
	BidAskSpreadPct float64
	Volume          int64
}

// Day truncates t to UTC midnight. All daily keys in the store use this form.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
