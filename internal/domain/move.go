package domain

import "time"

// Move direction constants.
const (
	DirectionUp   = "UP"
	DirectionDown = "DOWN"
)

// HistoricalMove is the realized post-earnings move for one earnings event.
// Immutable once recorded; keyed by (ticker, earnings_date).
type HistoricalMove struct {
	Ticker       string
	EarningsDate time.Time // UTC, truncated to day
	MovePct      float64   // absolute magnitude, percent
	Direction    string    // UP | DOWN
}

// OptionQuote is one strike row of an option chain: mid prices for the call
// and put at that strike.
type OptionQuote struct {
	Strike  float64
	CallMid float64
	PutMid  float64
}

// StrikeQuote is one point of an out-of-the-money strike ladder used for the
// skew fit: implied volatility observed at a strike.
type StrikeQuote struct {
	Strike     float64
	ImpliedVol float64
}

// ChainSnapshot is the option-chain state for a ticker at evaluation time.
// Produced by an external collaborator; the core only reads it.
type ChainSnapshot struct {
	Ticker          string
	AsOf            time.Time
	UnderlyingPrice float64
	Expiry          time.Time
	Quotes          []OptionQuote // sorted by strike ASC
	OTMStrikes      []StrikeQuote // optional ladder for the skew fit
	Liquidity       *LiquiditySnapshot
}
