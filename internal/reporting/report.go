package reporting

import (
	"time"

	"vrp-edge-lab/internal/domain"
)

// Report is the rendered view of one persisted backtest run.
type Report struct {
	GeneratedAt time.Time
	RunID       string

	Summary Summary

	// Trades sorted by entry_date ASC, as persisted.
	Trades []*domain.Trade

	// EquityCurve sorted by sequence_index ASC.
	EquityCurve []domain.EquityCurvePoint
}

// Summary holds the headline figures derived from the stored trades and curve.
type Summary struct {
	TradeCount     int
	WinRate        float64
	AvgPnlPct      float64
	TotalReturnPct float64
	FinalEquity    float64
	MaxDrawdownPct float64
	FirstEntry     time.Time
	LastExit       time.Time
}
