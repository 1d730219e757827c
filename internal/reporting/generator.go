package reporting

import (
	"context"
	"errors"
	"fmt"
	"time"

	"vrp-edge-lab/internal/storage"
)

// ErrEmptyRun is returned when the run has no persisted trades.
var ErrEmptyRun = errors.New("reporting: run has no trades")

// Generator produces reports from persisted backtest output.
type Generator struct {
	trades storage.TradeStore
	curves storage.EquityCurveStore
	now    func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a new report generator.
func NewGenerator(trades storage.TradeStore, curves storage.EquityCurveStore) *Generator {
	return &Generator{
		trades: trades,
		curves: curves,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate builds the report for one run from the stores.
func (g *Generator) Generate(ctx context.Context, runID string) (*Report, error) {
	trades, err := g.trades.GetByRunID(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("load trades for run %s: %w", runID, err)
	}
	if len(trades) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyRun, runID)
	}

	curve, err := g.curves.GetByRunID(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("load equity curve for run %s: %w", runID, err)
	}

	summary := Summary{
		TradeCount: len(trades),
		FirstEntry: trades[0].EntryDate,
	}

	wins := 0
	pnlSum := 0.0
	for _, t := range trades {
		if t.IsWinner {
			wins++
		}
		pnlSum += t.PnlPct
		if t.ExitDate.After(summary.LastExit) {
			summary.LastExit = t.ExitDate
		}
	}
	summary.WinRate = float64(wins) / float64(len(trades))
	summary.AvgPnlPct = pnlSum / float64(len(trades))

	for _, p := range curve {
		if p.DrawdownPct > summary.MaxDrawdownPct {
			summary.MaxDrawdownPct = p.DrawdownPct
		}
	}
	if len(curve) > 0 {
		// One curve point per trade, so the starting equity is recovered by
		// unwinding the first trade's compounding step.
		initial := curve[0].Equity / (1 + trades[0].PnlPct/100)
		last := curve[len(curve)-1].Equity
		summary.FinalEquity = last
		if initial > 0 {
			summary.TotalReturnPct = (last/initial - 1) * 100
		}
	}

	return &Report{
		GeneratedAt: g.now(),
		RunID:       runID,
		Summary:     summary,
		Trades:      trades,
		EquityCurve: curve,
	}, nil
}
