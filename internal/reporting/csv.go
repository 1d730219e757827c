package reporting

import (
	"fmt"
	"strings"
)

// RenderTradesCSV renders a run's trades as a CSV string.
func RenderTradesCSV(r *Report) string {
	var sb strings.Builder

	sb.WriteString("trade_id,run_id,ticker,entry_date,exit_date,score,allocation_pct,")
	sb.WriteString("raw_outcome_pct,pnl_pct,is_winner,equity_after\n")

	for _, t := range r.Trades {
		sb.WriteString(fmt.Sprintf("%s,%s,%s,%s,%s,%.4f,%.6f,%.4f,%.4f,%t,%.2f\n",
			t.TradeID,
			t.RunID,
			t.Ticker,
			t.EntryDate.Format("2006-01-02"),
			t.ExitDate.Format("2006-01-02"),
			t.Score,
			t.AllocationPct,
			t.RawOutcomePct,
			t.PnlPct,
			t.IsWinner,
			t.EquityAfter,
		))
	}

	return sb.String()
}

// RenderEquityCSV renders a run's equity curve as a CSV string.
func RenderEquityCSV(r *Report) string {
	var sb strings.Builder

	sb.WriteString("sequence_index,equity,peak_equity,drawdown_pct\n")
	for _, p := range r.EquityCurve {
		sb.WriteString(fmt.Sprintf("%d,%.2f,%.2f,%.4f\n",
			p.SequenceIndex, p.Equity, p.PeakEquity, p.DrawdownPct))
	}

	return sb.String()
}
