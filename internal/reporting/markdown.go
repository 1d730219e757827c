package reporting

import (
	"fmt"
	"strings"
	"time"
)

// RenderMarkdown renders a report as a Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	sb.WriteString("# Backtest Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Run: `%s`\n\n", r.RunID))

	sb.WriteString("## Summary\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Trades | %d |\n", r.Summary.TradeCount))
	sb.WriteString(fmt.Sprintf("| Win Rate | %.2f%% |\n", r.Summary.WinRate*100))
	sb.WriteString(fmt.Sprintf("| Avg Trade P&L | %.2f%% |\n", r.Summary.AvgPnlPct))
	sb.WriteString(fmt.Sprintf("| Total Return | %.2f%% |\n", r.Summary.TotalReturnPct))
	sb.WriteString(fmt.Sprintf("| Final Equity | %.2f |\n", r.Summary.FinalEquity))
	sb.WriteString(fmt.Sprintf("| Max Drawdown | %.2f%% |\n", r.Summary.MaxDrawdownPct))
	sb.WriteString(fmt.Sprintf("| First Entry | %s |\n", r.Summary.FirstEntry.Format("2006-01-02")))
	sb.WriteString(fmt.Sprintf("| Last Exit | %s |\n", r.Summary.LastExit.Format("2006-01-02")))
	sb.WriteString("\n")

	sb.WriteString("## Trades\n\n")
	if len(r.Trades) > 0 {
		sb.WriteString("| Ticker | Entry | Exit | Score | Alloc | Raw | P&L | Equity After |\n")
		sb.WriteString("|--------|-------|------|-------|-------|-----|-----|-------------|\n")
		for _, t := range r.Trades {
			sb.WriteString(fmt.Sprintf("| %s | %s | %s | %.1f | %.2f%% | %+.2f%% | %+.2f%% | %.2f |\n",
				t.Ticker,
				t.EntryDate.Format("2006-01-02"),
				t.ExitDate.Format("2006-01-02"),
				t.Score,
				t.AllocationPct*100,
				t.RawOutcomePct,
				t.PnlPct,
				t.EquityAfter))
		}
	} else {
		sb.WriteString("No trades recorded.\n")
	}
	sb.WriteString("\n")

	return sb.String()
}
