package backtest

import (
	"math"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"

	"vrp-edge-lab/internal/config"
	"vrp-edge-lab/internal/domain"
	"vrp-edge-lab/internal/observability"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func testBacktestConfig() config.BacktestConfig {
	return config.BacktestConfig{
		StartingEquity: 10000,
		MinScore:       60,
		MaxConcurrent:  5,
		Walkforward: config.WalkforwardConfig{
			TrainDays:    10,
			TestDays:     5,
			StepDays:     5,
			CutoffLadder: []float64{0, 50},
		},
	}
}

// fullAllocationSizing makes every selected trade allocate exactly the clamp
// ceiling, so pnl arithmetic in assertions stays simple.
func fullAllocationSizing() config.SizingConfig {
	return config.SizingConfig{
		KellyMultiplier:   1.0,
		MinAllocationPct:  0.01,
		MaxAllocationPct:  0.10,
		ScaleByConfidence: false,
		PriorWinRate:      0.9,
		PriorAvgWinPct:    50,
		PriorAvgLossPct:   10,
		PriorMinTrades:    10,
	}
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := NewEngine(testBacktestConfig(), fullAllocationSizing(), 100, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	return e
}

func opp(ticker string, entry, exit time.Time, score, rawOutcome float64) *Opportunity {
	return &Opportunity{
		Ticker:        ticker,
		EntryDate:     entry,
		ExitDate:      exit,
		Score:         &domain.CompositeScore{Ticker: ticker, AsOfDate: entry, CompositeValue: score},
		RawOutcomePct: rawOutcome,
	}
}

func TestRun_MultiplicativeCompounding(t *testing.T) {
	e := newTestEngine(t)

	// Three total losses at a 10% allocation each: -10% portfolio pnl per
	// trade, so equity must land at 10000 * 0.9^3 = 7290, not 7000.
	opportunities := []*Opportunity{
		opp("AAA", date(2025, 1, 6), date(2025, 1, 8), 80, -100),
		opp("BBB", date(2025, 1, 13), date(2025, 1, 15), 80, -100),
		opp("CCC", date(2025, 1, 20), date(2025, 1, 22), 80, -100),
	}

	result, err := e.Run("run-1", opportunities)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(result.Trades) != 3 {
		t.Fatalf("got %d trades, want 3", len(result.Trades))
	}
	if math.Abs(result.FinalEquity-7290) > 1e-6 {
		t.Errorf("final equity = %v, want 7290", result.FinalEquity)
	}
	if math.Abs(result.MaxDrawdownPct-27.1) > 1e-6 {
		t.Errorf("max drawdown = %v, want 27.1", result.MaxDrawdownPct)
	}
}

func TestRun_ZeroTradesHasNoStats(t *testing.T) {
	e := newTestEngine(t)
	opportunities := []*Opportunity{
		opp("AAA", date(2025, 1, 6), date(2025, 1, 8), 10, 50), // below min score
	}

	result, err := e.Run("run-1", opportunities)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(result.Trades) != 0 {
		t.Fatalf("got %d trades, want 0", len(result.Trades))
	}
	if result.Stats != nil {
		t.Errorf("stats should be nil with zero trades, got %+v", result.Stats)
	}
	if result.FinalEquity != 10000 {
		t.Errorf("final equity = %v, want untouched 10000", result.FinalEquity)
	}
}

func TestRun_ConcurrencyCap(t *testing.T) {
	cfg := testBacktestConfig()
	cfg.MaxConcurrent = 1
	e, err := NewEngine(cfg, fullAllocationSizing(), 100, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}

	opportunities := []*Opportunity{
		opp("AAA", date(2025, 1, 6), date(2025, 1, 10), 80, 20),
		// Overlaps AAA's holding window: the slot is taken.
		opp("BBB", date(2025, 1, 8), date(2025, 1, 12), 90, 20),
		// Enters after AAA exits: slot released.
		opp("CCC", date(2025, 1, 11), date(2025, 1, 13), 80, 20),
	}

	result, err := e.Run("run-1", opportunities)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(result.Trades) != 2 {
		t.Fatalf("got %d trades, want 2", len(result.Trades))
	}
	if result.Trades[0].Ticker != "AAA" || result.Trades[1].Ticker != "CCC" {
		t.Errorf("trades = %s, %s; want AAA, CCC", result.Trades[0].Ticker, result.Trades[1].Ticker)
	}
}

func TestRun_Deterministic(t *testing.T) {
	opportunities := []*Opportunity{
		opp("DDD", date(2025, 1, 6), date(2025, 1, 8), 80, 30),
		opp("AAA", date(2025, 1, 6), date(2025, 1, 8), 70, -40),
		opp("CCC", date(2025, 1, 13), date(2025, 1, 15), 90, 10),
	}

	var first *Result
	for run := 0; run < 5; run++ {
		e := newTestEngine(t)
		result, err := e.Run("run-1", opportunities)
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}
		if first == nil {
			first = result
			continue
		}
		if len(result.Trades) != len(first.Trades) {
			t.Fatalf("trade count diverged: %d vs %d", len(result.Trades), len(first.Trades))
		}
		for i := range result.Trades {
			if result.Trades[i].TradeID != first.Trades[i].TradeID {
				t.Errorf("trade %d id diverged", i)
			}
			if result.Trades[i].EquityAfter != first.Trades[i].EquityAfter {
				t.Errorf("trade %d equity diverged", i)
			}
		}
	}

	// Same-day entries execute in ticker order regardless of input order.
	if first.Trades[0].Ticker != "AAA" || first.Trades[1].Ticker != "DDD" {
		t.Errorf("same-day order = %s, %s; want AAA, DDD", first.Trades[0].Ticker, first.Trades[1].Ticker)
	}
}

func TestRun_DrawdownMonotonePeak(t *testing.T) {
	e := newTestEngine(t)
	opportunities := []*Opportunity{
		opp("AAA", date(2025, 1, 6), date(2025, 1, 7), 80, 50),    // up
		opp("BBB", date(2025, 1, 13), date(2025, 1, 14), 80, -80), // down
		opp("CCC", date(2025, 1, 20), date(2025, 1, 21), 80, 30),  // partial recovery
	}

	result, err := e.Run("run-1", opportunities)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	var peak float64
	for i, p := range result.EquityCurve {
		if p.PeakEquity < peak {
			t.Errorf("point %d: peak %v dropped below %v", i, p.PeakEquity, peak)
		}
		peak = p.PeakEquity
		if p.DrawdownPct < 0 || p.DrawdownPct > 100 {
			t.Errorf("point %d: drawdown %v outside [0, 100]", i, p.DrawdownPct)
		}
	}

	// Recovery shrinks current drawdown but the max must keep the trough.
	last := result.EquityCurve[len(result.EquityCurve)-1]
	if result.MaxDrawdownPct < last.DrawdownPct {
		t.Errorf("max drawdown %v below final drawdown %v", result.MaxDrawdownPct, last.DrawdownPct)
	}
	if result.MaxDrawdownPct != result.EquityCurve[1].DrawdownPct {
		t.Errorf("max drawdown %v should equal trough %v", result.MaxDrawdownPct, result.EquityCurve[1].DrawdownPct)
	}
}

func TestRun_StatsSummary(t *testing.T) {
	e := newTestEngine(t)
	opportunities := []*Opportunity{
		opp("AAA", date(2025, 1, 6), date(2025, 1, 7), 80, 50),
		opp("BBB", date(2025, 1, 13), date(2025, 1, 14), 80, -30),
		opp("CCC", date(2025, 1, 20), date(2025, 1, 21), 80, 50),
	}

	result, err := e.Run("run-1", opportunities)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	s := result.Stats
	if s == nil {
		t.Fatal("stats missing")
	}
	if s.TradeCount != 3 {
		t.Errorf("trade count = %d, want 3", s.TradeCount)
	}
	if math.Abs(s.WinRate-2.0/3.0) > 1e-9 {
		t.Errorf("win rate = %v, want 2/3", s.WinRate)
	}
	if math.Abs(s.AvgWinPct-50) > 1e-9 {
		t.Errorf("avg win = %v, want 50", s.AvgWinPct)
	}
	if math.Abs(s.AvgLossPct-30) > 1e-9 {
		t.Errorf("avg loss = %v, want 30", s.AvgLossPct)
	}
	if s.MaxConsecLoss != 1 {
		t.Errorf("max consecutive losses = %d, want 1", s.MaxConsecLoss)
	}
	if s.ProfitFactor <= 1 {
		t.Errorf("profit factor = %v, want > 1 for a winning run", s.ProfitFactor)
	}
}

func TestRun_CountsRunsAndTrades(t *testing.T) {
	e := newTestEngine(t)
	opportunities := []*Opportunity{
		opp("AAA", date(2025, 1, 6), date(2025, 1, 7), 80, 50),
		opp("BBB", date(2025, 1, 13), date(2025, 1, 14), 80, -30),
	}

	runsBefore := testutil.ToFloat64(observability.DefaultMetrics.BacktestRuns.WithLabelValues("completed"))
	tradesBefore := testutil.ToFloat64(observability.DefaultMetrics.TradesSimulated)

	if _, err := e.Run("run-1", opportunities); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if got := testutil.ToFloat64(observability.DefaultMetrics.BacktestRuns.WithLabelValues("completed")) - runsBefore; got != 1 {
		t.Errorf("run delta = %v, want 1", got)
	}
	if got := testutil.ToFloat64(observability.DefaultMetrics.TradesSimulated) - tradesBefore; got != 2 {
		t.Errorf("trades delta = %v, want 2", got)
	}
}

func TestRun_InvalidInputs(t *testing.T) {
	e := newTestEngine(t)

	if _, err := e.Run("", nil); err == nil {
		t.Error("expected error for empty run id")
	}

	bad := []*Opportunity{opp("AAA", date(2025, 1, 10), date(2025, 1, 5), 80, 10)}
	if _, err := e.Run("run-1", bad); err == nil {
		t.Error("expected error for exit before entry")
	}
}

func TestWalkforward_SelectsBetterCutoff(t *testing.T) {
	e := newTestEngine(t)

	// Low-score opportunities always lose, high-score ones always win. The
	// train phase must learn to prefer the 50 cutoff over 0.
	var opportunities []*Opportunity
	start := date(2025, 1, 1)
	for i := 0; i < 30; i++ {
		day := start.AddDate(0, 0, i)
		opportunities = append(opportunities,
			opp("WIN", day, day.AddDate(0, 0, 1), 80, 40),
			opp("LOSE", day, day.AddDate(0, 0, 1), 10, -40),
		)
	}

	result, err := e.Walkforward("wf-1", opportunities)
	if err != nil {
		t.Fatalf("Walkforward failed: %v", err)
	}
	if len(result.Windows) == 0 {
		t.Fatal("no windows produced")
	}
	for _, w := range result.Windows {
		if w.SelectedCutoff != 50 {
			t.Errorf("window %d selected cutoff %v, want 50", w.Index, w.SelectedCutoff)
		}
		for _, trade := range w.Test.Trades {
			if trade.Score < 50 {
				t.Errorf("window %d traded below the selected cutoff: %v", w.Index, trade.Score)
			}
		}
	}
	if result.TestTrades == 0 {
		t.Error("expected out-of-sample trades")
	}
}

func TestWalkforward_TooShortSpan(t *testing.T) {
	e := newTestEngine(t)
	opportunities := []*Opportunity{
		opp("AAA", date(2025, 1, 6), date(2025, 1, 7), 80, 10),
		opp("BBB", date(2025, 1, 8), date(2025, 1, 9), 80, 10),
	}
	if _, err := e.Walkforward("wf-1", opportunities); err == nil {
		t.Error("expected error for a span shorter than one training window")
	}
}
