package backtest

import (
	"fmt"
	"sort"
	"time"

	"vrp-edge-lab/internal/domain"
)

// WindowResult is one train/test slice of a walkforward run.
type WindowResult struct {
	Index      int
	TrainStart time.Time
	TrainEnd   time.Time // exclusive
	TestStart  time.Time
	TestEnd    time.Time // exclusive

	// SelectedCutoff is the ladder cutoff that maximized train final equity.
	SelectedCutoff float64

	Train *Result
	Test  *Result
}

// WalkforwardResult aggregates all windows of a walkforward run.
type WalkforwardResult struct {
	Windows []*WindowResult

	// Out-of-sample aggregates over all test slices.
	TestTrades        int
	MeanTestReturn    float64
	WorstTestDrawdown float64
}

// Walkforward runs rolling train/test validation: each training window picks
// a min-score cutoff from the ladder, and only the out-of-sample test slices
// count toward the aggregate. The cutoff is never fitted on data it is then
// judged against.
func (e *Engine) Walkforward(runID string, opportunities []*Opportunity) (*WalkforwardResult, error) {
	if runID == "" {
		return nil, domain.NewValidationError("run_id", "empty")
	}
	if len(opportunities) == 0 {
		return nil, fmt.Errorf("no opportunities: %w", domain.ErrDataUnavailable)
	}

	wf := e.cfg.Walkforward
	ladder := append([]float64(nil), wf.CutoffLadder...)
	sort.Float64s(ladder)

	first, last := dateSpan(opportunities)
	result := &WalkforwardResult{}

	trainStart := first
	for i := 0; ; i++ {
		trainEnd := trainStart.AddDate(0, 0, wf.TrainDays)
		testEnd := trainEnd.AddDate(0, 0, wf.TestDays)
		if !trainEnd.Before(last) {
			break
		}

		train := slice(opportunities, trainStart, trainEnd)
		test := slice(opportunities, trainEnd, testEnd)

		window := &WindowResult{
			Index:      i,
			TrainStart: trainStart,
			TrainEnd:   trainEnd,
			TestStart:  trainEnd,
			TestEnd:    testEnd,
		}

		cutoff, trainResult, err := e.selectCutoff(fmt.Sprintf("%s-w%d-train", runID, i), train, ladder)
		if err != nil {
			return nil, fmt.Errorf("window %d train: %w", i, err)
		}
		window.SelectedCutoff = cutoff
		window.Train = trainResult

		testResult, err := e.RunWithCutoff(fmt.Sprintf("%s-w%d-test", runID, i), test, cutoff)
		if err != nil {
			return nil, fmt.Errorf("window %d test: %w", i, err)
		}
		window.Test = testResult

		result.Windows = append(result.Windows, window)
		trainStart = trainStart.AddDate(0, 0, wf.StepDays)
	}

	if len(result.Windows) == 0 {
		return nil, fmt.Errorf("date span %s..%s too short for a full training window: %w",
			first.Format("2006-01-02"), last.Format("2006-01-02"), domain.ErrDataUnavailable)
	}

	var returnSum float64
	for _, w := range result.Windows {
		if w.Test.Stats != nil {
			result.TestTrades += w.Test.Stats.TradeCount
			returnSum += w.Test.Stats.TotalReturnPct
		}
		if w.Test.MaxDrawdownPct > result.WorstTestDrawdown {
			result.WorstTestDrawdown = w.Test.MaxDrawdownPct
		}
	}
	result.MeanTestReturn = returnSum / float64(len(result.Windows))

	e.logger.Info().
		Str("run_id", runID).
		Int("windows", len(result.Windows)).
		Int("test_trades", result.TestTrades).
		Float64("mean_test_return_pct", result.MeanTestReturn).
		Msg("walkforward complete")

	return result, nil
}

// selectCutoff runs the training slice once per ladder cutoff and returns the
// one with the highest final equity. Ties keep the lower cutoff so selection
// never tightens without evidence.
func (e *Engine) selectCutoff(runID string, train []*Opportunity, ladder []float64) (float64, *Result, error) {
	var best *Result
	bestCutoff := ladder[0]

	for _, cutoff := range ladder {
		r, err := e.RunWithCutoff(runID, train, cutoff)
		if err != nil {
			return 0, nil, err
		}
		if best == nil || r.FinalEquity > best.FinalEquity {
			best = r
			bestCutoff = cutoff
		}
	}

	return bestCutoff, best, nil
}

// slice returns the opportunities with entry dates in [start, end).
func slice(opportunities []*Opportunity, start, end time.Time) []*Opportunity {
	var out []*Opportunity
	for _, opp := range opportunities {
		if !opp.EntryDate.Before(start) && opp.EntryDate.Before(end) {
			out = append(out, opp)
		}
	}
	return out
}

// dateSpan returns the earliest and latest entry dates in the set.
func dateSpan(opportunities []*Opportunity) (first, last time.Time) {
	first = opportunities[0].EntryDate
	last = first
	for _, opp := range opportunities[1:] {
		if opp.EntryDate.Before(first) {
			first = opp.EntryDate
		}
		if opp.EntryDate.After(last) {
			last = opp.EntryDate
		}
	}
	return first, last
}
