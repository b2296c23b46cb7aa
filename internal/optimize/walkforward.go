package optimize

import (
	"context"
	"fmt"
	"sort"
	"time"

	"vela/internal/backtest"
	"vela/internal/domain"
)

// WindowResult is one train/test split of a walk-forward analysis: the
// parameters that won the in-sample grid search and the out-of-sample run
// they produced.
type WindowResult struct {
	TrainStart time.Time          `json:"train_start"`
	TrainEnd   time.Time          `json:"train_end"`
	TestStart  time.Time          `json:"test_start"`
	TestEnd    time.Time          `json:"test_end"`
	BestParams map[string]float64 `json:"best_params"`
	TestResult *domain.RunResult  `json:"test_result"`
}

// WalkForwardResult aggregates all windows plus the stitched out-of-sample
// equity curve and the metrics computed over it. The stitched curve is what
// an investor trading the re-optimized strategy would actually have
// experienced, which makes it the honest measure of the parameter search.
type WalkForwardResult struct {
	Windows    []WindowResult    `json:"windows"`
	OOSCurve   []domain.Snapshot `json:"oos_curve"`
	OOSTrades  []domain.Trade    `json:"oos_trades"`
	OOSMetrics domain.Metrics    `json:"oos_metrics"`
}

// WalkForward slides a train/test split across the dataset: each window
// grid-searches the training bars, then replays the winning parameters on
// the test bars that immediately follow. Windows advance by testBars, so
// test segments tile the data without overlap. Bar counts refer to
// distinct global timestamps, which keeps multi-symbol datasets aligned.
func (r *Runner) WalkForward(ctx context.Context, grid ParamGrid, data map[string][]domain.Bar, trainBars, testBars int) (*WalkForwardResult, error) {
	if trainBars <= 0 || testBars <= 0 {
		return nil, fmt.Errorf("%w: train and test window sizes must be positive, got %d/%d", domain.ErrEngine, trainBars, testBars)
	}

	stamps := distinctTimestamps(data)
	if len(stamps) < trainBars+testBars {
		return nil, fmt.Errorf("%w: walk-forward needs at least %d bars, have %d", domain.ErrEngine, trainBars+testBars, len(stamps))
	}

	out := &WalkForwardResult{}
	for start := 0; start+trainBars+testBars <= len(stamps); start += testBars {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("walk-forward aborted: %w", err)
		}

		trainStamps := stamps[start : start+trainBars]
		testStamps := stamps[start+trainBars : start+trainBars+testBars]
		trainData := sliceByTime(data, trainStamps[0], testStamps[0])
		testData := sliceByTime(data, testStamps[0], testStamps[len(testStamps)-1].Add(time.Nanosecond))

		summary, err := r.GridSearch(ctx, grid, trainData)
		if err != nil {
			return nil, err
		}
		if summary.Best == nil {
			return nil, fmt.Errorf("%w: every trial failed in training window starting %s", domain.ErrEngine, trainStamps[0].Format(time.RFC3339))
		}

		strat, err := r.factory(summary.Best.Params)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrStrategy, err)
		}
		testRes, err := backtest.New(r.cfg, strat, nil, r.log).Run(ctx, testData)
		if err != nil {
			return nil, fmt.Errorf("out-of-sample run: %w", err)
		}
		testRes.Params = summary.Best.Params

		out.Windows = append(out.Windows, WindowResult{
			TrainStart: trainStamps[0],
			TrainEnd:   trainStamps[len(trainStamps)-1],
			TestStart:  testStamps[0],
			TestEnd:    testStamps[len(testStamps)-1],
			BestParams: summary.Best.Params,
			TestResult: testRes,
		})
		out.OOSTrades = append(out.OOSTrades, testRes.Trades...)
		out.OOSCurve = stitchCurve(out.OOSCurve, testRes.Curve, r.cfg.InitialCash)
	}

	metrics, err := backtest.ComputeMetrics(out.OOSCurve, out.OOSTrades, r.cfg.RiskFreeRate, r.cfg.BarsPerYear)
	if err != nil {
		return nil, err
	}
	out.OOSMetrics = metrics
	return out, nil
}

// distinctTimestamps returns the sorted union of bar timestamps across all
// symbols.
func distinctTimestamps(data map[string][]domain.Bar) []time.Time {
	seen := make(map[time.Time]struct{})
	var stamps []time.Time
	for _, bars := range data {
		for _, b := range bars {
			if _, ok := seen[b.Timestamp]; !ok {
				seen[b.Timestamp] = struct{}{}
				stamps = append(stamps, b.Timestamp)
			}
		}
	}
	sort.Slice(stamps, func(i, j int) bool { return stamps[i].Before(stamps[j]) })
	return stamps
}

// sliceByTime filters each symbol's bars to [start, end). Symbols left with
// no bars in the window are dropped.
func sliceByTime(data map[string][]domain.Bar, start, end time.Time) map[string][]domain.Bar {
	out := make(map[string][]domain.Bar, len(data))
	for sym, bars := range data {
		var window []domain.Bar
		for _, b := range bars {
			if !b.Timestamp.Before(start) && b.Timestamp.Before(end) {
				window = append(window, b)
			}
		}
		if len(window) > 0 {
			out[sym] = window
		}
	}
	return out
}

// stitchCurve appends a test segment to the combined out-of-sample curve,
// scaling it so the segment starts at the equity the previous segment ended
// with. Each test run restarts from initial cash; scaling chains the
// segment returns instead of resetting equity at every window boundary.
func stitchCurve(combined, segment []domain.Snapshot, initialCash float64) []domain.Snapshot {
	if len(segment) == 0 {
		return combined
	}
	base := initialCash
	if len(combined) > 0 {
		base = combined[len(combined)-1].Equity
	}
	factor := 1.0
	if segment[0].Equity > 0 {
		// Scale from the segment's starting equity so the first point of
		// the segment continues the combined curve.
		factor = base / segment[0].Equity
	}
	for _, snap := range segment {
		combined = append(combined, domain.Snapshot{
			Timestamp:     snap.Timestamp,
			Cash:          snap.Cash * factor,
			MarketValue:   snap.MarketValue * factor,
			Equity:        snap.Equity * factor,
			OpenPositions: snap.OpenPositions,
		})
	}
	return combined
}
