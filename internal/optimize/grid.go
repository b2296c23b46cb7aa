// Package optimize runs parameter sweeps over the backtest engine: grid
// search across a cartesian parameter space and walk-forward analysis for
// out-of-sample validation.
package optimize

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"vela/internal/backtest"
	"vela/internal/config"
	"vela/internal/domain"
	"vela/internal/strategy"
)

// ParamGrid maps a parameter name to the values it sweeps over.
type ParamGrid map[string][]float64

// Combos expands the grid into its cartesian product. Parameter names are
// iterated in sorted order, so the combination order is deterministic. An
// empty grid yields a single empty combination.
func (g ParamGrid) Combos() []map[string]float64 {
	names := make([]string, 0, len(g))
	for name := range g {
		names = append(names, name)
	}
	sort.Strings(names)

	combos := []map[string]float64{{}}
	for _, name := range names {
		values := g[name]
		next := make([]map[string]float64, 0, len(combos)*len(values))
		for _, combo := range combos {
			for _, v := range values {
				c := make(map[string]float64, len(combo)+1)
				for k, cv := range combo {
					c[k] = cv
				}
				c[name] = v
				next = append(next, c)
			}
		}
		combos = next
	}
	return combos
}

// TrialResult is the outcome of one parameter combination. A failed trial
// carries its error and is excluded from the ranking.
type TrialResult struct {
	Params map[string]float64 `json:"params"`
	Score  float64            `json:"score"`
	Result *domain.RunResult  `json:"result,omitempty"`
	Err    error              `json:"-"`
}

// Summary ranks the trials of one grid search, best first.
type Summary struct {
	Metric string        `json:"metric"`
	Trials []TrialResult `json:"trials"`
	Best   *TrialResult  `json:"best,omitempty"`
	Failed int           `json:"failed"`
}

// Runner executes parameter sweeps. Each trial runs a fresh strategy
// instance from the factory against a fresh engine, so trials share
// nothing and can run concurrently.
type Runner struct {
	factory      strategy.Factory
	cfg          backtest.Config
	maxWorkers   int
	trialTimeout time.Duration
	metric       string
	log          *slog.Logger
}

// NewRunner creates a Runner from optimizer settings. A nil logger
// defaults to slog.Default.
func NewRunner(factory strategy.Factory, cfg backtest.Config, opt config.OptimizerConfig, log *slog.Logger) *Runner {
	if log == nil {
		log = slog.Default()
	}
	workers := opt.MaxWorkers
	if workers <= 0 {
		workers = 1
	}
	metric := opt.TargetMetric
	if metric == "" {
		metric = "sharpe"
	}
	return &Runner{
		factory:      factory,
		cfg:          cfg,
		maxWorkers:   workers,
		trialTimeout: time.Duration(opt.TrialTimeoutSecs) * time.Second,
		metric:       metric,
		log:          log,
	}
}

// GridSearch runs one backtest per parameter combination and ranks the
// results by the target metric, descending. Individual trial failures are
// recorded and counted, never fatal; the sweep as a whole only fails on an
// invalid metric name, an empty grid product, or context cancellation.
//
// With equal inputs the ranking is identical whether trials run serially
// or concurrently.
func (r *Runner) GridSearch(ctx context.Context, grid ParamGrid, data map[string][]domain.Bar) (*Summary, error) {
	if _, err := metricValue(domain.Metrics{}, r.metric); err != nil {
		return nil, err
	}
	combos := grid.Combos()

	results := make([]TrialResult, len(combos))
	var g errgroup.Group
	g.SetLimit(r.maxWorkers)

	for i, params := range combos {
		if err := ctx.Err(); err != nil {
			break
		}
		g.Go(func() error {
			results[i] = r.runTrial(ctx, params, data)
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("grid search aborted: %w", err)
	}

	summary := &Summary{Metric: r.metric}
	for _, res := range results {
		if res.Err != nil {
			summary.Failed++
			r.log.Warn("trial failed", "params", res.Params, "error", res.Err)
			continue
		}
		summary.Trials = append(summary.Trials, res)
	}
	sort.SliceStable(summary.Trials, func(a, b int) bool {
		return summary.Trials[a].Score > summary.Trials[b].Score
	})
	if len(summary.Trials) > 0 {
		summary.Best = &summary.Trials[0]
	}
	return summary, nil
}

// runTrial executes one parameter combination.
func (r *Runner) runTrial(ctx context.Context, params map[string]float64, data map[string][]domain.Bar) TrialResult {
	trial := TrialResult{Params: params}

	if r.trialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.trialTimeout)
		defer cancel()
	}

	strat, err := r.factory(params)
	if err != nil {
		trial.Err = fmt.Errorf("%w: %v", domain.ErrStrategy, err)
		return trial
	}

	res, err := backtest.New(r.cfg, strat, nil, r.log).Run(ctx, data)
	if err != nil {
		trial.Err = err
		return trial
	}
	res.Params = params

	score, err := metricValue(res.Metrics, r.metric)
	if err != nil {
		trial.Err = err
		return trial
	}
	trial.Score = score
	trial.Result = res
	return trial
}

// metricValue extracts the named metric as a score where higher is always
// better; max_drawdown is negated for that reason.
func metricValue(m domain.Metrics, name string) (float64, error) {
	switch name {
	case "sharpe":
		return m.Sharpe, nil
	case "sortino":
		return m.Sortino, nil
	case "calmar":
		return m.Calmar, nil
	case "total_return":
		return m.TotalReturn, nil
	case "annual_return":
		return m.AnnualReturn, nil
	case "profit_factor":
		return m.ProfitFactor, nil
	case "win_rate":
		return m.WinRate, nil
	case "max_drawdown":
		return -m.MaxDrawdown, nil
	}
	return 0, fmt.Errorf("%w: unknown target metric %q", domain.ErrEngine, name)
}
