package backtest

import (
	"fmt"
	"math"

	"vela/internal/domain"
)

// maxProfitFactor caps the profit factor when a run has winning trades but
// no losing ones, keeping the value JSON-safe.
const maxProfitFactor = 999

// ComputeMetrics derives return, risk and trade statistics from a finished
// equity curve and trade log. Per-bar returns are simple returns between
// consecutive snapshots; annualization uses barsPerYear periods per year.
//
// Degenerate inputs produce zeros rather than NaN or Inf: a flat curve has
// zero volatility, Sharpe, Sortino and drawdown; an empty trade log has a
// zero win rate and profit factor.
func ComputeMetrics(curve []domain.Snapshot, trades []domain.Trade, riskFreeRate float64, barsPerYear int) (domain.Metrics, error) {
	if len(curve) == 0 {
		return domain.Metrics{}, fmt.Errorf("%w: cannot compute metrics on an empty equity curve", domain.ErrEngine)
	}
	if barsPerYear <= 0 {
		return domain.Metrics{}, fmt.Errorf("%w: bars per year must be positive, got %d", domain.ErrEngine, barsPerYear)
	}

	var m domain.Metrics
	first, last := curve[0].Equity, curve[len(curve)-1].Equity

	if first > 0 {
		m.TotalReturn = last/first - 1
	}

	years := curve[len(curve)-1].Timestamp.Sub(curve[0].Timestamp).Hours() / (24 * 365.25)
	if years <= 0 {
		years = float64(len(curve)-1) / float64(barsPerYear)
	}
	if years > 0 && first > 0 && last > 0 {
		m.AnnualReturn = math.Pow(last/first, 1/years) - 1
	}

	returns := periodReturns(curve)
	rfPerBar := riskFreeRate / float64(barsPerYear)

	mean, stdev := meanStdev(returns)
	annFactor := math.Sqrt(float64(barsPerYear))
	m.Volatility = stdev * annFactor
	if stdev > 0 {
		m.Sharpe = (mean - rfPerBar) / stdev * annFactor
	}
	if dd := downsideDeviation(returns, rfPerBar); dd > 0 {
		m.Sortino = (mean - rfPerBar) / dd * annFactor
	}

	m.MaxDrawdown = maxDrawdown(curve)
	if m.MaxDrawdown > 0 {
		m.Calmar = m.AnnualReturn / m.MaxDrawdown
	}

	tradeStats(&m, trades)
	return m, nil
}

// periodReturns computes simple returns between consecutive snapshots. A
// zero-equity snapshot contributes a zero return rather than a division by
// zero.
func periodReturns(curve []domain.Snapshot) []float64 {
	if len(curve) < 2 {
		return nil
	}
	returns := make([]float64, 0, len(curve)-1)
	for i := 1; i < len(curve); i++ {
		prev := curve[i-1].Equity
		if prev == 0 {
			returns = append(returns, 0)
			continue
		}
		returns = append(returns, curve[i].Equity/prev-1)
	}
	return returns
}

// meanStdev returns the mean and sample standard deviation of xs.
func meanStdev(xs []float64) (float64, float64) {
	if len(xs) == 0 {
		return 0, 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	mean := sum / float64(len(xs))
	if len(xs) < 2 {
		return mean, 0
	}
	ss := 0.0
	for _, x := range xs {
		d := x - mean
		ss += d * d
	}
	return mean, math.Sqrt(ss / float64(len(xs)-1))
}

// downsideDeviation measures the root mean square of returns below the
// per-bar minimum acceptable return.
func downsideDeviation(returns []float64, mar float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	ss := 0.0
	for _, r := range returns {
		if d := r - mar; d < 0 {
			ss += d * d
		}
	}
	return math.Sqrt(ss / float64(len(returns)))
}

// maxDrawdown returns the largest peak-to-trough equity decline as a
// positive fraction of the peak.
func maxDrawdown(curve []domain.Snapshot) float64 {
	peak, maxDD := 0.0, 0.0
	for _, snap := range curve {
		if snap.Equity > peak {
			peak = snap.Equity
		}
		if peak > 0 {
			if dd := (peak - snap.Equity) / peak; dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD
}

// tradeStats fills in the trade-quality fields from the trade log.
func tradeStats(m *domain.Metrics, trades []domain.Trade) {
	m.TotalTrades = len(trades)
	if len(trades) == 0 {
		return
	}

	var wins, losses int
	var grossProfit, grossLoss float64
	for _, t := range trades {
		switch {
		case t.PnL > 0:
			wins++
			grossProfit += t.PnL
			if t.PnL > m.LargestWin {
				m.LargestWin = t.PnL
			}
		case t.PnL < 0:
			losses++
			grossLoss += -t.PnL
			if -t.PnL > m.LargestLoss {
				m.LargestLoss = -t.PnL
			}
		}
	}

	m.WinRate = float64(wins) / float64(len(trades))
	if wins > 0 {
		m.AvgWin = grossProfit / float64(wins)
	}
	if losses > 0 {
		m.AvgLoss = grossLoss / float64(losses)
	}
	switch {
	case grossLoss > 0:
		m.ProfitFactor = math.Min(grossProfit/grossLoss, maxProfitFactor)
	case grossProfit > 0:
		m.ProfitFactor = maxProfitFactor
	}
}
