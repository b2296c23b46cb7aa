package backtest

import (
	"errors"
	"testing"
	"time"

	"vela/internal/domain"
)

func curveFromEquity(equities []float64) []domain.Snapshot {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	curve := make([]domain.Snapshot, 0, len(equities))
	for i, eq := range equities {
		curve = append(curve, domain.Snapshot{
			Timestamp: start.AddDate(0, 0, i),
			Cash:      eq,
			Equity:    eq,
		})
	}
	return curve
}

func TestComputeMetricsEmptyCurve(t *testing.T) {
	if _, err := ComputeMetrics(nil, nil, 0, 252); !errors.Is(err, domain.ErrEngine) {
		t.Errorf("error = %v, want ErrEngine", err)
	}
}

// A flat curve has zero volatility and drawdown; every ratio that would
// divide by them must come back zero, not NaN.
func TestComputeMetricsFlatCurve(t *testing.T) {
	curve := curveFromEquity([]float64{10000, 10000, 10000, 10000})
	m, err := ComputeMetrics(curve, nil, 0, 252)
	if err != nil {
		t.Fatalf("ComputeMetrics: %v", err)
	}

	if m.TotalReturn != 0 || m.Volatility != 0 || m.Sharpe != 0 ||
		m.Sortino != 0 || m.MaxDrawdown != 0 || m.Calmar != 0 {
		t.Errorf("flat curve metrics not all zero: %+v", m)
	}
	if m.WinRate != 0 || m.ProfitFactor != 0 || m.TotalTrades != 0 {
		t.Errorf("zero-trade stats not all zero: %+v", m)
	}
}

func TestComputeMetricsReturns(t *testing.T) {
	curve := curveFromEquity([]float64{10000, 10500, 11000, 12000})
	m, err := ComputeMetrics(curve, nil, 0, 252)
	if err != nil {
		t.Fatalf("ComputeMetrics: %v", err)
	}

	if !almostEqual(m.TotalReturn, 0.2) {
		t.Errorf("total return = %v, want 0.20", m.TotalReturn)
	}
	if m.AnnualReturn <= m.TotalReturn {
		t.Errorf("annual return %v should exceed the 3-day total return %v", m.AnnualReturn, m.TotalReturn)
	}
	if m.Volatility <= 0 {
		t.Errorf("volatility = %v, want positive", m.Volatility)
	}
	if m.Sharpe <= 0 {
		t.Errorf("sharpe = %v, want positive for a rising curve", m.Sharpe)
	}
	// No down bars: downside deviation is zero, Sortino stays zero.
	if m.Sortino != 0 {
		t.Errorf("sortino = %v, want 0 with no downside", m.Sortino)
	}
	if m.MaxDrawdown != 0 {
		t.Errorf("max drawdown = %v, want 0 for a monotonic curve", m.MaxDrawdown)
	}
}

func TestComputeMetricsMaxDrawdown(t *testing.T) {
	curve := curveFromEquity([]float64{10000, 12000, 9000, 13000})
	m, err := ComputeMetrics(curve, nil, 0, 252)
	if err != nil {
		t.Fatalf("ComputeMetrics: %v", err)
	}

	if !almostEqual(m.MaxDrawdown, 0.25) {
		t.Errorf("max drawdown = %v, want 0.25 (12000 -> 9000)", m.MaxDrawdown)
	}
	if m.Calmar <= 0 {
		t.Errorf("calmar = %v, want positive", m.Calmar)
	}
	if m.Sortino <= 0 {
		t.Errorf("sortino = %v, want positive with mixed returns", m.Sortino)
	}
}

func TestComputeMetricsTradeStats(t *testing.T) {
	trades := []domain.Trade{
		{PnL: 100, Commission: 1},
		{PnL: 50, Commission: 1},
		{PnL: -30, Commission: 1},
		{PnL: -20, Commission: 1},
	}
	curve := curveFromEquity([]float64{10000, 10100})
	m, err := ComputeMetrics(curve, trades, 0, 252)
	if err != nil {
		t.Fatalf("ComputeMetrics: %v", err)
	}

	if m.TotalTrades != 4 {
		t.Errorf("total trades = %d, want 4", m.TotalTrades)
	}
	if !almostEqual(m.WinRate, 0.5) {
		t.Errorf("win rate = %v, want 0.5", m.WinRate)
	}
	if !almostEqual(m.ProfitFactor, 3) {
		t.Errorf("profit factor = %v, want 150/50 = 3", m.ProfitFactor)
	}
	if !almostEqual(m.AvgWin, 75) || !almostEqual(m.AvgLoss, 25) {
		t.Errorf("avg win/loss = %v/%v, want 75/25", m.AvgWin, m.AvgLoss)
	}
	if !almostEqual(m.LargestWin, 100) || !almostEqual(m.LargestLoss, 30) {
		t.Errorf("largest win/loss = %v/%v, want 100/30", m.LargestWin, m.LargestLoss)
	}
}

func TestComputeMetricsNoLosses(t *testing.T) {
	trades := []domain.Trade{{PnL: 10}, {PnL: 20}}
	curve := curveFromEquity([]float64{10000, 10030})
	m, err := ComputeMetrics(curve, trades, 0, 252)
	if err != nil {
		t.Fatalf("ComputeMetrics: %v", err)
	}
	if m.ProfitFactor != maxProfitFactor {
		t.Errorf("profit factor = %v, want capped at %d with no losses", m.ProfitFactor, maxProfitFactor)
	}
	if m.WinRate != 1 {
		t.Errorf("win rate = %v, want 1", m.WinRate)
	}
}
