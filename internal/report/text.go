// Package report renders run results for people and machines: text tables
// for the terminal, JSON for tooling, and CSV or Parquet exports of the
// equity curve and trade log.
package report

import (
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"

	"vela/internal/domain"
	"vela/internal/optimize"
)

// maxTradeRows caps the trade table so a busy run does not flood the
// terminal. The full log is always available through the JSON and CSV
// writers.
const maxTradeRows = 20

// WriteResultTable renders a run summary, its metrics and its most recent
// trades as text tables.
func WriteResultTable(w io.Writer, res *domain.RunResult) {
	fmt.Fprintf(w, "\n%s  %s -> %s  symbols=%v\n",
		res.Strategy,
		res.Start.Format("2006-01-02"),
		res.End.Format("2006-01-02"),
		res.Symbols)
	if len(res.Params) > 0 {
		fmt.Fprintf(w, "params: %v\n", res.Params)
	}
	fmt.Fprintf(w, "initial %.2f -> final %.2f\n\n", res.InitialCash, res.FinalEquity)

	writeMetricsTable(w, res.Metrics)

	if len(res.Trades) == 0 {
		fmt.Fprintln(w, "no trades")
		return
	}
	trades := res.Trades
	if len(trades) > maxTradeRows {
		fmt.Fprintf(w, "last %d of %d trades:\n", maxTradeRows, len(trades))
		trades = trades[len(trades)-maxTradeRows:]
	}

	table := tablewriter.NewWriter(w)
	table.Header("Symbol", "Entry", "Exit", "Qty", "Entry Px", "Exit Px", "PnL", "Comm")
	for _, t := range trades {
		table.Append(
			t.Symbol,
			t.EntryTime.Format("2006-01-02"),
			t.ExitTime.Format("2006-01-02"),
			fmt.Sprintf("%.0f", t.Quantity),
			fmt.Sprintf("%.2f", t.EntryPrice),
			fmt.Sprintf("%.2f", t.ExitPrice),
			fmt.Sprintf("%.2f", t.PnL),
			fmt.Sprintf("%.2f", t.Commission),
		)
	}
	table.Render()
}

func writeMetricsTable(w io.Writer, m domain.Metrics) {
	table := tablewriter.NewWriter(w)
	table.Header("Metric", "Value")
	rows := [][2]string{
		{"Total Return", fmt.Sprintf("%.2f%%", m.TotalReturn*100)},
		{"Annual Return", fmt.Sprintf("%.2f%%", m.AnnualReturn*100)},
		{"Volatility", fmt.Sprintf("%.2f%%", m.Volatility*100)},
		{"Sharpe", fmt.Sprintf("%.2f", m.Sharpe)},
		{"Sortino", fmt.Sprintf("%.2f", m.Sortino)},
		{"Max Drawdown", fmt.Sprintf("%.2f%%", m.MaxDrawdown*100)},
		{"Calmar", fmt.Sprintf("%.2f", m.Calmar)},
		{"Win Rate", fmt.Sprintf("%.1f%%", m.WinRate*100)},
		{"Profit Factor", fmt.Sprintf("%.2f", m.ProfitFactor)},
		{"Trades", fmt.Sprintf("%d", m.TotalTrades)},
	}
	for _, r := range rows {
		table.Append(r[0], r[1])
	}
	table.Render()
}

// WriteSummaryTable renders a grid search ranking, best trial first.
func WriteSummaryTable(w io.Writer, s *optimize.Summary) {
	fmt.Fprintf(w, "\ngrid search by %s: %d trials, %d failed\n", s.Metric, len(s.Trials)+s.Failed, s.Failed)
	if len(s.Trials) == 0 {
		fmt.Fprintln(w, "no successful trials")
		return
	}

	table := tablewriter.NewWriter(w)
	table.Header("Rank", "Params", "Score", "Return", "Max DD", "Trades")
	for i, t := range s.Trials {
		ret, dd, trades := "", "", ""
		if t.Result != nil {
			ret = fmt.Sprintf("%.2f%%", t.Result.Metrics.TotalReturn*100)
			dd = fmt.Sprintf("%.2f%%", t.Result.Metrics.MaxDrawdown*100)
			trades = fmt.Sprintf("%d", t.Result.Metrics.TotalTrades)
		}
		table.Append(
			fmt.Sprintf("%d", i+1),
			fmt.Sprintf("%v", t.Params),
			fmt.Sprintf("%.4f", t.Score),
			ret,
			dd,
			trades,
		)
	}
	table.Render()
}

// WriteWalkForwardTable renders the per-window winners and the stitched
// out-of-sample metrics.
func WriteWalkForwardTable(w io.Writer, res *optimize.WalkForwardResult) {
	fmt.Fprintf(w, "\nwalk-forward: %d windows\n", len(res.Windows))

	table := tablewriter.NewWriter(w)
	table.Header("Window", "Train", "Test", "Best Params", "OOS Return")
	for i, win := range res.Windows {
		ret := ""
		if win.TestResult != nil {
			ret = fmt.Sprintf("%.2f%%", win.TestResult.Metrics.TotalReturn*100)
		}
		table.Append(
			fmt.Sprintf("%d", i+1),
			fmt.Sprintf("%s..%s", win.TrainStart.Format("2006-01-02"), win.TrainEnd.Format("2006-01-02")),
			fmt.Sprintf("%s..%s", win.TestStart.Format("2006-01-02"), win.TestEnd.Format("2006-01-02")),
			fmt.Sprintf("%v", win.BestParams),
			ret,
		)
	}
	table.Render()

	fmt.Fprintln(w, "\nout-of-sample (stitched):")
	writeMetricsTable(w, res.OOSMetrics)
}
