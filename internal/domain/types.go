// Package domain defines the core value types shared across the vela
// backtesting engine: bars, orders, fills, positions, trade records, equity
// snapshots, and the result of a completed run.
package domain

import "time"

// Direction expresses the side of a signal, order, or fill.
type Direction string

const (
	DirectionLong  Direction = "long"
	DirectionShort Direction = "short"
	DirectionExit  Direction = "exit"
)

// Sign returns +1 for long, -1 for short, and 0 for exit.
func (d Direction) Sign() float64 {
	switch d {
	case DirectionLong:
		return 1
	case DirectionShort:
		return -1
	default:
		return 0
	}
}

// OrderType identifies how an order is priced during execution.
type OrderType string

const (
	OrderTypeMarket OrderType = "market"
	OrderTypeLimit  OrderType = "limit"
	OrderTypeStop   OrderType = "stop"
)

// Bar is one OHLCV price observation for a fixed time interval. Bars are
// immutable once loaded; a malformed or out-of-order bar is a load-time
// error, never a runtime one.
type Bar struct {
	Symbol    string    `json:"symbol"`
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    int64     `json:"volume"`
}

// Position tracks per-symbol holdings. Quantity is signed: positive for
// long, negative for short. AvgEntryPrice is recomputed on every
// same-direction fill using a weighted average; a fill that flips the sign
// closes the old position and opens a new one at the fill price.
type Position struct {
	Symbol        string    `json:"symbol"`
	Quantity      float64   `json:"quantity"`
	AvgEntryPrice float64   `json:"avg_entry_price"`
	RealizedPnL   float64   `json:"realized_pnl"`
	OpenedAt      time.Time `json:"opened_at"`
}

// Snapshot is one entry of the equity curve, appended once per processed
// bar timestamp. Snapshots are append-only and never mutated after creation.
type Snapshot struct {
	Timestamp     time.Time `json:"timestamp"`
	Cash          float64   `json:"cash"`
	MarketValue   float64   `json:"market_value"`
	Equity        float64   `json:"equity"`
	OpenPositions int       `json:"open_positions"`
}

// Trade records a fully or partially closed position. The trade log is the
// input to all trade-quality statistics.
type Trade struct {
	Symbol     string    `json:"symbol"`
	EntryTime  time.Time `json:"entry_time"`
	ExitTime   time.Time `json:"exit_time"`
	EntryPrice float64   `json:"entry_price"`
	ExitPrice  float64   `json:"exit_price"`
	Quantity   float64   `json:"quantity"`
	PnL        float64   `json:"pnl"`
	Commission float64   `json:"commission"`
}

// Metrics holds the return, risk, and trade-quality statistics computed
// from a finished equity curve and trade log.
type Metrics struct {
	TotalReturn  float64 `json:"total_return"`
	AnnualReturn float64 `json:"annual_return"`
	Volatility   float64 `json:"volatility"`
	Sharpe       float64 `json:"sharpe"`
	Sortino      float64 `json:"sortino"`
	MaxDrawdown  float64 `json:"max_drawdown"`
	Calmar       float64 `json:"calmar"`
	WinRate      float64 `json:"win_rate"`
	ProfitFactor float64 `json:"profit_factor"`
	AvgWin       float64 `json:"avg_win"`
	AvgLoss      float64 `json:"avg_loss"`
	LargestWin   float64 `json:"largest_win"`
	LargestLoss  float64 `json:"largest_loss"`
	TotalTrades  int     `json:"total_trades"`
}

// RunResult is the atomic output of one backtest invocation. It is owned
// exclusively by the caller that requested the run.
type RunResult struct {
	ID          string             `json:"id"`
	Strategy    string             `json:"strategy"`
	Params      map[string]float64 `json:"params,omitempty"`
	Symbols     []string           `json:"symbols"`
	Start       time.Time          `json:"start"`
	End         time.Time          `json:"end"`
	InitialCash float64            `json:"initial_cash"`
	FinalEquity float64            `json:"final_equity"`
	Curve       []Snapshot         `json:"curve"`
	Trades      []Trade            `json:"trades"`
	Metrics     Metrics            `json:"metrics"`
}
