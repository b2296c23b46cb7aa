package vela

import (
	"time"

	"vela/internal/domain"
)

// Result types are aliased here so callers of this package can name them
// without importing internal packages.
type (
	// RunResult is the full outcome of a backtest run.
	RunResult = domain.RunResult
	// Metrics is the statistics block of a RunResult.
	Metrics = domain.Metrics
	// Snapshot is one equity-curve point.
	Snapshot = domain.Snapshot
	// Trade is one closed round trip.
	Trade = domain.Trade
)

// BacktestRequest is the payload of POST /api/v1/backtests. Start and End
// are dates in 2006-01-02 form. InitialCash of zero uses the server
// default.
type BacktestRequest struct {
	Strategy    string             `json:"strategy"`
	Params      map[string]float64 `json:"params,omitempty"`
	Symbols     []string           `json:"symbols"`
	Start       string             `json:"start"`
	End         string             `json:"end"`
	InitialCash float64            `json:"initial_cash,omitempty"`
}

// RunSummary is one row of the run listing.
type RunSummary struct {
	ID          string    `json:"id"`
	Strategy    string    `json:"strategy"`
	Symbols     []string  `json:"symbols"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	FinalEquity float64   `json:"final_equity"`
	TotalReturn float64   `json:"total_return"`
	Sharpe      float64   `json:"sharpe"`
	MaxDrawdown float64   `json:"max_drawdown"`
	TotalTrades int       `json:"total_trades"`
}

// StrategiesResponse lists the registered strategy names.
type StrategiesResponse struct {
	Strategies []string `json:"strategies"`
}

// SymbolsResponse lists the symbols available in the bar store.
type SymbolsResponse struct {
	Symbols []string `json:"symbols"`
}

// RunsResponse lists stored runs, newest first.
type RunsResponse struct {
	Runs []RunSummary `json:"runs"`
}
