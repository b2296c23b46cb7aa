package backtest

import (
	"math"

	"vela/internal/domain"
)

// Sizer decides how many units an entry signal should trade. Returning a
// quantity of zero or less vetoes the order entirely. Exits bypass the
// sizer; they always unwind the full open position.
type Sizer interface {
	Size(sig domain.SignalEvent, price, cash, equity float64) float64
}

// Compile-time interface checks.
var (
	_ Sizer = FractionSizer{}
	_ Sizer = FixedSizer{}
)

// FractionSizer risks a fixed fraction of current equity per entry, capped
// by available cash so an order never requests more than the ledger could
// pay for.
type FractionSizer struct {
	Fraction float64
}

func (s FractionSizer) Size(_ domain.SignalEvent, price, cash, equity float64) float64 {
	if price <= 0 || s.Fraction <= 0 {
		return 0
	}
	budget := math.Min(equity*s.Fraction, cash)
	return math.Floor(budget / price)
}

// FixedSizer trades a constant quantity per entry.
type FixedSizer struct {
	Quantity float64
}

func (s FixedSizer) Size(_ domain.SignalEvent, _, _, _ float64) float64 {
	return s.Quantity
}
