package domain

import "time"

// Event is the tagged union that drives the simulation loop. The four
// variants — market, signal, order, fill — are processed in non-decreasing
// timestamp order; at equal timestamps the pipeline stage order
// (market < signal < order < fill) is preserved so a strategy can never
// observe a fill before the bar that caused it.
type Event interface {
	When() time.Time
	EventSymbol() string

	// stage seals the union and gives the pipeline ordering at equal
	// timestamps.
	stage() int
}

// MarketEvent announces that a new bar became available.
type MarketEvent struct {
	Bar Bar
}

func (e MarketEvent) When() time.Time     { return e.Bar.Timestamp }
func (e MarketEvent) EventSymbol() string { return e.Bar.Symbol }
func (e MarketEvent) stage() int          { return 0 }

// SignalEvent is a strategy's opinion about a symbol. Strength is an
// advisory weight in [0, 1] that position sizing may use.
type SignalEvent struct {
	Symbol    string
	Timestamp time.Time
	Direction Direction
	Strength  float64
}

func (e SignalEvent) When() time.Time     { return e.Timestamp }
func (e SignalEvent) EventSymbol() string { return e.Symbol }
func (e SignalEvent) stage() int          { return 1 }

// OrderEvent is an intended trade. LimitPrice doubles as the stop price for
// stop orders and is ignored for market orders.
type OrderEvent struct {
	Symbol     string
	Timestamp  time.Time
	Type       OrderType
	Direction  Direction
	Quantity   float64
	LimitPrice float64
}

func (e OrderEvent) When() time.Time     { return e.Timestamp }
func (e OrderEvent) EventSymbol() string { return e.Symbol }
func (e OrderEvent) stage() int          { return 2 }

// FillEvent is a completed, possibly partial, execution.
type FillEvent struct {
	Symbol     string
	Timestamp  time.Time
	Direction  Direction
	Quantity   float64
	Price      float64
	Commission float64
}

func (e FillEvent) When() time.Time     { return e.Timestamp }
func (e FillEvent) EventSymbol() string { return e.Symbol }
func (e FillEvent) stage() int          { return 3 }
