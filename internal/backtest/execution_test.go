package backtest

import (
	"math"
	"testing"
	"time"

	"vela/internal/domain"
)

func testBar(symbol string, open, high, low, close float64) domain.Bar {
	return domain.Bar{
		Symbol:    symbol,
		Timestamp: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		Open:      open,
		High:      high,
		Low:       low,
		Close:     close,
		Volume:    1000,
	}
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestSimulatorMarketFill(t *testing.T) {
	sim := NewSimulator(Config{SlippagePct: 0.01}, nil)
	sim.Submit(domain.OrderEvent{
		Symbol:    "AAPL",
		Type:      domain.OrderTypeMarket,
		Direction: domain.DirectionLong,
		Quantity:  10,
	})

	fills := sim.OnBar(testBar("AAPL", 100, 105, 95, 102))
	if len(fills) != 1 {
		t.Fatalf("got %d fills, want 1", len(fills))
	}
	// Buys slip upward, against the trader.
	if !almostEqual(fills[0].Price, 101) {
		t.Errorf("fill price = %v, want 101", fills[0].Price)
	}
	if sim.PendingCount() != 0 {
		t.Errorf("pending = %d after market fill, want 0", sim.PendingCount())
	}

	sim.Submit(domain.OrderEvent{
		Symbol:    "AAPL",
		Type:      domain.OrderTypeMarket,
		Direction: domain.DirectionShort,
		Quantity:  10,
	})
	fills = sim.OnBar(testBar("AAPL", 100, 105, 95, 102))
	if !almostEqual(fills[0].Price, 99) {
		t.Errorf("sell fill price = %v, want 99", fills[0].Price)
	}
}

func TestSimulatorCommission(t *testing.T) {
	sim := NewSimulator(Config{CommissionRate: 0.001, CommissionFixed: 1}, nil)

	// Small notional: the fixed minimum dominates.
	sim.Submit(domain.OrderEvent{Symbol: "AAPL", Type: domain.OrderTypeMarket, Direction: domain.DirectionLong, Quantity: 1})
	fills := sim.OnBar(testBar("AAPL", 100, 105, 95, 102))
	if !almostEqual(fills[0].Commission, 1) {
		t.Errorf("commission = %v, want fixed minimum 1", fills[0].Commission)
	}

	// Large notional: the proportional rate dominates.
	sim.Submit(domain.OrderEvent{Symbol: "AAPL", Type: domain.OrderTypeMarket, Direction: domain.DirectionLong, Quantity: 100})
	fills = sim.OnBar(testBar("AAPL", 100, 105, 95, 102))
	if !almostEqual(fills[0].Commission, 10) {
		t.Errorf("commission = %v, want 100*100*0.001 = 10", fills[0].Commission)
	}
}

func TestSimulatorLimitFill(t *testing.T) {
	sim := NewSimulator(Config{}, nil)
	sim.Submit(domain.OrderEvent{
		Symbol:     "AAPL",
		Type:       domain.OrderTypeLimit,
		Direction:  domain.DirectionLong,
		Quantity:   10,
		LimitPrice: 98,
	})

	// Bar range stays above the buy limit: no fill, order stays pending.
	fills := sim.OnBar(testBar("AAPL", 100, 105, 99, 102))
	if len(fills) != 0 || sim.PendingCount() != 1 {
		t.Fatalf("fills=%d pending=%d, want 0 and 1", len(fills), sim.PendingCount())
	}

	// Bar trades through the limit: fills at the limit price.
	fills = sim.OnBar(testBar("AAPL", 100, 105, 97, 102))
	if len(fills) != 1 {
		t.Fatalf("got %d fills, want 1", len(fills))
	}
	if !almostEqual(fills[0].Price, 98) {
		t.Errorf("limit fill price = %v, want 98", fills[0].Price)
	}
}

func TestSimulatorLimitExpiry(t *testing.T) {
	sim := NewSimulator(Config{LimitExpiryBars: 2}, nil)
	sim.Submit(domain.OrderEvent{
		Symbol:     "AAPL",
		Type:       domain.OrderTypeLimit,
		Direction:  domain.DirectionLong,
		Quantity:   10,
		LimitPrice: 50,
	})

	sim.OnBar(testBar("AAPL", 100, 105, 95, 102))
	if sim.PendingCount() != 1 {
		t.Fatalf("pending = %d after first bar, want 1", sim.PendingCount())
	}
	sim.OnBar(testBar("AAPL", 100, 105, 95, 102))
	if sim.PendingCount() != 0 {
		t.Errorf("pending = %d after expiry window, want 0", sim.PendingCount())
	}
}

func TestSimulatorStopFill(t *testing.T) {
	sim := NewSimulator(Config{}, nil)

	// Buy stop above the market: triggers when high crosses it, fills at
	// the worse of stop and open.
	sim.Submit(domain.OrderEvent{
		Symbol:     "AAPL",
		Type:       domain.OrderTypeStop,
		Direction:  domain.DirectionLong,
		Quantity:   10,
		LimitPrice: 103,
	})
	fills := sim.OnBar(testBar("AAPL", 100, 105, 95, 102))
	if len(fills) != 1 {
		t.Fatalf("got %d fills, want 1", len(fills))
	}
	if !almostEqual(fills[0].Price, 103) {
		t.Errorf("buy stop fill = %v, want 103", fills[0].Price)
	}

	// Gap open beyond the stop: fills at the open, not the stop.
	sim.Submit(domain.OrderEvent{
		Symbol:     "AAPL",
		Type:       domain.OrderTypeStop,
		Direction:  domain.DirectionShort,
		Quantity:   10,
		LimitPrice: 99,
	})
	fills = sim.OnBar(testBar("AAPL", 95, 97, 92, 96))
	if !almostEqual(fills[0].Price, 95) {
		t.Errorf("sell stop fill after gap = %v, want open 95", fills[0].Price)
	}
}

func TestSimulatorSymbolIsolation(t *testing.T) {
	sim := NewSimulator(Config{}, nil)
	sim.Submit(domain.OrderEvent{Symbol: "MSFT", Type: domain.OrderTypeMarket, Direction: domain.DirectionLong, Quantity: 5})

	fills := sim.OnBar(testBar("AAPL", 100, 105, 95, 102))
	if len(fills) != 0 {
		t.Errorf("AAPL bar filled MSFT order: %+v", fills)
	}
	if sim.PendingCount() != 1 {
		t.Errorf("pending = %d, want 1", sim.PendingCount())
	}

	if n := sim.DropPending(); n != 1 {
		t.Errorf("DropPending = %d, want 1", n)
	}
	if sim.PendingCount() != 0 {
		t.Errorf("pending = %d after drop, want 0", sim.PendingCount())
	}
}
