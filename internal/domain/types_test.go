package domain

import (
	"testing"
	"time"
)

func TestDirectionSign(t *testing.T) {
	if DirectionLong.Sign() != 1 {
		t.Errorf("DirectionLong.Sign() = %v, want 1", DirectionLong.Sign())
	}
	if DirectionShort.Sign() != -1 {
		t.Errorf("DirectionShort.Sign() = %v, want -1", DirectionShort.Sign())
	}
	if DirectionExit.Sign() != 0 {
		t.Errorf("DirectionExit.Sign() = %v, want 0", DirectionExit.Sign())
	}
}

func TestEventOrdering(t *testing.T) {
	ts := time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)
	bar := Bar{Symbol: "AAPL", Timestamp: ts, Open: 100, High: 101, Low: 99, Close: 100.5, Volume: 1000}

	events := []Event{
		MarketEvent{Bar: bar},
		SignalEvent{Symbol: "AAPL", Timestamp: ts, Direction: DirectionLong, Strength: 1},
		OrderEvent{Symbol: "AAPL", Timestamp: ts, Type: OrderTypeMarket, Direction: DirectionLong, Quantity: 10},
		FillEvent{Symbol: "AAPL", Timestamp: ts, Direction: DirectionLong, Quantity: 10, Price: 100},
	}

	// All variants share the symbol and timestamp; stages must be strictly
	// increasing in pipeline order.
	for i, e := range events {
		if e.EventSymbol() != "AAPL" {
			t.Errorf("event %d: EventSymbol() = %q, want AAPL", i, e.EventSymbol())
		}
		if !e.When().Equal(ts) {
			t.Errorf("event %d: When() = %v, want %v", i, e.When(), ts)
		}
		if e.stage() != i {
			t.Errorf("event %d: stage() = %d, want %d", i, e.stage(), i)
		}
	}
}

func TestZeroValues(t *testing.T) {
	bar := Bar{}
	if bar.Symbol != "" || !bar.Timestamp.IsZero() {
		t.Error("expected zero-value Bar to have empty symbol and zero timestamp")
	}

	pos := Position{}
	if pos.Quantity != 0 || pos.AvgEntryPrice != 0 || pos.RealizedPnL != 0 {
		t.Error("expected zero-value Position to carry no quantity or P&L")
	}

	var res RunResult
	if res.ID != "" || len(res.Curve) != 0 || len(res.Trades) != 0 {
		t.Error("expected zero-value RunResult to be empty")
	}
}
