package backtest

import (
	"log/slog"
	"math"

	"vela/internal/domain"
)

// pendingOrder tracks an order waiting for a bar to fill against, along
// with how many bars it has already been evaluated on.
type pendingOrder struct {
	order    domain.OrderEvent
	barsSeen int
}

// Simulator models order execution against historical bars. Orders never
// fill on the bar that produced them; they are queued and evaluated against
// subsequent bars of the same symbol, which is what keeps the simulation
// free of look-ahead bias.
//
// Fill rules:
//   - market: fills at the next bar's open, adjusted by slippage against
//     the trader.
//   - limit: fills at the limit price if the bar's range touches it.
//   - stop: triggers when the bar's range crosses the stop, then fills at
//     the worse of the stop price and the bar's open, plus slippage.
//
// Commission per fill is max(fixed, quantity * price * rate).
type Simulator struct {
	slippagePct     float64
	commissionRate  float64
	commissionFixed float64
	limitExpiryBars int
	pending         []pendingOrder
	log             *slog.Logger
}

// NewSimulator creates a Simulator from engine configuration.
func NewSimulator(cfg Config, log *slog.Logger) *Simulator {
	if log == nil {
		log = slog.Default()
	}
	return &Simulator{
		slippagePct:     cfg.SlippagePct,
		commissionRate:  cfg.CommissionRate,
		commissionFixed: cfg.CommissionFixed,
		limitExpiryBars: cfg.LimitExpiryBars,
		log:             log,
	}
}

// Submit queues an order for execution against future bars.
func (s *Simulator) Submit(order domain.OrderEvent) {
	s.pending = append(s.pending, pendingOrder{order: order})
}

// PendingCount returns the number of orders still waiting for a fill.
func (s *Simulator) PendingCount() int {
	return len(s.pending)
}

// OnBar evaluates all pending orders for the bar's symbol and returns the
// resulting fills, stamped with the bar's timestamp. Limit and stop orders
// that neither fill nor expire stay pending for the next bar.
func (s *Simulator) OnBar(bar domain.Bar) []domain.FillEvent {
	var fills []domain.FillEvent
	remaining := s.pending[:0]

	for _, p := range s.pending {
		if p.order.Symbol != bar.Symbol {
			remaining = append(remaining, p)
			continue
		}

		price, filled := s.fillPrice(p.order, bar)
		if filled {
			fills = append(fills, domain.FillEvent{
				Symbol:     p.order.Symbol,
				Timestamp:  bar.Timestamp,
				Direction:  p.order.Direction,
				Quantity:   p.order.Quantity,
				Price:      price,
				Commission: s.commission(p.order.Quantity, price),
			})
			continue
		}

		p.barsSeen++
		if s.limitExpiryBars > 0 && p.barsSeen >= s.limitExpiryBars {
			s.log.Debug("order expired unfilled",
				"symbol", p.order.Symbol,
				"type", p.order.Type,
				"bars_pending", p.barsSeen)
			continue
		}
		remaining = append(remaining, p)
	}

	s.pending = remaining
	return fills
}

// DropPending discards all remaining orders, returning how many were
// dropped. The engine calls this once the bar stream is exhausted.
func (s *Simulator) DropPending() int {
	n := len(s.pending)
	for _, p := range s.pending {
		s.log.Debug("order dropped at end of data",
			"symbol", p.order.Symbol,
			"type", p.order.Type)
	}
	s.pending = nil
	return n
}

// fillPrice decides whether the order fills on this bar and at what price.
func (s *Simulator) fillPrice(order domain.OrderEvent, bar domain.Bar) (float64, bool) {
	buying := order.Direction.Sign() > 0

	switch order.Type {
	case domain.OrderTypeMarket:
		return s.slip(bar.Open, buying), true

	case domain.OrderTypeLimit:
		// A buy limit fills if the bar trades at or below the limit, a
		// sell limit if at or above. Fill price is the limit itself.
		if buying && bar.Low <= order.LimitPrice {
			return order.LimitPrice, true
		}
		if !buying && bar.High >= order.LimitPrice {
			return order.LimitPrice, true
		}
		return 0, false

	case domain.OrderTypeStop:
		// A buy stop triggers once the bar trades at or above the stop, a
		// sell stop at or below. Fill price is the worse of stop and open.
		if buying && bar.High >= order.LimitPrice {
			return s.slip(math.Max(order.LimitPrice, bar.Open), true), true
		}
		if !buying && bar.Low <= order.LimitPrice {
			return s.slip(math.Min(order.LimitPrice, bar.Open), false), true
		}
		return 0, false
	}
	return 0, false
}

// slip adjusts a price against the trader: up for buys, down for sells.
func (s *Simulator) slip(price float64, buying bool) float64 {
	if buying {
		return price * (1 + s.slippagePct)
	}
	return price * (1 - s.slippagePct)
}

func (s *Simulator) commission(qty, price float64) float64 {
	return math.Max(s.commissionFixed, qty*price*s.commissionRate)
}
