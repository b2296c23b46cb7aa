package backtest

import (
	"fmt"
	"math"
	"sort"
	"time"

	"vela/internal/domain"
)

// Ledger tracks cash, open positions, realized trades and the equity curve
// of a single run. Positions use signed quantities: positive is long,
// negative is short. A fill either applies in full or not at all; a fill
// that would drive cash negative (with margin disabled) is rejected with
// domain.ErrInsufficientFunds and leaves the ledger untouched.
type Ledger struct {
	cash        float64
	allowMargin bool

	positions map[string]*domain.Position
	lastPrice map[string]float64

	// entryCommission accumulates the commissions paid opening each
	// position, so closes can attribute a proportional share to the trade.
	entryCommission map[string]float64

	curve  []domain.Snapshot
	trades []domain.Trade
}

// NewLedger creates a Ledger holding initialCash.
func NewLedger(initialCash float64, allowMargin bool) *Ledger {
	return &Ledger{
		cash:            initialCash,
		allowMargin:     allowMargin,
		positions:       make(map[string]*domain.Position),
		lastPrice:       make(map[string]float64),
		entryCommission: make(map[string]float64),
	}
}

// Cash returns the current cash balance.
func (l *Ledger) Cash() float64 {
	return l.cash
}

// Position returns a copy of the open position for symbol, if any.
func (l *Ledger) Position(symbol string) (domain.Position, bool) {
	pos, ok := l.positions[symbol]
	if !ok {
		return domain.Position{}, false
	}
	return *pos, true
}

// LastPrice returns the most recently marked price for symbol.
func (l *Ledger) LastPrice(symbol string) (float64, bool) {
	p, ok := l.lastPrice[symbol]
	return p, ok
}

// MarkPrice records the bar's close as the symbol's valuation price.
func (l *Ledger) MarkPrice(bar domain.Bar) {
	l.lastPrice[bar.Symbol] = bar.Close
}

// MarketValue returns the value of all open positions at last marked
// prices. Positions with no marked price are valued at their entry price.
func (l *Ledger) MarketValue() float64 {
	mv := 0.0
	for sym, pos := range l.positions {
		price, ok := l.lastPrice[sym]
		if !ok {
			price = pos.AvgEntryPrice
		}
		mv += pos.Quantity * price
	}
	return mv
}

// Equity returns cash plus market value.
func (l *Ledger) Equity() float64 {
	return l.cash + l.MarketValue()
}

// ApplyFill applies a fill atomically: cash, the position and (on a close)
// the trade log all update together, or nothing updates at all.
func (l *Ledger) ApplyFill(f domain.FillEvent) error {
	if f.Quantity <= 0 {
		return fmt.Errorf("%w: fill quantity must be positive, got %v", domain.ErrEngine, f.Quantity)
	}
	sign := f.Direction.Sign()
	if sign == 0 {
		return fmt.Errorf("%w: fill direction must be long or short", domain.ErrEngine)
	}
	signedQty := f.Quantity * sign

	cashDelta := -signedQty*f.Price - f.Commission
	if !l.allowMargin && l.cash+cashDelta < 0 {
		return fmt.Errorf("%w: need %.2f, have %.2f", domain.ErrInsufficientFunds, -cashDelta, l.cash)
	}
	l.cash += cashDelta

	pos, ok := l.positions[f.Symbol]
	if !ok {
		l.positions[f.Symbol] = &domain.Position{
			Symbol:        f.Symbol,
			Quantity:      signedQty,
			AvgEntryPrice: f.Price,
			OpenedAt:      f.Timestamp,
		}
		l.entryCommission[f.Symbol] = f.Commission
		return nil
	}

	oldQty := pos.Quantity
	newQty := oldQty + signedQty

	switch {
	case oldQty*signedQty > 0:
		// Adding to the position: weighted-average entry price.
		pos.AvgEntryPrice = (pos.AvgEntryPrice*math.Abs(oldQty) + f.Price*f.Quantity) / math.Abs(newQty)
		pos.Quantity = newQty
		l.entryCommission[f.Symbol] += f.Commission

	case math.Abs(signedQty) <= math.Abs(oldQty):
		// Reducing or closing.
		closedQty := f.Quantity
		l.closeTrade(pos, f, closedQty, closedQty/math.Abs(oldQty), f.Commission)
		pos.Quantity = newQty
		if newQty == 0 {
			delete(l.positions, f.Symbol)
			delete(l.entryCommission, f.Symbol)
		}

	default:
		// Flip: close the whole old position, open the remainder the other
		// way. The fill's commission is attributed to the closing trade.
		l.closeTrade(pos, f, math.Abs(oldQty), 1, f.Commission)
		l.positions[f.Symbol] = &domain.Position{
			Symbol:        f.Symbol,
			Quantity:      newQty,
			AvgEntryPrice: f.Price,
			OpenedAt:      f.Timestamp,
		}
		l.entryCommission[f.Symbol] = 0
	}
	return nil
}

// closeTrade realizes P&L on closedQty units of pos at the fill price and
// appends a trade record. entryShare is the fraction of the position's
// entry commission consumed by this close.
func (l *Ledger) closeTrade(pos *domain.Position, f domain.FillEvent, closedQty, entryShare, exitCommission float64) {
	posSign := 1.0
	if pos.Quantity < 0 {
		posSign = -1
	}
	pricePnL := (f.Price - pos.AvgEntryPrice) * closedQty * posSign

	entryComm := l.entryCommission[pos.Symbol] * entryShare
	l.entryCommission[pos.Symbol] -= entryComm
	totalComm := entryComm + exitCommission

	pos.RealizedPnL += pricePnL
	l.trades = append(l.trades, domain.Trade{
		Symbol:     pos.Symbol,
		EntryTime:  pos.OpenedAt,
		ExitTime:   f.Timestamp,
		EntryPrice: pos.AvgEntryPrice,
		ExitPrice:  f.Price,
		Quantity:   closedQty,
		PnL:        pricePnL - totalComm,
		Commission: totalComm,
	})
}

// TakeSnapshot appends an equity curve point at ts and returns it.
func (l *Ledger) TakeSnapshot(ts time.Time) domain.Snapshot {
	snap := domain.Snapshot{
		Timestamp:     ts,
		Cash:          l.cash,
		MarketValue:   l.MarketValue(),
		Equity:        l.Equity(),
		OpenPositions: len(l.positions),
	}
	l.curve = append(l.curve, snap)
	return snap
}

// CloseAll liquidates every open position at its last marked price,
// realizing the P&L without charging commission. Used at the end of a run
// so final equity is fully in cash.
func (l *Ledger) CloseAll(ts time.Time) {
	symbols := make([]string, 0, len(l.positions))
	for sym := range l.positions {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	for _, sym := range symbols {
		pos := l.positions[sym]
		price, ok := l.lastPrice[sym]
		if !ok {
			price = pos.AvgEntryPrice
		}
		l.cash += pos.Quantity * price
		l.closeTrade(pos, domain.FillEvent{
			Symbol:    sym,
			Timestamp: ts,
			Price:     price,
		}, math.Abs(pos.Quantity), 1, 0)
		delete(l.positions, sym)
		delete(l.entryCommission, sym)
	}
}

// Curve returns the equity curve accumulated so far.
func (l *Ledger) Curve() []domain.Snapshot {
	return l.curve
}

// Trades returns the completed trades accumulated so far.
func (l *Ledger) Trades() []domain.Trade {
	return l.trades
}
