// Package builtins provides built-in strategy implementations that ship
// with vela.
package builtins

import (
	"context"
	"fmt"

	"vela/internal/domain"
	"vela/internal/strategy"
)

// Compile-time interface check.
var _ strategy.Strategy = (*SMACross)(nil)

// SMACross implements a simple moving average crossover strategy. It
// generates a long signal when the short-period SMA crosses above the
// long-period SMA, and an exit signal when it crosses below.
type SMACross struct {
	shortPeriod int
	longPeriod  int
}

// NewSMACross creates a new SMACross strategy with the specified short and
// long moving average periods.
func NewSMACross(short, long int) (*SMACross, error) {
	if short <= 0 || long <= 0 {
		return nil, fmt.Errorf("sma-cross periods must be positive, got short=%d long=%d", short, long)
	}
	if short >= long {
		return nil, fmt.Errorf("sma-cross short period %d must be below long period %d", short, long)
	}
	return &SMACross{shortPeriod: short, longPeriod: long}, nil
}

// SMACrossFactory builds SMACross instances from a parameter set with keys
// "short" and "long". Defaults: short=10, long=30.
func SMACrossFactory(params map[string]float64) (strategy.Strategy, error) {
	short, long := 10, 30
	if v, ok := params["short"]; ok {
		short = int(v)
	}
	if v, ok := params["long"]; ok {
		long = int(v)
	}
	return NewSMACross(short, long)
}

// Name returns "sma-cross".
func (s *SMACross) Name() string {
	return "sma-cross"
}

// Init performs any setup required by the SMA crossover strategy.
func (s *SMACross) Init(_ context.Context) error {
	return nil
}

// OnBar computes the short and long SMAs over the provided history and
// signals on crossovers. It needs longPeriod+1 bars before it has an
// opinion: the extra bar lets it compare against the previous SMAs to
// detect the cross rather than the level.
func (s *SMACross) OnBar(_ context.Context, symbol string, history []domain.Bar) (*domain.SignalEvent, error) {
	if len(history) < s.longPeriod+1 {
		return nil, nil
	}

	cur := history[len(history)-1]
	shortNow := smaClose(history, s.shortPeriod, 0)
	longNow := smaClose(history, s.longPeriod, 0)
	shortPrev := smaClose(history, s.shortPeriod, 1)
	longPrev := smaClose(history, s.longPeriod, 1)

	switch {
	case shortPrev <= longPrev && shortNow > longNow:
		return &domain.SignalEvent{
			Symbol:    symbol,
			Timestamp: cur.Timestamp,
			Direction: domain.DirectionLong,
			Strength:  crossStrength(shortNow, longNow),
		}, nil
	case shortPrev >= longPrev && shortNow < longNow:
		return &domain.SignalEvent{
			Symbol:    symbol,
			Timestamp: cur.Timestamp,
			Direction: domain.DirectionExit,
			Strength:  crossStrength(longNow, shortNow),
		}, nil
	}
	return nil, nil
}

// smaClose averages the last n closes, skipping the most recent `back`
// bars.
func smaClose(history []domain.Bar, n, back int) float64 {
	end := len(history) - back
	sum := 0.0
	for _, b := range history[end-n : end] {
		sum += b.Close
	}
	return sum / float64(n)
}

// crossStrength maps the relative SMA gap into [0, 1].
func crossStrength(a, b float64) float64 {
	if b == 0 {
		return 1
	}
	gap := (a - b) / b
	if gap < 0 {
		gap = -gap
	}
	if gap > 1 {
		return 1
	}
	return gap
}
