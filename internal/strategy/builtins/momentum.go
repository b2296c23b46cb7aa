package builtins

import (
	"context"
	"fmt"

	"vela/internal/domain"
	"vela/internal/strategy"
)

// Compile-time interface check.
var _ strategy.Strategy = (*Momentum)(nil)

// Momentum goes long when the close-to-close return over a lookback window
// exceeds a threshold, and exits when it falls below the negated threshold.
type Momentum struct {
	lookback  int
	threshold float64
	long      map[string]bool // stance per symbol, to avoid re-signalling every bar
}

// NewMomentum creates a Momentum strategy with the given lookback (bars)
// and entry threshold (fractional return, e.g. 0.02 for 2%).
func NewMomentum(lookback int, threshold float64) (*Momentum, error) {
	if lookback <= 0 {
		return nil, fmt.Errorf("momentum lookback must be positive, got %d", lookback)
	}
	if threshold < 0 {
		return nil, fmt.Errorf("momentum threshold must be non-negative, got %v", threshold)
	}
	return &Momentum{
		lookback:  lookback,
		threshold: threshold,
		long:      make(map[string]bool),
	}, nil
}

// MomentumFactory builds Momentum instances from a parameter set with keys
// "lookback" and "threshold". Defaults: lookback=20, threshold=0.02.
func MomentumFactory(params map[string]float64) (strategy.Strategy, error) {
	lookback, threshold := 20, 0.02
	if v, ok := params["lookback"]; ok {
		lookback = int(v)
	}
	if v, ok := params["threshold"]; ok {
		threshold = v
	}
	return NewMomentum(lookback, threshold)
}

// Name returns "momentum".
func (m *Momentum) Name() string {
	return "momentum"
}

// Init resets the stances so an instance can be reused across runs.
func (m *Momentum) Init(_ context.Context) error {
	m.long = make(map[string]bool)
	return nil
}

// OnBar signals long when lookback momentum is above the threshold and exit
// when it drops below the negated threshold.
func (m *Momentum) OnBar(_ context.Context, symbol string, history []domain.Bar) (*domain.SignalEvent, error) {
	if len(history) <= m.lookback {
		return nil, nil
	}

	cur := history[len(history)-1]
	ref := history[len(history)-1-m.lookback]
	if ref.Close <= 0 {
		return nil, nil
	}
	mom := cur.Close/ref.Close - 1

	switch {
	case !m.long[symbol] && mom > m.threshold:
		m.long[symbol] = true
		return &domain.SignalEvent{
			Symbol:    symbol,
			Timestamp: cur.Timestamp,
			Direction: domain.DirectionLong,
			Strength:  clamp01(mom),
		}, nil
	case m.long[symbol] && mom < -m.threshold:
		m.long[symbol] = false
		return &domain.SignalEvent{
			Symbol:    symbol,
			Timestamp: cur.Timestamp,
			Direction: domain.DirectionExit,
			Strength:  clamp01(-mom),
		}, nil
	}
	return nil, nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
