// Package strategy defines the Strategy interface consumed by the backtest
// engine and provides a Registry of named strategy factories so the
// optimizer can construct a fresh, independently parameterised instance
// per trial.
package strategy

import (
	"context"
	"fmt"
	"sort"

	"vela/internal/domain"
)

// Strategy is the narrow capability the engine consults once per bar. The
// history slice holds bars up to and including the current one — the engine
// never exposes future bars — and implementations must not retain or
// mutate it.
type Strategy interface {
	// Name returns the unique identifier for this strategy.
	Name() string

	// Init performs any one-time setup required before the strategy
	// begins processing market data.
	Init(ctx context.Context) error

	// OnBar is called when a new OHLCV bar is available for symbol. It
	// returns a signal, or nil when the strategy has no opinion.
	OnBar(ctx context.Context, symbol string, history []domain.Bar) (*domain.SignalEvent, error)
}

// Factory constructs a strategy instance from a named parameter set.
// Factories must return an error for unknown or out-of-range parameters
// rather than silently ignoring them.
type Factory func(params map[string]float64) (Strategy, error)

// Registry holds a named collection of strategy factories for lookup and
// enumeration.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry creates an empty strategy Registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
	}
}

// Register adds a factory to the registry under the given name.
func (r *Registry) Register(name string, f Factory) {
	r.factories[name] = f
}

// New constructs a fresh strategy instance by name. The second return value
// follows the comma-ok convention of map lookups: a missing name is the
// caller's error, a failing factory is the strategy's.
func (r *Registry) New(name string, params map[string]float64) (Strategy, error) {
	f, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("unknown strategy %q", name)
	}
	s, err := f(params)
	if err != nil {
		return nil, fmt.Errorf("constructing strategy %q: %w", name, err)
	}
	return s, nil
}

// Factory returns the registered factory for name, for callers like the
// optimizer that construct many instances themselves.
func (r *Registry) Factory(name string) (Factory, error) {
	f, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("unknown strategy %q", name)
	}
	return f, nil
}

// List returns a sorted slice of all registered strategy names.
func (r *Registry) List() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
