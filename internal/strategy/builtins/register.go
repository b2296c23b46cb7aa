package builtins

import "vela/internal/strategy"

// RegisterAll registers every built-in strategy on the registry.
func RegisterAll(r *strategy.Registry) {
	r.Register("sma-cross", SMACrossFactory)
	r.Register("momentum", MomentumFactory)
}
