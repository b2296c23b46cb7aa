package domain

import "errors"

// Error taxonomy for the engine. Call sites wrap these sentinels with
// fmt.Errorf("...: %w", ...) so callers can classify failures with
// errors.Is without depending on message text.
var (
	// ErrData marks malformed or missing historical data. Fatal to the
	// affected run; caught at the optimizer trial boundary.
	ErrData = errors.New("invalid market data")

	// ErrInsufficientFunds marks a fill rejected for lack of cash. The
	// order is dropped and logged; the run continues.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrEngine marks invalid configuration or empty inputs, raised
	// before a run starts.
	ErrEngine = errors.New("engine configuration")

	// ErrStrategy marks a failure inside external strategy code. The
	// optimizer records the trial as failed and never propagates it to
	// sibling trials.
	ErrStrategy = errors.New("strategy failure")
)
