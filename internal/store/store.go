// Package store provides pluggable sources of historical OHLCV bars:
// Parquet files on disk, a SQLite cache, and an in-memory table. All
// sources satisfy the same ordering and completeness contract, enforced
// by ValidateBars.
package store

import (
	"context"
	"fmt"
	"time"

	"vela/internal/domain"
)

// BarSource provides historical bars for one symbol, ordered by timestamp.
type BarSource interface {
	// Fetch returns bars for symbol within [start, end], strictly
	// time-ordered.
	Fetch(ctx context.Context, symbol string, start, end time.Time) ([]domain.Bar, error)

	// Symbols returns all distinct symbols available in the source.
	Symbols(ctx context.Context) ([]string, error)
}

// BarSink persists batches of bars. Sources that cache broker history
// implement both BarSource and BarSink.
type BarSink interface {
	WriteBars(ctx context.Context, bars []domain.Bar) error
}

// ValidateBars checks the Bar Store contract for a single symbol's series:
// strictly increasing timestamps, no duplicates, and positive prices and
// non-negative volume. Violations are reported as domain.ErrData.
func ValidateBars(symbol string, bars []domain.Bar) error {
	var prev time.Time
	for i, b := range bars {
		if b.Symbol != symbol {
			return fmt.Errorf("%w: bar %d for %s carries symbol %q", domain.ErrData, i, symbol, b.Symbol)
		}
		if b.Timestamp.IsZero() {
			return fmt.Errorf("%w: bar %d for %s has zero timestamp", domain.ErrData, i, symbol)
		}
		if i > 0 && !b.Timestamp.After(prev) {
			return fmt.Errorf("%w: bar %d for %s at %s is not after %s",
				domain.ErrData, i, symbol, b.Timestamp.Format(time.RFC3339), prev.Format(time.RFC3339))
		}
		if b.Open <= 0 || b.High <= 0 || b.Low <= 0 || b.Close <= 0 {
			return fmt.Errorf("%w: bar %d for %s at %s has non-positive price",
				domain.ErrData, i, symbol, b.Timestamp.Format(time.RFC3339))
		}
		if b.High < b.Low {
			return fmt.Errorf("%w: bar %d for %s at %s has high < low",
				domain.ErrData, i, symbol, b.Timestamp.Format(time.RFC3339))
		}
		if b.Volume < 0 {
			return fmt.Errorf("%w: bar %d for %s at %s has negative volume",
				domain.ErrData, i, symbol, b.Timestamp.Format(time.RFC3339))
		}
		prev = b.Timestamp
	}
	return nil
}
