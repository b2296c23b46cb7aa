package store

import (
	"context"
	"sort"
	"time"

	"vela/internal/domain"
)

// Compile-time interface checks.
var _ BarSource = (*MemoryStore)(nil)
var _ BarSink = (*MemoryStore)(nil)

// MemoryStore implements BarSource and BarSink over an in-memory table.
// It is used by tests and by optimizer trials that share one preloaded
// dataset. Reads never mutate it, so concurrent Fetch calls are safe once
// loading has finished.
type MemoryStore struct {
	bars map[string][]domain.Bar
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{bars: make(map[string][]domain.Bar)}
}

// WriteBars appends bars to the table, keeping each symbol's series sorted
// by timestamp.
func (s *MemoryStore) WriteBars(_ context.Context, bars []domain.Bar) error {
	for _, b := range bars {
		s.bars[b.Symbol] = append(s.bars[b.Symbol], b)
	}
	for sym := range s.bars {
		series := s.bars[sym]
		sort.Slice(series, func(i, j int) bool {
			return series[i].Timestamp.Before(series[j].Timestamp)
		})
	}
	return nil
}

// Fetch returns the bars for symbol within [start, end].
func (s *MemoryStore) Fetch(_ context.Context, symbol string, start, end time.Time) ([]domain.Bar, error) {
	var out []domain.Bar
	for _, b := range s.bars[symbol] {
		if inRange(b.Timestamp, start, end) {
			out = append(out, b)
		}
	}
	return out, nil
}

// Symbols returns the sorted list of symbols with at least one bar.
func (s *MemoryStore) Symbols(_ context.Context) ([]string, error) {
	symbols := make([]string, 0, len(s.bars))
	for sym := range s.bars {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)
	return symbols, nil
}

func inRange(ts, start, end time.Time) bool {
	return (ts.Equal(start) || ts.After(start)) && (ts.Equal(end) || ts.Before(end))
}
