// Package backtest implements the event-driven simulation core: the merged
// bar stream, the event queue, the execution simulator, the portfolio
// ledger, and the metrics engine.
package backtest

import (
	"fmt"
	"sort"
	"time"

	"vela/internal/domain"
	"vela/internal/store"
)

// Stream merges the per-symbol bar series of one run into a single global
// chronological stream. Simultaneous bars are ordered by symbol name so a
// multi-asset run is fully deterministic. The stream also maintains the
// per-symbol history views handed to strategies: a history only ever
// contains bars up to and including the one just consumed, which is how
// the engine enforces the no-look-ahead contract by construction.
type Stream struct {
	bars      []domain.Bar
	idx       int
	histories map[string][]domain.Bar
	symbols   []string
}

// NewStream validates each symbol's series and builds the merged stream.
// Validation failures and an entirely empty dataset are reported as
// domain.ErrData.
func NewStream(data map[string][]domain.Bar) (*Stream, error) {
	symbols := make([]string, 0, len(data))
	total := 0
	for sym, series := range data {
		if err := store.ValidateBars(sym, series); err != nil {
			return nil, err
		}
		symbols = append(symbols, sym)
		total += len(series)
	}
	if total == 0 {
		return nil, fmt.Errorf("%w: no bars loaded", domain.ErrData)
	}
	sort.Strings(symbols)

	merged := make([]domain.Bar, 0, total)
	for _, sym := range symbols {
		merged = append(merged, data[sym]...)
	}
	sort.SliceStable(merged, func(i, j int) bool {
		if !merged[i].Timestamp.Equal(merged[j].Timestamp) {
			return merged[i].Timestamp.Before(merged[j].Timestamp)
		}
		return merged[i].Symbol < merged[j].Symbol
	})

	histories := make(map[string][]domain.Bar, len(symbols))
	for _, sym := range symbols {
		histories[sym] = make([]domain.Bar, 0, len(data[sym]))
	}

	return &Stream{
		bars:      merged,
		histories: histories,
		symbols:   symbols,
	}, nil
}

// Next returns the next bar in global chronological order and records it in
// the symbol's history view. The second return value is false once the
// stream is exhausted.
func (s *Stream) Next() (domain.Bar, bool) {
	if s.idx >= len(s.bars) {
		return domain.Bar{}, false
	}
	bar := s.bars[s.idx]
	s.idx++
	s.histories[bar.Symbol] = append(s.histories[bar.Symbol], bar)
	return bar, true
}

// History returns the bars consumed so far for symbol, oldest first. The
// returned slice is shared with the stream; callers must treat it as
// read-only and must not retain it across bars.
func (s *Stream) History(symbol string) []domain.Bar {
	return s.histories[symbol]
}

// PeekTime reports the timestamp of the next unconsumed bar. The second
// return value is false when the stream is exhausted.
func (s *Stream) PeekTime() (time.Time, bool) {
	if s.idx >= len(s.bars) {
		return time.Time{}, false
	}
	return s.bars[s.idx].Timestamp, true
}

// Symbols returns the sorted symbols present in the stream.
func (s *Stream) Symbols() []string {
	return s.symbols
}

// Len returns the total number of bars across all symbols.
func (s *Stream) Len() int {
	return len(s.bars)
}
