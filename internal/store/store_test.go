package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"vela/internal/domain"
)

func day(n int) time.Time {
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

func testBars(symbol string, n int) []domain.Bar {
	bars := make([]domain.Bar, 0, n)
	for i := 0; i < n; i++ {
		price := 100 + float64(i)
		bars = append(bars, domain.Bar{
			Symbol:    symbol,
			Timestamp: day(i),
			Open:      price,
			High:      price + 1,
			Low:       price - 1,
			Close:     price + 0.5,
			Volume:    1000,
		})
	}
	return bars
}

func TestValidateBars(t *testing.T) {
	good := testBars("AAPL", 5)
	if err := ValidateBars("AAPL", good); err != nil {
		t.Fatalf("ValidateBars rejected a valid series: %v", err)
	}

	tests := []struct {
		name   string
		mutate func([]domain.Bar) []domain.Bar
	}{
		{"duplicate timestamp", func(b []domain.Bar) []domain.Bar {
			b[2].Timestamp = b[1].Timestamp
			return b
		}},
		{"out of order", func(b []domain.Bar) []domain.Bar {
			b[1], b[3] = b[3], b[1]
			return b
		}},
		{"non-positive price", func(b []domain.Bar) []domain.Bar {
			b[0].Close = 0
			return b
		}},
		{"negative volume", func(b []domain.Bar) []domain.Bar {
			b[4].Volume = -1
			return b
		}},
		{"high below low", func(b []domain.Bar) []domain.Bar {
			b[2].High, b[2].Low = b[2].Low, b[2].High
			return b
		}},
		{"wrong symbol", func(b []domain.Bar) []domain.Bar {
			b[3].Symbol = "MSFT"
			return b
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bars := tt.mutate(testBars("AAPL", 5))
			err := ValidateBars("AAPL", bars)
			if err == nil {
				t.Fatal("ValidateBars accepted an invalid series")
			}
			if !errors.Is(err, domain.ErrData) {
				t.Errorf("error %v is not domain.ErrData", err)
			}
		})
	}
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	ms := NewMemoryStore()

	// Write out of order; Fetch must come back sorted.
	bars := testBars("AAPL", 4)
	if err := ms.WriteBars(ctx, []domain.Bar{bars[2], bars[0], bars[3], bars[1]}); err != nil {
		t.Fatalf("WriteBars: %v", err)
	}

	got, err := ms.Fetch(ctx, "AAPL", day(0), day(3))
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(got) != 4 {
		t.Fatalf("Fetch returned %d bars, want 4", len(got))
	}
	for i := 1; i < len(got); i++ {
		if !got[i].Timestamp.After(got[i-1].Timestamp) {
			t.Fatalf("bars not sorted at index %d", i)
		}
	}

	// Range filter.
	got, err = ms.Fetch(ctx, "AAPL", day(1), day(2))
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("range fetch returned %d bars, want 2", len(got))
	}

	syms, err := ms.Symbols(ctx)
	if err != nil {
		t.Fatalf("Symbols: %v", err)
	}
	if len(syms) != 1 || syms[0] != "AAPL" {
		t.Errorf("Symbols = %v, want [AAPL]", syms)
	}
}

func TestParquetStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	ps := NewParquetStore(t.TempDir())

	bars := testBars("AAPL", 5)
	if err := ps.WriteBars(ctx, bars); err != nil {
		t.Fatalf("WriteBars: %v", err)
	}

	got, err := ps.Fetch(ctx, "AAPL", day(0), day(4))
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(got) != 5 {
		t.Fatalf("Fetch returned %d bars, want 5", len(got))
	}
	if got[0].Open != 100 || got[4].Close != 104.5 {
		t.Errorf("unexpected bar values: first=%+v last=%+v", got[0], got[4])
	}

	// Rewriting the same range must not duplicate records.
	if err := ps.WriteBars(ctx, bars[:3]); err != nil {
		t.Fatalf("WriteBars (rewrite): %v", err)
	}
	got, err = ps.Fetch(ctx, "AAPL", day(0), day(4))
	if err != nil {
		t.Fatalf("Fetch after rewrite: %v", err)
	}
	if len(got) != 5 {
		t.Errorf("rewrite produced %d bars, want 5", len(got))
	}

	syms, err := ps.Symbols(ctx)
	if err != nil {
		t.Fatalf("Symbols: %v", err)
	}
	if len(syms) != 1 || syms[0] != "AAPL" {
		t.Errorf("Symbols = %v, want [AAPL]", syms)
	}
}

func TestParquetStorePath(t *testing.T) {
	ps := NewParquetStore("/data")
	want := filepath.Join("/data", "daily", "AAPL", "2024.parquet")
	if got := ps.barPath("aapl", 2024); got != want {
		t.Errorf("barPath = %s, want %s", got, want)
	}
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "vela.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	defer s.Close()

	bars := testBars("MSFT", 5)
	if err := s.WriteBars(ctx, bars); err != nil {
		t.Fatalf("WriteBars: %v", err)
	}

	// Upsert: rewrite bar 0 with a different close.
	updated := bars[0]
	updated.Close = 999
	if err := s.WriteBars(ctx, []domain.Bar{updated}); err != nil {
		t.Fatalf("WriteBars (upsert): %v", err)
	}

	got, err := s.Fetch(ctx, "MSFT", day(0), day(4))
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(got) != 5 {
		t.Fatalf("Fetch returned %d bars, want 5", len(got))
	}
	if got[0].Close != 999 {
		t.Errorf("upsert not applied: close = %v, want 999", got[0].Close)
	}

	// Range filter.
	got, err = s.Fetch(ctx, "MSFT", day(2), day(3))
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("range fetch returned %d bars, want 2", len(got))
	}

	syms, err := s.Symbols(ctx)
	if err != nil {
		t.Fatalf("Symbols: %v", err)
	}
	if len(syms) != 1 || syms[0] != "MSFT" {
		t.Errorf("Symbols = %v, want [MSFT]", syms)
	}
}
