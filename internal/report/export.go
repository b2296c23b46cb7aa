package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/parquet-go/parquet-go"

	"vela/internal/domain"
)

// WriteCurveCSV writes the equity curve as CSV with a header row.
func WriteCurveCSV(w io.Writer, curve []domain.Snapshot) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"timestamp", "cash", "market_value", "equity", "open_positions"}); err != nil {
		return err
	}
	for _, s := range curve {
		rec := []string{
			s.Timestamp.UTC().Format(time.RFC3339),
			strconv.FormatFloat(s.Cash, 'f', -1, 64),
			strconv.FormatFloat(s.MarketValue, 'f', -1, 64),
			strconv.FormatFloat(s.Equity, 'f', -1, 64),
			strconv.Itoa(s.OpenPositions),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteTradesCSV writes the trade log as CSV with a header row.
func WriteTradesCSV(w io.Writer, trades []domain.Trade) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"symbol", "entry_time", "exit_time", "entry_price", "exit_price", "quantity", "pnl", "commission"}); err != nil {
		return err
	}
	for _, t := range trades {
		rec := []string{
			t.Symbol,
			t.EntryTime.UTC().Format(time.RFC3339),
			t.ExitTime.UTC().Format(time.RFC3339),
			strconv.FormatFloat(t.EntryPrice, 'f', -1, 64),
			strconv.FormatFloat(t.ExitPrice, 'f', -1, 64),
			strconv.FormatFloat(t.Quantity, 'f', -1, 64),
			strconv.FormatFloat(t.PnL, 'f', -1, 64),
			strconv.FormatFloat(t.Commission, 'f', -1, 64),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// SnapshotRecord is the Parquet schema for equity curve exports.
type SnapshotRecord struct {
	Timestamp     int64   `parquet:"timestamp,timestamp(millisecond)"` // Unix ms
	Cash          float64 `parquet:"cash"`
	MarketValue   float64 `parquet:"market_value"`
	Equity        float64 `parquet:"equity"`
	OpenPositions int32   `parquet:"open_positions"`
}

// WriteCurveParquet writes the equity curve to a Parquet file, creating
// parent directories as needed.
func WriteCurveParquet(path string, curve []domain.Snapshot) error {
	records := make([]SnapshotRecord, 0, len(curve))
	for _, s := range curve {
		records = append(records, SnapshotRecord{
			Timestamp:     s.Timestamp.UnixMilli(),
			Cash:          s.Cash,
			MarketValue:   s.MarketValue,
			Equity:        s.Equity,
			OpenPositions: int32(s.OpenPositions),
		})
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if err := parquet.WriteFile(path, records); err != nil {
		return fmt.Errorf("writing curve parquet: %w", err)
	}
	return nil
}

// ReadCurveParquet reads back an equity curve written by WriteCurveParquet.
func ReadCurveParquet(path string) ([]domain.Snapshot, error) {
	records, err := parquet.ReadFile[SnapshotRecord](path)
	if err != nil {
		return nil, err
	}
	curve := make([]domain.Snapshot, 0, len(records))
	for _, r := range records {
		curve = append(curve, domain.Snapshot{
			Timestamp:     time.UnixMilli(r.Timestamp).UTC(),
			Cash:          r.Cash,
			MarketValue:   r.MarketValue,
			Equity:        r.Equity,
			OpenPositions: int(r.OpenPositions),
		})
	}
	return curve, nil
}
