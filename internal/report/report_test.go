package report

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"vela/internal/domain"
	"vela/internal/optimize"
)

func sampleResult() *domain.RunResult {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return &domain.RunResult{
		ID:          "test-run",
		Strategy:    "sma-cross",
		Params:      map[string]float64{"short": 10, "long": 30},
		Symbols:     []string{"AAPL"},
		Start:       start,
		End:         start.AddDate(0, 0, 2),
		InitialCash: 10000,
		FinalEquity: 10500,
		Curve: []domain.Snapshot{
			{Timestamp: start, Cash: 10000, Equity: 10000},
			{Timestamp: start.AddDate(0, 0, 1), Cash: 100, MarketValue: 10100, Equity: 10200, OpenPositions: 1},
			{Timestamp: start.AddDate(0, 0, 2), Cash: 10500, Equity: 10500},
		},
		Trades: []domain.Trade{
			{Symbol: "AAPL", EntryTime: start, ExitTime: start.AddDate(0, 0, 2), EntryPrice: 100, ExitPrice: 105, Quantity: 99, PnL: 495, Commission: 2},
		},
		Metrics: domain.Metrics{TotalReturn: 0.05, Sharpe: 1.5, WinRate: 1, TotalTrades: 1},
	}
}

func TestWriteResultTable(t *testing.T) {
	var buf bytes.Buffer
	WriteResultTable(&buf, sampleResult())

	out := buf.String()
	for _, want := range []string{"sma-cross", "AAPL", "Total Return", "5.00%", "Sharpe", "495.00"} {
		if !strings.Contains(out, want) {
			t.Errorf("result table missing %q:\n%s", want, out)
		}
	}
}

func TestWriteSummaryTable(t *testing.T) {
	res := sampleResult()
	s := &optimize.Summary{
		Metric: "sharpe",
		Trials: []optimize.TrialResult{
			{Params: map[string]float64{"short": 10}, Score: 1.5, Result: res},
			{Params: map[string]float64{"short": 20}, Score: 0.8, Result: res},
		},
		Failed: 1,
	}
	s.Best = &s.Trials[0]

	var buf bytes.Buffer
	WriteSummaryTable(&buf, s)

	out := buf.String()
	if !strings.Contains(out, "3 trials, 1 failed") {
		t.Errorf("summary header missing counts:\n%s", out)
	}
	if !strings.Contains(out, "1.5000") {
		t.Errorf("summary table missing best score:\n%s", out)
	}
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteJSON(&buf, sampleResult()); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}

	var decoded domain.RunResult
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if decoded.ID != "test-run" || decoded.FinalEquity != 10500 {
		t.Errorf("decoded = %+v, want original fields back", decoded)
	}
}

func TestWriteCurveCSV(t *testing.T) {
	res := sampleResult()
	var buf bytes.Buffer
	if err := WriteCurveCSV(&buf, res.Curve); err != nil {
		t.Fatalf("WriteCurveCSV: %v", err)
	}

	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("output is not valid CSV: %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("got %d rows, want header + 3", len(rows))
	}
	if rows[0][3] != "equity" {
		t.Errorf("header = %v", rows[0])
	}
	if rows[2][3] != "10200" {
		t.Errorf("equity cell = %q, want 10200", rows[2][3])
	}
}

func TestWriteTradesCSV(t *testing.T) {
	res := sampleResult()
	var buf bytes.Buffer
	if err := WriteTradesCSV(&buf, res.Trades); err != nil {
		t.Fatalf("WriteTradesCSV: %v", err)
	}

	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("output is not valid CSV: %v", err)
	}
	if len(rows) != 2 || rows[1][0] != "AAPL" {
		t.Errorf("rows = %v, want header + one AAPL trade", rows)
	}
}

func TestCurveParquetRoundTrip(t *testing.T) {
	res := sampleResult()
	path := filepath.Join(t.TempDir(), "curve.parquet")

	if err := WriteCurveParquet(path, res.Curve); err != nil {
		t.Fatalf("WriteCurveParquet: %v", err)
	}
	got, err := ReadCurveParquet(path)
	if err != nil {
		t.Fatalf("ReadCurveParquet: %v", err)
	}

	if len(got) != len(res.Curve) {
		t.Fatalf("got %d snapshots, want %d", len(got), len(res.Curve))
	}
	for i := range got {
		want := res.Curve[i]
		if !got[i].Timestamp.Equal(want.Timestamp) || got[i].Equity != want.Equity || got[i].OpenPositions != want.OpenPositions {
			t.Errorf("snapshot %d = %+v, want %+v", i, got[i], want)
		}
	}
}
