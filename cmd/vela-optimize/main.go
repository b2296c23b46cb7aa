// Command vela-optimize sweeps strategy parameters over historical data:
// plain grid search by default, walk-forward analysis with -train-bars and
// -test-bars.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"vela/internal/backtest"
	"vela/internal/config"
	"vela/internal/domain"
	"vela/internal/optimize"
	"vela/internal/report"
	"vela/internal/store"
	"vela/internal/strategy"
	"vela/internal/strategy/builtins"
	"vela/internal/util"
)

func main() {
	var (
		cfgPath     = flag.String("config", "", "config file path (default $VELA_CONFIG or config/vela.yaml)")
		stratName   = flag.String("strategy", "sma-cross", "strategy name")
		gridFlag    = flag.String("grid", "", "parameter grid, e.g. 'short=5,10,20;long=30,60,90' (required)")
		symbolsFlag = flag.String("symbols", "", "comma-separated symbols (required)")
		startFlag   = flag.String("start", "", "start date 2006-01-02 (required)")
		endFlag     = flag.String("end", "", "end date 2006-01-02 (required)")
		storeKind   = flag.String("store", "parquet", "bar store: parquet or sqlite")
		metric      = flag.String("metric", "", "target metric (overrides config)")
		workers     = flag.Int("workers", 0, "parallel trials (overrides config)")
		trainBars   = flag.Int("train-bars", 0, "walk-forward training window in bars")
		testBars    = flag.Int("test-bars", 0, "walk-forward test window in bars")
		jsonOut     = flag.Bool("json", false, "print results as JSON instead of tables")
	)
	flag.Parse()
	_ = godotenv.Load()

	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger := util.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	util.SetDefault(logger)

	if *metric != "" {
		cfg.Optimizer.TargetMetric = *metric
	}
	if *workers > 0 {
		cfg.Optimizer.MaxWorkers = *workers
	}

	grid, err := parseGrid(*gridFlag)
	if err != nil {
		log.Fatal(err)
	}
	symbols := splitList(*symbolsFlag)
	if len(symbols) == 0 {
		log.Fatal("-symbols is required")
	}
	start, end, err := parseRange(*startFlag, *endFlag)
	if err != nil {
		log.Fatal(err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	barStore, err := openStore(cfg, *storeKind)
	if err != nil {
		log.Fatalf("opening %s store: %v", *storeKind, err)
	}
	data := make(map[string][]domain.Bar, len(symbols))
	for _, sym := range symbols {
		bars, err := barStore.Fetch(ctx, sym, start, end)
		if err != nil {
			log.Fatalf("loading %s: %v", sym, err)
		}
		if len(bars) == 0 {
			log.Fatalf("no bars for %s in %s..%s", sym, *startFlag, *endFlag)
		}
		data[sym] = bars
	}

	reg := strategy.NewRegistry()
	builtins.RegisterAll(reg)
	factory, err := reg.Factory(*stratName)
	if err != nil {
		log.Fatal(err)
	}

	runner := optimize.NewRunner(factory, backtest.ConfigFromApp(cfg.Backtest), cfg.Optimizer, logger)

	if *trainBars > 0 || *testBars > 0 {
		res, err := runner.WalkForward(ctx, grid, data, *trainBars, *testBars)
		if err != nil {
			log.Fatalf("walk-forward failed: %v", err)
		}
		if *jsonOut {
			if err := report.WriteJSON(os.Stdout, res); err != nil {
				log.Fatalf("writing JSON: %v", err)
			}
			return
		}
		report.WriteWalkForwardTable(os.Stdout, res)
		return
	}

	summary, err := runner.GridSearch(ctx, grid, data)
	if err != nil {
		log.Fatalf("grid search failed: %v", err)
	}
	if *jsonOut {
		if err := report.WriteJSON(os.Stdout, summary); err != nil {
			log.Fatalf("writing JSON: %v", err)
		}
		return
	}
	report.WriteSummaryTable(os.Stdout, summary)
}

// parseGrid parses "short=5,10,20;long=30,60" into a ParamGrid.
func parseGrid(s string) (optimize.ParamGrid, error) {
	if s == "" {
		return nil, fmt.Errorf("-grid is required")
	}
	grid := make(optimize.ParamGrid)
	for _, spec := range strings.Split(s, ";") {
		name, list, ok := strings.Cut(strings.TrimSpace(spec), "=")
		if !ok {
			return nil, fmt.Errorf("bad grid entry %q, want name=v1,v2,...", spec)
		}
		var values []float64
		for _, v := range strings.Split(list, ",") {
			f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				return nil, fmt.Errorf("bad value %q for %s: %v", v, name, err)
			}
			values = append(values, f)
		}
		if len(values) == 0 {
			return nil, fmt.Errorf("no values for grid parameter %s", name)
		}
		grid[name] = values
	}
	return grid, nil
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		path = os.Getenv("VELA_CONFIG")
	}
	if path == "" {
		path = "config/vela.yaml"
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return config.Default(), nil
	}
	return config.Load(path)
}

func openStore(cfg *config.Config, kind string) (store.BarSource, error) {
	switch kind {
	case "parquet":
		return store.NewParquetStore(cfg.Storage.DataDir), nil
	case "sqlite":
		path := cfg.Storage.SQLitePath
		if path == "" {
			path = "vela.db"
		}
		return store.NewSQLiteStore(path)
	}
	return nil, fmt.Errorf("unknown store kind %q", kind)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.ToUpper(strings.TrimSpace(part))
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseRange(startStr, endStr string) (time.Time, time.Time, error) {
	start, err := time.Parse("2006-01-02", startStr)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("-start must be a 2006-01-02 date: %v", err)
	}
	end, err := time.Parse("2006-01-02", endStr)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("-end must be a 2006-01-02 date: %v", err)
	}
	if !end.After(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("-end must be after -start")
	}
	return start, end, nil
}
