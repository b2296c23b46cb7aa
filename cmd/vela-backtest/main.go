// Command vela-backtest runs a single backtest from the command line and
// prints the result as a table or JSON, optionally exporting the equity
// curve and trade log.
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
	"vela/internal/report"
	"vela/internal/source"
	"vela/internal/store"
	"vela/internal/strategy"
	"vela/internal/strategy/builtins"
	"vela/internal/util"
)

func main() {
	var (
		cfgPath      = flag.String("config", "", "config file path (default $VELA_CONFIG or config/vela.yaml)")
		stratName    = flag.String("strategy", "sma-cross", "strategy name")
		paramsFlag   = flag.String("params", "", "strategy params, e.g. short=10,long=30")
		symbolsFlag  = flag.String("symbols", "", "comma-separated symbols (required)")
		startFlag    = flag.String("start", "", "start date 2006-01-02 (required)")
		endFlag      = flag.String("end", "", "end date 2006-01-02 (required)")
		cash         = flag.Float64("cash", 0, "initial cash (overrides config)")
		storeKind    = flag.String("store", "parquet", "bar store: parquet or sqlite")
		fetch        = flag.Bool("fetch", false, "fetch bars from Alpaca into the store first")
		jsonOut      = flag.Bool("json", false, "print the full result as JSON instead of tables")
		curveCSV     = flag.String("curve-csv", "", "write the equity curve to this CSV file")
		curveParquet = flag.String("curve-parquet", "", "write the equity curve to this Parquet file")
		tradesCSV    = flag.String("trades-csv", "", "write the trade log to this CSV file")
	)
	flag.Parse()
	_ = godotenv.Load()

	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger := util.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	util.SetDefault(logger)

	symbols := splitList(*symbolsFlag)
	if len(symbols) == 0 {
		log.Fatal("-symbols is required")
	}
	start, end, err := parseRange(*startFlag, *endFlag)
	if err != nil {
		log.Fatal(err)
	}
	params, err := parseParams(*paramsFlag)
	if err != nil {
		log.Fatal(err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	barStore, err := openStore(cfg, *storeKind)
	if err != nil {
		log.Fatalf("opening %s store: %v", *storeKind, err)
	}

	if *fetch {
		src := source.NewAlpacaSource(cfg.Alpaca.APIKey, cfg.Alpaca.APISecret, cfg.Alpaca.DataURL, cfg.Alpaca.RateLimitPerMin)
		n, err := src.Sync(ctx, barStore.(store.BarSink), symbols, start, end)
		if err != nil {
			log.Fatalf("fetching bars: %v", err)
		}
		logger.Info("fetched bars", "count", n)
	}

	data := make(map[string][]domain.Bar, len(symbols))
	for _, sym := range symbols {
		bars, err := barStore.Fetch(ctx, sym, start, end)
		if err != nil {
			log.Fatalf("loading %s: %v", sym, err)
		}
		if len(bars) == 0 {
			log.Fatalf("no bars for %s in %s..%s (try -fetch)", sym, *startFlag, *endFlag)
		}
		data[sym] = bars
	}

	reg := strategy.NewRegistry()
	builtins.RegisterAll(reg)
	strat, err := reg.New(*stratName, params)
	if err != nil {
		log.Fatalf("creating strategy: %v", err)
	}

	engCfg := backtest.ConfigFromApp(cfg.Backtest)
	if *cash > 0 {
		engCfg.InitialCash = *cash
	}

	res, err := backtest.New(engCfg, strat, nil, logger).Run(ctx, data)
	if err != nil {
		log.Fatalf("backtest failed: %v", err)
	}

	if *jsonOut {
		if err := report.WriteJSON(os.Stdout, res); err != nil {
			log.Fatalf("writing JSON: %v", err)
		}
	} else {
		report.WriteResultTable(os.Stdout, res)
	}

	exportArtifacts(res, *curveCSV, *curveParquet, *tradesCSV)
}

func exportArtifacts(res *domain.RunResult, curveCSV, curveParquet, tradesCSV string) {
	if curveCSV != "" {
		f, err := os.Create(curveCSV)
		if err != nil {
			log.Fatalf("creating %s: %v", curveCSV, err)
		}
		defer f.Close()
		if err := report.WriteCurveCSV(f, res.Curve); err != nil {
			log.Fatalf("writing curve CSV: %v", err)
		}
	}
	if curveParquet != "" {
		if err := report.WriteCurveParquet(curveParquet, res.Curve); err != nil {
			log.Fatalf("writing curve Parquet: %v", err)
		}
	}
	if tradesCSV != "" {
		f, err := os.Create(tradesCSV)
		if err != nil {
			log.Fatalf("creating %s: %v", tradesCSV, err)
		}
		defer f.Close()
		if err := report.WriteTradesCSV(f, res.Trades); err != nil {
			log.Fatalf("writing trades CSV: %v", err)
		}
	}
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

func parseParams(s string) (map[string]float64, error) {
	if s == "" {
		return nil, nil
	}
	params := make(map[string]float64)
	for _, pair := range strings.Split(s, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok {
			return nil, fmt.Errorf("bad param %q, want name=value", pair)
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("bad value for %s: %v", k, err)
		}
		params[k] = f
	}
	return params, nil
}
