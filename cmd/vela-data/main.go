// Command vela-data fetches daily bars from Alpaca into the local parquet
// and sqlite stores.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"vela/internal/config"
	"vela/internal/source"
	"vela/internal/store"
	"vela/internal/util"
)

func main() {
	var (
		cfgPath     = flag.String("config", "", "config file path (default $VELA_CONFIG or config/vela.yaml)")
		symbolsFlag = flag.String("symbols", "", "comma-separated symbols (required)")
		startFlag   = flag.String("start", "", "start date 2006-01-02 (required)")
		endFlag     = flag.String("end", "", "end date 2006-01-02 (default today)")
		toSQLite    = flag.Bool("sqlite", false, "also write bars to the sqlite store")
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
	start, err := time.Parse("2006-01-02", *startFlag)
	if err != nil {
		log.Fatalf("-start must be a 2006-01-02 date: %v", err)
	}
	end := time.Now().UTC().Truncate(24 * time.Hour)
	if *endFlag != "" {
		end, err = time.Parse("2006-01-02", *endFlag)
		if err != nil {
			log.Fatalf("-end must be a 2006-01-02 date: %v", err)
		}
	}
	if cfg.Alpaca.APIKey == "" || cfg.Alpaca.APISecret == "" {
		log.Fatal("alpaca credentials missing: set APCA_API_KEY_ID and APCA_API_SECRET_KEY")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	src := source.NewAlpacaSource(cfg.Alpaca.APIKey, cfg.Alpaca.APISecret, cfg.Alpaca.DataURL, cfg.Alpaca.RateLimitPerMin)

	pstore := store.NewParquetStore(cfg.Storage.DataDir)
	n, err := src.Sync(ctx, pstore, symbols, start, end)
	if err != nil {
		log.Fatalf("sync to parquet failed: %v", err)
	}
	logger.Info("parquet sync complete", "bars", n, "dataDir", cfg.Storage.DataDir)

	if *toSQLite {
		path := cfg.Storage.SQLitePath
		if path == "" {
			path = "vela.db"
		}
		sstore, err := store.NewSQLiteStore(path)
		if err != nil {
			log.Fatalf("opening sqlite store: %v", err)
		}
		defer sstore.Close()

		n, err = src.Sync(ctx, sstore, symbols, start, end)
		if err != nil {
			log.Fatalf("sync to sqlite failed: %v", err)
		}
		logger.Info("sqlite sync complete", "bars", n, "path", path)
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
