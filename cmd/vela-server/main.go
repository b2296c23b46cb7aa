// Command vela-server exposes the backtest engine over HTTP.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"vela/internal/config"
	"vela/internal/httpapi"
	"vela/internal/store"
	"vela/internal/strategy"
	"vela/internal/strategy/builtins"
	"vela/internal/util"
)

func main() {
	var (
		cfgPath   = flag.String("config", "", "config file path (default $VELA_CONFIG or config/vela.yaml)")
		addrFlag  = flag.String("addr", "", "listen address (overrides config host:port)")
		storeKind = flag.String("store", "parquet", "bar store: parquet or sqlite")
	)
	flag.Parse()
	_ = godotenv.Load()

	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger := util.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	util.SetDefault(logger)

	barStore, err := openStore(cfg, *storeKind)
	if err != nil {
		log.Fatalf("opening %s store: %v", *storeKind, err)
	}

	reg := strategy.NewRegistry()
	builtins.RegisterAll(reg)

	addr := *addrFlag
	if addr == "" {
		addr = fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	srv := httpapi.NewServer(cfg, barStore, reg, logger)
	logger.Info("starting vela-server", "addr", addr, "store", *storeKind, "strategies", reg.List())
	if err := srv.ListenAndServe(ctx, addr); err != nil {
		log.Fatalf("server error: %v", err)
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
