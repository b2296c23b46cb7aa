// Package config loads the vela configuration from YAML with environment
// variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for vela.
type Config struct {
	Storage   Storage         `yaml:"storage"`
	Server    Server          `yaml:"server"`
	Alpaca    Alpaca          `yaml:"alpaca"`
	Logging   Logging         `yaml:"logging"`
	Backtest  BacktestConfig  `yaml:"backtest"`
	Optimizer OptimizerConfig `yaml:"optimizer"`
}

// Storage holds paths for historical data persistence.
type Storage struct {
	DataDir    string `yaml:"data_dir"`
	SQLitePath string `yaml:"sqlite_path"`
}

// Server holds network listener configuration for the results API.
type Server struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Alpaca holds credentials and endpoints for the Alpaca market-data API.
type Alpaca struct {
	APIKey          string `yaml:"api_key"`
	APISecret       string `yaml:"api_secret"`
	DataURL         string `yaml:"data_url"`
	RateLimitPerMin int    `yaml:"rate_limit_per_min"`
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// BacktestConfig defines the simulation parameters read once at run start
// and immutable for the duration of a run.
type BacktestConfig struct {
	InitialCash     float64 `yaml:"initial_cash"`
	CommissionRate  float64 `yaml:"commission_rate"`
	CommissionFixed float64 `yaml:"commission_fixed"`
	SlippagePct     float64 `yaml:"slippage_pct"`

	// LimitExpiryBars is how many bars an unfilled limit or stop order
	// stays working before it expires. An explicit 0 means
	// good-till-end-of-data; leaving the key out defaults to 1.
	LimitExpiryBars *int `yaml:"limit_expiry_bars"`

	AllowMargin    bool    `yaml:"allow_margin"`
	MaxPositionPct float64 `yaml:"max_position_pct"`
	RiskFreeRate   float64 `yaml:"risk_free_rate"`
	BarsPerYear    int     `yaml:"bars_per_year"`
}

// OptimizerConfig bounds parallelism and failure handling for parameter
// searches.
type OptimizerConfig struct {
	MaxWorkers       int    `yaml:"max_workers"`
	TrialTimeoutSecs int    `yaml:"trial_timeout_secs"`
	TargetMetric     string `yaml:"target_metric"`
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Load reads the YAML configuration file at the given path, parses it into a
// Config struct, applies defaults, and then applies environment variable
// overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	applyDefaults(cfg)
	applyEnvOverrides(cfg)

	return cfg, nil
}

// Default returns a Config with defaults applied and no file read, for use
// by tests and callers that configure everything through flags.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	applyEnvOverrides(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Storage.DataDir == "" {
		cfg.Storage.DataDir = "data"
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "127.0.0.1"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Alpaca.RateLimitPerMin == 0 {
		cfg.Alpaca.RateLimitPerMin = 200
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Backtest.InitialCash == 0 {
		cfg.Backtest.InitialCash = 100000
	}
	if cfg.Backtest.LimitExpiryBars == nil {
		one := 1
		cfg.Backtest.LimitExpiryBars = &one
	}
	if cfg.Backtest.MaxPositionPct == 0 {
		cfg.Backtest.MaxPositionPct = 0.95
	}
	if cfg.Backtest.BarsPerYear == 0 {
		cfg.Backtest.BarsPerYear = 252
	}
	if cfg.Optimizer.MaxWorkers == 0 {
		cfg.Optimizer.MaxWorkers = 4
	}
	if cfg.Optimizer.TargetMetric == "" {
		cfg.Optimizer.TargetMetric = "sharpe"
	}
}

// applyEnvOverrides checks well-known environment variables and overrides
// the corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("ALPACA_API_KEY"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("ALPACA_API_SECRET"); v != "" {
		cfg.Alpaca.APISecret = v
	}
	if v := os.Getenv("ALPACA_DATA_URL"); v != "" {
		cfg.Alpaca.DataURL = v
	}
	if v := os.Getenv("VELA_INITIAL_CASH"); v != "" {
		if cash, err := strconv.ParseFloat(v, 64); err == nil && cash > 0 {
			cfg.Backtest.InitialCash = cash
		}
	}
	if v := os.Getenv("VELA_MAX_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Optimizer.MaxWorkers = n
		}
	}

	// Standard Alpaca env vars (highest priority — canonical names used by SDK).
	if v := os.Getenv("APCA_API_KEY_ID"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("APCA_API_SECRET_KEY"); v != "" {
		cfg.Alpaca.APISecret = v
	}
}
