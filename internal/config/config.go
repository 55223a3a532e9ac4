// Package config loads the YAML configuration file and applies environment
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

// Config is the top-level configuration.
type Config struct {
	Storage  Storage  `yaml:"storage"`
	Logging  Logging  `yaml:"logging"`
	Sim      Sim      `yaml:"sim"`
	Backtest Backtest `yaml:"backtest"`
	Alpaca   Alpaca   `yaml:"alpaca"`
}

// Storage holds paths for data persistence.
type Storage struct {
	DataDir     string `yaml:"data_dir"`
	JournalPath string `yaml:"journal_path"`
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "json" or "text"
}

// Sim configures the simulated broker.
type Sim struct {
	InitialDeposit float64 `yaml:"initial_deposit"`
	Currency       string  `yaml:"currency"`

	// SpreadBps is the proportional slippage of the default price model, in
	// basis points.
	SpreadBps int64 `yaml:"spread_bps"`

	// FeeModel selects the fee capability: "none", "percent" or "flat".
	FeeModel  string  `yaml:"fee_model"`
	FeeRate   float64 `yaml:"fee_rate"`   // fraction, for "percent"
	FeeAmount float64 `yaml:"fee_amount"` // per trade, for "flat"

	// BuyingPower selects the buying-power capability: "cash" or "margin".
	BuyingPower       string  `yaml:"buying_power"`
	Leverage          float64 `yaml:"leverage"`
	MaintenanceMargin float64 `yaml:"maintenance_margin"`

	// ValidateBuyingPower rejects orders whose estimated cost exceeds the
	// account's buying power.
	ValidateBuyingPower bool `yaml:"validate_buying_power"`

	// MaxOrderAgeDays expires GTC orders open longer than this.
	MaxOrderAgeDays int `yaml:"max_order_age_days"`
}

// Backtest configures backtest runs.
type Backtest struct {
	Market    string   `yaml:"market"`
	Symbols   []string `yaml:"symbols"`
	StartDate string   `yaml:"start_date"` // YYYY-MM-DD
	EndDate   string   `yaml:"end_date"`   // YYYY-MM-DD
	Strategy  string   `yaml:"strategy"`
	OrderSize float64  `yaml:"order_size"`
	Workers   int      `yaml:"workers"`
}

// Alpaca holds credentials and endpoints for the Alpaca broker API.
type Alpaca struct {
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	BaseURL   string `yaml:"base_url"`
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Default returns the configuration used when no file is given: a one
// million USD cash account with no slippage and no fees.
func Default() *Config {
	return &Config{
		Storage: Storage{
			DataDir:     "data",
			JournalPath: "data/journal.db",
		},
		Logging: Logging{Level: "info", Format: "json"},
		Sim: Sim{
			InitialDeposit:  1_000_000,
			Currency:        "USD",
			FeeModel:        "none",
			BuyingPower:     "cash",
			MaxOrderAgeDays: 90,
		},
		Backtest: Backtest{
			Market:    "us",
			Strategy:  "sma-cross",
			OrderSize: 10,
			Workers:   4,
		},
	}
}

// Load reads the YAML configuration file at the given path, parses it into a
// Config on top of the defaults, and then applies environment variable
// overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

// applyEnvOverrides checks well-known environment variables and overrides
// the corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}
	if v := os.Getenv("JOURNAL_PATH"); v != "" {
		cfg.Storage.JournalPath = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("BACKTEST_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Backtest.Workers = n
		}
	}

	// Standard Alpaca env vars (canonical names used by the SDK).
	if v := os.Getenv("APCA_API_KEY_ID"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("APCA_API_SECRET_KEY"); v != "" {
		cfg.Alpaca.APISecret = v
	}
	if v := os.Getenv("APCA_API_BASE_URL"); v != "" {
		cfg.Alpaca.BaseURL = v
	}
}
