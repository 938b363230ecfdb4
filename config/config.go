package config

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/rmeyers/lotbot/risk"
)

// Config is the complete engine configuration.
type Config struct {
	Account     AccountConfig          `json:"account" yaml:"account"`
	Risk        map[string]risk.Params `json:"risk" yaml:"risk"` // keyed by instrument
	Coordinator CoordinatorConfig      `json:"coordinator" yaml:"coordinator"`
	Journal     JournalConfig          `json:"journal" yaml:"journal"`
	Venue       VenueConfig            `json:"venue" yaml:"venue"`
	Oracle      OracleConfig           `json:"oracle" yaml:"oracle"`
	Metrics     MetricsConfig          `json:"metrics" yaml:"metrics"`
	Backtest    BacktestConfig         `json:"backtest" yaml:"backtest"`
}

// AccountConfig contains account initialization parameters.
type AccountConfig struct {
	Currency    string  `json:"currency" yaml:"currency"`
	InitialCash float64 `json:"initial_cash" yaml:"initial_cash"` // simulation starting balance
}

// CoordinatorConfig drives the live execution loop.
type CoordinatorConfig struct {
	Timeframe         string `json:"timeframe" yaml:"timeframe"`
	StoplossInterval  string `json:"stoploss_interval" yaml:"stoploss_interval"`
	SignalInterval    string `json:"signal_interval" yaml:"signal_interval"`
	ReconcileInterval string `json:"reconcile_interval" yaml:"reconcile_interval"`
}

// Intervals parses the three cadence strings.
func (c CoordinatorConfig) Intervals() (stoploss, signal, reconcile time.Duration, err error) {
	if stoploss, err = time.ParseDuration(c.StoplossInterval); err != nil {
		return 0, 0, 0, fmt.Errorf("stoploss_interval: %w", err)
	}
	if signal, err = time.ParseDuration(c.SignalInterval); err != nil {
		return 0, 0, 0, fmt.Errorf("signal_interval: %w", err)
	}
	if reconcile, err = time.ParseDuration(c.ReconcileInterval); err != nil {
		return 0, 0, 0, fmt.Errorf("reconcile_interval: %w", err)
	}
	return stoploss, signal, reconcile, nil
}

// JournalConfig contains journaling parameters.
type JournalConfig struct {
	DBPath     string `json:"db_path" yaml:"db_path"`
	TradesFile string `json:"trades_file,omitempty" yaml:"trades_file,omitempty"`
	EquityFile string `json:"equity_file,omitempty" yaml:"equity_file,omitempty"`
}

// VenueConfig locates the trading venue. The API token never lives in
// the config file; TokenEnv names the environment variable that holds
// it, loaded from the process environment or a .env file.
type VenueConfig struct {
	BaseURL    string `json:"base_url" yaml:"base_url"`
	WSURL      string `json:"ws_url" yaml:"ws_url"`
	QuoteAsset string `json:"quote_asset" yaml:"quote_asset"`
	TokenEnv   string `json:"token_env" yaml:"token_env"`
}

// Token resolves the venue API token, consulting a .env file if one is
// present in the working directory.
func (v VenueConfig) Token() (string, error) {
	_ = godotenv.Load()
	name := v.TokenEnv
	if name == "" {
		name = "LOTBOT_VENUE_TOKEN"
	}
	tok := os.Getenv(name)
	if tok == "" {
		return "", fmt.Errorf("venue token: environment variable %s is empty", name)
	}
	return tok, nil
}

// OracleConfig locates the external signal service. Live trading
// requires it; simulation does not.
type OracleConfig struct {
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Addr    string `json:"addr,omitempty" yaml:"addr,omitempty"`
}

// BacktestConfig contains simulation parameters.
type BacktestConfig struct {
	DataFile      string `json:"data_file,omitempty" yaml:"data_file,omitempty"`
	Annualization int    `json:"annualization,omitempty" yaml:"annualization,omitempty"`
}

// LoadFromFile loads configuration from a file (JSON or YAML based on content).
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}

	// Try YAML first, fall back to JSON
	err = yaml.Unmarshal(data, cfg)
	if err != nil {
		err = json.Unmarshal(data, cfg)
		if err != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// SaveToFile saves configuration to a file (JSON or YAML based on extension).
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Instruments returns the configured instrument set, sorted for
// deterministic pass ordering.
func (c *Config) Instruments() []string {
	out := make([]string, 0, len(c.Risk))
	for instrument := range c.Risk {
		out = append(out, instrument)
	}
	sort.Strings(out)
	return out
}

// ParamStore builds the in-memory risk parameter store from the
// per-instrument risk section.
func (c *Config) ParamStore() (*risk.ParamStore, error) {
	ps := risk.NewParamStore()
	for instrument, p := range c.Risk {
		if err := ps.Put(instrument, p); err != nil {
			return nil, fmt.Errorf("risk[%s]: %w", instrument, err)
		}
	}
	return ps, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Account.Currency == "" {
		return fmt.Errorf("account.currency is required")
	}
	if c.Account.InitialCash < 0 {
		return fmt.Errorf("account.initial_cash must not be negative")
	}
	if len(c.Risk) == 0 {
		return fmt.Errorf("at least one instrument under risk is required")
	}
	for instrument, p := range c.Risk {
		if instrument == "" {
			return fmt.Errorf("risk instrument name must not be empty")
		}
		if err := p.Validate(); err != nil {
			return fmt.Errorf("risk[%s]: %w", instrument, err)
		}
	}
	if _, _, _, err := c.Coordinator.Intervals(); err != nil {
		return fmt.Errorf("coordinator: %w", err)
	}
	if c.Journal.DBPath == "" {
		return fmt.Errorf("journal.db_path is required")
	}
	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		return fmt.Errorf("metrics.addr required when metrics enabled")
	}
	if c.Backtest.Annualization < 0 {
		return fmt.Errorf("backtest.annualization must not be negative")
	}
	return nil
}

// Default returns a configuration with sensible defaults.
func Default() *Config {
	return &Config{
		Account: AccountConfig{
			Currency:    "USD",
			InitialCash: 10000,
		},
		Risk: map[string]risk.Params{
			"ETH-USD": {
				Stoploss:            0.05,
				PositionSize:        0.10,
				MaxAllocation:       0.50,
				PartialSellFraction: 0.50,
			},
		},
		Coordinator: CoordinatorConfig{
			Timeframe:         "1h",
			StoplossInterval:  "1m",
			SignalInterval:    "15m",
			ReconcileInterval: "5m",
		},
		Journal: JournalConfig{
			DBPath:     "./lotbot.db",
			TradesFile: "./trades.csv",
			EquityFile: "./equity.csv",
		},
		Venue: VenueConfig{
			BaseURL:    "https://api.example.com",
			WSURL:      "wss://stream.example.com/ws",
			QuoteAsset: "USD",
			TokenEnv:   "LOTBOT_VENUE_TOKEN",
		},
		Oracle: OracleConfig{
			BaseURL: "http://localhost:8089",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Addr:    ":9090",
		},
		Backtest: BacktestConfig{
			Annualization: 252,
		},
	}
}
