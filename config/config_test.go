package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoadFromFileYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lotbot.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
account:
  currency: USD
  initial_cash: 5000
risk:
  ETH-USD:
    stoploss: 0.05
    position_size: 0.1
    max_allocation: 0.5
    partial_sell_fraction: 0.5
  BTC-USD:
    stoploss: 0.03
    position_size: 0.2
    max_allocation: 0.4
    partial_sell_fraction: 0.25
coordinator:
  timeframe: 1h
  stoploss_interval: 30s
  signal_interval: 15m
  reconcile_interval: 5m
journal:
  db_path: /tmp/lotbot.db
venue:
  base_url: https://api.example.com
  quote_asset: USD
`), 0644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.InDelta(t, 5000.0, cfg.Account.InitialCash, 1e-9)
	assert.Equal(t, []string{"BTC-USD", "ETH-USD"}, cfg.Instruments())
	assert.InDelta(t, 0.03, cfg.Risk["BTC-USD"].Stoploss, 1e-9)

	fast, slow, rec, err := cfg.Coordinator.Intervals()
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, fast)
	assert.Equal(t, 15*time.Minute, slow)
	assert.Equal(t, 5*time.Minute, rec)

	ps, err := cfg.ParamStore()
	require.NoError(t, err)
	p, err := ps.Get("ETH-USD")
	require.NoError(t, err)
	assert.InDelta(t, 0.05, p.Stoploss, 1e-9)
}

func TestLoadFromFileJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lotbot.json")
	cfg := Default()
	require.NoError(t, cfg.SaveToFile(path))

	loaded, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Coordinator, loaded.Coordinator)
	assert.Equal(t, cfg.Risk, loaded.Risk)
}

func TestValidateRejectsBadConfigs(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no currency", func(c *Config) { c.Account.Currency = "" }},
		{"no instruments", func(c *Config) { c.Risk = nil }},
		{"stoploss out of range", func(c *Config) {
			p := c.Risk["ETH-USD"]
			p.Stoploss = 1.5
			c.Risk["ETH-USD"] = p
		}},
		{"bad interval", func(c *Config) { c.Coordinator.SignalInterval = "soon" }},
		{"no db path", func(c *Config) { c.Journal.DBPath = "" }},
		{"metrics without addr", func(c *Config) {
			c.Metrics.Enabled = true
			c.Metrics.Addr = ""
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestVenueToken(t *testing.T) {
	v := VenueConfig{TokenEnv: "LOTBOT_TEST_TOKEN"}

	_, err := v.Token()
	require.Error(t, err)

	t.Setenv("LOTBOT_TEST_TOKEN", "secret")
	tok, err := v.Token()
	require.NoError(t, err)
	assert.Equal(t, "secret", tok)
}
