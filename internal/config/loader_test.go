package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	path := writeConfig(t, `
mode = "trade"

[wallet]
private_key = "0xabc"

[strategy]
symbols = ["HYPE", "ETH"]
take_profit = 2.5
action_timeout = "45s"

[feed]
retry_delay = "3s"
max_retries = 7
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"HYPE", "ETH"}, cfg.Strategy.Symbols)
	assert.Equal(t, 2.5, cfg.Strategy.TakeProfit)
	assert.Equal(t, 45*time.Second, cfg.Strategy.ActionTimeout.Duration)
	assert.Equal(t, 3*time.Second, cfg.Feed.RetryDelay.Duration)
	assert.Equal(t, 7, cfg.Feed.MaxRetries)

	// Untouched fields keep their defaults.
	assert.Equal(t, 0.5, cfg.Strategy.TrailingRetrace)
	assert.Equal(t, "https://api.hyperliquid.xyz", cfg.Hyperliquid.APIURL)
	assert.Equal(t, []float64{1, 1.6, 6, 13}, cfg.Strategy.DcaDeviations)

	require.NoError(t, cfg.Validate())
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
mode = "monitor"

[strategy]
buy_size = 50
`)

	t.Setenv("MAWBOT_STRATEGY_BUY_SIZE", "200")
	t.Setenv("MAWBOT_STRATEGY_SYMBOLS", "BTC, SOL")
	t.Setenv("MAWBOT_STRATEGY_DCA_DEVIATIONS", "2,4,8")
	t.Setenv("MAWBOT_FEED_RETRY_DELAY", "1s")
	t.Setenv("MAWBOT_LOG_LEVEL", "debug")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 200.0, cfg.Strategy.BuySize, "env wins over file")
	assert.Equal(t, []string{"BTC", "SOL"}, cfg.Strategy.Symbols)
	assert.Equal(t, []float64{2, 4, 8}, cfg.Strategy.DcaDeviations)
	assert.Equal(t, time.Second, cfg.Feed.RetryDelay.Duration)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestValidateTradeModeRequiresKey(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "trade"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "wallet")

	cfg.Wallet.PrivateKey = "0xabc"
	assert.NoError(t, cfg.Validate())
}

func TestValidateMonitorModeNeedsNoKey(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "monitor"
	assert.NoError(t, cfg.Validate())
}

func TestValidateCollectsAllProblems(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "nonsense"
	cfg.Strategy.BuySize = 0
	cfg.Strategy.DcaDeviations = []float64{150}
	cfg.Server.Port = -1

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
	assert.Contains(t, err.Error(), "buy_size")
	assert.Contains(t, err.Error(), "dca_deviations[0]")
	assert.Contains(t, err.Error(), "port")
}

func TestConnStringPrefersDSN(t *testing.T) {
	p := PostgresConfig{DSN: "postgres://explicit"}
	assert.Equal(t, "postgres://explicit", p.ConnString())

	p = PostgresConfig{
		User: "maw", Password: "pw", Host: "db", Port: 5432,
		Database: "mawbot", SSLMode: "disable",
	}
	assert.Equal(t, "postgres://maw:pw@db:5432/mawbot?sslmode=disable", p.ConnString())
}
