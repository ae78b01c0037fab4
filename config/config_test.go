package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "{}"))
	require.NoError(t, err)

	assert.Equal(t, 30*time.Second, cfg.ScanInterval())
	assert.Equal(t, "BTC", cfg.Bot.Asset)
	assert.Equal(t, "spike", cfg.Bot.Strategy)
	assert.Equal(t, 0.45, cfg.Bot.MaxEntryPrice)
	assert.Equal(t, 6, cfg.Safety.MaxDailyLosses)
	assert.Equal(t, 30.0, cfg.Spike.Threshold)
	assert.Equal(t, 15.0, cfg.Spike.MinSpeed)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_YAMLValues(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
bot:
  interval_seconds: 10
  strategy: model
safety:
  max_trade_size: 25
  daily_loss_limit: 100
`))
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, cfg.ScanInterval())
	assert.Equal(t, "model", cfg.Bot.Strategy)
	assert.Equal(t, 25.0, cfg.Safety.MaxTradeSize)
	assert.Equal(t, 100.0, cfg.Safety.DailyLossLimit)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SCAN_INTERVAL", "15")
	t.Setenv("MAX_TRADE_SIZE", "7.5")
	t.Setenv("MAX_DAILY_LOSSES", "3")
	t.Setenv("WALLET_PRIVATE_KEY", "deadbeef")
	t.Setenv("POLY_API_KEY", "k1")
	t.Setenv("KNOWN_PROXY_WALLET", "0xProxy")

	cfg, err := Load(writeConfig(t, "bot:\n  interval_seconds: 60\n"))
	require.NoError(t, err)

	assert.Equal(t, 15*time.Second, cfg.ScanInterval())
	assert.Equal(t, 7.5, cfg.Safety.MaxTradeSize)
	assert.Equal(t, 3, cfg.Safety.MaxDailyLosses)
	assert.Equal(t, "deadbeef", cfg.Chain.PrivateKey)
	assert.Equal(t, "k1", cfg.API.Key)
	assert.Equal(t, "0xProxy", cfg.Chain.KnownProxy)
}

func TestLoad_MissingFileErrors(t *testing.T) {
	_, err := Load("/does/not/exist.yaml")
	assert.Error(t, err)
}

func TestLoad_BadYAMLErrors(t *testing.T) {
	_, err := Load(writeConfig(t, "bot: ["))
	assert.Error(t, err)
}
