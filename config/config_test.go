package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/quantwise/chartsync/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
service:
  url: http://analytics:5000
  timeout: 1m30s
chart:
  port: 9000
  theme: light
storage:
  backend: sqlite
  path: runs.sqlite
strategy:
  ticker: AAPL
  start_date: "2024-01-01"
  end_date: "2024-06-30"
  initial_cash: 25000
  commission: 0.001
  entries:
    - indicator: SMA
      period: 20
      comparison: ">"
      reference: SMA_50
    - indicator: RSI
      period: 14
      comparison: "<"
      value: 30
  exits:
    - indicator: RSI
      period: 14
      comparison: ">"
      value: 70
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "chartsync.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "http://analytics:5000", cfg.Service.URL)
	assert.Equal(t, 9000, cfg.Chart.Port)
	assert.Equal(t, "light", cfg.Chart.Theme)
	assert.Equal(t, "sqlite", cfg.Storage.Backend)

	timeout, err := cfg.ServiceTimeout()
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, timeout)

	str := cfg.BuildStrategy()
	assert.Equal(t, "AAPL", str.Ticker)
	require.Len(t, str.Entries, 2)
	assert.Equal(t, core.CompareGreater, str.Entries[0].Comparison)
	assert.Equal(t, "SMA_50", str.Entries[0].Reference)
	assert.Equal(t, 30.0, str.Entries[1].Value)
	require.Len(t, str.Exits, 1)
	require.NoError(t, str.Validate())
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yml"))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "http://127.0.0.1:5000", cfg.Service.URL)
	assert.Equal(t, "30s", cfg.Service.Timeout)
	assert.Equal(t, 8080, cfg.Chart.Port)
	assert.Equal(t, "dark", cfg.Chart.Theme)
	assert.Equal(t, "buntdb", cfg.Storage.Backend)
	assert.Equal(t, "chartsync.db", cfg.Storage.Path)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("CHARTSYNC_SERVICE_URL", "http://override:9999")

	cfg, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)
	assert.Equal(t, "http://override:9999", cfg.Service.URL)
}

func TestValidate_Rejections(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yml"))
	require.NoError(t, err)

	cfg.Chart.Theme = "sepia"
	assert.Error(t, cfg.Validate())
	cfg.Chart.Theme = "dark"

	cfg.Storage.Backend = "redis"
	assert.Error(t, cfg.Validate())
	cfg.Storage.Backend = "buntdb"

	cfg.Telegram.Enabled = true
	assert.Error(t, cfg.Validate())
	cfg.Telegram.Token = "token"
	assert.NoError(t, cfg.Validate())

	cfg.Service.Timeout = "soon"
	assert.Error(t, cfg.Validate())
}
