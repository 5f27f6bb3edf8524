package service

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
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(body), 0o644))
	return dir
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.App.Environment)
	assert.Equal(t, "ws://localhost:8000/hf-data/ws", cfg.Server.WSURL)
	assert.Equal(t, 10*time.Second, cfg.Server.Timeout)
	assert.Equal(t, time.Duration(0), cfg.Server.ReconnectDelay)
	assert.Equal(t, []string{"SPX"}, cfg.Dashboard.Symbols)
	assert.Equal(t, "1m", cfg.Dashboard.Interval)
	assert.Equal(t, 400, cfg.Dashboard.PaneHeight)
	assert.Equal(t, 1000, cfg.Feed.DisplayLimit)
	assert.Equal(t, "csv", cfg.Export.Format)
}

func TestLoadConfig_File(t *testing.T) {
	dir := writeConfig(t, `
App:
  Environment: development
Server:
  RESTURL: http://backend:8000
  ReconnectDelay: 2s
Dashboard:
  Symbols: [SPX, NDX]
  Interval: 5m
  SMAPeriod: 0
Feed:
  Right: PUTS
  MinCost: 2500
`)
	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.App.Environment)
	assert.Equal(t, "http://backend:8000", cfg.Server.RESTURL)
	assert.Equal(t, 2*time.Second, cfg.Server.ReconnectDelay)
	assert.Equal(t, []string{"SPX", "NDX"}, cfg.Dashboard.Symbols)
	assert.Equal(t, "5m", cfg.Dashboard.Interval)
	assert.Equal(t, 0, cfg.Dashboard.SMAPeriod)
	assert.Equal(t, "PUTS", cfg.Feed.Right)
	assert.Equal(t, 2500.0, cfg.Feed.MinCost)
	// 未写的字段保留默认值
	assert.Equal(t, "time", cfg.Feed.SortBy)
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	t.Setenv("DASH_DASHBOARD_INTERVAL", "15m")
	t.Setenv("DASH_SERVER_WSURL", "ws://override/hf-data/ws")

	cfg, err := LoadConfig(writeConfig(t, "Dashboard:\n  Interval: 5m\n"))
	require.NoError(t, err)
	assert.Equal(t, "15m", cfg.Dashboard.Interval)
	assert.Equal(t, "ws://override/hf-data/ws", cfg.Server.WSURL)
}

func TestLoadConfig_Invalid(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, "Dashboard:\n  Interval: 1w\n"))
	assert.Error(t, err)

	_, err = LoadConfig(writeConfig(t, "Dashboard: [unclosed\n"))
	assert.Error(t, err)
}
