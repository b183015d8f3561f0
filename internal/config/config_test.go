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
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, `
content:
  base_url: "http://localhost:1337"
database:
  path: "`+filepath.Join(t.TempDir(), "test.db")+`"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "eur", cfg.Booking.Currency)
	assert.Equal(t, 30*time.Minute, cfg.PendingTTL())
	assert.Equal(t, 24*time.Hour, cfg.BackupInterval())
	assert.Equal(t, time.Duration(0), cfg.ContentCacheTTL())
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("GLOWBOOK_TEST_TOKEN", "secret-token")

	path := writeConfig(t, `
content:
  base_url: "http://localhost:1337"
  api_token: "${GLOWBOOK_TEST_TOKEN}"
  cache_ttl_seconds: 120
database:
  path: "`+filepath.Join(t.TempDir(), "test.db")+`"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "secret-token", cfg.Content.APIToken)
	assert.Equal(t, 2*time.Minute, cfg.ContentCacheTTL())
}

func TestLoad_FullConfig(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9000
  admin_api_key: "k"
  booking_rate_per_second: 2.5
  booking_burst: 10
booking:
  deposit_cents: 1500
  currency: "usd"
  pending_ttl_minutes: 15
telegram:
  bot_token: "t"
  manager_chats: [100, 200]
backup:
  enabled: true
  interval_hours: 6
database:
  path: "`+filepath.Join(t.TempDir(), "test.db")+`"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 2.5, cfg.Server.BookingRatePerSecond)
	assert.Equal(t, int64(1500), cfg.Booking.DepositCents)
	assert.Equal(t, "usd", cfg.Booking.Currency)
	assert.Equal(t, 15*time.Minute, cfg.PendingTTL())
	assert.Equal(t, []int64{100, 200}, cfg.Telegram.ManagerChats)
	assert.Equal(t, 6*time.Hour, cfg.BackupInterval())
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
