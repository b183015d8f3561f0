package config

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port        int    `yaml:"port"`
		AdminAPIKey string `yaml:"admin_api_key"`
		// Booking submissions per second per client, token-bucket.
		BookingRatePerSecond float64 `yaml:"booking_rate_per_second"`
		BookingBurst         int     `yaml:"booking_burst"`
	} `yaml:"server"`

	Content struct {
		BaseURL         string `yaml:"base_url"`
		APIToken        string `yaml:"api_token"`
		CacheTTLSeconds int    `yaml:"cache_ttl_seconds"`
	} `yaml:"content"`

	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`

	Backup struct {
		Enabled       bool   `yaml:"enabled"`
		IntervalHours int    `yaml:"interval_hours"`
		Path          string `yaml:"path"`
		RetentionDays int    `yaml:"retention_days"`
	} `yaml:"backup"`

	Redis struct {
		Address  string `yaml:"address"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	Monitoring struct {
		HealthCheckPort   int  `yaml:"health_check_port"`
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
		PrometheusPort    int  `yaml:"prometheus_port"`
	} `yaml:"monitoring"`

	Booking struct {
		DepositCents      int64  `yaml:"deposit_cents"`
		Currency          string `yaml:"currency"`
		PendingTTLMinutes int    `yaml:"pending_ttl_minutes"`
	} `yaml:"booking"`

	Telegram struct {
		BotToken     string  `yaml:"bot_token"`
		ManagerChats []int64 `yaml:"manager_chats"`
	} `yaml:"telegram"`

	Export struct {
		SpreadsheetID       string `yaml:"spreadsheet_id"`
		CredentialsFile     string `yaml:"credentials_file"`
		SyncIntervalMinutes int    `yaml:"sync_interval_minutes"`
	} `yaml:"export"`
}

func Load(path string) (*Config, error) {
	if path == "" {
		path = "configs/config.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Support ${ENV_VAR} placeholders in YAML config.
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.BookingRatePerSecond <= 0 {
		cfg.Server.BookingRatePerSecond = 1
	}
	if cfg.Server.BookingBurst <= 0 {
		cfg.Server.BookingBurst = 5
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "data/glowbook.db"
	}
	if cfg.Booking.Currency == "" {
		cfg.Booking.Currency = "eur"
	}
	if cfg.Booking.PendingTTLMinutes <= 0 {
		cfg.Booking.PendingTTLMinutes = 30
	}

	if err = os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// ContentCacheTTL returns the TTL for cached content API responses.
func (c *Config) ContentCacheTTL() time.Duration {
	if c.Content.CacheTTLSeconds <= 0 {
		return 0
	}
	return time.Duration(c.Content.CacheTTLSeconds) * time.Second
}

// PendingTTL returns how long a pending appointment holds its slot before
// the expiry sweep abandons it.
func (c *Config) PendingTTL() time.Duration {
	return time.Duration(c.Booking.PendingTTLMinutes) * time.Minute
}

// BackupInterval returns the interval between database backups.
func (c *Config) BackupInterval() time.Duration {
	if c.Backup.IntervalHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(c.Backup.IntervalHours) * time.Hour
}
