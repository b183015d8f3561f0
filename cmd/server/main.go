package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"glowbook/internal/api"
	"glowbook/internal/availability"
	"glowbook/internal/booking"
	"glowbook/internal/config"
	"glowbook/internal/content"
	"glowbook/internal/database"
	"glowbook/internal/events"
	"glowbook/internal/export"
	"glowbook/internal/metrics"
	"glowbook/internal/notify"
)

type dbPinger struct{ db *database.DB }

func (p dbPinger) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

type redisPinger struct{ rdb *redis.Client }

func (p redisPinger) Ping(ctx context.Context) error { return p.rdb.Ping(ctx).Err() }

func main() {
	// Initialize logger
	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	logger := zerolog.New(output).With().Timestamp().Logger()

	_ = godotenv.Load()

	cfg, err := config.Load(os.Getenv("GLOWBOOK_CONFIG_PATH"))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if cfg.Content.BaseURL == "" {
		logger.Fatal().Msg("set content.base_url in config")
	}

	db, err := database.NewDB(cfg.Database.Path, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("open db error")
	}
	defer db.Close()

	client := content.NewClient(cfg.Content.BaseURL, cfg.Content.APIToken)
	var rdb *redis.Client
	if cfg.Redis.Address != "" && cfg.Content.CacheTTLSeconds > 0 {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Address, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		client.UseRedisCache(rdb, cfg.ContentCacheTTL())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bus := events.NewEventBus()
	days := availability.NewService(client, client, &logger)

	bookingSvc := booking.NewService(db, days, client, bus, booking.Policy{
		DepositCents: cfg.Booking.DepositCents,
		Currency:     cfg.Booking.Currency,
		PendingTTL:   cfg.PendingTTL(),
	}, &logger)
	go bookingSvc.RunExpirySweep(ctx, time.Minute)

	var venueOffset float64
	if settings, err := client.BookingSettings(ctx); err == nil && settings != nil {
		venueOffset = settings.TimezoneOffsetHours
	}

	if cfg.Telegram.BotToken != "" && len(cfg.Telegram.ManagerChats) > 0 {
		notifier, err := notify.New(cfg.Telegram.BotToken, cfg.Telegram.ManagerChats, venueOffset, &logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("create telegram notifier error")
		}
		notifier.Attach(bus)
		digest := notify.NewDailyDigest(notifier, db, notify.DefaultDigestConfig())
		go digest.Run(ctx)
	}

	if cfg.Export.SpreadsheetID != "" && cfg.Export.CredentialsFile != "" {
		sheetsSvc, err := export.NewSheetsService(ctx, cfg.Export.CredentialsFile, cfg.Export.SpreadsheetID, db, venueOffset, &logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("create sheets exporter error")
		}
		interval := time.Duration(cfg.Export.SyncIntervalMinutes) * time.Minute
		if interval <= 0 {
			interval = 15 * time.Minute
		}
		go sheetsSvc.RunSync(ctx, interval)
	}

	if cfg.Backup.Enabled {
		backup := database.NewBackupService(cfg.Database.Path, database.BackupOptions{
			Enabled:       cfg.Backup.Enabled,
			Interval:      cfg.BackupInterval(),
			StoragePath:   cfg.Backup.Path,
			RetentionDays: cfg.Backup.RetentionDays,
		}, &logger)
		go backup.Start(ctx)
	}

	deps := []api.Pinger{dbPinger{db: db}}
	if rdb != nil {
		deps = append(deps, redisPinger{rdb: rdb})
	}
	srv := api.NewHTTPServer(days, bookingSvc, client, db, deps, api.Options{
		Port:                 cfg.Server.Port,
		AdminAPIKey:          cfg.Server.AdminAPIKey,
		BookingRatePerSecond: cfg.Server.BookingRatePerSecond,
		BookingBurst:         cfg.Server.BookingBurst,
	}, &logger)
	go srv.Carts().RunCleanup(ctx, 5*time.Minute)

	// Liveness on a side port for orchestrators that must not depend on
	// the public listener.
	if cfg.Monitoring.HealthCheckPort > 0 {
		go startHealthServer(ctx, cfg.Monitoring.HealthCheckPort, deps, &logger)
	}

	if cfg.Monitoring.PrometheusEnabled {
		if cfg.Monitoring.PrometheusPort == 0 {
			cfg.Monitoring.PrometheusPort = 9090
		}
		metrics.Register()
		go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, &logger)
	}

	// Hot-reload the mutable booking policy when the config file changes.
	configPath := os.Getenv("GLOWBOOK_CONFIG_PATH")
	if configPath != "" {
		go func() {
			err := config.Watch(ctx, configPath, 30*time.Second, func(updated *config.Config) {
				bookingSvc.SetPolicy(booking.Policy{
					DepositCents: updated.Booking.DepositCents,
					Currency:     updated.Booking.Currency,
					PendingTTL:   updated.PendingTTL(),
				})
				logger.Info().Msg("booking policy reloaded")
			})
			if err != nil {
				logger.Error().Err(err).Msg("config watch stopped")
			}
		}()
	}

	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()

	logger.Info().Msg("glowbook started")
	if err := srv.Start(); err != nil {
		logger.Fatal().Err(err).Msg("http server error")
	}
}

func startHealthServer(ctx context.Context, port int, deps []api.Pinger, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		ctxPing, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		for _, dep := range deps {
			if err := dep.Ping(ctxPing); err != nil {
				http.Error(w, "not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("health server error")
	}
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
