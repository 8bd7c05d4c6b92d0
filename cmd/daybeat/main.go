package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/amberline/daybeat/internal/api"
	"github.com/amberline/daybeat/internal/bus"
	"github.com/amberline/daybeat/internal/config"
	"github.com/amberline/daybeat/internal/ingest"
	"github.com/amberline/daybeat/internal/store"
)

func main() {
	cfg := config.Load()
	setupLogging(cfg.LogLevel)

	slog.Info("daybeat starting", "port", cfg.Port)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database
	if cfg.DatabaseURL == "" {
		slog.Error("DATABASE_URL is required")
		os.Exit(1)
	}
	db, err := store.New(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("database connected")

	// Default timezone for timeline queries without an explicit tz
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		slog.Error("invalid DAYBEAT_TZ", "tz", cfg.Timezone, "error", err)
		os.Exit(1)
	}

	// NATS (optional — daybeat works without the bus, just no capture agents)
	var pub api.Publisher
	if cfg.NatsURL != "" {
		busClient, err := bus.NewClient(cfg.NatsURL, cfg.NatsToken, slog.Default())
		if err != nil {
			slog.Error("failed to connect to NATS", "error", err)
			os.Exit(1)
		}
		defer busClient.Close()
		slog.Info("NATS connected", "url", cfg.NatsURL)

		proc := ingest.New(db, busClient, slog.Default())
		if err := proc.Register(busClient); err != nil {
			slog.Error("failed to subscribe to ingest events", "error", err)
			os.Exit(1)
		}

		pub = busClient
	} else {
		slog.Warn("NATS not configured — running without capture agents")
	}

	// HTTP API
	srv := api.NewServer(cfg.Port, cfg.APIToken, db, pub, loc)
	go func() {
		if err := srv.Start(); err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}()

	slog.Info("daybeat ready", "port", cfg.Port, "tz", cfg.Timezone)

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	slog.Info("shutting down")
	cancel()
	slog.Info("daybeat stopped")
}

func setupLogging(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
}
