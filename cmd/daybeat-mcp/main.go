// daybeat-mcp exposes one user's timeline over MCP on stdio, for wiring
// daybeat into agent runtimes. Logs go to stderr so stdout stays clean for
// the protocol stream.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/amberline/daybeat/internal/config"
	"github.com/amberline/daybeat/internal/mcp"
	"github.com/amberline/daybeat/internal/store"
)

func main() {
	tools := flag.String("tools", "", "comma-separated tool profiles or tool names to expose (read, write, or individual tools; empty = all)")
	flag.Parse()

	cfg := config.Load()
	setupLogging(cfg.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

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

	if cfg.OwnerID == "" {
		slog.Error("DAYBEAT_OWNER is required")
		os.Exit(1)
	}
	owner, err := uuid.Parse(cfg.OwnerID)
	if err != nil {
		slog.Error("invalid DAYBEAT_OWNER", "value", cfg.OwnerID, "error", err)
		os.Exit(1)
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		slog.Error("invalid DAYBEAT_TZ", "tz", cfg.Timezone, "error", err)
		os.Exit(1)
	}

	adapter := mcp.NewAdapter(db, owner, loc)
	srv := adapter.NewServer(mcp.ResolveTools(*tools))

	slog.Info("daybeat-mcp serving on stdio", "owner", owner, "tz", cfg.Timezone)
	if err := mcpserver.ServeStdio(srv); err != nil {
		slog.Error("stdio server error", "error", err)
		os.Exit(1)
	}
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
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
}
