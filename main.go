// Command overlord-bot is the entrypoint for the AI Overlord Twitch chat bot.
// It:
//   - Loads configuration and initializes structured logging.
//   - Connects to Postgres and runs idempotent migrations.
//   - Starts the chat pipeline, command registry, TTS speaker, and the
//     simulator pollers.
//   - Exposes a minimal HTTP server with /healthz, /readyz, /status, and
//     /metrics.
//
// Shutdown is graceful on SIGINT/SIGTERM.
package main

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/grab-your-parachutes/overlord-bot/bot"
	"github.com/grab-your-parachutes/overlord-bot/config"
	"github.com/grab-your-parachutes/overlord-bot/db"
	"github.com/grab-your-parachutes/overlord-bot/server"
	"github.com/grab-your-parachutes/overlord-bot/telemetry"
)

func main() {
	// Local dev convenience; production relies on real env.
	_ = godotenv.Load()

	telemetry.SetupLogging()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("error", err))
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("config invalid", slog.Any("error", err))
		os.Exit(1)
	}

	telemetry.Init()
	shutdownTracing, err := telemetry.InitTracing(context.Background())
	if err != nil {
		slog.Error("tracing initialization failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			slog.Warn("tracing shutdown failed", slog.Any("error", err))
		}
	}()

	// DB is optional: without one the bot still runs, minus conversation
	// history, alerts, and flight snapshots.
	var database *sql.DB
	if cfg.DBDsn != "" {
		database, err = db.Connect(cfg.DBDsn)
		if err != nil {
			slog.Warn("database unavailable, continuing without persistence", slog.Any("error", err))
		} else {
			defer func() {
				if err := database.Close(); err != nil {
					slog.Error("failed to close database", slog.Any("error", err))
				}
			}()
			// Versioned migrations first, embedded SQL as the fallback for
			// deployments predating the schema_migrations table.
			if err := db.RunMigrations(database); err != nil {
				slog.Warn("versioned migrations failed, falling back to embedded SQL", slog.Any("error", err))
				if err := db.Migrate(context.Background(), database); err != nil {
					slog.Error("failed to migrate db", slog.Any("error", err))
					os.Exit(1)
				}
			}
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	b := bot.New(cfg, database)

	httpAddr := os.Getenv("HTTP_ADDR")
	if httpAddr == "" {
		httpAddr = ":8080"
	}
	go func() {
		if err := server.Start(ctx, b, httpAddr); err != nil {
			slog.Error("http server exited", slog.Any("error", err))
		}
	}()

	slog.Info("starting bot",
		slog.String("channel", cfg.TwitchChannel),
		slog.String("bot", cfg.TwitchBotUsername),
		slog.String("prefix", cfg.CommandPrefix))
	if err := b.Run(ctx); err != nil && ctx.Err() == nil {
		slog.Error("bot exited", slog.Any("error", err))
		os.Exit(1)
	}
	slog.Info("shutdown complete")
}
