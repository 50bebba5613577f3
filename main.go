// Command backend is the main entrypoint for the gameday API and background workers.
// It:
//   - Loads configuration and initializes structured logging.
//   - Connects to Postgres and runs idempotent migrations.
//   - Starts the live chat feed recorder when Twitch credentials are present.
//   - Exposes the HTTP API: session, timeline, forum, AI, feed, health, metrics.
//
// Shutdown is graceful on SIGINT/SIGTERM.
package main

import (
	"context"
	"log/slog"
	"net/http"
	_ "net/http/pprof" //nolint:gosec // G108: pprof endpoints enabled only when ENABLE_PPROF=1
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/Grace-Shao/aiatl2025/backend/config"
	"github.com/Grace-Shao/aiatl2025/backend/db"
	"github.com/Grace-Shao/aiatl2025/backend/server"
	"github.com/Grace-Shao/aiatl2025/backend/social"
	"github.com/Grace-Shao/aiatl2025/backend/telemetry"
)

func main() {
	// Load .env file if present (local dev convenience only; production relies on real env)
	_ = godotenv.Load(".env")

	// Configure logging (level + format). Defaults: level=info, format=text.
	lvl := slog.LevelInfo
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	case "info", "":
		// keep default
	default:
		tmp := slog.New(slog.NewTextHandler(os.Stdout, nil))
		tmp.Warn("unknown LOG_LEVEL, using info", slog.String("value", os.Getenv("LOG_LEVEL")))
	}
	format := strings.ToLower(os.Getenv("LOG_FORMAT")) // text | json
	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	default:
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	}
	slog.SetDefault(slog.New(handler))
	slog.Info("logger initialized", slog.String("level", lvl.String()))

	// Config
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}

	// Metrics / telemetry init
	telemetry.Init()

	// Initialize OpenTelemetry tracing (optional; requires OTEL_EXPORTER_OTLP_ENDPOINT)
	shutdown, err := telemetry.InitTracing("gameday", "1.0.0")
	if err != nil {
		slog.Error("tracing initialization failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer shutdown()

	// DB
	database, err := db.Connect(cfg.DBDsn)
	if err != nil {
		slog.Error("failed to open db", slog.Any("err", err))
		os.Exit(1)
	}
	defer func() {
		if err := database.Close(); err != nil {
			slog.Error("failed to close database", slog.Any("err", err))
		}
	}()

	// Migrations: versioned (golang-migrate) first, embedded SQL as fallback
	// for deployments without a schema_migrations table.
	slog.Info("running database migrations", slog.String("component", "db_migrate"))
	if err := db.RunMigrations(database); err != nil {
		slog.Warn("versioned migrations failed, attempting fallback to embedded SQL",
			slog.Any("err", err),
			slog.String("component", "db_migrate"))
		if err := db.Migrate(context.Background(), database); err != nil {
			slog.Error("failed to migrate db (both versioned and embedded SQL failed)", slog.Any("err", err))
			os.Exit(1)
		}
		slog.Info("embedded SQL migration completed", slog.String("component", "db_migrate"))
	} else {
		slog.Info("versioned migrations completed", slog.String("component", "db_migrate"))
	}

	// Root context with graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Live chat feed recorder (no-op without Twitch creds)
	gameStart := time.Now().UTC()
	if v := os.Getenv("GAME_START"); v != "" {
		if ts, err := time.Parse(time.RFC3339, v); err == nil {
			gameStart = ts
		} else {
			slog.Warn("invalid GAME_START, using now", slog.String("value", v))
		}
	}
	go social.StartChatRecorder(ctx, database, cfg, gameStart)

	// Enable pprof profiling endpoints in debug mode (ENABLE_PPROF=1)
	if os.Getenv("ENABLE_PPROF") == "1" {
		pprofAddr := os.Getenv("PPROF_ADDR")
		if pprofAddr == "" {
			pprofAddr = "localhost:6060"
		}
		go func() {
			slog.Info("pprof profiling enabled", slog.String("addr", pprofAddr))
			srv := &http.Server{
				Addr:              pprofAddr,
				Handler:           nil, // default mux exposes /debug/pprof
				ReadHeaderTimeout: 5 * time.Second,
				ReadTimeout:       10 * time.Second,
				WriteTimeout:      10 * time.Second,
				IdleTimeout:       60 * time.Second,
			}
			if err := srv.ListenAndServe(); err != nil {
				slog.Error("pprof server error", slog.Any("err", err))
			}
		}()
	}

	// HTTP server
	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	go func() {
		if err := server.Start(ctx, cfg, database, addr); err != nil {
			slog.Error("http server exited with error", slog.Any("err", err))
		}
	}()

	// Block until shutdown signal
	<-ctx.Done()
	slog.Info("shutting down")
}
