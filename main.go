// Command relaybot is the main entrypoint for the IRC relay bot.
// It:
//   - Loads configuration and initializes structured logging.
//   - Optionally connects to Postgres for the lifecycle event archive.
//   - Starts the lifecycle signal bus and the IRC connection factory,
//     which owns the reconnect policy.
//   - Exposes a minimal HTTP server with /healthz, /status, and /metrics.
//
// Shutdown is graceful on SIGINT/SIGTERM. A failed initial connection stops
// the process; a lost connection is retried per AUTO_RECONNECT.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/onnwee/relaybot/chatlog"
	"github.com/onnwee/relaybot/codec"
	"github.com/onnwee/relaybot/comm"
	"github.com/onnwee/relaybot/config"
	"github.com/onnwee/relaybot/db"
	"github.com/onnwee/relaybot/registry"
	"github.com/onnwee/relaybot/server"
	"github.com/onnwee/relaybot/signals"
	"github.com/onnwee/relaybot/telemetry"
)

const version = "1.0.0"

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
	var handler slog.Handler
	switch strings.ToLower(os.Getenv("LOG_FORMAT")) {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	default:
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	}
	slog.SetDefault(slog.New(handler))

	// Config
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}
	if err := cfg.ValidateConnectReady(); err != nil {
		slog.Error("config incomplete", slog.Any("err", err))
		os.Exit(1)
	}

	cdc, err := codec.New(cfg.Charset)
	if err != nil {
		slog.Error("invalid wire charset", slog.Any("err", err))
		os.Exit(1)
	}

	// Metrics / telemetry init
	telemetry.Init()
	shutdownTracing, err := telemetry.InitTracing("relaybot", version)
	if err != nil {
		slog.Error("tracing initialization failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer shutdownTracing()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Lifecycle signal bus
	bus := signals.NewBus()
	go bus.Run(ctx)

	// Optional Postgres event archive
	if cfg.DBDsn != "" {
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
		if err := db.Migrate(ctx, database); err != nil {
			slog.Error("migration failed", slog.Any("err", err))
			os.Exit(1)
		}
		chatlog.NewRecorder(database).Attach(bus)
		slog.Info("event archive enabled")
	} else {
		slog.Info("DB_DSN not set; event archive disabled")
	}

	// Command registry
	reg := registry.New()
	registry.RegisterBuiltins(reg)

	// Connection factory owns the reconnect policy; a failed initial
	// connection cancels the run context through stop.
	factory := comm.NewFactory(cfg, bus, reg, stop)
	dialer := comm.NewDialer(ctx, factory, cfg.Server, cdc)
	dialer.Connect()

	// HTTP surface
	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.NewMux(factory),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		slog.Info("http server listening", slog.String("addr", cfg.HTTPAddr))
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("http server failed", slog.Any("err", err))
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http shutdown failed", slog.Any("err", err))
	}
}
