package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/bpsr-tools/crowddata/pkg/adapters"
	"github.com/bpsr-tools/crowddata/pkg/api"
	"github.com/bpsr-tools/crowddata/pkg/config"
	"github.com/bpsr-tools/crowddata/pkg/ingest"
	"github.com/bpsr-tools/crowddata/pkg/observability"
	"github.com/bpsr-tools/crowddata/pkg/ratelimit"
	"github.com/bpsr-tools/crowddata/pkg/store"
)

func runServer(args []string, stderr io.Writer) int {
	cmd := flag.NewFlagSet("server", flag.ContinueOnError)
	cmd.SetOutput(stderr)
	configPath := cmd.String("config", "", "YAML config profile overlaying the environment")
	if err := cmd.Parse(args); err != nil {
		return 2
	}

	var cfg *config.Config
	if *configPath != "" {
		loaded, err := config.LoadFile(*configPath)
		if err != nil {
			fmt.Fprintf(stderr, "config: %v\n", err)
			return 1
		}
		cfg = loaded
	} else {
		cfg = config.Load()
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, reports, err := openStore(ctx, cfg)
	if err != nil {
		logger.Error("store setup failed", "error", err)
		return 1
	}
	defer func() { _ = db.Close() }()

	telemetry, err := observability.New(ctx, &observability.Config{
		ServiceName:    "crowddata",
		ServiceVersion: "0.1.0",
		Environment:    "production",
		OTLPEndpoint:   cfg.OTLPEndpoint,
		SampleRate:     1.0,
		BatchTimeout:   5 * time.Second,
		Enabled:        cfg.TelemetryEnabled && cfg.OTLPEndpoint != "",
		Insecure:       true,
	})
	if err != nil {
		logger.Error("observability setup failed", "error", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = telemetry.Shutdown(shutdownCtx)
	}()

	if cfg.APIKey == "" {
		logger.Warn("DEFAULT_API_KEY not set, all ingest requests will be rejected")
	}

	limiter := ratelimit.New(cfg.RateLimitPerMinute)
	pipeline := ingest.New(
		adapters.NewRegistry(),
		ingest.SharedSecret(cfg.APIKey),
		limiter,
		reports,
		telemetry,
		ingest.Options{DisableRateLimit: cfg.DisableRateLimit},
	)

	srv := api.NewServer(pipeline, reports, cfg.RateLimitPerMinute)
	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Routes(cfg.AllowedOrigins),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "port", cfg.Port,
			"rate_limit_per_minute", cfg.RateLimitPerMinute,
			"rate_limit_disabled", cfg.DisableRateLimit)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown failed", "error", err)
			return 1
		}
		return 0
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
			return 1
		}
		return 0
	}
}

// openStore connects to Postgres when DATABASE_URL is set, otherwise falls
// back to a local SQLite file.
func openStore(ctx context.Context, cfg *config.Config) (*sql.DB, store.ReportStore, error) {
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("postgres ping: %w", err)
		}
		ps := store.NewPostgresReportStore(db)
		if err := ps.Init(ctx); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("init postgres store: %w", err)
		}
		slog.Info("postgres connected")
		return db, ps, nil
	}

	if dir := filepath.Dir(cfg.SQLitePath); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, nil, fmt.Errorf("create data dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", cfg.SQLitePath)
	if err != nil {
		return nil, nil, fmt.Errorf("open sqlite: %w", err)
	}
	ss, err := store.NewSQLiteReportStore(db)
	if err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("init sqlite store: %w", err)
	}
	slog.Info("sqlite ready", "path", cfg.SQLitePath)
	return db, ss, nil
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
