// main is the entry point of the students API server.
//
// STARTUP SEQUENCE:
//  1. Load configuration (YAML file, .env and environment overrides)
//  2. Initialise the logger
//  3. Open the record store selected by storage.driver
//  4. Set up the delete confirmation token store (Redis or memory)
//  5. Build the gin router and start the HTTP server in a goroutine
//  6. Block until SIGINT / SIGTERM, then shut down gracefully
//
// RUNNING THE SERVER:
//
//	go run ./cmd/students-api --config=config/local.yaml
//
// or
//
//	CONFIG_PATH=config/local.yaml go run ./cmd/students-api
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/gin-gonic/gin"

	"github.com/aanand-mishra/students-api/internal/config"
	"github.com/aanand-mishra/students-api/internal/confirm"
	"github.com/aanand-mishra/students-api/internal/http/router"
	"github.com/aanand-mishra/students-api/internal/storage"
	"github.com/aanand-mishra/students-api/internal/storage/gormdb"
	"github.com/aanand-mishra/students-api/internal/storage/sqlite"
)

const version = "1.1.0"

func main() {
	// ── 1. Config ─────────────────────────────────────────────────────────
	cfg := config.MustLoad()

	// ── 2. Logger ─────────────────────────────────────────────────────────
	log := setupLogger(cfg.Env)
	slog.SetDefault(log)

	log.Info("starting students-api",
		slog.String("env", cfg.Env),
		slog.String("version", version),
	)

	// ── 3. Storage ────────────────────────────────────────────────────────
	// Everything past this point sees only the storage.Storage interface.
	store, err := openStorage(cfg)
	if err != nil {
		log.Error("failed to initialise storage", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer store.Close()

	log.Info("storage initialised", slog.String("driver", cfg.Storage.Driver))

	// ── 4. Confirmation tokens ────────────────────────────────────────────
	tokens := confirm.NewService(tokenStore(cfg, log), cfg.Confirmation.TTL)

	// ── 5. Router + server ────────────────────────────────────────────────
	if cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	server := &http.Server{
		Addr:         cfg.HTTPServer.Addr,
		Handler:      router.New(cfg, store, tokens),
		ReadTimeout:  cfg.HTTPServer.ReadTimeout,
		WriteTimeout: cfg.HTTPServer.WriteTimeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	// ListenAndServe blocks, so it runs in its own goroutine and main waits
	// for a signal below.
	go func() {
		log.Info("server started", slog.String("address", cfg.HTTPServer.Addr))

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server encountered an error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	// ── 6. Graceful shutdown ──────────────────────────────────────────────
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)
	<-done

	log.Info("shutdown signal received, stopping server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTPServer.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error("failed to shutdown server gracefully", slog.String("error", err.Error()))
		return
	}

	log.Info("server stopped gracefully")
}

// openStorage picks the backend named by storage.driver.
func openStorage(cfg *config.Config) (storage.Storage, error) {
	switch cfg.Storage.Driver {
	case config.DriverSQLite, config.DriverGormSQLite:
		if err := os.MkdirAll(filepath.Dir(cfg.Storage.Path), 0o755); err != nil {
			return nil, fmt.Errorf("creating storage directory: %w", err)
		}
	}

	if cfg.Storage.Driver == config.DriverSQLite {
		return sqlite.New(cfg)
	}
	return gormdb.New(cfg)
}

// tokenStore returns a Redis store when redis.address is set and reachable,
// otherwise an in-process store.
func tokenStore(cfg *config.Config, log *slog.Logger) confirm.Store {
	if cfg.Redis.Addr == "" {
		return confirm.NewMemoryStore()
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTPServer.ReadTimeout)
	defer cancel()

	client, err := confirm.Connect(ctx, cfg.Redis)
	if err != nil {
		log.Warn("redis unavailable, keeping confirmation tokens in memory",
			slog.String("address", cfg.Redis.Addr),
			slog.String("error", err.Error()))
		return confirm.NewMemoryStore()
	}

	log.Info("confirmation tokens stored in redis", slog.String("address", cfg.Redis.Addr))
	return confirm.NewRedisStore(client)
}

// setupLogger returns a *slog.Logger for the given environment.
//
// dev: human-readable text at DEBUG. staging: JSON at DEBUG.
// prod: JSON at INFO, for log aggregators.
func setupLogger(env string) *slog.Logger {
	switch env {
	case "prod":
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	case "staging":
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	default:
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
}
