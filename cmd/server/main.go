package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/evalIA/property-import-service/api"
	"github.com/evalIA/property-import-service/internal/ai"
	"github.com/evalIA/property-import-service/internal/auth"
	"github.com/evalIA/property-import-service/internal/config"
	"github.com/evalIA/property-import-service/internal/db"
	"github.com/evalIA/property-import-service/internal/logger"
	"github.com/evalIA/property-import-service/internal/pdftext"
	"github.com/evalIA/property-import-service/internal/services"
	"github.com/evalIA/property-import-service/internal/storage"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(&logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})

	// Initialize JWT
	if err := auth.Init(cfg.Auth); err != nil {
		slog.Error("auth.init.failed", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Property store: Postgres when configured, in memory otherwise
	var store services.PropertyStore
	if err := db.Init(ctx, cfg.Database); err != nil {
		if !errors.Is(err, db.ErrNoDatabase) {
			slog.Warn("db.unavailable", "error", err)
		}
		slog.Info("db.fallback", "store", "memory")
		store = db.NewMemoryStore()
	} else {
		defer db.Close()
		if cfg.Database.Migrate {
			if err := db.Migrate(ctx); err != nil {
				slog.Error("db.migrate.failed", "error", err)
				os.Exit(1)
			}
		}
		store = db.NewPGStore(db.GetPool())
	}

	importer := services.NewImporter(
		pdftext.NewExtractor(cfg.Import.MaxPages),
		ai.NewClient(cfg.AI),
		store,
		services.NewSessionStore(cfg.Import.MaxSessions),
		cfg.Import.MinTextLength,
	)

	// Document archive is optional
	if err := storage.Init(cfg.Storage); err != nil {
		if !errors.Is(err, storage.ErrNotConfigured) {
			slog.Warn("storage.unavailable", "error", err)
		}
		slog.Info("storage.disabled", "reason", "documents will not be archived")
	} else {
		importer.WithArchive(storage.Archive{})
	}

	batches := services.NewBatchCoordinator(importer, cfg.Import.MaxBatchFiles)
	handler := api.NewHandler(cfg, importer, batches)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	slog.Info("server.start",
		"addr", addr,
		"version", api.Version,
		"default_provider", cfg.AI.DefaultProvider,
		"database", db.Pool != nil,
		"storage", storage.Enabled(),
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server.failed", "error", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		slog.Info("server.shutdown")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("server.shutdown.failed", "error", err)
		}
	}
}
