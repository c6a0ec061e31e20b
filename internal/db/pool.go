package db

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/evalIA/property-import-service/internal/config"
)

// ErrNoDatabase is returned by Init when no database is configured
var ErrNoDatabase = errors.New("no database configuration")

// Pool is the global database connection pool
var Pool *pgxpool.Pool

//go:embed schema.sql
var schemaSQL string

// Init initializes the database connection pool
func Init(ctx context.Context, cfg config.DatabaseConfig) error {
	databaseURL := cfg.DSN()
	if databaseURL == "" {
		// No database configured - the in-memory property store is used instead
		return ErrNoDatabase
	}

	poolCfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return fmt.Errorf("failed to parse database URL: %w", err)
	}

	// Pool sizing; max_conns comes from config
	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = 2
	if poolCfg.MinConns > poolCfg.MaxConns {
		poolCfg.MinConns = poolCfg.MaxConns
	}
	poolCfg.MaxConnLifetime = 1 * time.Hour
	poolCfg.MaxConnIdleTime = 30 * time.Minute
	poolCfg.HealthCheckPeriod = 1 * time.Minute

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	Pool = pool
	slog.Info("db.pool.ready", "max_conns", poolCfg.MaxConns)
	return nil
}

// Migrate creates the properties table if it does not exist
func Migrate(ctx context.Context) error {
	if Pool == nil {
		return ErrNoDatabase
	}
	if _, err := Pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	slog.Info("db.migrate.ok")
	return nil
}

// Close closes the database connection pool
func Close() {
	if Pool != nil {
		Pool.Close()
		slog.Info("db.pool.closed")
	}
}

// GetPool returns the current connection pool
func GetPool() *pgxpool.Pool {
	return Pool
}
