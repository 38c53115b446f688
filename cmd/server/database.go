package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver

	"github.com/phrazzld/taskgate/internal/config"
	"github.com/phrazzld/taskgate/internal/platform/postgres"
	"github.com/phrazzld/taskgate/internal/redact"
)

// needsDatabase reports whether either half of the broker lives in postgres.
func needsDatabase(cfg *config.Config) bool {
	return cfg.Broker.URL == config.BackendPostgres ||
		cfg.Broker.ResultBackendKind() == config.BackendPostgres
}

// setupAppDatabase establishes a connection to the database and configures connection pools.
// Returns the database connection if successful, or an error if the connection fails.
func setupAppDatabase(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*sql.DB, error) {
	dsn := cfg.Database.DSN()
	if dsn == "" {
		return nil, fmt.Errorf("database.url or database.host must be set")
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	maxOpen := cfg.Database.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = 10
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxOpen / 2)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("Database connection established", "url", redact.URL(dsn))
	return db, nil
}

// openDatabase connects when cfg needs postgres and applies migrations when
// auto_migrate is set. It returns nil when no postgres backend is in use.
func openDatabase(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*sql.DB, error) {
	if !needsDatabase(cfg) {
		return nil, nil
	}

	db, err := setupAppDatabase(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	if cfg.Database.AutoMigrate {
		if err := postgres.Migrate(ctx, db, postgres.MigrateUp, logger); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return db, nil
}
