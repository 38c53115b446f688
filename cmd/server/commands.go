package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/phrazzld/taskgate/internal/config"
	"github.com/phrazzld/taskgate/internal/platform/logger"
	"github.com/phrazzld/taskgate/internal/platform/postgres"
)

var (
	errWorkersRequired  = errors.New("the memory broker needs embedded workers")
	errPostgresRequired = errors.New("standalone workers need the postgres broker")
)

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "taskgate",
		Short:         "HTTP front end for a background task queue",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a config file")

	root.AddCommand(
		newServeCmd(&configPath),
		newWorkerCmd(&configPath),
		newMigrateCmd(&configPath),
	)
	return root
}

// loadConfig reads configuration and builds the process logger.
func loadConfig(path string) (*config.Config, *slog.Logger, error) {
	var (
		cfg *config.Config
		err error
	)
	if path == "" {
		cfg, err = config.Load()
	} else {
		cfg, err = config.LoadFile(path)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	log, err := logger.Setup(cfg.Server)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to set up logger: %w", err)
	}
	return cfg, log, nil
}

func newServeCmd(configPath *string) *cobra.Command {
	var embeddedWorkers bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg, log, embeddedWorkers)
		},
	}
	cmd.Flags().BoolVar(&embeddedWorkers, "embedded-workers", true, "execute tasks in this process")
	return cmd
}

func runServe(ctx context.Context, cfg *config.Config, log *slog.Logger, embeddedWorkers bool) error {
	withWorkers := embeddedWorkers && cfg.Task.WorkerCount > 0
	if cfg.Broker.URL == config.BackendMemory && !withWorkers {
		return errWorkersRequired
	}

	db, err := openDatabase(ctx, cfg, log)
	if err != nil {
		return err
	}

	// newApplication owns db from here and closes it on failure
	app, err := newApplication(ctx, cfg, log, db, withWorkers)
	if err != nil {
		return err
	}
	defer app.cleanup()

	if err := app.start(); err != nil {
		return err
	}
	return app.startHTTPServer(ctx, app.setupRouter())
}

func newWorkerCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run task workers against the postgres queue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			return runWorker(cmd.Context(), cfg, log)
		},
	}
}

func runWorker(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	if cfg.Broker.URL != config.BackendPostgres {
		return errPostgresRequired
	}
	if cfg.Task.WorkerCount <= 0 {
		return fmt.Errorf("task.worker_count must be positive, got %d", cfg.Task.WorkerCount)
	}

	db, err := openDatabase(ctx, cfg, log)
	if err != nil {
		return err
	}

	app, err := newApplication(ctx, cfg, log, db, true)
	if err != nil {
		return err
	}
	defer app.cleanup()

	if err := app.start(); err != nil {
		return err
	}

	log.Info("worker running", "workers", cfg.Task.WorkerCount)
	<-ctx.Done()
	log.Info("worker stopping")
	return nil
}

func newMigrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:       "migrate [up|down|status]",
		Short:     "Manage the postgres task schema",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{postgres.MigrateUp, postgres.MigrateDown, postgres.MigrateStatus},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			db, err := setupAppDatabase(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			return postgres.Migrate(cmd.Context(), db, args[0], log)
		},
	}
}
