package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/phrazzld/taskgate/internal/config"
	"github.com/phrazzld/taskgate/internal/events"
	"github.com/phrazzld/taskgate/internal/handlers"
	"github.com/phrazzld/taskgate/internal/platform/bitcask"
	"github.com/phrazzld/taskgate/internal/platform/cache"
	"github.com/phrazzld/taskgate/internal/platform/catalog"
	"github.com/phrazzld/taskgate/internal/platform/gemini"
	"github.com/phrazzld/taskgate/internal/platform/metrics"
	"github.com/phrazzld/taskgate/internal/platform/postgres"
	"github.com/phrazzld/taskgate/internal/redact"
	"github.com/phrazzld/taskgate/internal/task"
	"github.com/phrazzld/taskgate/internal/translation"
)

// application holds all the shared application dependencies to simplify management
// and ensure proper cleanup on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger

	// db is nil unless a postgres backend is configured
	db *sql.DB

	taskStore task.TaskStore
	queue     task.Queue
	registry  *task.Registry

	emitter *events.InMemoryEventEmitter
	metrics *metrics.Recorder

	broker *task.Broker

	// runner is nil when this process does not execute tasks
	runner *task.TaskRunner

	closers []func() error
}

// newApplication wires stores, queue, handlers and broker from cfg. A
// runner is built when withWorkers is set; it is started by start.
func newApplication(
	ctx context.Context,
	cfg *config.Config,
	logger *slog.Logger,
	db *sql.DB,
	withWorkers bool,
) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
		db:     db,
	}

	if err := app.setupStores(); err != nil {
		app.cleanup()
		return nil, err
	}

	translator, err := newTranslator(ctx, cfg.Translation, logger)
	if err != nil {
		app.cleanup()
		return nil, fmt.Errorf("failed to initialize translator: %w", err)
	}

	app.registry = task.NewRegistry()
	if err := handlers.Register(app.registry, handlers.Deps{
		Translator:     translator,
		SourceLanguage: cfg.Translation.SourceLanguage,
		SquareDelay:    cfg.Handlers.SquareDelay(),
		Logger:         logger,
	}); err != nil {
		app.cleanup()
		return nil, fmt.Errorf("failed to register handlers: %w", err)
	}

	app.metrics = metrics.NewRecorder(nil)
	app.emitter = events.NewInMemoryEventEmitter(logger)
	app.emitter.RegisterHandler(app.metrics)

	app.broker, err = task.NewBroker(app.taskStore, app.queue, app.registry, app.emitter, logger)
	if err != nil {
		app.cleanup()
		return nil, fmt.Errorf("failed to create broker: %w", err)
	}

	if withWorkers {
		app.runner = task.NewTaskRunner(app.taskStore, app.queue, app.registry, app.emitter, task.TaskRunnerConfig{
			WorkerCount:            cfg.Task.WorkerCount,
			TaskTimeout:            cfg.Task.Timeout(),
			StuckTaskAge:           cfg.Task.StuckTaskAge(),
			StuckTaskCheckInterval: cfg.Task.StuckTaskCheckInterval(),
		}, logger)
	}

	logger.Info("application initialized",
		"broker", cfg.Broker.URL,
		"result_backend", redact.URL(cfg.Broker.ResultBackend),
		"handlers", app.registry.Names(),
		"workers", withWorkers)

	return app, nil
}

// setupStores selects the result store and the queue.
func (app *application) setupStores() error {
	cfg := app.config

	var pgStore *postgres.TaskStore
	postgresStore := func() (*postgres.TaskStore, error) {
		if pgStore != nil {
			return pgStore, nil
		}
		if app.db == nil {
			return nil, errors.New("postgres backend selected but no database connection is configured")
		}
		pgStore = postgres.NewTaskStore(app.db, cfg.Task.PollInterval(), app.logger)
		app.closers = append(app.closers, func() error { pgStore.Close(); return nil })
		return pgStore, nil
	}

	switch cfg.Broker.ResultBackendKind() {
	case config.BackendMemory:
		app.taskStore = cache.NewTaskStore(cfg.Broker.ResultTTL(), app.logger)
	case config.BackendBitcask:
		s, err := bitcask.Open(cfg.Broker.BitcaskPath(), app.logger)
		if err != nil {
			return fmt.Errorf("failed to open result backend: %w", err)
		}
		app.closers = append(app.closers, s.Close)
		app.taskStore = s
	case config.BackendPostgres:
		s, err := postgresStore()
		if err != nil {
			return err
		}
		app.taskStore = s
	default:
		return fmt.Errorf("unknown result backend %q", cfg.Broker.ResultBackend)
	}

	switch cfg.Broker.URL {
	case config.BackendMemory:
		q := task.NewTaskQueue(cfg.Task.QueueSize, app.logger)
		app.closers = append(app.closers, func() error { q.Close(); return nil })
		app.queue = q
	case config.BackendPostgres:
		s, err := postgresStore()
		if err != nil {
			return err
		}
		app.queue = s
	default:
		return fmt.Errorf("unknown broker %q", cfg.Broker.URL)
	}

	return nil
}

// newTranslator builds the translator named by cfg.Provider.
func newTranslator(ctx context.Context, cfg config.TranslationConfig, logger *slog.Logger) (translation.Translator, error) {
	switch cfg.Provider {
	case "gemini":
		return gemini.NewTranslator(ctx, logger, cfg)
	case "catalog", "":
		return catalog.New(logger)
	default:
		return nil, fmt.Errorf("%w: unknown translation provider %q", translation.ErrInvalidConfig, cfg.Provider)
	}
}

// start launches the runner, if any. Recovery of PENDING tasks happens here.
func (app *application) start() error {
	if app.runner == nil {
		return nil
	}
	if err := app.runner.Start(); err != nil {
		return fmt.Errorf("failed to start task runner: %w", err)
	}
	return nil
}

// cleanup handles graceful shutdown of application resources. Workers stop
// before the queue and stores close underneath them.
func (app *application) cleanup() {
	if app.runner != nil {
		app.runner.Stop()
	}

	for i := len(app.closers) - 1; i >= 0; i-- {
		if err := app.closers[i](); err != nil {
			app.logger.Error("error releasing resource", "error", err)
		}
	}
	app.closers = nil

	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("Error closing database connection", "error", err)
		}
	}

	app.logger.Info("Application shutdown completed")
}
