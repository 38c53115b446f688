package task

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/phrazzld/taskgate/internal/events"
)

// TaskRunnerConfig holds configuration for the task runner
type TaskRunnerConfig struct {
	// WorkerCount determines how many concurrent workers process tasks
	WorkerCount int

	// TaskTimeout bounds a single handler invocation. Zero means no limit.
	TaskTimeout time.Duration

	// StuckTaskAge is how long a task may stay STARTED before the reaper
	// marks it FAILURE. Zero disables the reaper.
	StuckTaskAge time.Duration

	// StuckTaskCheckInterval defines how often the reaper runs.
	// If zero, defaults to 5 minutes
	StuckTaskCheckInterval time.Duration
}

// DefaultTaskRunnerConfig returns a TaskRunnerConfig with reasonable defaults
func DefaultTaskRunnerConfig() TaskRunnerConfig {
	return TaskRunnerConfig{
		WorkerCount:            2,
		StuckTaskCheckInterval: 5 * time.Minute,
	}
}

// TaskRunner executes queued tasks: it dequeues, moves each task to
// STARTED, invokes the registered handler, and publishes SUCCESS or
// FAILURE to the store. Nothing is sent back to the gateway.
type TaskRunner struct {
	store    TaskStore
	queue    Queue
	registry *Registry
	emitter  events.EventEmitter
	config   TaskRunnerConfig
	logger   *slog.Logger

	pool       *WorkerPool
	wg         sync.WaitGroup
	errHandler func(task *Task, err error)
}

// NewTaskRunner creates a new TaskRunner. A nil emitter discards events.
func NewTaskRunner(
	store TaskStore,
	queue Queue,
	registry *Registry,
	emitter events.EventEmitter,
	config TaskRunnerConfig,
	logger *slog.Logger,
) *TaskRunner {
	if config.StuckTaskCheckInterval == 0 {
		config.StuckTaskCheckInterval = 5 * time.Minute
	}
	if emitter == nil {
		emitter = events.NopEmitter{}
	}
	logger = logger.With("component", "task_runner")

	r := &TaskRunner{
		store:    store,
		queue:    queue,
		registry: registry,
		emitter:  emitter,
		config:   config,
		logger:   logger,
		errHandler: func(task *Task, err error) {
			logger.Error("task execution failed",
				"task_id", task.ID,
				"handler", task.Handler,
				"error", err)
		},
	}
	r.pool = NewWorkerPool(queue, r.processTask, WorkerPoolConfig{
		WorkerCount: config.WorkerCount,
	}, logger)

	return r
}

// SetErrorHandler allows setting a custom error handler function. It is
// called after a failed task has been recorded as FAILURE.
func (r *TaskRunner) SetErrorHandler(handler func(task *Task, err error)) {
	r.errHandler = handler
}

// Start requeues unfinished work and starts the workers.
func (r *TaskRunner) Start() error {
	if err := r.Recover(context.Background()); err != nil {
		return fmt.Errorf("failed to recover tasks: %w", err)
	}

	r.pool.Start()

	if r.config.StuckTaskAge > 0 {
		r.wg.Add(1)
		go r.stuckTaskMonitor()
	}

	return nil
}

// Stop gracefully shuts down the workers and the reaper.
func (r *TaskRunner) Stop() {
	r.pool.Stop()
	r.wg.Wait()
}

// Recover requeues tasks that a persistent store still holds as PENDING,
// e.g. submissions accepted before a restart. STARTED tasks are left
// alone; re-running them would execute a task twice.
func (r *TaskRunner) Recover(ctx context.Context) error {
	pendingTasks, err := r.store.GetPendingTasks(ctx)
	if err != nil {
		return fmt.Errorf("failed to get pending tasks: %w", err)
	}

	startedTasks, err := r.store.GetStartedTasks(ctx, 0)
	if err != nil {
		return fmt.Errorf("failed to get started tasks: %w", err)
	}

	r.logger.Info("recovering unfinished tasks",
		"pending_count", len(pendingTasks),
		"orphaned_started_count", len(startedTasks))

	for _, t := range pendingTasks {
		if err := r.queue.Enqueue(ctx, t); err != nil {
			r.logger.Error("failed to requeue pending task",
				"task_id", t.ID,
				"handler", t.Handler,
				"error", err)
		}
	}

	return nil
}

// processTask handles execution of a single task
func (r *TaskRunner) processTask(ctx context.Context, t *Task, workerID int) {
	// State updates must land even while the pool is shutting down
	storeCtx := context.WithoutCancel(ctx)
	logger := r.logger.With(
		"task_id", t.ID,
		"handler", t.Handler,
		"worker_id", workerID,
	)

	if err := r.store.UpdateTaskState(storeCtx, t.ID, StateStarted, nil, ""); err != nil {
		if errors.Is(err, ErrInvalidTransition) || errors.Is(err, ErrTaskNotFound) {
			logger.Warn("skipping task that is no longer pending", "error", err)
			return
		}
		logger.Error("failed to update task state to started", "error", err)
		r.requeue(storeCtx, t, logger)
		return
	}

	startedAt := time.Now()
	r.emit(storeCtx, t, StatePending, StateStarted, startedAt.Sub(t.CreatedAt))
	logger.Info("processing task")

	result, err := r.execute(ctx, t)
	elapsed := time.Since(startedAt)

	if err != nil {
		logger.Error("task execution failed", "error", err, "duration_ms", elapsed.Milliseconds())
		if updateErr := r.store.UpdateTaskState(storeCtx, t.ID, StateFailure, nil, err.Error()); updateErr != nil {
			logger.Error("failed to update task state to failure", "error", updateErr)
			return
		}
		r.emit(storeCtx, t, StateStarted, StateFailure, elapsed)
		r.errHandler(t, err)
		return
	}

	if updateErr := r.store.UpdateTaskState(storeCtx, t.ID, StateSuccess, result, ""); updateErr != nil {
		logger.Error("failed to update task state to success", "error", updateErr)
		if errors.Is(updateErr, ErrInvalidTransition) || errors.Is(updateErr, ErrTaskNotFound) {
			return
		}
		// the result could not be stored, so pollers get a terminal FAILURE instead
		msg := "failed to store result: " + updateErr.Error()
		if err := r.store.UpdateTaskState(storeCtx, t.ID, StateFailure, nil, msg); err != nil {
			logger.Error("failed to update task state to failure", "error", err)
			return
		}
		r.emit(storeCtx, t, StateStarted, StateFailure, elapsed)
		return
	}
	r.emit(storeCtx, t, StateStarted, StateSuccess, elapsed)
	logger.Info("task completed successfully", "duration_ms", elapsed.Milliseconds())
}

// requeue hands a task that never started back to the queue, clearing a
// claim that would otherwise hide it until the next Recover.
func (r *TaskRunner) requeue(ctx context.Context, t *Task, logger *slog.Logger) {
	if r.pool.Context().Err() != nil {
		return
	}
	if err := r.queue.Enqueue(ctx, t); err != nil {
		logger.Error("failed to requeue task", "error", err)
		return
	}
	logger.Warn("task requeued after failed start")
}

// execute runs the handler and encodes its result. Errors and panics
// come back as *HandlerFailure.
func (r *TaskRunner) execute(ctx context.Context, t *Task) (result json.RawMessage, err error) {
	fn, ok := r.registry.Lookup(t.Handler)
	if !ok {
		return nil, &HandlerFailure{Handler: t.Handler, Err: ErrUnknownHandler}
	}

	if r.config.TaskTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.config.TaskTimeout)
		defer cancel()
	}

	defer func() {
		if p := recover(); p != nil {
			result = nil
			err = &HandlerFailure{Handler: t.Handler, Err: fmt.Errorf("%v", p), Panicked: true}
		}
	}()

	value, runErr := fn(ctx, ArgsFor(t))
	if runErr != nil {
		return nil, &HandlerFailure{Handler: t.Handler, Err: runErr}
	}

	encoded, encErr := json.Marshal(value)
	if encErr != nil {
		return nil, &HandlerFailure{Handler: t.Handler, Err: fmt.Errorf("result is not JSON-encodable: %w", encErr)}
	}

	return encoded, nil
}

// stuckTaskMonitor periodically fails tasks that have been STARTED for
// longer than StuckTaskAge, typically because their worker crashed.
func (r *TaskRunner) stuckTaskMonitor() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.config.StuckTaskCheckInterval)
	defer ticker.Stop()

	ctx := r.pool.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.reapStuckTasks(context.WithoutCancel(ctx))
		}
	}
}

func (r *TaskRunner) reapStuckTasks(ctx context.Context) {
	stuckTasks, err := r.store.GetStartedTasks(ctx, r.config.StuckTaskAge)
	if err != nil {
		r.logger.Error("failed to check for stuck tasks", "error", err)
		return
	}
	if len(stuckTasks) == 0 {
		return
	}

	r.logger.Info("found stuck tasks", "count", len(stuckTasks))

	msg := fmt.Sprintf("task abandoned: no result after %s in STARTED state", r.config.StuckTaskAge)
	for _, t := range stuckTasks {
		if err := r.store.UpdateTaskState(ctx, t.ID, StateFailure, nil, msg); err != nil {
			r.logger.Error("failed to fail stuck task",
				"task_id", t.ID,
				"handler", t.Handler,
				"error", err)
			continue
		}
		var age time.Duration
		if t.StartedAt != nil {
			age = time.Since(*t.StartedAt)
		}
		r.emit(ctx, t, StateStarted, StateFailure, age)
	}
}

func (r *TaskRunner) emit(ctx context.Context, t *Task, from, to State, d time.Duration) {
	event := events.NewTaskStateEvent(t.ID, t.Handler, string(from), string(to), d)
	if err := r.emitter.EmitEvent(ctx, event); err != nil {
		r.logger.Warn("failed to emit task event", "task_id", t.ID, "error", err)
	}
}
