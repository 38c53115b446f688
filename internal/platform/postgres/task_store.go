package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/taskgate/internal/platform/logger"
	"github.com/phrazzld/taskgate/internal/store"
	"github.com/phrazzld/taskgate/internal/task"
)

const taskColumns = `id, handler, args, kwargs, state, result, error_message,
	created_at, updated_at, started_at, completed_at`

// DefaultPollInterval is how often an idle Dequeue looks for new rows.
const DefaultPollInterval = 500 * time.Millisecond

// TaskStore implements both task.TaskStore and task.Queue on the tasks
// table. Gateways and workers in separate processes share it.
type TaskStore struct {
	db           *sql.DB
	pollInterval time.Duration
	logger       *slog.Logger

	done      chan struct{}
	closeOnce sync.Once
}

var (
	_ task.TaskStore = (*TaskStore)(nil)
	_ task.Queue     = (*TaskStore)(nil)
)

// NewTaskStore creates a TaskStore. The caller owns db.
func NewTaskStore(db *sql.DB, pollInterval time.Duration, logger *slog.Logger) *TaskStore {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	return &TaskStore{
		db:           db,
		pollInterval: pollInterval,
		logger:       logger.With("component", "postgres_task_store"),
		done:         make(chan struct{}),
	}
}

// SaveTask persists a newly submitted task. The row is not deliverable to
// workers until Enqueue marks it.
func (s *TaskStore) SaveTask(ctx context.Context, t *task.Task) error {
	args, err := json.Marshal(t.Args)
	if err != nil {
		return fmt.Errorf("failed to encode task args: %w", err)
	}
	var kwargs any
	if t.Kwargs != nil {
		b, err := json.Marshal(t.Kwargs)
		if err != nil {
			return fmt.Errorf("failed to encode task kwargs: %w", err)
		}
		kwargs = b
	}

	query := `
		INSERT INTO tasks (id, handler, args, kwargs, state, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err = s.db.ExecContext(ctx, query,
		t.ID,
		t.Handler,
		args,
		kwargs,
		string(t.State),
		t.CreatedAt,
		t.UpdatedAt,
	)
	if err != nil {
		s.log(ctx).Error("failed to save task",
			"task_id", t.ID,
			"handler", t.Handler,
			"error", err)
		return fmt.Errorf("failed to save task: %w", mapTaskError(err))
	}

	return nil
}

// GetTask returns the stored snapshot of a task.
func (s *TaskStore) GetTask(ctx context.Context, taskID uuid.UUID) (*task.Task, error) {
	t, err := getTask(ctx, s.db, taskID, false)
	if err != nil {
		return nil, mapTaskError(err)
	}
	return t, nil
}

// UpdateTaskState applies a transition under a row lock, so concurrent
// writers cannot both move a task out of the same state.
func (s *TaskStore) UpdateTaskState(
	ctx context.Context,
	taskID uuid.UUID,
	state task.State,
	result json.RawMessage,
	errMsg string,
) error {
	err := store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		current, err := getTask(ctx, tx, taskID, true)
		if err != nil {
			return mapTaskError(err)
		}

		if err := current.Transition(state, result, errMsg, time.Now()); err != nil {
			return err
		}

		var resultArg any
		if current.Result != nil {
			resultArg = []byte(current.Result)
		}
		var errArg any
		if current.Error != "" {
			errArg = current.Error
		}

		query := `
			UPDATE tasks
			SET state = $2, result = $3, error_message = $4,
				updated_at = $5, started_at = $6, completed_at = $7
			WHERE id = $1
		`
		res, err := tx.ExecContext(ctx, query,
			taskID,
			string(current.State),
			resultArg,
			errArg,
			current.UpdatedAt,
			current.StartedAt,
			current.CompletedAt,
		)
		if err != nil {
			return MapError(err)
		}
		return mapTaskError(CheckRowsAffected(res, "task"))
	})
	if err != nil && !errors.Is(err, task.ErrInvalidTransition) {
		s.log(ctx).Error("failed to update task state",
			"task_id", taskID,
			"state", state,
			"error", err)
	}
	return err
}

// DeleteTask removes a task row. Deleting an unknown task is not an error.
func (s *TaskStore) DeleteTask(ctx context.Context, taskID uuid.UUID) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1`, taskID); err != nil {
		return fmt.Errorf("failed to delete task: %w", MapError(err))
	}
	return nil
}

// GetPendingTasks retrieves all tasks in PENDING state
func (s *TaskStore) GetPendingTasks(ctx context.Context) ([]*task.Task, error) {
	return s.getTasksByState(ctx, task.StatePending, 0)
}

// GetStartedTasks retrieves STARTED tasks, optionally only those last
// updated more than olderThan ago.
func (s *TaskStore) GetStartedTasks(ctx context.Context, olderThan time.Duration) ([]*task.Task, error) {
	return s.getTasksByState(ctx, task.StateStarted, olderThan)
}

func (s *TaskStore) getTasksByState(ctx context.Context, state task.State, olderThan time.Duration) ([]*task.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE state = $1`
	args := []any{string(state)}
	if olderThan > 0 {
		query += ` AND updated_at < $2`
		args = append(args, time.Now().UTC().Add(-olderThan))
	}
	query += ` ORDER BY created_at ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		s.log(ctx).Error("failed to query tasks by state",
			"state", state,
			"error", err)
		return nil, fmt.Errorf("failed to query tasks by state: %w", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	var tasks []*task.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task row: %w", err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating task rows: %w", err)
	}

	return tasks, nil
}

// Enqueue makes a PENDING task deliverable. Enqueueing a task again, as
// recovery does, resets any earlier claim.
func (s *TaskStore) Enqueue(ctx context.Context, t *task.Task) error {
	if s.isClosed() {
		return task.ErrQueueClosed
	}

	query := `
		UPDATE tasks
		SET enqueued_at = $2, dequeued_at = NULL
		WHERE id = $1 AND state = 'PENDING'
	`
	res, err := s.db.ExecContext(ctx, query, t.ID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to enqueue task: %w", MapError(err))
	}
	if err := CheckRowsAffected(res, "pending task"); err != nil {
		return mapTaskError(err)
	}
	return nil
}

// Dequeue claims the oldest deliverable task, polling until one appears,
// ctx is done, or the queue is closed.
func (s *TaskStore) Dequeue(ctx context.Context) (*task.Task, error) {
	for {
		if s.isClosed() {
			return nil, task.ErrQueueClosed
		}

		t, err := s.claim(ctx)
		if err == nil {
			return t, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("failed to claim task: %w", MapError(err))
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-s.done:
			return nil, task.ErrQueueClosed
		case <-time.After(s.pollInterval):
		}
	}
}

// claim marks one deliverable row as taken. SKIP LOCKED lets concurrent
// workers claim different rows instead of blocking on each other.
func (s *TaskStore) claim(ctx context.Context) (*task.Task, error) {
	query := `
		UPDATE tasks
		SET dequeued_at = $1
		WHERE id = (
			SELECT id FROM tasks
			WHERE state = 'PENDING' AND enqueued_at IS NOT NULL AND dequeued_at IS NULL
			ORDER BY enqueued_at
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + taskColumns

	return scanTask(s.db.QueryRowContext(ctx, query, time.Now().UTC()))
}

// Close stops Dequeue and Enqueue. It does not close the database.
func (s *TaskStore) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.logger.Info("postgres task queue closed")
	})
}

func (s *TaskStore) isClosed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

func (s *TaskStore) log(ctx context.Context) *slog.Logger {
	return logger.FromContextOrDefault(ctx, s.logger)
}

func getTask(ctx context.Context, q store.DBTX, taskID uuid.UUID, forUpdate bool) (*task.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	return scanTask(q.QueryRowContext(ctx, query, taskID))
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*task.Task, error) {
	var (
		t                      task.Task
		state                  string
		args, kwargs, result   []byte
		errMsg                 sql.NullString
		startedAt, completedAt sql.NullTime
	)

	err := row.Scan(
		&t.ID,
		&t.Handler,
		&args,
		&kwargs,
		&state,
		&result,
		&errMsg,
		&t.CreatedAt,
		&t.UpdatedAt,
		&startedAt,
		&completedAt,
	)
	if err != nil {
		return nil, err
	}

	t.State = task.State(state)
	if !t.State.Valid() {
		return nil, fmt.Errorf("task %s has unknown state %q", t.ID, state)
	}

	t.Args = []any{}
	if len(args) > 0 {
		if err := json.Unmarshal(args, &t.Args); err != nil {
			return nil, fmt.Errorf("failed to decode args of task %s: %w", t.ID, err)
		}
	}
	if len(kwargs) > 0 {
		if err := json.Unmarshal(kwargs, &t.Kwargs); err != nil {
			return nil, fmt.Errorf("failed to decode kwargs of task %s: %w", t.ID, err)
		}
	}
	if len(result) > 0 {
		t.Result = json.RawMessage(result)
	}
	t.Error = errMsg.String
	if startedAt.Valid {
		v := startedAt.Time
		t.StartedAt = &v
	}
	if completedAt.Valid {
		v := completedAt.Time
		t.CompletedAt = &v
	}

	return &t, nil
}
