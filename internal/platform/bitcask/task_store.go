// Package bitcask provides a durable single-node task result store on an
// embedded prologic/bitcask key-value database.
package bitcask

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/taskgate/internal/task"
	"github.com/prologic/bitcask"
)

var keyPrefix = []byte("task/")

// TaskStore persists tasks as JSON values keyed by task id. Records survive
// restarts, which lets the runner requeue PENDING work on start.
type TaskStore struct {
	// mu serializes writes so transitions are read-modify-write atomic
	mu     sync.Mutex
	db     *bitcask.Bitcask
	logger *slog.Logger
}

var _ task.TaskStore = (*TaskStore)(nil)

// Open opens or creates the database directory at path.
func Open(path string, logger *slog.Logger) (*TaskStore, error) {
	db, err := bitcask.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open bitcask at %s: %w", path, err)
	}
	return &TaskStore{
		db:     db,
		logger: logger.With("component", "bitcask_task_store", "path", path),
	}, nil
}

// Close flushes and closes the database.
func (s *TaskStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

func key(id uuid.UUID) []byte {
	return append(append([]byte{}, keyPrefix...), id.String()...)
}

func (s *TaskStore) SaveTask(ctx context.Context, t *task.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db.Has(key(t.ID)) {
		return fmt.Errorf("%w: %s", task.ErrDuplicateTask, t.ID)
	}
	return s.put(t)
}

func (s *TaskStore) GetTask(ctx context.Context, taskID uuid.UUID) (*task.Task, error) {
	return s.get(taskID)
}

func (s *TaskStore) UpdateTaskState(
	ctx context.Context,
	taskID uuid.UUID,
	state task.State,
	result json.RawMessage,
	errMsg string,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.get(taskID)
	if err != nil {
		return err
	}
	if err := t.Transition(state, result, errMsg, time.Now()); err != nil {
		return err
	}
	return s.put(t)
}

func (s *TaskStore) DeleteTask(ctx context.Context, taskID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.db.Delete(key(taskID)); err != nil && !errors.Is(err, bitcask.ErrKeyNotFound) {
		return fmt.Errorf("failed to delete task %s: %w", taskID, err)
	}
	return nil
}

func (s *TaskStore) GetPendingTasks(ctx context.Context) ([]*task.Task, error) {
	return s.byState(task.StatePending, 0)
}

func (s *TaskStore) GetStartedTasks(ctx context.Context, olderThan time.Duration) ([]*task.Task, error) {
	return s.byState(task.StateStarted, olderThan)
}

func (s *TaskStore) byState(state task.State, olderThan time.Duration) ([]*task.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Fold holds the database read lock, so collect keys before reading values
	var keys [][]byte
	err := s.db.Fold(func(k []byte) error {
		if bytes.HasPrefix(k, keyPrefix) {
			keys = append(keys, append([]byte{}, k...))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan tasks: %w", err)
	}

	cutoff := time.Now().Add(-olderThan)
	var out []*task.Task
	for _, k := range keys {
		value, err := s.db.Get(k)
		if errors.Is(err, bitcask.ErrKeyNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", k, err)
		}

		var t task.Task
		if err := json.Unmarshal(value, &t); err != nil {
			s.logger.Warn("skipping undecodable task record", "key", string(k), "error", err)
			continue
		}
		if t.State != state {
			continue
		}
		if olderThan > 0 && !t.UpdatedAt.Before(cutoff) {
			continue
		}
		out = append(out, &t)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *TaskStore) get(taskID uuid.UUID) (*task.Task, error) {
	value, err := s.db.Get(key(taskID))
	if errors.Is(err, bitcask.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s", task.ErrTaskNotFound, taskID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read task %s: %w", taskID, err)
	}

	var t task.Task
	if err := json.Unmarshal(value, &t); err != nil {
		return nil, fmt.Errorf("failed to decode task %s: %w", taskID, err)
	}
	return &t, nil
}

func (s *TaskStore) put(t *task.Task) error {
	value, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("failed to encode task %s: %w", t.ID, err)
	}
	if err := s.db.Put(key(t.ID), value); err != nil {
		return fmt.Errorf("failed to write task %s: %w", t.ID, err)
	}
	return nil
}
