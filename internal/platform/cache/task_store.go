// Package cache provides an in-memory task result store with retention,
// backed by patrickmn/go-cache.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
	"github.com/phrazzld/taskgate/internal/task"
)

// TaskStore keeps task records in process memory. Records expire ttl after
// their last update, after which polls report the task as not found.
type TaskStore struct {
	// mu serializes read-modify-write updates; go-cache only locks single calls
	mu     sync.Mutex
	items  *gocache.Cache
	logger *slog.Logger
}

var _ task.TaskStore = (*TaskStore)(nil)

// NewTaskStore creates a store. A non-positive ttl keeps records forever.
func NewTaskStore(ttl time.Duration, logger *slog.Logger) *TaskStore {
	cleanup := 10 * time.Minute
	if ttl <= 0 {
		ttl = gocache.NoExpiration
	} else if ttl < cleanup {
		cleanup = ttl
	}

	return &TaskStore{
		items:  gocache.New(ttl, cleanup),
		logger: logger.With("component", "memory_task_store"),
	}
}

func key(id uuid.UUID) string {
	return id.String()
}

func (s *TaskStore) SaveTask(ctx context.Context, t *task.Task) error {
	if err := s.items.Add(key(t.ID), t.Clone(), gocache.DefaultExpiration); err != nil {
		return fmt.Errorf("%w: %s", task.ErrDuplicateTask, t.ID)
	}
	return nil
}

func (s *TaskStore) GetTask(ctx context.Context, taskID uuid.UUID) (*task.Task, error) {
	v, ok := s.items.Get(key(taskID))
	if !ok {
		return nil, fmt.Errorf("%w: %s", task.ErrTaskNotFound, taskID)
	}
	return v.(*task.Task).Clone(), nil
}

// UpdateTaskState applies a transition and restarts the record's retention.
func (s *TaskStore) UpdateTaskState(
	ctx context.Context,
	taskID uuid.UUID,
	state task.State,
	result json.RawMessage,
	errMsg string,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.items.Get(key(taskID))
	if !ok {
		return fmt.Errorf("%w: %s", task.ErrTaskNotFound, taskID)
	}

	next := v.(*task.Task).Clone()
	if err := next.Transition(state, result, errMsg, time.Now()); err != nil {
		return err
	}
	s.items.Set(key(taskID), next, gocache.DefaultExpiration)

	s.logger.Debug("task state updated", "task_id", taskID, "state", state)
	return nil
}

func (s *TaskStore) DeleteTask(ctx context.Context, taskID uuid.UUID) error {
	s.items.Delete(key(taskID))
	return nil
}

func (s *TaskStore) GetPendingTasks(ctx context.Context) ([]*task.Task, error) {
	return s.byState(task.StatePending, 0), nil
}

func (s *TaskStore) GetStartedTasks(ctx context.Context, olderThan time.Duration) ([]*task.Task, error) {
	return s.byState(task.StateStarted, olderThan), nil
}

// Len returns the number of unexpired records.
func (s *TaskStore) Len() int {
	return s.items.ItemCount()
}

func (s *TaskStore) byState(state task.State, olderThan time.Duration) []*task.Task {
	cutoff := time.Now().Add(-olderThan)

	var out []*task.Task
	for _, item := range s.items.Items() {
		t := item.Object.(*task.Task)
		if t.State != state {
			continue
		}
		if olderThan > 0 && !t.UpdatedAt.Before(cutoff) {
			continue
		}
		out = append(out, t.Clone())
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}
