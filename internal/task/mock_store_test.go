package task

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MockTaskStore implements the TaskStore interface for testing. The Fn
// fields override the default in-memory behavior.
type MockTaskStore struct {
	mutex sync.RWMutex
	tasks map[uuid.UUID]*Task

	SaveFn   func(ctx context.Context, task *Task) error
	UpdateFn func(ctx context.Context, taskID uuid.UUID, state State, result json.RawMessage, errMsg string) error
	DeleteFn func(ctx context.Context, taskID uuid.UUID) error
}

// NewMockTaskStore creates a new MockTaskStore with default implementations
func NewMockTaskStore() *MockTaskStore {
	return &MockTaskStore{
		tasks: make(map[uuid.UUID]*Task),
	}
}

func (s *MockTaskStore) SaveTask(ctx context.Context, task *Task) error {
	if s.SaveFn != nil {
		return s.SaveFn(ctx, task)
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, exists := s.tasks[task.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateTask, task.ID)
	}
	s.tasks[task.ID] = task.Clone()
	return nil
}

func (s *MockTaskStore) GetTask(ctx context.Context, taskID uuid.UUID) (*Task, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	t, ok := s.tasks[taskID]
	if !ok {
		return nil, ErrTaskNotFound
	}
	return t.Clone(), nil
}

func (s *MockTaskStore) UpdateTaskState(
	ctx context.Context,
	taskID uuid.UUID,
	state State,
	result json.RawMessage,
	errMsg string,
) error {
	if s.UpdateFn != nil {
		return s.UpdateFn(ctx, taskID, state, result, errMsg)
	}
	return s.transition(taskID, state, result, errMsg)
}

// transition is the default UpdateTaskState behavior, callable from UpdateFn.
func (s *MockTaskStore) transition(taskID uuid.UUID, state State, result json.RawMessage, errMsg string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	t, ok := s.tasks[taskID]
	if !ok {
		return ErrTaskNotFound
	}
	return t.Transition(state, result, errMsg, time.Now())
}

func (s *MockTaskStore) DeleteTask(ctx context.Context, taskID uuid.UUID) error {
	if s.DeleteFn != nil {
		return s.DeleteFn(ctx, taskID)
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()
	delete(s.tasks, taskID)
	return nil
}

func (s *MockTaskStore) GetPendingTasks(ctx context.Context) ([]*Task, error) {
	return s.byState(StatePending, 0), nil
}

func (s *MockTaskStore) GetStartedTasks(ctx context.Context, olderThan time.Duration) ([]*Task, error) {
	return s.byState(StateStarted, olderThan), nil
}

func (s *MockTaskStore) byState(state State, olderThan time.Duration) []*Task {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	var out []*Task
	now := time.Now()
	for _, t := range s.tasks {
		if t.State != state {
			continue
		}
		if olderThan > 0 && now.Sub(t.UpdatedAt) <= olderThan {
			continue
		}
		out = append(out, t.Clone())
	}
	return out
}

// put stores a task as-is, bypassing the state machine
func (s *MockTaskStore) put(t *Task) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.tasks[t.ID] = t.Clone()
}

func (s *MockTaskStore) remove(id uuid.UUID) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	delete(s.tasks, id)
	return nil
}

// cancellingQueue cancels the caller's context during Enqueue and fails
// the way a context-aware driver call does.
type cancellingQueue struct {
	cancel context.CancelFunc
}

func (q cancellingQueue) Enqueue(ctx context.Context, task *Task) error {
	q.cancel()
	return ctx.Err()
}
func (q cancellingQueue) Dequeue(ctx context.Context) (*Task, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}
func (q cancellingQueue) Close() {}

// failingQueue rejects every enqueue
type failingQueue struct {
	err error
}

func (q failingQueue) Enqueue(ctx context.Context, task *Task) error { return q.err }
func (q failingQueue) Dequeue(ctx context.Context) (*Task, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}
func (q failingQueue) Close() {}
