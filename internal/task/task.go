package task

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// State represents the current state of a task
type State string

// Possible task states
const (
	StatePending State = "PENDING"
	StateStarted State = "STARTED"
	StateSuccess State = "SUCCESS"
	StateFailure State = "FAILURE"
)

// Valid reports whether s is one of the known task states.
func (s State) Valid() bool {
	switch s {
	case StatePending, StateStarted, StateSuccess, StateFailure:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no further transition can leave s.
func (s State) IsTerminal() bool {
	return s == StateSuccess || s == StateFailure
}

// CanTransitionTo reports whether the state machine allows moving from s to next.
//
//	PENDING -> STARTED -> SUCCESS | FAILURE
func (s State) CanTransitionTo(next State) bool {
	switch s {
	case StatePending:
		return next == StateStarted
	case StateStarted:
		return next == StateSuccess || next == StateFailure
	default:
		return false
	}
}

// Task is one unit of submitted asynchronous work.
type Task struct {
	// ID is issued at submission and never reused
	ID uuid.UUID `json:"id"`

	// Handler names the registered function that executes the task
	Handler string `json:"handler"`

	// Args holds the ordered positional arguments
	Args []any `json:"args"`

	// Kwargs holds the named arguments
	Kwargs map[string]any `json:"kwargs,omitempty"`

	State State `json:"state"`

	// Result is the JSON-encoded return value, present only in SUCCESS
	Result json.RawMessage `json:"result,omitempty"`

	// Error describes the failure, present only in FAILURE
	Error string `json:"error,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// NewTask creates a PENDING task with a fresh identifier.
func NewTask(handler string, args []any, kwargs map[string]any) *Task {
	now := time.Now().UTC()
	if args == nil {
		args = []any{}
	}
	return &Task{
		ID:        uuid.New(),
		Handler:   handler,
		Args:      args,
		Kwargs:    kwargs,
		State:     StatePending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Clone returns a deep copy of the task so callers can hand out snapshots
// without sharing mutable state with a store.
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}
	c := *t
	if t.Args != nil {
		c.Args = append([]any(nil), t.Args...)
	}
	if t.Kwargs != nil {
		c.Kwargs = make(map[string]any, len(t.Kwargs))
		for k, v := range t.Kwargs {
			c.Kwargs[k] = v
		}
	}
	if t.Result != nil {
		c.Result = append(json.RawMessage(nil), t.Result...)
	}
	if t.StartedAt != nil {
		started := *t.StartedAt
		c.StartedAt = &started
	}
	if t.CompletedAt != nil {
		completed := *t.CompletedAt
		c.CompletedAt = &completed
	}
	return &c
}

// Transition applies a state change in place, enforcing the state machine.
// result is kept only for SUCCESS and errMsg only for FAILURE.
func (t *Task) Transition(next State, result json.RawMessage, errMsg string, at time.Time) error {
	if !t.State.CanTransitionTo(next) {
		return &TransitionError{TaskID: t.ID, From: t.State, To: next}
	}

	at = at.UTC()
	t.State = next
	t.UpdatedAt = at

	switch next {
	case StateStarted:
		t.StartedAt = &at
	case StateSuccess:
		t.Result = result
		t.CompletedAt = &at
	case StateFailure:
		t.Error = errMsg
		t.CompletedAt = &at
	}

	return nil
}

// TaskStore is the result-store half of the broker. Implementations must
// enforce the state machine in UpdateTaskState so terminal states stay
// immutable no matter how many workers race on a task.
type TaskStore interface {
	// SaveTask persists a newly submitted task
	SaveTask(ctx context.Context, task *Task) error

	// GetTask returns a snapshot of the task, or ErrTaskNotFound
	GetTask(ctx context.Context, taskID uuid.UUID) (*Task, error)

	// UpdateTaskState moves a task to the next state, returning
	// ErrInvalidTransition when the state machine forbids it
	UpdateTaskState(
		ctx context.Context,
		taskID uuid.UUID,
		state State,
		result json.RawMessage,
		errMsg string,
	) error

	// DeleteTask removes a task record; used to roll back a failed submission
	DeleteTask(ctx context.Context, taskID uuid.UUID) error

	// GetPendingTasks retrieves all tasks in PENDING state
	GetPendingTasks(ctx context.Context) ([]*Task, error)

	// GetStartedTasks retrieves tasks in STARTED state.
	// If olderThan is non-zero, only tasks that have been STARTED
	// longer than the specified duration are returned
	GetStartedTasks(ctx context.Context, olderThan time.Duration) ([]*Task, error)
}

// Queue is the message-queue half of the broker.
type Queue interface {
	// Enqueue makes a task available to workers without blocking
	Enqueue(ctx context.Context, task *Task) error

	// Dequeue blocks until a task is available or ctx is done
	Dequeue(ctx context.Context) (*Task, error)

	// Close stops accepting new tasks
	Close()
}
