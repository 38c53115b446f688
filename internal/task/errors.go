package task

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Errors returned by the broker, stores, and queues
var (
	// ErrDispatch is returned when a submission cannot be handed to the broker.
	// It is transient from the caller's point of view; nothing retries it.
	ErrDispatch = errors.New("task dispatch failed")

	// ErrUnknownHandler is returned when a handler name is not registered.
	// Submission wraps it in ErrDispatch.
	ErrUnknownHandler = errors.New("unknown handler")

	// ErrTaskNotFound is returned when the store has no record of a task,
	// either because it never existed or because it expired.
	ErrTaskNotFound = errors.New("task not found")

	// ErrInvalidState is returned when a result is requested for a task
	// that has not reached SUCCESS.
	ErrInvalidState = errors.New("task result not available in current state")

	// ErrInvalidTransition is returned when a state change violates the state machine.
	ErrInvalidTransition = errors.New("invalid task state transition")

	// ErrDuplicateTask is returned when saving a task whose ID already exists.
	ErrDuplicateTask = errors.New("task already exists")

	// ErrDuplicateHandler is returned when registering a name twice.
	ErrDuplicateHandler = errors.New("handler already registered")

	// ErrInvalidArgument is returned by Args accessors when an argument is
	// missing or has the wrong type.
	ErrInvalidArgument = errors.New("invalid task argument")

	ErrQueueClosed = errors.New("task queue is closed")
	ErrQueueFull   = errors.New("task queue is full")
)

// InvalidStateError carries the current state of a task whose result was
// requested too early, so polling loops can keep going.
type InvalidStateError struct {
	TaskID uuid.UUID
	State  State
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("task %s is %s: %v", e.TaskID, e.State, ErrInvalidState)
}

// Unwrap allows errors.Is(err, ErrInvalidState).
func (e *InvalidStateError) Unwrap() error {
	return ErrInvalidState
}

// TransitionError describes a rejected state change.
type TransitionError struct {
	TaskID uuid.UUID
	From   State
	To     State
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("task %s: %s -> %s: %v", e.TaskID, e.From, e.To, ErrInvalidTransition)
}

// Unwrap allows errors.Is(err, ErrInvalidTransition).
func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}

// HandlerFailure is the failure raised inside a task handler. It is stored
// as the task's error payload and never propagated to the gateway.
type HandlerFailure struct {
	Handler string
	Err     error
	// Panicked is set when the handler panicked instead of returning an error
	Panicked bool
}

func (e *HandlerFailure) Error() string {
	if e.Panicked {
		return fmt.Sprintf("handler %s panicked: %v", e.Handler, e.Err)
	}
	return fmt.Sprintf("handler %s failed: %v", e.Handler, e.Err)
}

// Unwrap returns the underlying handler error.
func (e *HandlerFailure) Unwrap() error {
	return e.Err
}
