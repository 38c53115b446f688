package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// TaskStateEvent records one state change of a task. States are plain
// strings so the package has no dependency on the task package.
type TaskStateEvent struct {
	// ID is a unique identifier for this event
	ID uuid.UUID `json:"id"`

	TaskID  uuid.UUID `json:"task_id"`
	Handler string    `json:"handler"`

	// From is empty for the submission event
	From string `json:"from,omitempty"`
	To   string `json:"to"`

	// Duration is the time spent in the previous state
	Duration time.Duration `json:"duration"`

	OccurredAt time.Time `json:"occurred_at"`
}

// NewTaskStateEvent creates a new TaskStateEvent stamped with the current time.
func NewTaskStateEvent(taskID uuid.UUID, handler, from, to string, duration time.Duration) *TaskStateEvent {
	return &TaskStateEvent{
		ID:         uuid.New(),
		TaskID:     taskID,
		Handler:    handler,
		From:       from,
		To:         to,
		Duration:   duration,
		OccurredAt: time.Now().UTC(),
	}
}

// EventHandler defines an interface for components that can handle events.
type EventHandler interface {
	// HandleEvent processes the given event within the provided context.
	// Returns an error if the event cannot be handled successfully.
	HandleEvent(ctx context.Context, event *TaskStateEvent) error
}

// EventEmitter defines an interface for components that can emit events.
// This allows the broker and workers to publish state changes without
// direct knowledge of who observes them.
type EventEmitter interface {
	// EmitEvent publishes the given event to all registered handlers.
	EmitEvent(ctx context.Context, event *TaskStateEvent) error
}

// EventHandlerFunc adapts a function to the EventHandler interface.
type EventHandlerFunc func(ctx context.Context, event *TaskStateEvent) error

// HandleEvent calls f(ctx, event).
func (f EventHandlerFunc) HandleEvent(ctx context.Context, event *TaskStateEvent) error {
	return f(ctx, event)
}

// NopEmitter discards every event.
type NopEmitter struct{}

// EmitEvent implements EventEmitter.
func (NopEmitter) EmitEvent(context.Context, *TaskStateEvent) error { return nil }
