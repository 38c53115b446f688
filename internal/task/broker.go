package task

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/phrazzld/taskgate/internal/events"
)

// Broker is the gateway's client of the queue and result store. It issues
// task identifiers, records submissions, and answers polls.
type Broker struct {
	store    TaskStore
	queue    Queue
	registry *Registry
	emitter  events.EventEmitter
	logger   *slog.Logger
}

// NewBroker creates a Broker. A nil emitter discards events.
func NewBroker(
	store TaskStore,
	queue Queue,
	registry *Registry,
	emitter events.EventEmitter,
	logger *slog.Logger,
) (*Broker, error) {
	if store == nil {
		return nil, errors.New("task store cannot be nil")
	}
	if queue == nil {
		return nil, errors.New("task queue cannot be nil")
	}
	if registry == nil {
		return nil, errors.New("handler registry cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if emitter == nil {
		emitter = events.NopEmitter{}
	}

	return &Broker{
		store:    store,
		queue:    queue,
		registry: registry,
		emitter:  emitter,
		logger:   logger.With("component", "task_broker"),
	}, nil
}

// Submit records a new PENDING task and enqueues it. It never waits for
// execution. Unregistered handlers and broker failures both return
// ErrDispatch.
func (b *Broker) Submit(ctx context.Context, handler string, args []any, kwargs map[string]any) (*Task, error) {
	if _, ok := b.registry.Lookup(handler); !ok {
		return nil, fmt.Errorf("%w: %w: %q", ErrDispatch, ErrUnknownHandler, handler)
	}

	t := NewTask(handler, args, kwargs)
	log := b.logger.With("task_id", t.ID, "handler", handler)

	// Save first so a worker can never observe a task the store doesn't know
	if err := b.store.SaveTask(ctx, t); err != nil {
		log.Error("failed to save task", "error", err)
		return nil, fmt.Errorf("%w: failed to save task: %w", ErrDispatch, err)
	}

	if err := b.queue.Enqueue(ctx, t); err != nil {
		log.Error("failed to enqueue task", "error", err)
		// ctx may already be cancelled, which is often why Enqueue failed
		if delErr := b.store.DeleteTask(context.WithoutCancel(ctx), t.ID); delErr != nil {
			log.Error("failed to roll back unqueued task", "error", delErr)
		}
		return nil, fmt.Errorf("%w: failed to enqueue task: %w", ErrDispatch, err)
	}

	b.emit(ctx, events.NewTaskStateEvent(t.ID, handler, "", string(StatePending), 0))
	log.Info("task submitted")

	return t, nil
}

// Status returns the current snapshot of a task without blocking.
func (b *Broker) Status(ctx context.Context, taskID uuid.UUID) (*Task, error) {
	t, err := b.store.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// Result returns the stored result of a SUCCESS task. Any other state
// yields an *InvalidStateError carrying that state.
func (b *Broker) Result(ctx context.Context, taskID uuid.UUID) (json.RawMessage, error) {
	t, err := b.store.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if t.State != StateSuccess {
		return nil, &InvalidStateError{TaskID: taskID, State: t.State}
	}
	return t.Result, nil
}

// Handlers lists the names accepted by Submit.
func (b *Broker) Handlers() []string {
	return b.registry.Names()
}

func (b *Broker) emit(ctx context.Context, event *events.TaskStateEvent) {
	if err := b.emitter.EmitEvent(ctx, event); err != nil {
		b.logger.Warn("failed to emit task event", "task_id", event.TaskID, "error", err)
	}
}
