package task

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// TaskQueue implements Queue with a buffered channel. It is the in-process
// message queue used when gateway and workers share one process.
type TaskQueue struct {
	mu     sync.RWMutex
	tasks  chan *Task
	logger *slog.Logger
	closed bool
}

// NewTaskQueue creates a new task queue with the specified buffer size
func NewTaskQueue(size int, logger *slog.Logger) *TaskQueue {
	if size <= 0 {
		size = 1
	}
	return &TaskQueue{
		tasks:  make(chan *Task, size),
		logger: logger,
	}
}

// Enqueue adds a task to the queue for processing.
// Returns an error if the queue is full or closed.
func (q *TaskQueue) Enqueue(ctx context.Context, task *Task) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return ErrQueueClosed
	}

	select {
	case q.tasks <- task.Clone():
		q.logger.Debug("task enqueued",
			"task_id", task.ID,
			"handler", task.Handler,
			"queue_len", len(q.tasks),
			"queue_cap", cap(q.tasks))
		return nil
	default:
		return fmt.Errorf("%w: queue capacity %d reached", ErrQueueFull, cap(q.tasks))
	}
}

// Dequeue waits for the next task. It returns ErrQueueClosed once the
// queue is closed and drained.
func (q *TaskQueue) Dequeue(ctx context.Context) (*Task, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case task, ok := <-q.tasks:
		if !ok {
			return nil, ErrQueueClosed
		}
		return task, nil
	}
}

// Close closes the task queue, preventing further task submission
func (q *TaskQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.closed {
		q.closed = true
		close(q.tasks)
		q.logger.Info("task queue closed")
	}
}

// Len returns the number of buffered tasks.
func (q *TaskQueue) Len() int {
	return len(q.tasks)
}
