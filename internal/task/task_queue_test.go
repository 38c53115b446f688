package task

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
}

func TestNewTaskQueue(t *testing.T) {
	queue := NewTaskQueue(10, setupTestLogger())

	assert.NotNil(t, queue)
	assert.Equal(t, 10, cap(queue.tasks))
	assert.False(t, queue.closed)

	assert.Equal(t, 1, cap(NewTaskQueue(0, setupTestLogger()).tasks), "non-positive size falls back to 1")
}

func TestTaskQueue_EnqueueDequeue(t *testing.T) {
	ctx := context.Background()
	queue := NewTaskQueue(2, setupTestLogger())

	task1 := NewTask("square", []any{1.0}, nil)
	task2 := NewTask("square", []any{2.0}, nil)

	require.NoError(t, queue.Enqueue(ctx, task1))
	require.NoError(t, queue.Enqueue(ctx, task2))
	assert.Equal(t, 2, queue.Len())

	err := queue.Enqueue(ctx, NewTask("square", nil, nil))
	assert.ErrorIs(t, err, ErrQueueFull)

	got, err := queue.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, task1.ID, got.ID, "queue is FIFO")

	got.Args[0] = 99.0
	assert.Equal(t, 1.0, task1.Args[0], "queue holds its own copy")
}

func TestTaskQueue_DequeueHonorsContext(t *testing.T) {
	queue := NewTaskQueue(1, setupTestLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := queue.Dequeue(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestTaskQueue_Close(t *testing.T) {
	ctx := context.Background()
	queue := NewTaskQueue(2, setupTestLogger())
	require.NoError(t, queue.Enqueue(ctx, NewTask("square", nil, nil)))

	queue.Close()
	queue.Close() // idempotent

	assert.ErrorIs(t, queue.Enqueue(ctx, NewTask("square", nil, nil)), ErrQueueClosed)

	_, err := queue.Dequeue(ctx)
	assert.NoError(t, err, "buffered tasks drain after close")

	_, err = queue.Dequeue(ctx)
	assert.ErrorIs(t, err, ErrQueueClosed)
}
