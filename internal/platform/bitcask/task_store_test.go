package bitcask

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/taskgate/internal/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T, dir string) *TaskStore {
	t.Helper()
	s, err := Open(dir, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return s
}

func TestTaskStore_Lifecycle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := openTestStore(t, t.TempDir())
	defer func() { _ = s.Close() }()

	tk := task.NewTask("tokenize_text", []any{"Hello world"}, map[string]any{"lowercase": true})
	require.NoError(t, s.SaveTask(ctx, tk))
	assert.ErrorIs(t, s.SaveTask(ctx, tk), task.ErrDuplicateTask)

	got, err := s.GetTask(ctx, tk.ID)
	require.NoError(t, err)
	assert.Equal(t, task.StatePending, got.State)
	assert.Equal(t, []any{"Hello world"}, got.Args)
	assert.Equal(t, map[string]any{"lowercase": true}, got.Kwargs)

	require.NoError(t, s.UpdateTaskState(ctx, tk.ID, task.StateStarted, nil, ""))
	require.NoError(t, s.UpdateTaskState(ctx, tk.ID, task.StateSuccess, json.RawMessage(`["hello","world"]`), ""))
	assert.ErrorIs(t, s.UpdateTaskState(ctx, tk.ID, task.StateFailure, nil, "late"), task.ErrInvalidTransition)

	got, err = s.GetTask(ctx, tk.ID)
	require.NoError(t, err)
	assert.Equal(t, task.StateSuccess, got.State)
	assert.JSONEq(t, `["hello","world"]`, string(got.Result))

	require.NoError(t, s.DeleteTask(ctx, tk.ID))
	require.NoError(t, s.DeleteTask(ctx, tk.ID), "deleting twice is harmless")
	_, err = s.GetTask(ctx, tk.ID)
	assert.ErrorIs(t, err, task.ErrTaskNotFound)

	assert.ErrorIs(t, s.UpdateTaskState(ctx, uuid.New(), task.StateStarted, nil, ""), task.ErrTaskNotFound)
}

func TestTaskStore_SurvivesReopen(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dir := t.TempDir()

	s := openTestStore(t, dir)
	pending := task.NewTask("square", []any{3.0}, nil)
	started := task.NewTask("square", []any{5.0}, nil)
	require.NoError(t, s.SaveTask(ctx, pending))
	require.NoError(t, s.SaveTask(ctx, started))
	require.NoError(t, s.UpdateTaskState(ctx, started.ID, task.StateStarted, nil, ""))
	require.NoError(t, s.Close())

	s = openTestStore(t, dir)
	defer func() { _ = s.Close() }()

	tasks, err := s.GetPendingTasks(ctx)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, pending.ID, tasks[0].ID)

	running, err := s.GetStartedTasks(ctx, 0)
	require.NoError(t, err)
	require.Len(t, running, 1)
	assert.Equal(t, started.ID, running[0].ID)

	stale, err := s.GetStartedTasks(ctx, time.Hour)
	require.NoError(t, err)
	assert.Empty(t, stale)
}
