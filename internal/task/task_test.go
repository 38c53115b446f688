package task

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestState_CanTransitionTo(t *testing.T) {
	t.Parallel()

	allowed := map[State][]State{
		StatePending: {StateStarted},
		StateStarted: {StateSuccess, StateFailure},
	}
	all := []State{StatePending, StateStarted, StateSuccess, StateFailure}

	for _, from := range all {
		for _, to := range all {
			want := false
			for _, a := range allowed[from] {
				if a == to {
					want = true
				}
			}
			assert.Equal(t, want, from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}
}

func TestState_Properties(t *testing.T) {
	t.Parallel()

	assert.True(t, StateSuccess.IsTerminal())
	assert.True(t, StateFailure.IsTerminal())
	assert.False(t, StatePending.IsTerminal())
	assert.False(t, StateStarted.IsTerminal())

	assert.True(t, StateStarted.Valid())
	assert.False(t, State("RETRY").Valid())
}

func TestNewTask(t *testing.T) {
	t.Parallel()

	a := NewTask("square", nil, nil)
	b := NewTask("square", []any{4.0}, nil)

	assert.NotEqual(t, a.ID, b.ID, "every submission gets a fresh id")
	assert.Equal(t, StatePending, a.State)
	assert.NotNil(t, a.Args)
	assert.Nil(t, a.Result)
	assert.Empty(t, a.Error)
	assert.False(t, a.CreatedAt.IsZero())
}

func TestTask_Transition(t *testing.T) {
	t.Parallel()

	t.Run("success path", func(t *testing.T) {
		task := NewTask("square", []any{4.0}, nil)
		now := time.Now()

		require.NoError(t, task.Transition(StateStarted, nil, "", now))
		require.NotNil(t, task.StartedAt)

		require.NoError(t, task.Transition(StateSuccess, json.RawMessage("16"), "ignored", now))
		assert.Equal(t, StateSuccess, task.State)
		assert.JSONEq(t, "16", string(task.Result))
		assert.Empty(t, task.Error, "error payload is only kept for FAILURE")
		assert.NotNil(t, task.CompletedAt)
	})

	t.Run("failure path", func(t *testing.T) {
		task := NewTask("translate", nil, nil)
		require.NoError(t, task.Transition(StateStarted, nil, "", time.Now()))
		require.NoError(t, task.Transition(StateFailure, json.RawMessage(`"x"`), "boom", time.Now()))

		assert.Equal(t, "boom", task.Error)
		assert.Nil(t, task.Result, "result is only kept for SUCCESS")
	})

	t.Run("cannot skip STARTED", func(t *testing.T) {
		task := NewTask("square", nil, nil)
		err := task.Transition(StateSuccess, json.RawMessage("1"), "", time.Now())

		assert.ErrorIs(t, err, ErrInvalidTransition)
		var te *TransitionError
		require.True(t, errors.As(err, &te))
		assert.Equal(t, StatePending, te.From)
		assert.Equal(t, StateSuccess, te.To)
		assert.Equal(t, StatePending, task.State, "rejected transition leaves the task untouched")
	})

	t.Run("terminal states are immutable", func(t *testing.T) {
		task := NewTask("square", nil, nil)
		require.NoError(t, task.Transition(StateStarted, nil, "", time.Now()))
		require.NoError(t, task.Transition(StateSuccess, json.RawMessage("16"), "", time.Now()))

		for _, next := range []State{StatePending, StateStarted, StateSuccess, StateFailure} {
			assert.ErrorIs(t, task.Transition(next, json.RawMessage("0"), "late", time.Now()), ErrInvalidTransition)
		}
		assert.JSONEq(t, "16", string(task.Result))
	})
}

func TestTask_Clone(t *testing.T) {
	t.Parallel()

	orig := NewTask("tokenize_docs", []any{[]any{"a b"}}, map[string]any{"lowercase": true})
	require.NoError(t, orig.Transition(StateStarted, nil, "", time.Now()))

	c := orig.Clone()
	c.Kwargs["lowercase"] = false
	c.Args[0] = "changed"
	*c.StartedAt = time.Time{}

	assert.Equal(t, true, orig.Kwargs["lowercase"])
	assert.Equal(t, []any{"a b"}, orig.Args[0])
	assert.False(t, orig.StartedAt.IsZero())
	assert.Nil(t, (*Task)(nil).Clone())
}

func TestErrorTypes(t *testing.T) {
	t.Parallel()

	stateErr := &InvalidStateError{State: StateStarted}
	assert.ErrorIs(t, stateErr, ErrInvalidState)
	assert.Contains(t, stateErr.Error(), "STARTED")

	cause := errors.New("division by zero")
	failure := &HandlerFailure{Handler: "square", Err: cause}
	assert.ErrorIs(t, failure, cause)
	assert.Equal(t, "handler square failed: division by zero", failure.Error())

	panicked := &HandlerFailure{Handler: "square", Err: cause, Panicked: true}
	assert.Equal(t, "handler square panicked: division by zero", panicked.Error())
}
