package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/taskgate/internal/task"
)

func TestSubmit(t *testing.T) {
	t.Parallel()

	var gotHandler string
	var gotArgs []any
	var gotKwargs map[string]any
	broker := &mockBroker{
		SubmitFn: func(_ context.Context, handler string, args []any, kwargs map[string]any) (*task.Task, error) {
			gotHandler, gotArgs, gotKwargs = handler, args, kwargs
			return task.NewTask(handler, args, kwargs), nil
		},
	}
	router := newTestRouter(t, broker, "")

	rec := doRequest(router, http.MethodPost, "/submit",
		`{"handler":"translate","args":["hello","es"],"kwargs":{"source":"en"}}`)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	id, err := uuid.Parse(body["task_id"].(string))
	require.NoError(t, err)
	assert.Equal(t, "http://example.com/status/"+id.String(), body["status_url"])

	assert.Equal(t, "translate", gotHandler)
	assert.Equal(t, []any{"hello", "es"}, gotArgs)
	assert.Equal(t, map[string]any{"source": "en"}, gotKwargs)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestSubmit_StatusURL(t *testing.T) {
	t.Parallel()

	rec := doRequest(newTestRouter(t, &mockBroker{}, "https://tasks.example.org/"), http.MethodPost,
		"/submit", `{"handler":"square","args":[4]}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Regexp(t, `^https://tasks\.example\.org/status/[0-9a-f-]{36}$`, decodeBody(t, rec)["status_url"])

	router := newTestRouter(t, &mockBroker{}, "")
	req := httptest.NewRequest(http.MethodPost, "http://gw.internal:8080/submit",
		strings.NewReader(`{"handler":"square","args":[4]}`))
	req.Header.Set("X-Forwarded-Proto", "https")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Regexp(t, `^https://gw\.internal:8080/status/`, decodeBody(t, rec)["status_url"])
}

func TestSubmit_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		body      string
		submitErr error
		status    int
		message   string
	}{
		{name: "malformed json", body: `{"handler":`, status: http.StatusBadRequest, message: "Invalid request format"},
		{name: "missing handler", body: `{"args":[1]}`, status: http.StatusBadRequest, message: "Invalid handler: required field"},
		{
			name:      "unknown handler",
			body:      `{"handler":"does-not-exist"}`,
			submitErr: fmt.Errorf("%w: %w: %q", task.ErrDispatch, task.ErrUnknownHandler, "does-not-exist"),
			status:    http.StatusBadRequest,
			message:   "Unknown task handler",
		},
		{
			name:      "broker unavailable",
			body:      `{"handler":"square","args":[2]}`,
			submitErr: fmt.Errorf("%w: %w", task.ErrDispatch, errors.New("dial tcp 10.0.0.5:5432: connection refused")),
			status:    http.StatusServiceUnavailable,
			message:   "Task broker unavailable",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			broker := &mockBroker{
				SubmitFn: func(context.Context, string, []any, map[string]any) (*task.Task, error) {
					return nil, tc.submitErr
				},
			}
			rec := doRequest(newTestRouter(t, broker, ""), http.MethodPost, "/submit", tc.body)

			assert.Equal(t, tc.status, rec.Code)
			body := decodeBody(t, rec)
			assert.Equal(t, tc.message, body["error"])
			assert.NotEmpty(t, body["trace_id"])
			assert.NotContains(t, rec.Body.String(), "10.0.0.5")
		})
	}
}

func TestSubmit_DefaultsArgsToEmptyList(t *testing.T) {
	t.Parallel()

	var gotArgs []any
	broker := &mockBroker{
		SubmitFn: func(_ context.Context, handler string, args []any, kwargs map[string]any) (*task.Task, error) {
			gotArgs = args
			return task.NewTask(handler, args, kwargs), nil
		},
	}
	rec := doRequest(newTestRouter(t, broker, ""), http.MethodPost, "/submit", `{"handler":"square"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.NotNil(t, gotArgs)
	assert.Empty(t, gotArgs)
}

func taskIn(state task.State) *task.Task {
	tk := task.NewTask("square", []any{4.0}, nil)
	tk.State = state
	switch state {
	case task.StateSuccess:
		tk.Result = json.RawMessage("16")
	case task.StateFailure:
		tk.Error = "handler square failed: boom"
	}
	return tk
}

func TestStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		state task.State
		want  string
	}{
		{task.StatePending, `{"state":"PENDING"}`},
		{task.StateStarted, `{"state":"STARTED"}`},
		{task.StateSuccess, `{"state":"SUCCESS","result":16}`},
		{task.StateFailure, `{"state":"FAILURE","error":"handler square failed: boom"}`},
	}

	for _, tc := range tests {
		t.Run(string(tc.state), func(t *testing.T) {
			t.Parallel()
			tk := taskIn(tc.state)
			broker := &mockBroker{
				StatusFn: func(_ context.Context, id uuid.UUID) (*task.Task, error) {
					if id != tk.ID {
						return nil, task.ErrTaskNotFound
					}
					return tk, nil
				},
			}
			router := newTestRouter(t, broker, "")

			for _, method := range []string{http.MethodGet, http.MethodPost} {
				rec := doRequest(router, method, "/status/"+tk.ID.String(), "")
				require.Equal(t, http.StatusOK, rec.Code)

				body := decodeBody(t, rec)
				assert.Equal(t, tk.ID.String(), body["task_id"])
				delete(body, "task_id")
				got, _ := json.Marshal(body)
				assert.JSONEq(t, tc.want, string(got))
			}
		})
	}
}

func TestStatus_NotFound(t *testing.T) {
	t.Parallel()
	router := newTestRouter(t, &mockBroker{}, "")

	for _, id := range []string{uuid.NewString(), "does-not-exist"} {
		rec := doRequest(router, http.MethodGet, "/status/"+id, "")
		assert.Equal(t, http.StatusNotFound, rec.Code, id)
		assert.Equal(t, "Task not found", decodeBody(t, rec)["error"])
	}
}

func TestResult(t *testing.T) {
	t.Parallel()

	id := uuid.New()
	broker := &mockBroker{
		ResultFn: func(_ context.Context, got uuid.UUID) (json.RawMessage, error) {
			if got != id {
				return nil, task.ErrTaskNotFound
			}
			return json.RawMessage(`"hola"`), nil
		},
	}
	router := newTestRouter(t, broker, "")

	rec := doRequest(router, http.MethodGet, "/status/"+id.String()+"/result", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, fmt.Sprintf(`{"task_id":%q,"state":"SUCCESS","result":"hola"}`, id), rec.Body.String())

	rec = doRequest(router, http.MethodGet, "/status/"+uuid.NewString()+"/result", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestResult_NotReady(t *testing.T) {
	t.Parallel()

	broker := &mockBroker{
		ResultFn: func(_ context.Context, id uuid.UUID) (json.RawMessage, error) {
			return nil, &task.InvalidStateError{TaskID: id, State: task.StateStarted}
		},
	}
	rec := doRequest(newTestRouter(t, broker, ""), http.MethodGet, "/status/"+uuid.NewString()+"/result", "")

	assert.Equal(t, http.StatusConflict, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "STARTED", body["state"])
	assert.Equal(t, "Task result not available", body["error"])
}

func TestTestAndCheck(t *testing.T) {
	t.Parallel()

	var submitted *task.Task
	broker := &mockBroker{
		SubmitFn: func(_ context.Context, handler string, args []any, kwargs map[string]any) (*task.Task, error) {
			submitted = task.NewTask(handler, args, kwargs)
			return submitted, nil
		},
		StatusFn: func(_ context.Context, id uuid.UUID) (*task.Task, error) {
			return submitted, nil
		},
	}
	router := newTestRouter(t, broker, "")

	rec := doRequest(router, http.MethodGet, "/test/4", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "http://example.com/check/"+submitted.ID.String(), body["check_status_url"])
	assert.Equal(t, "square", submitted.Handler)
	assert.Equal(t, []any{4.0}, submitted.Args)

	rec = doRequest(router, http.MethodGet, "/check/"+submitted.ID.String(), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"state":"PENDING"}`, rec.Body.String())

	submitted.State = task.StateSuccess
	submitted.Result = json.RawMessage("16")
	rec = doRequest(router, http.MethodGet, "/check/"+submitted.ID.String(), "")
	assert.JSONEq(t, `{"state":"SUCCESS","result":16}`, rec.Body.String())

	submitted.State = task.StateFailure
	submitted.Result = nil
	submitted.Error = "handler square failed: boom"
	rec = doRequest(router, http.MethodGet, "/check/"+submitted.ID.String(), "")
	assert.JSONEq(t, `{"state":"FAILURE","result":"handler square failed: boom"}`, rec.Body.String())

	for _, x := range []string{"four", "NaN", "Inf", "-Inf", "2.5"} {
		rec = doRequest(router, http.MethodGet, "/test/"+x, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, x)
	}
}

func TestListHandlers(t *testing.T) {
	t.Parallel()

	broker := &mockBroker{HandlersFn: func() []string { return []string{"square", "translate"} }}
	rec := doRequest(newTestRouter(t, broker, ""), http.MethodGet, "/handlers", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"handlers":["square","translate"]}`, rec.Body.String())
}
