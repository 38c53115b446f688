package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/phrazzld/taskgate/internal/api/middleware"
	"github.com/phrazzld/taskgate/internal/task"
)

// mockBroker implements TaskBroker with overridable function fields.
type mockBroker struct {
	SubmitFn   func(ctx context.Context, handler string, args []any, kwargs map[string]any) (*task.Task, error)
	StatusFn   func(ctx context.Context, id uuid.UUID) (*task.Task, error)
	ResultFn   func(ctx context.Context, id uuid.UUID) (json.RawMessage, error)
	HandlersFn func() []string
}

func (m *mockBroker) Submit(ctx context.Context, handler string, args []any, kwargs map[string]any) (*task.Task, error) {
	if m.SubmitFn != nil {
		return m.SubmitFn(ctx, handler, args, kwargs)
	}
	return task.NewTask(handler, args, kwargs), nil
}

func (m *mockBroker) Status(ctx context.Context, id uuid.UUID) (*task.Task, error) {
	if m.StatusFn != nil {
		return m.StatusFn(ctx, id)
	}
	return nil, task.ErrTaskNotFound
}

func (m *mockBroker) Result(ctx context.Context, id uuid.UUID) (json.RawMessage, error) {
	if m.ResultFn != nil {
		return m.ResultFn(ctx, id)
	}
	return nil, task.ErrTaskNotFound
}

func (m *mockBroker) Handlers() []string {
	if m.HandlersFn != nil {
		return m.HandlersFn()
	}
	return nil
}

func newTestRouter(t *testing.T, broker TaskBroker, publicURL string) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	r := chi.NewRouter()
	r.Use(middleware.Trace(logger))
	NewTaskHandler(broker, publicURL, logger).Mount(r)
	return r
}

func doRequest(h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("response is not a JSON object: %v: %s", err, rec.Body.String())
	}
	return body
}
