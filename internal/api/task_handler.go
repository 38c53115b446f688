package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/phrazzld/taskgate/internal/api/shared"
	"github.com/phrazzld/taskgate/internal/platform/logger"
	"github.com/phrazzld/taskgate/internal/task"
)

// TaskBroker is the part of task.Broker the gateway uses.
type TaskBroker interface {
	Submit(ctx context.Context, handler string, args []any, kwargs map[string]any) (*task.Task, error)
	Status(ctx context.Context, taskID uuid.UUID) (*task.Task, error)
	Result(ctx context.Context, taskID uuid.UUID) (json.RawMessage, error)
	Handlers() []string
}

// TaskHandler serves task submission and polling.
type TaskHandler struct {
	broker TaskBroker
	// publicURL prefixes status URLs; empty means derive from the request
	publicURL string
	logger    *slog.Logger
}

// NewTaskHandler creates a TaskHandler.
func NewTaskHandler(broker TaskBroker, publicURL string, logger *slog.Logger) *TaskHandler {
	if broker == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("broker cannot be nil for TaskHandler")
	}
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for TaskHandler")
	}
	return &TaskHandler{
		broker:    broker,
		publicURL: strings.TrimRight(publicURL, "/"),
		logger:    logger.With(slog.String("component", "task_handler")),
	}
}

// Submit handles POST /submit requests. It returns as soon as the task is
// recorded and queued.
func (h *TaskHandler) Submit(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	var req SubmitRequest
	if err := shared.DecodeJSON(w, r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := shared.ValidateRequest(&req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, SanitizeValidationError(err))
		return
	}
	if req.Args == nil {
		req.Args = []any{}
	}

	t, err := h.broker.Submit(r.Context(), req.Handler, req.Args, req.Kwargs)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	log.Debug("task accepted", slog.String("task_id", t.ID.String()), slog.String("handler", t.Handler))
	shared.RespondWithJSON(w, r, http.StatusCreated, SubmitResponse{
		TaskID:    t.ID,
		StatusURL: h.url(r, "/status/"+t.ID.String()),
	})
}

// Status handles GET|POST /status/{id}. It never blocks on execution.
func (h *TaskHandler) Status(w http.ResponseWriter, r *http.Request) {
	t, ok := h.lookup(w, r)
	if !ok {
		return
	}

	resp := StatusResponse{TaskID: t.ID, State: string(t.State)}
	switch t.State {
	case task.StateSuccess:
		resp.Result = t.Result
	case task.StateFailure:
		resp.Error = t.Error
	}
	shared.RespondWithJSON(w, r, http.StatusOK, resp)
}

// Result handles GET /status/{id}/result. Tasks not in SUCCESS get a 409
// naming their current state.
func (h *TaskHandler) Result(w http.ResponseWriter, r *http.Request) {
	id, ok := pathTaskID(w, r)
	if !ok {
		return
	}

	result, err := h.broker.Result(r.Context(), id)
	var stateErr *task.InvalidStateError
	if errors.As(err, &stateErr) {
		shared.RespondWithJSON(w, r, http.StatusConflict, InvalidStateResponse{
			Error:   GetSafeErrorMessage(err),
			State:   string(stateErr.State),
			TraceID: shared.GetTraceID(r.Context()),
		})
		return
	}
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, ResultResponse{
		TaskID: id,
		State:  string(task.StateSuccess),
		Result: result,
	})
}

// Test handles GET /test/{x}: it submits square(x) and points at /check.
func (h *TaskHandler) Test(w http.ResponseWriter, r *http.Request) {
	x, err := strconv.ParseInt(chi.URLParam(r, "x"), 10, 64)
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid x: must be an integer")
		return
	}

	t, err := h.broker.Submit(r.Context(), "square", []any{float64(x)}, nil)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, TestResponse{
		TaskID:         t.ID,
		CheckStatusURL: h.url(r, "/check/"+t.ID.String()),
	})
}

// Check handles GET /check/{id} with the compact response shape.
func (h *TaskHandler) Check(w http.ResponseWriter, r *http.Request) {
	t, ok := h.lookup(w, r)
	if !ok {
		return
	}

	resp := CheckResponse{State: string(t.State)}
	switch t.State {
	case task.StateSuccess:
		resp.Result = t.Result
	case task.StateFailure:
		resp.Result = t.Error
	}
	shared.RespondWithJSON(w, r, http.StatusOK, resp)
}

// ListHandlers handles GET /handlers.
func (h *TaskHandler) ListHandlers(w http.ResponseWriter, r *http.Request) {
	shared.RespondWithJSON(w, r, http.StatusOK, HandlersResponse{Handlers: h.broker.Handlers()})
}

func (h *TaskHandler) lookup(w http.ResponseWriter, r *http.Request) (*task.Task, bool) {
	id, ok := pathTaskID(w, r)
	if !ok {
		return nil, false
	}
	t, err := h.broker.Status(r.Context(), id)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return nil, false
	}
	return t, true
}

// pathTaskID parses the {id} path parameter. Ids that are not UUIDs were
// never issued, so they get the same 404 as unknown ones.
func pathTaskID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := chi.URLParam(r, "id")
	id, err := uuid.Parse(raw)
	if err != nil {
		logger.FromContextOrDefault(r.Context(), slog.Default()).
			Debug("malformed task id", slog.String("value", raw))
		HandleAPIError(w, r, task.ErrTaskNotFound, "")
		return uuid.Nil, false
	}
	return id, true
}

// url builds an absolute URL for path from the configured public URL or,
// failing that, the request's scheme and host.
func (h *TaskHandler) url(r *http.Request, path string) string {
	if h.publicURL != "" {
		return h.publicURL + path
	}

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto == "http" || proto == "https" {
		scheme = proto
	}
	return scheme + "://" + r.Host + path
}
