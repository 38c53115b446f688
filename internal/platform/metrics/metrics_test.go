package metrics

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/taskgate/internal/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder_HandleEvent(t *testing.T) {
	t.Parallel()

	r := NewRecorder(nil)
	ctx := context.Background()
	id := uuid.New()

	emit := func(from, to string, d time.Duration) {
		require.NoError(t, r.HandleEvent(ctx, events.NewTaskStateEvent(id, "square", from, to, d)))
	}

	emit("", "PENDING", 0)
	emit("PENDING", "STARTED", 5*time.Millisecond)
	emit("STARTED", "SUCCESS", time.Second)
	emit("", "PENDING", 0)
	emit("PENDING", "STARTED", time.Millisecond)
	emit("STARTED", "FAILURE", time.Millisecond)

	assert.Equal(t, int64(2), r.Counter("tasks", "submitted").Count())
	assert.Equal(t, int64(2), r.Counter("handler.square", "submitted").Count())
	assert.Equal(t, int64(1), r.Counter("tasks", "succeeded").Count())
	assert.Equal(t, int64(1), r.Counter("handler.square", "failed").Count())
	assert.Equal(t, int64(0), r.Counter("tasks", "in_flight").Count())
	assert.Equal(t, int64(2), r.Timer("tasks", "queue_wait").Count())
	assert.Equal(t, int64(2), r.Timer("handler.square", "run_time").Count())
}

func TestRecorder_Handler(t *testing.T) {
	t.Parallel()

	r := NewRecorder(nil)
	r.Counter("tasks", "submitted").Inc(3)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body map[string]map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 3.0, body["tasks.submitted"]["count"])
}
