// Package metrics records task throughput and latency in an
// rcrowley/go-metrics registry, fed by task state events.
package metrics

import (
	"context"
	"net/http"
	"strings"

	gometrics "github.com/rcrowley/go-metrics"

	"github.com/phrazzld/taskgate/internal/events"
)

// Recorder turns task state events into counters and timers. Metric names
// follow "<subsystem>.<name>", with per-handler variants under
// "handler.<handler>.<name>".
type Recorder struct {
	registry gometrics.Registry
}

var _ events.EventHandler = (*Recorder)(nil)

// NewRecorder creates a Recorder on registry, or on a fresh registry when nil.
func NewRecorder(registry gometrics.Registry) *Recorder {
	if registry == nil {
		registry = gometrics.NewRegistry()
	}
	return &Recorder{registry: registry}
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() gometrics.Registry {
	return r.registry
}

// Counter returns the named counter, creating it on first use.
func (r *Recorder) Counter(subsystem, name string) gometrics.Counter {
	return gometrics.GetOrRegisterCounter(metricName(subsystem, name), r.registry)
}

// Timer returns the named timer, creating it on first use.
func (r *Recorder) Timer(subsystem, name string) gometrics.Timer {
	return gometrics.GetOrRegisterTimer(metricName(subsystem, name), r.registry)
}

// HandleEvent implements events.EventHandler.
func (r *Recorder) HandleEvent(ctx context.Context, event *events.TaskStateEvent) error {
	handler := "handler." + event.Handler

	switch event.To {
	case "PENDING":
		r.Counter("tasks", "submitted").Inc(1)
		r.Counter(handler, "submitted").Inc(1)
	case "STARTED":
		r.Counter("tasks", "in_flight").Inc(1)
		r.Timer("tasks", "queue_wait").Update(event.Duration)
	case "SUCCESS", "FAILURE":
		outcome := "succeeded"
		if event.To == "FAILURE" {
			outcome = "failed"
		}
		r.Counter("tasks", "in_flight").Dec(1)
		r.Counter("tasks", outcome).Inc(1)
		r.Counter(handler, outcome).Inc(1)
		r.Timer(handler, "run_time").Update(event.Duration)
	}

	return nil
}

// Handler serves a JSON snapshot of every registered metric.
func (r *Recorder) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		gometrics.WriteJSONOnce(r.registry, w)
	})
}

func metricName(subsystem, name string) string {
	return strings.Trim(subsystem, ".") + "." + name
}
