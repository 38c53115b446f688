package task

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// HandlerFunc executes a task with its arguments and returns a
// JSON-encodable result.
type HandlerFunc func(ctx context.Context, args Args) (any, error)

// Registry maps handler names to functions. It is built once at startup,
// then consulted by the broker at submission and by workers at execution.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]HandlerFunc
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[string]HandlerFunc),
	}
}

// Register adds a handler under name.
func (r *Registry) Register(name string, fn HandlerFunc) error {
	if name == "" {
		return fmt.Errorf("handler name cannot be empty")
	}
	if fn == nil {
		return fmt.Errorf("handler %q: function cannot be nil", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.handlers[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateHandler, name)
	}
	slog.Debug("registering task handler", "name", name)
	r.handlers[name] = fn
	return nil
}

// MustRegister is like Register but panics on error.
func (r *Registry) MustRegister(name string, fn HandlerFunc) {
	if err := r.Register(name, fn); err != nil {
		panic(err)
	}
}

// Lookup returns the handler registered under name.
func (r *Registry) Lookup(name string) (HandlerFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.handlers[name]
	return fn, ok
}

// Names returns the registered handler names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
