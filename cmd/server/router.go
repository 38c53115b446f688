package main

import (
	"net/http"
	"os"

	"github.com/NYTimes/gziphandler"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/phrazzld/taskgate/internal/api"
	apiMiddleware "github.com/phrazzld/taskgate/internal/api/middleware"
)

// setupRouter creates and configures the application router with all routes and middleware.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.Trace(app.logger))

	api.NewTaskHandler(app.broker, app.config.Server.PublicURL, app.logger).Mount(r)

	app.mountFiles(r, "/static", app.config.Server.StaticDir)
	app.mountFiles(r, "/media", app.config.Server.MediaDir)

	r.Get("/debug/metrics", app.metrics.Handler().ServeHTTP)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			app.logger.Error("Failed to write health check response", "error", err)
		}
	})

	return r
}

// mountFiles serves dir under prefix with gzip compression. Missing
// directories are skipped.
func (app *application) mountFiles(r chi.Router, prefix, dir string) {
	if dir == "" {
		return
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		app.logger.Warn("file directory not available, route disabled", "prefix", prefix, "dir", dir)
		return
	}

	fs := http.StripPrefix(prefix, http.FileServer(http.Dir(dir)))
	r.Handle(prefix+"/*", gziphandler.GzipHandler(fs))
}
