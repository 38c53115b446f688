package api

import (
	"github.com/go-chi/chi/v5"
)

// Mount registers the task and text routes on r.
func (h *TaskHandler) Mount(r chi.Router) {
	r.Post("/submit", h.Submit)
	r.Get("/status/{id}", h.Status)
	r.Post("/status/{id}", h.Status)
	r.Get("/status/{id}/result", h.Result)
	r.Get("/handlers", h.ListHandlers)

	r.Get("/test/{x}", h.Test)
	r.Get("/check/{id}", h.Check)

	r.Route("/rest_api", func(r chi.Router) {
		r.Post("/tokenize_text", TokenizeText)
		r.Post("/tokenize_docs", TokenizeDocs)
	})
}
