package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/bugwall/internal/catalog"
	"github.com/starford/bugwall/internal/contribute"
)

// NewRouter creates a chi router with all API routes mounted.
// sseHandler, if non-nil, is mounted at GET /events.
func NewRouter(cat *catalog.Catalog, target contribute.Target, sseHandler http.Handler) chi.Router {
	h := NewHandler(cat, target)

	r := chi.NewRouter()

	r.Get("/records", h.ListRecords)
	r.Get("/records/{slug}", h.GetRecord)
	r.Get("/categories", h.Categories)
	r.Get("/stats", h.Stats)
	r.Get("/recent", h.Recent)

	r.Post("/preview", h.Preview)
	r.Post("/contribute", h.Contribute)

	r.Get("/highlight.css", h.Stylesheet)

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
