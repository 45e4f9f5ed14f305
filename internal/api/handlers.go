package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/bugwall/internal/apperr"
	"github.com/starford/bugwall/internal/catalog"
	"github.com/starford/bugwall/internal/contribute"
	"github.com/starford/bugwall/internal/query"
)

// Handler holds API route handlers.
type Handler struct {
	cat    *catalog.Catalog
	target contribute.Target
	now    func() time.Time
}

// NewHandler creates a new Handler.
func NewHandler(cat *catalog.Catalog, target contribute.Target) *Handler {
	return &Handler{cat: cat, target: target, now: time.Now}
}

// storeError writes the response for a failed catalog read.
func storeError(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, apperr.ErrStoreUnavailable) {
		slog.Error(op+" failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusServiceUnavailable, errorBody("content store unavailable"))
		return
	}
	slog.Error(op+" failed", slog.String("error", err.Error()))
	writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
}

// ListRecords handles GET /api/records.
//
//	@Summary		Search, filter and sort records
//	@Tags			records
//	@Produce		json
//	@Param			search		query		string	false	"Free-text query"
//	@Param			category	query		string	false	"Exact category"
//	@Param			status		query		string	false	"Status"	Enums(unresolved, resolved, not-applicable, archived)
//	@Param			level		query		string	false	"Level"		Enums(I, II, III, IV, V)
//	@Param			dateFrom	query		string	false	"Inclusive lower bound, YYYY-MM-DD"
//	@Param			dateTo		query		string	false	"Inclusive upper bound, YYYY-MM-DD"
//	@Param			sort		query		string	false	"Sort"		Enums(date-desc, date-asc, level-desc, level-asc, title-asc, title-desc)
//	@Param			limit		query		int		false	"Page size"
//	@Param			offset		query		int		false	"Page offset"
//	@Success		200			{object}	RecordListResponse
//	@Failure		503			{object}	errResponse
//	@Router			/records [get]
func (h *Handler) ListRecords(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	st := query.FromValues(q)

	page, err := h.cat.List(r.Context(), st, limit, offset)
	if err != nil {
		storeError(w, "list records", err)
		return
	}
	writeJSON(w, http.StatusOK, RecordListResponse{
		Records: toItems(page.Records, st.Search),
		Total:   page.Total,
		Query:   page.Query,
		State:   st,
	})
}

// GetRecord handles GET /api/records/{slug}.
//
//	@Summary		Get a single record with rendered HTML
//	@Tags			records
//	@Produce		json
//	@Param			slug	path		string	true	"Record slug"
//	@Success		200		{object}	RecordDetail
//	@Failure		404		{object}	errResponse
//	@Router			/records/{slug} [get]
func (h *Handler) GetRecord(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	rec, err := h.cat.Get(r.Context(), slug)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			body := errorBody("not found")
			if s, ok := h.cat.Suggest(r.Context(), slug); ok {
				body.Suggestion = s
			}
			writeJSON(w, http.StatusNotFound, body)
			return
		}
		storeError(w, "get record", err)
		return
	}
	writeJSON(w, http.StatusOK, toDetail(rec))
}

// Categories handles GET /api/categories.
//
//	@Summary		List distinct categories
//	@Tags			records
//	@Produce		json
//	@Success		200	{array}	string
//	@Router			/categories [get]
func (h *Handler) Categories(w http.ResponseWriter, r *http.Request) {
	cats, err := h.cat.Categories(r.Context())
	if err != nil {
		storeError(w, "list categories", err)
		return
	}
	writeJSON(w, http.StatusOK, cats)
}

// Stats handles GET /api/stats.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	st, err := h.cat.Stats(r.Context())
	if err != nil {
		storeError(w, "stats", err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// Recent handles GET /api/recent?n=5.
func (h *Handler) Recent(w http.ResponseWriter, r *http.Request) {
	n, _ := strconv.Atoi(r.URL.Query().Get("n"))
	records, err := h.cat.Recent(r.Context(), n)
	if err != nil {
		storeError(w, "recent records", err)
		return
	}
	writeJSON(w, http.StatusOK, toItems(records, ""))
}

// Preview handles POST /api/preview.
//
//	@Summary		Render Markdown without touching the content store
//	@Tags			render
//	@Accept			json
//	@Produce		json
//	@Param			body	body		PreviewRequest	true	"Markup"
//	@Success		200		{object}	PreviewResponse
//	@Failure		400		{object}	errResponse
//	@Router			/preview [post]
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	var req PreviewRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	html, err := h.cat.Preview(r.Context(), req.Markup)
	if err != nil {
		storeError(w, "preview", err)
		return
	}
	writeJSON(w, http.StatusOK, PreviewResponse{HTML: html})
}

// Contribute handles POST /api/contribute.
//
//	@Summary		Prepare a new record draft for issue submission
//	@Tags			contribute
//	@Accept			json
//	@Produce		json
//	@Param			body	body		ContributeRequest	true	"Draft"
//	@Success		200		{object}	ContributeResponse
//	@Failure		400		{object}	errResponse
//	@Router			/contribute [post]
func (h *Handler) Contribute(w http.ResponseWriter, r *http.Request) {
	var draft ContributeRequest
	if err := decodeJSON(w, r, &draft); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	sub, err := contribute.Prepare(draft, h.target, h.now())
	if err != nil {
		var verrs validation.Errors
		if errors.As(err, &verrs) {
			writeJSON(w, http.StatusBadRequest, errorBody(verrs.Error()))
			return
		}
		slog.Error("prepare draft failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

// Stylesheet handles GET /api/highlight.css.
func (h *Handler) Stylesheet(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/css; charset=utf-8")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(h.cat.Renderer().Stylesheet()))
}
