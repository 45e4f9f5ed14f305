package api

import (
	"github.com/starford/bugwall/internal/contribute"
	"github.com/starford/bugwall/internal/models"
	"github.com/starford/bugwall/internal/query"
	"github.com/starford/bugwall/internal/search"
)

// RecordItem is a lightweight record in a list response.
type RecordItem struct {
	Slug string `json:"slug" example:"vul-001" validate:"required"`
	models.Metadata
	DateKey string `json:"dateKey,omitempty" example:"2024-01-10"`
	// TitleHTML is the escaped title with search matches wrapped in <mark>.
	TitleHTML string `json:"titleHtml,omitempty"`
}

// RecordDetail is the full record response.
type RecordDetail struct {
	RecordItem
	HTML     string `json:"html" validate:"required"`
	Raw      string `json:"raw"`
	Checksum string `json:"checksum" example:"abc123..."`
}

// RecordListResponse wraps a listing page.
type RecordListResponse struct {
	Records []RecordItem `json:"records" validate:"required"`
	Total   int          `json:"total" example:"42" validate:"required"`
	// Query is the canonical query string reproducing this listing.
	Query string      `json:"query" example:"level=V&sort=date-asc"`
	State query.State `json:"state"`
}

// PreviewRequest is the body of POST /preview.
type PreviewRequest struct {
	Markup string `json:"markup" example:"# Title\n\n| a | b |"`
}

// PreviewResponse carries sandboxed rendering output.
type PreviewResponse struct {
	HTML string `json:"html" validate:"required"`
}

// ContributeRequest is the body of POST /contribute.
type ContributeRequest = contribute.Draft

// ContributeResponse is a prepared draft.
type ContributeResponse = contribute.Submission

func toItem(r *models.Record, term string) RecordItem {
	item := RecordItem{Slug: r.Slug, Metadata: r.Metadata, DateKey: r.DateKey}
	if term != "" {
		item.TitleHTML = search.Highlight(r.Metadata.Title, term)
	}
	return item
}

func toItems(records []models.Record, term string) []RecordItem {
	out := make([]RecordItem, len(records))
	for i := range records {
		out[i] = toItem(&records[i], term)
	}
	return out
}

func toDetail(r *models.Record) RecordDetail {
	return RecordDetail{
		RecordItem: toItem(r, ""),
		HTML:       r.RenderedBody,
		Raw:        r.RawBody,
		Checksum:   r.Checksum,
	}
}
