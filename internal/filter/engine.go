// Package filter narrows and orders record lists: search first, then
// AND-combined filters, then a stable sort.
package filter

import (
	"cmp"
	"slices"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/starford/bugwall/internal/models"
	"github.com/starford/bugwall/internal/search"
)

// DefaultLocale is the collation language for title sorting.
const DefaultLocale = "zh-CN"

// Filters holds the optional filter axes. A zero field is inactive.
// DateFrom and DateTo are inclusive YYYY-MM-DD bounds.
type Filters struct {
	Category string        `json:"category,omitempty"`
	Status   models.Status `json:"status,omitempty"`
	Level    models.Level  `json:"level,omitempty"`
	DateFrom string        `json:"dateFrom,omitempty"`
	DateTo   string        `json:"dateTo,omitempty"`
}

// IsZero reports whether no filter axis is active.
func (f Filters) IsZero() bool { return f == Filters{} }

// Match reports whether r passes every active axis. A record without a
// valid date fails any active date bound.
func (f Filters) Match(r *models.Record) bool {
	md := &r.Metadata
	if f.Category != "" && md.Category != f.Category {
		return false
	}
	if f.Status != "" && md.Status != f.Status {
		return false
	}
	if f.Level != "" && md.Level != f.Level {
		return false
	}
	if f.DateFrom != "" || f.DateTo != "" {
		if !r.HasDate() {
			return false
		}
		if f.DateFrom != "" && r.DateKey < f.DateFrom {
			return false
		}
		if f.DateTo != "" && r.DateKey > f.DateTo {
			return false
		}
	}
	return true
}

// SortOption selects the result ordering.
type SortOption string

const (
	SortDateDesc  SortOption = "date-desc"
	SortDateAsc   SortOption = "date-asc"
	SortLevelDesc SortOption = "level-desc"
	SortLevelAsc  SortOption = "level-asc"
	SortTitleAsc  SortOption = "title-asc"
	SortTitleDesc SortOption = "title-desc"
)

// DefaultSort is applied when no sort is requested.
const DefaultSort = SortDateDesc

// SortOptions lists every accepted sort option.
var SortOptions = []SortOption{SortDateDesc, SortDateAsc, SortLevelDesc, SortLevelAsc, SortTitleAsc, SortTitleDesc}

// ParseSortOption maps a raw value to a SortOption.
func ParseSortOption(raw string) (SortOption, bool) {
	for _, s := range SortOptions {
		if string(s) == raw {
			return s, true
		}
	}
	return "", false
}

// Searcher narrows records to those matching query, best match first.
type Searcher func(records []models.Record, query string) []models.Record

// Engine applies search, filters and sorting in that fixed order.
type Engine struct {
	search Searcher
	locale language.Tag
}

// NewEngine builds an engine. A nil searcher ranks with the default search
// options; an unparseable locale falls back to DefaultLocale.
func NewEngine(searcher Searcher, locale string) *Engine {
	if searcher == nil {
		searcher = func(records []models.Record, query string) []models.Record {
			return search.Search(records, query, search.DefaultOptions(), nil)
		}
	}
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.MustParse(DefaultLocale)
	}
	return &Engine{search: searcher, locale: tag}
}

// Apply returns a new slice; records is never modified. An empty sort
// means DefaultSort.
func (e *Engine) Apply(records []models.Record, query string, f Filters, sort SortOption) []models.Record {
	out := records
	if strings.TrimSpace(query) != "" {
		out = e.search(out, query)
	}

	kept := make([]models.Record, 0, len(out))
	for i := range out {
		if f.Match(&out[i]) {
			kept = append(kept, out[i])
		}
	}

	if sort == "" {
		sort = DefaultSort
	}
	slices.SortStableFunc(kept, e.comparator(sort))
	return kept
}

func (e *Engine) comparator(sort SortOption) func(a, b models.Record) int {
	switch sort {
	case SortDateAsc:
		return models.ByDiscovered(false)
	case SortLevelDesc:
		return func(a, b models.Record) int { return cmp.Compare(b.Metadata.Level.Rank(), a.Metadata.Level.Rank()) }
	case SortLevelAsc:
		return func(a, b models.Record) int { return cmp.Compare(a.Metadata.Level.Rank(), b.Metadata.Level.Rank()) }
	case SortTitleAsc, SortTitleDesc:
		// collators are not safe for concurrent use; one per call
		c := collate.New(e.locale)
		if sort == SortTitleDesc {
			return func(a, b models.Record) int { return c.CompareString(b.Metadata.Title, a.Metadata.Title) }
		}
		return func(a, b models.Record) int { return c.CompareString(a.Metadata.Title, b.Metadata.Title) }
	default:
		return models.ByDiscovered(true)
	}
}

// Paginate returns the window [offset, offset+limit) of records and the
// total count. A limit of zero or less returns everything from offset.
func Paginate(records []models.Record, limit, offset int) ([]models.Record, int) {
	total := len(records)
	if offset < 0 {
		offset = 0
	}
	if offset >= total {
		return []models.Record{}, total
	}
	end := total
	if limit > 0 && offset+limit < total {
		end = offset + limit
	}
	return records[offset:end], total
}
