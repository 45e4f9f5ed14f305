// Package query converts between the search/filter/sort state and the flat
// string parameters carried in shareable URLs.
package query

import (
	"net/url"
	"strings"

	"github.com/starford/bugwall/internal/filter"
	"github.com/starford/bugwall/internal/models"
	"github.com/starford/bugwall/internal/parser"
)

// Parameter keys.
const (
	KeySearch   = "search"
	KeyCategory = "category"
	KeyStatus   = "status"
	KeyLevel    = "level"
	KeyDateFrom = "dateFrom"
	KeyDateTo   = "dateTo"
	KeySort     = "sort"
)

// State is the full listing state.
type State struct {
	Filters filter.Filters    `json:"filters"`
	Search  string            `json:"search,omitempty"`
	Sort    filter.SortOption `json:"sort,omitempty"`
}

// SortOrDefault returns the effective sort option.
func (s State) SortOrDefault() filter.SortOption {
	if s.Sort == "" {
		return filter.DefaultSort
	}
	return s.Sort
}

// Canonical returns s as Encode writes it and Decode reads it back: search
// trimmed, dates as YYYY-MM-DD, unknown enum values and the default sort
// cleared. Decode(Encode(s)) equals s.Canonical() for every s, and equals s
// when s is already canonical.
func (s State) Canonical() State {
	return Decode(map[string]string{
		KeySearch:   s.Search,
		KeyCategory: s.Filters.Category,
		KeyStatus:   string(s.Filters.Status),
		KeyLevel:    string(s.Filters.Level),
		KeyDateFrom: s.Filters.DateFrom,
		KeyDateTo:   s.Filters.DateTo,
		KeySort:     string(s.Sort),
	})
}

// Encode returns the minimal parameter map for the canonical form of s.
// Absent values and the default sort are omitted, so the default state
// encodes to an empty map.
func Encode(s State) map[string]string {
	c := s.Canonical()
	m := make(map[string]string)
	put := func(k, v string) {
		if v != "" {
			m[k] = v
		}
	}
	put(KeySearch, c.Search)
	put(KeyCategory, c.Filters.Category)
	put(KeyStatus, string(c.Filters.Status))
	put(KeyLevel, string(c.Filters.Level))
	put(KeyDateFrom, c.Filters.DateFrom)
	put(KeyDateTo, c.Filters.DateTo)
	put(KeySort, string(c.Sort))
	return m
}

// Decode rebuilds a State from parameters. Unknown keys are ignored and
// malformed enum or date values decode as absent.
func Decode(m map[string]string) State {
	var s State
	s.Search = strings.TrimSpace(m[KeySearch])
	s.Filters.Category = m[KeyCategory]
	if st, ok := models.ParseStatus(m[KeyStatus]); ok {
		s.Filters.Status = st
	}
	if lv, ok := models.ParseLevel(m[KeyLevel]); ok {
		s.Filters.Level = lv
	}
	s.Filters.DateFrom = decodeDate(m[KeyDateFrom])
	s.Filters.DateTo = decodeDate(m[KeyDateTo])
	if so, ok := filter.ParseSortOption(m[KeySort]); ok && so != filter.DefaultSort {
		s.Sort = so
	}
	return s
}

func decodeDate(raw string) string {
	if raw == "" {
		return ""
	}
	key, _, ok := parser.NormalizeDate(raw)
	if !ok {
		return ""
	}
	return key
}

// FromValues decodes HTTP query parameters. Only the first value of each
// key is considered.
func FromValues(v url.Values) State {
	m := make(map[string]string, len(v))
	for k := range v {
		m[k] = v.Get(k)
	}
	return Decode(m)
}

// Values returns the encoded state as url.Values.
func (s State) Values() url.Values {
	v := make(url.Values)
	for k, val := range Encode(s) {
		v.Set(k, val)
	}
	return v
}

// QueryString returns the encoded state as a URL query, keys sorted.
// The default state yields "".
func (s State) QueryString() string {
	return s.Values().Encode()
}
