package query

import (
	"net/url"
	"testing"

	"github.com/starford/bugwall/internal/filter"
	"github.com/starford/bugwall/internal/models"
)

func TestEncode_DefaultIsEmpty(t *testing.T) {
	if m := Encode(State{}); len(m) != 0 {
		t.Errorf("default state encoded to %v", m)
	}
	if m := Encode(State{Sort: filter.SortDateDesc}); len(m) != 0 {
		t.Errorf("explicit default sort encoded to %v", m)
	}
	if q := (State{}).QueryString(); q != "" {
		t.Errorf("QueryString = %q", q)
	}
}

func TestRoundTrip(t *testing.T) {
	states := []State{
		{Search: "xss"},
		{Sort: filter.SortLevelDesc},
		{
			Search: "注入",
			Sort:   filter.SortTitleAsc,
			Filters: filter.Filters{
				Category: "Web",
				Status:   models.StatusResolved,
				Level:    models.LevelIV,
				DateFrom: "2024-01-01",
				DateTo:   "2024-12-31",
			},
		},
	}
	for _, s := range states {
		if got := Decode(Encode(s)); got != s {
			t.Errorf("round trip: got %+v, want %+v", got, s)
		}
		if got := FromValues(s.Values()); got != s {
			t.Errorf("values round trip: got %+v, want %+v", got, s)
		}
	}
}

func TestEncode_Canonicalizes(t *testing.T) {
	s := State{
		Search:  "  tls  ",
		Sort:    filter.SortDateDesc,
		Filters: filter.Filters{DateFrom: "2024-03-01T10:00:00Z", Level: "VI"},
	}
	m := Encode(s)
	if len(m) != 2 || m[KeySearch] != "tls" || m[KeyDateFrom] != "2024-03-01" {
		t.Errorf("Encode = %v", m)
	}
	want := State{Search: "tls", Filters: filter.Filters{DateFrom: "2024-03-01"}}
	if got := s.Canonical(); got != want {
		t.Errorf("Canonical = %+v, want %+v", got, want)
	}
	if got := Decode(Encode(s)); got != want {
		t.Errorf("round trip = %+v, want %+v", got, want)
	}
	if got := Decode(Encode(want)); got != want {
		t.Errorf("canonical round trip = %+v", got)
	}
}

func TestDecode_Tolerant(t *testing.T) {
	got := Decode(map[string]string{
		"status":   "pending",
		"level":    "VI",
		"sort":     "random",
		"dateFrom": "yesterday",
		"dateTo":   "2024-02-30",
		"page":     "2",
		"category": "Web",
	})
	want := State{Filters: filter.Filters{Category: "Web"}}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestFromValues_FirstValueWins(t *testing.T) {
	v := url.Values{"level": {"II", "V"}, "search": {"  tls  "}}
	got := FromValues(v)
	if got.Filters.Level != models.LevelII || got.Search != "tls" {
		t.Errorf("got %+v", got)
	}
}

func TestQueryString(t *testing.T) {
	s := State{Search: "sql injection", Filters: filter.Filters{Level: models.LevelV}}
	if got, want := s.QueryString(), "level=V&search=sql+injection"; got != want {
		t.Errorf("QueryString = %q, want %q", got, want)
	}
}
