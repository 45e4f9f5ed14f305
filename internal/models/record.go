// Package models defines the domain types for the vulnerability catalog.
package models

import "time"

// Status is the remediation state of a vulnerability.
type Status string

const (
	StatusUnresolved    Status = "unresolved"
	StatusResolved      Status = "resolved"
	StatusNotApplicable Status = "not-applicable"
	StatusArchived      Status = "archived"
)

// Statuses lists every valid status in display order.
var Statuses = []Status{StatusUnresolved, StatusResolved, StatusNotApplicable, StatusArchived}

// Valid reports whether s is one of the enumerated statuses.
func (s Status) Valid() bool {
	_, ok := ParseStatus(string(s))
	return ok
}

// ParseStatus maps a raw string to a Status.
func ParseStatus(raw string) (Status, bool) {
	for _, s := range Statuses {
		if string(s) == raw {
			return s, true
		}
	}
	return "", false
}

// Level is the ordinal severity of a vulnerability, I (lowest) to V (highest).
type Level string

const (
	LevelI   Level = "I"
	LevelII  Level = "II"
	LevelIII Level = "III"
	LevelIV  Level = "IV"
	LevelV   Level = "V"
)

// Levels lists every valid level in ascending order.
var Levels = []Level{LevelI, LevelII, LevelIII, LevelIV, LevelV}

// Rank returns the ordinal 1..5, or 0 for an unknown level.
func (l Level) Rank() int {
	for i, v := range Levels {
		if v == l {
			return i + 1
		}
	}
	return 0
}

// Valid reports whether l is one of the enumerated levels.
func (l Level) Valid() bool { return l.Rank() > 0 }

// Critical reports whether l counts as high severity (IV or V).
func (l Level) Critical() bool { return l.Rank() >= LevelIV.Rank() }

// ParseLevel maps a raw string to a Level.
func ParseLevel(raw string) (Level, bool) {
	l := Level(raw)
	if !l.Valid() {
		return "", false
	}
	return l, true
}

// Metadata is the structured header of a vulnerability document.
type Metadata struct {
	ID           string   `yaml:"id" json:"id"`
	Title        string   `yaml:"title" json:"title"`
	Status       Status   `yaml:"status" json:"status"`
	Level        Level    `yaml:"level" json:"level"`
	DiscoveredAt string   `yaml:"discoveredAt" json:"discoveredAt"`
	Category     string   `yaml:"category" json:"category"`
	Description  string   `yaml:"description,omitempty" json:"description,omitempty"`
	Tags         []string `yaml:"tags,omitempty" json:"tags,omitempty"`
}

// Record is one parsed document plus its rendered body. Records are built
// fresh on every corpus load and are not modified afterwards.
type Record struct {
	Slug         string   `json:"slug"`
	Path         string   `json:"path"`
	Metadata     Metadata `json:"metadata"`
	RawBody      string   `json:"rawBody"`
	RenderedBody string   `json:"renderedBody"`
	Checksum     string   `json:"checksum"`

	// DateKey is DiscoveredAt normalized to YYYY-MM-DD; empty when the date
	// could not be parsed.
	DateKey    string    `json:"dateKey,omitempty"`
	Discovered time.Time `json:"-"`
}

// HasDate reports whether the record carries a parseable discovery date.
func (r *Record) HasDate() bool { return r.DateKey != "" }

// ByDiscovered returns a comparator over discovery time, newest first when
// desc is set. Records without a parseable date sort last either way.
func ByDiscovered(desc bool) func(a, b Record) int {
	return func(a, b Record) int {
		ad, bd := a.HasDate(), b.HasDate()
		switch {
		case !ad && !bd:
			return 0
		case !ad:
			return 1
		case !bd:
			return -1
		}
		if desc {
			return b.Discovered.Compare(a.Discovered)
		}
		return a.Discovered.Compare(b.Discovered)
	}
}

// Stats summarizes a record collection.
type Stats struct {
	Total         int `json:"total"`
	Unresolved    int `json:"unresolved"`
	Resolved      int `json:"resolved"`
	NotApplicable int `json:"notApplicable"`
	Archived      int `json:"archived"`
	Critical      int `json:"critical"`
}

// ComputeStats counts records per status and high-severity records.
func ComputeStats(records []Record) Stats {
	st := Stats{Total: len(records)}
	for i := range records {
		md := &records[i].Metadata
		switch md.Status {
		case StatusUnresolved:
			st.Unresolved++
		case StatusResolved:
			st.Resolved++
		case StatusNotApplicable:
			st.NotApplicable++
		case StatusArchived:
			st.Archived++
		}
		if md.Level.Critical() {
			st.Critical++
		}
	}
	return st
}
