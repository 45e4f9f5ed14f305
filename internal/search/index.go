// Package search ranks vulnerability records against free-text queries.
//
// Matching is approximate and weighted per field. Queries shaped like a
// record identifier (VUL-123) bypass ranking and return the direct ID hits.
package search

import (
	"cmp"
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"slices"
	"strings"

	"golang.org/x/text/cases"

	"github.com/starford/bugwall/internal/apperr"
	"github.com/starford/bugwall/internal/models"
)

// Field names a searchable part of a record.
type Field string

const (
	FieldID          Field = "id"
	FieldTitle       Field = "title"
	FieldDescription Field = "description"
	FieldCategory    Field = "category"
	FieldTags        Field = "tags"
	FieldContent     Field = "content"
)

// Fields lists every searchable field.
var Fields = []Field{FieldID, FieldTitle, FieldDescription, FieldCategory, FieldTags, FieldContent}

// DefaultThreshold is the worst per-field score still counted as a match.
const DefaultThreshold = 0.4

// epsilon stands in for a perfect field score so that the field weight
// still influences the product.
const epsilon = 2.220446049250313e-16

var idPattern = regexp.MustCompile(`^[A-Za-z]+-\d+`)

// Options tunes ranking.
type Options struct {
	Threshold float64
	Weights   map[Field]float64
}

// DefaultOptions returns the standard field weights and threshold.
func DefaultOptions() Options {
	return Options{
		Threshold: DefaultThreshold,
		Weights: map[Field]float64{
			FieldID:          0.30,
			FieldTitle:       0.40,
			FieldDescription: 0.20,
			FieldCategory:    0.15,
			FieldTags:        0.10,
			FieldContent:     0.05,
		},
	}
}

// Validate checks that the threshold lies in [0,1] and that every weight
// names a known field and is a finite non-negative number.
func (o Options) Validate() error {
	if math.IsNaN(o.Threshold) || o.Threshold < 0 || o.Threshold > 1 {
		return fmt.Errorf("threshold %v outside [0,1]", o.Threshold)
	}
	positive := false
	for f, w := range o.Weights {
		if !slices.Contains(Fields, f) {
			return fmt.Errorf("unknown field %q", f)
		}
		if math.IsNaN(w) || math.IsInf(w, 0) || w < 0 {
			return fmt.Errorf("field %q: invalid weight %v", f, w)
		}
		if w > 0 {
			positive = true
		}
	}
	if !positive {
		return fmt.Errorf("no field has a positive weight")
	}
	return nil
}

type document struct {
	values [][]string // per field in Fields order; folded
}

// Index is an immutable ranking structure over one record collection.
// Rebuild it whenever the collection changes.
type Index struct {
	records []models.Record
	docs    []document
	weights []float64
	opts    Options
}

// Build folds and indexes every searchable field of records.
func Build(records []models.Record, opts Options) (*Index, error) {
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("search: %w: %v", apperr.ErrSearchBuild, err)
	}
	fold := cases.Fold()
	docs := make([]document, len(records))
	for i, r := range records {
		values := make([][]string, len(Fields))
		for j, f := range Fields {
			raw := fieldValues(r, f)
			folded := make([]string, 0, len(raw))
			for _, v := range raw {
				folded = append(folded, fold.String(v))
			}
			values[j] = folded
		}
		docs[i] = document{values: values}
	}
	weights := make([]float64, len(Fields))
	for j, f := range Fields {
		weights[j] = opts.Weights[f]
	}
	return &Index{
		records: slices.Clone(records),
		docs:    docs,
		weights: weights,
		opts:    opts,
	}, nil
}

// Len reports the number of indexed records.
func (ix *Index) Len() int { return len(ix.records) }

// Query returns the records matching text, best match first.
// A blank query returns every record in input order.
func (ix *Index) Query(text string) []models.Record {
	q := strings.TrimSpace(text)
	if q == "" {
		return slices.Clone(ix.records)
	}
	if hits, ok := lookupID(ix.records, q); ok {
		return hits
	}

	folded := cases.Fold().String(q)

	type hit struct {
		pos   int
		score float64
	}
	var hits []hit
	for i, doc := range ix.docs {
		if score, ok := ix.score(doc, folded); ok {
			hits = append(hits, hit{pos: i, score: score})
		}
	}
	slices.SortStableFunc(hits, func(a, b hit) int { return cmp.Compare(a.score, b.score) })

	out := make([]models.Record, len(hits))
	for i, h := range hits {
		out[i] = ix.records[h.pos]
	}
	return out
}

func (ix *Index) score(doc document, q string) (float64, bool) {
	total := 1.0
	matched := false
	for j, values := range doc.values {
		w := ix.weights[j]
		if w == 0 {
			continue
		}
		for _, v := range values {
			s := scoreValue(q, v)
			if s > ix.opts.Threshold {
				continue
			}
			matched = true
			total *= math.Pow(math.Max(s, epsilon), w)
		}
	}
	return total, matched
}

// Search ranks records against text. When the index cannot be built it
// degrades to an unranked substring filter instead of failing.
func Search(records []models.Record, text string, opts Options, logger *slog.Logger) []models.Record {
	q := strings.TrimSpace(text)
	if q == "" {
		return slices.Clone(records)
	}
	if hits, ok := lookupID(records, q); ok {
		return hits
	}
	ix, err := Build(records, opts)
	if err != nil {
		if logger == nil {
			logger = slog.Default()
		}
		logger.Warn("search index unavailable, using substring match", slog.String("error", err.Error()))
		return Substring(records, q)
	}
	return ix.Query(q)
}

// Substring keeps the records where any field contains text, ignoring
// case. Input order is preserved.
func Substring(records []models.Record, text string) []models.Record {
	fold := cases.Fold()
	q := fold.String(strings.TrimSpace(text))
	if q == "" {
		return slices.Clone(records)
	}
	var out []models.Record
	for _, r := range records {
		if containsAny(fold, r, q) {
			out = append(out, r)
		}
	}
	return out
}

func containsAny(fold cases.Caser, r models.Record, q string) bool {
	for _, f := range Fields {
		for _, v := range fieldValues(r, f) {
			if strings.Contains(fold.String(v), q) {
				return true
			}
		}
	}
	return false
}

// lookupID returns the records whose id contains q when q looks like a
// record identifier. ok is false when the fast path does not apply or
// finds nothing.
func lookupID(records []models.Record, q string) ([]models.Record, bool) {
	if !idPattern.MatchString(q) {
		return nil, false
	}
	needle := strings.ToLower(q)
	var hits []models.Record
	for _, r := range records {
		if strings.Contains(strings.ToLower(r.Metadata.ID), needle) {
			hits = append(hits, r)
		}
	}
	return hits, len(hits) > 0
}

func fieldValues(r models.Record, f Field) []string {
	md := r.Metadata
	switch f {
	case FieldID:
		return []string{md.ID}
	case FieldTitle:
		return []string{md.Title}
	case FieldDescription:
		return []string{md.Description}
	case FieldCategory:
		return []string{md.Category}
	case FieldTags:
		return md.Tags
	case FieldContent:
		return []string{r.RawBody}
	}
	return nil
}
