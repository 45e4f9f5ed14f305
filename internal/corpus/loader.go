// Package corpus turns the documents of a content store into the ordered
// record collection served to every listing.
package corpus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/starford/bugwall/internal/apperr"
	"github.com/starford/bugwall/internal/checksum"
	"github.com/starford/bugwall/internal/models"
	"github.com/starford/bugwall/internal/parser"
	"github.com/starford/bugwall/internal/render"
	"github.com/starford/bugwall/internal/storage"
)

// DefaultConcurrency bounds parallel document loads when unset.
const DefaultConcurrency = 8

// Loader reads, parses and renders every document of a store.
type Loader struct {
	store       storage.Provider
	renderer    *render.Renderer
	logger      *slog.Logger
	concurrency int
}

// Option configures a Loader.
type Option func(*Loader)

// WithLogger sets the logger used for skipped documents.
func WithLogger(l *slog.Logger) Option {
	return func(ld *Loader) {
		if l != nil {
			ld.logger = l
		}
	}
}

// WithConcurrency bounds the number of documents loaded at once.
func WithConcurrency(n int) Option {
	return func(ld *Loader) {
		if n > 0 {
			ld.concurrency = n
		}
	}
}

// NewLoader returns a Loader over store.
func NewLoader(store storage.Provider, renderer *render.Renderer, opts ...Option) *Loader {
	ld := &Loader{
		store:       store,
		renderer:    renderer,
		logger:      slog.Default(),
		concurrency: DefaultConcurrency,
	}
	for _, o := range opts {
		o(ld)
	}
	return ld
}

// LoadAll returns every valid record, newest discovery first. Invalid and
// duplicate documents are skipped with a warning. An absent store yields
// an empty slice. When the store cannot be read the result is also empty
// and the ErrStoreUnavailable error is returned for reporting.
func (l *Loader) LoadAll(ctx context.Context) ([]models.Record, error) {
	entries, err := l.list(ctx)
	if err != nil {
		return []models.Record{}, err
	}

	loaded := make([]*models.Record, len(entries))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.concurrency)
	for i, e := range entries {
		g.Go(func() error {
			rec, err := l.load(gctx, e)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				l.skip(e.Name, err)
				return nil
			}
			loaded[i] = rec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return []models.Record{}, err
	}

	records := make([]models.Record, 0, len(loaded))
	seen := make(map[string]string, len(loaded))
	for _, rec := range loaded {
		if rec == nil {
			continue
		}
		if first, dup := seen[rec.Slug]; dup {
			l.skip(rec.Path, fmt.Errorf("corpus: %w: %q already defined by %s", apperr.ErrDuplicateSlug, rec.Slug, first))
			continue
		}
		seen[rec.Slug] = rec.Path
		records = append(records, *rec)
	}
	slices.SortStableFunc(records, models.ByDiscovered(true))
	return records, nil
}

// ListCategories returns the sorted distinct categories of all valid
// documents. Only headers are decoded; nothing is rendered.
func (l *Loader) ListCategories(ctx context.Context) ([]string, error) {
	entries, err := l.list(ctx)
	if err != nil {
		return []string{}, err
	}

	cats := make([]string, len(entries))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.concurrency)
	for i, e := range entries {
		g.Go(func() error {
			data, err := l.store.Read(gctx, e.Name)
			if err == nil {
				var md *models.Metadata
				if md, err = parser.ParseHeader(data); err == nil {
					cats[i] = md.Category
					return nil
				}
			}
			if ctxErr := gctx.Err(); ctxErr != nil {
				return ctxErr
			}
			l.skip(e.Name, err)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return []string{}, err
	}
	return Categories(cats), nil
}

// Get loads the record with the given slug. When several documents share
// the slug, the first valid one in name order wins, as in LoadAll.
func (l *Loader) Get(ctx context.Context, slug string) (*models.Record, error) {
	entries, err := l.list(ctx)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if e.Slug != slug {
			continue
		}
		rec, err := l.load(ctx, e)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			l.skip(e.Name, err)
			continue
		}
		return rec, nil
	}
	return nil, fmt.Errorf("corpus: record %q: %w", slug, apperr.ErrNotFound)
}

// Categories returns the sorted distinct non-empty values of cats.
func Categories(cats []string) []string {
	out := make([]string, 0, len(cats))
	for _, c := range cats {
		if c != "" {
			out = append(out, c)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

func (l *Loader) list(ctx context.Context) ([]storage.Entry, error) {
	entries, err := l.store.List(ctx)
	if err != nil {
		if errors.Is(err, apperr.ErrStoreUnavailable) {
			l.logger.Error("corpus: content store unavailable", slog.String("error", err.Error()))
		}
		return nil, err
	}
	return entries, nil
}

func (l *Loader) load(ctx context.Context, e storage.Entry) (*models.Record, error) {
	data, err := l.store.Read(ctx, e.Name)
	if err != nil {
		return nil, err
	}
	doc, err := parser.Parse(e.Slug, data)
	if err != nil {
		return nil, err
	}
	html, err := l.renderer.RenderFrom(ctx, render.Document(data), e.Name)
	if err != nil {
		return nil, err
	}
	rec := &models.Record{
		Slug:         doc.Slug,
		Path:         e.Name,
		Metadata:     doc.Metadata,
		RawBody:      doc.RawBody,
		RenderedBody: html,
		Checksum:     checksum.Sum(data),
	}
	if key, t, ok := parser.NormalizeDate(doc.Metadata.DiscoveredAt); ok {
		rec.DateKey = key
		rec.Discovered = t
	} else {
		l.logger.Warn("corpus: unparseable discoveredAt",
			slog.String("path", e.Name),
			slog.String("discoveredAt", doc.Metadata.DiscoveredAt))
	}
	return rec, nil
}

func (l *Loader) skip(name string, err error) {
	l.logger.Warn("corpus: document skipped", slog.String("path", name), slog.String("error", err.Error()))
}
