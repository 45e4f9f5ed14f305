// Package catalog serves the vulnerability records of one content store:
// listing with search, filters and sorting, single lookups, categories,
// statistics and sandboxed previews.
package catalog

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/agnivade/levenshtein"

	"github.com/starford/bugwall/internal/apperr"
	"github.com/starford/bugwall/internal/checksum"
	"github.com/starford/bugwall/internal/corpus"
	"github.com/starford/bugwall/internal/filter"
	"github.com/starford/bugwall/internal/models"
	"github.com/starford/bugwall/internal/query"
	"github.com/starford/bugwall/internal/render"
	"github.com/starford/bugwall/internal/search"
)

// DefaultRecent is the number of records returned by Recent when n <= 0.
const DefaultRecent = 5

const maxSuggestDistance = 3

// Snapshot is one immutable load of the corpus.
type Snapshot struct {
	Records    []models.Record
	Categories []string
	Stats      models.Stats
	Version    string
	LoadedAt   time.Time
	// Err is the store error of the load that produced this snapshot, if any.
	Err error

	index      *search.Index
	searchOpts search.Options
	logger     *slog.Logger
	bySlug     map[string]int
	gen        uint64
}

// search narrows records to the matches for q. The prebuilt index only
// covers the snapshot's own records; any other slice is searched directly.
func (s *Snapshot) search(records []models.Record, q string) []models.Record {
	if s.index != nil && sameRecords(records, s.Records) {
		return s.index.Query(q)
	}
	return search.Search(records, q, s.searchOpts, s.logger)
}

func sameRecords(a, b []models.Record) bool {
	if len(a) != len(b) {
		return false
	}
	return len(a) == 0 || &a[0] == &b[0]
}

// Page is one window of a listing.
type Page struct {
	Records []models.Record `json:"records"`
	Total   int             `json:"total"`
	Query   string          `json:"query"`
}

// Options configures a Catalog.
type Options struct {
	Search search.Options
	Locale string
	// ReloadPerRequest reloads the corpus on every read instead of serving
	// the last snapshot.
	ReloadPerRequest bool
	Logger           *slog.Logger
}

// Catalog owns the current snapshot and swaps it atomically on reload.
type Catalog struct {
	loader   *corpus.Loader
	renderer *render.Renderer
	opts     Options
	logger   *slog.Logger

	snap atomic.Pointer[Snapshot]
	gen  atomic.Uint64
}

// New returns a Catalog. Call Reload before serving unless
// ReloadPerRequest is set.
func New(loader *corpus.Loader, renderer *render.Renderer, opts Options) *Catalog {
	if opts.Search.Weights == nil {
		opts.Search = search.DefaultOptions()
	}
	if opts.Locale == "" {
		opts.Locale = filter.DefaultLocale
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Catalog{loader: loader, renderer: renderer, opts: opts, logger: logger}
}

// Reload loads the corpus and installs it as the current snapshot unless a
// reload that started later has already been installed. A store failure
// installs an empty snapshot and returns the error.
func (c *Catalog) Reload(ctx context.Context) (*Snapshot, error) {
	gen := c.gen.Add(1)
	records, err := c.loader.LoadAll(ctx)
	if err != nil && !errors.Is(err, apperr.ErrStoreUnavailable) {
		return nil, err
	}
	snap := c.build(records, err, gen)

	for {
		cur := c.snap.Load()
		if cur != nil && cur.gen > gen {
			c.logger.Debug("catalog: discarding stale reload", slog.Uint64("gen", gen))
			return cur, err
		}
		if c.snap.CompareAndSwap(cur, snap) {
			break
		}
	}
	c.logger.Info("catalog: reloaded",
		slog.Int("records", len(snap.Records)),
		slog.String("version", snap.Version))
	return snap, err
}

func (c *Catalog) build(records []models.Record, loadErr error, gen uint64) *Snapshot {
	snap := &Snapshot{
		Records:    records,
		Stats:      models.ComputeStats(records),
		LoadedAt:   time.Now(),
		Err:        loadErr,
		searchOpts: c.opts.Search,
		logger:     c.logger,
		bySlug:     make(map[string]int, len(records)),
		gen:        gen,
	}
	sums := make([]string, len(records))
	cats := make([]string, len(records))
	for i, r := range records {
		sums[i] = r.Checksum
		cats[i] = r.Metadata.Category
		snap.bySlug[r.Slug] = i
	}
	snap.Version = checksum.Combine(sums)
	snap.Categories = corpus.Categories(cats)

	ix, err := search.Build(records, c.opts.Search)
	if err != nil {
		c.logger.Warn("catalog: search index unavailable, using substring match", slog.String("error", err.Error()))
	}
	snap.index = ix
	return snap
}

// Snapshot returns the snapshot reads are served from.
func (c *Catalog) Snapshot(ctx context.Context) (*Snapshot, error) {
	if c.opts.ReloadPerRequest {
		return c.Reload(ctx)
	}
	if s := c.snap.Load(); s != nil {
		return s, s.Err
	}
	return c.Reload(ctx)
}

// Ready reports whether reads can be served without an initial load.
func (c *Catalog) Ready() bool {
	return c.opts.ReloadPerRequest || c.snap.Load() != nil
}

// Version returns the version of the installed snapshot, or "" before the
// first load.
func (c *Catalog) Version() string {
	if s := c.snap.Load(); s != nil {
		return s.Version
	}
	return ""
}

// List searches, filters, sorts and paginates the corpus.
func (c *Catalog) List(ctx context.Context, st query.State, limit, offset int) (Page, error) {
	snap, err := c.Snapshot(ctx)
	if snap == nil {
		return Page{Records: []models.Record{}}, err
	}
	engine := filter.NewEngine(snap.search, c.opts.Locale)
	all := engine.Apply(snap.Records, st.Search, st.Filters, st.SortOrDefault())
	records, total := filter.Paginate(all, limit, offset)
	return Page{Records: records, Total: total, Query: st.QueryString()}, err
}

// Get returns the record with the given slug.
func (c *Catalog) Get(ctx context.Context, slug string) (*models.Record, error) {
	if c.opts.ReloadPerRequest {
		return c.loader.Get(ctx, slug)
	}
	snap, err := c.Snapshot(ctx)
	if snap == nil {
		return nil, err
	}
	i, ok := snap.bySlug[slug]
	if !ok {
		if err != nil {
			return nil, err
		}
		return nil, apperr.ErrNotFound
	}
	rec := snap.Records[i]
	return &rec, nil
}

// Suggest returns the known slug closest to slug by edit distance. ok is
// false when no slug is within maxSuggestDistance edits.
func (c *Catalog) Suggest(ctx context.Context, slug string) (string, bool) {
	snap, _ := c.Snapshot(ctx)
	if snap == nil || slug == "" {
		return "", false
	}
	needle := strings.ToLower(slug)
	best, bestDist := "", maxSuggestDistance+1
	for i := range snap.Records {
		cand := snap.Records[i].Slug
		if d := levenshtein.ComputeDistance(needle, strings.ToLower(cand)); d < bestDist {
			best, bestDist = cand, d
		}
	}
	return best, best != ""
}

// Categories returns the sorted distinct categories.
func (c *Catalog) Categories(ctx context.Context) ([]string, error) {
	if c.opts.ReloadPerRequest {
		return c.loader.ListCategories(ctx)
	}
	snap, err := c.Snapshot(ctx)
	if snap == nil {
		return []string{}, err
	}
	return snap.Categories, err
}

// Stats returns status and severity counts.
func (c *Catalog) Stats(ctx context.Context) (models.Stats, error) {
	snap, err := c.Snapshot(ctx)
	if snap == nil {
		return models.Stats{}, err
	}
	return snap.Stats, err
}

// Recent returns the n most recently discovered records.
func (c *Catalog) Recent(ctx context.Context, n int) ([]models.Record, error) {
	if n <= 0 {
		n = DefaultRecent
	}
	snap, err := c.Snapshot(ctx)
	if snap == nil {
		return []models.Record{}, err
	}
	records, _ := filter.Paginate(snap.Records, n, 0)
	return records, err
}

// Preview renders markup in sandboxed mode; the store is never touched.
func (c *Catalog) Preview(ctx context.Context, markup string) (string, error) {
	return c.renderer.RenderFrom(ctx, render.Text(markup), "")
}

// Renderer returns the renderer used for records and previews.
func (c *Catalog) Renderer() *render.Renderer { return c.renderer }
