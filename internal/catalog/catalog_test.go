package catalog

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/starford/bugwall/internal/apperr"
	"github.com/starford/bugwall/internal/corpus"
	"github.com/starford/bugwall/internal/filter"
	"github.com/starford/bugwall/internal/models"
	"github.com/starford/bugwall/internal/query"
	"github.com/starford/bugwall/internal/render"
	"github.com/starford/bugwall/internal/search"
	"github.com/starford/bugwall/internal/storage"
	"github.com/starford/bugwall/internal/testutil"
)

func newCatalog(t *testing.T, store storage.Provider, perRequest bool) *Catalog {
	t.Helper()
	logger := testutil.Logger()
	r := render.New(render.Options{Logger: logger})
	ld := corpus.NewLoader(store, r, corpus.WithLogger(logger))
	return New(ld, r, Options{ReloadPerRequest: perRequest, Logger: logger})
}

func seed() map[string]string {
	docs := map[string]string{}
	add := func(name string, m testutil.Meta, body string) {
		docs[name] = testutil.Doc(m, body)
	}
	m := testutil.Valid("VUL-001", "2024-01-10")
	m.Title = "SQL injection in login"
	m.Level = "V"
	add("vul-001.md", m, "Payload `' OR 1=1 --`.")

	m = testutil.Valid("VUL-002", "2024-02-01")
	m.Title = "Stored XSS"
	m.Status = "resolved"
	m.Level = "I"
	add("vul-002.md", m, "Script tag in comments.")

	m = testutil.Valid("VUL-003", "2024-03-05")
	m.Title = "Open redirect"
	m.Category = "Network"
	m.Level = "IV"
	add("vul-003.md", m, "Unvalidated next parameter.")
	return docs
}

func slugs(records []models.Record) string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.Slug
	}
	return strings.Join(out, ",")
}

func TestList_DefaultOrder(t *testing.T) {
	c := newCatalog(t, testutil.MemoryStore(seed()), false)
	if _, err := c.Reload(context.Background()); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	page, err := c.List(context.Background(), query.State{}, 0, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if got := slugs(page.Records); got != "vul-003,vul-002,vul-001" {
		t.Errorf("order = %s", got)
	}
	if page.Total != 3 || page.Query != "" {
		t.Errorf("total=%d query=%q", page.Total, page.Query)
	}
}

func TestList_SearchFilterSortPage(t *testing.T) {
	c := newCatalog(t, testutil.MemoryStore(seed()), false)
	ctx := context.Background()

	page, err := c.List(ctx, query.State{Search: "VUL-002"}, 0, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if got := slugs(page.Records); got != "vul-002" {
		t.Errorf("id search = %s", got)
	}

	st := query.State{
		Filters: filter.Filters{Status: models.StatusUnresolved},
		Sort:    filter.SortLevelAsc,
	}
	page, err = c.List(ctx, st, 1, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if page.Total != 2 || slugs(page.Records) != "vul-003" {
		t.Errorf("total=%d page=%s", page.Total, slugs(page.Records))
	}
	if page.Query != "sort=level-asc&status=unresolved" {
		t.Errorf("query = %q", page.Query)
	}
}

func TestGetCategoriesStatsRecent(t *testing.T) {
	for _, perRequest := range []bool{false, true} {
		c := newCatalog(t, testutil.MemoryStore(seed()), perRequest)
		ctx := context.Background()

		rec, err := c.Get(ctx, "vul-001")
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if !strings.Contains(rec.RenderedBody, "<code>") {
			t.Errorf("rendered body = %q", rec.RenderedBody)
		}
		if _, err := c.Get(ctx, "nope"); !errors.Is(err, apperr.ErrNotFound) {
			t.Errorf("missing slug err = %v", err)
		}

		cats, err := c.Categories(ctx)
		if err != nil || strings.Join(cats, ",") != "Network,Web" {
			t.Errorf("categories = %v, %v", cats, err)
		}

		st, err := c.Stats(ctx)
		if err != nil {
			t.Fatalf("Stats: %v", err)
		}
		want := models.Stats{Total: 3, Unresolved: 2, Resolved: 1, Critical: 2}
		if st != want {
			t.Errorf("stats = %+v, want %+v", st, want)
		}

		recent, err := c.Recent(ctx, 2)
		if err != nil || slugs(recent) != "vul-003,vul-002" {
			t.Errorf("recent = %s, %v", slugs(recent), err)
		}
	}
}

func TestReloadPerRequestSeesChanges(t *testing.T) {
	store := testutil.MemoryStore(seed())
	c := newCatalog(t, store, true)
	ctx := context.Background()

	st, _ := c.Stats(ctx)
	if st.Total != 3 {
		t.Fatalf("total = %d", st.Total)
	}
	store.Put("vul-004.md", []byte(testutil.Doc(testutil.Valid("VUL-004", "2024-04-01"), "")))
	st, _ = c.Stats(ctx)
	if st.Total != 4 {
		t.Errorf("total after put = %d, want 4", st.Total)
	}
}

func TestSnapshotIsStableUntilReload(t *testing.T) {
	store := testutil.MemoryStore(seed())
	c := newCatalog(t, store, false)
	ctx := context.Background()
	if _, err := c.Reload(ctx); err != nil {
		t.Fatal(err)
	}
	v1 := c.Version()

	store.Put("vul-004.md", []byte(testutil.Doc(testutil.Valid("VUL-004", "2024-04-01"), "")))
	if st, _ := c.Stats(ctx); st.Total != 3 {
		t.Errorf("snapshot changed without reload: %d", st.Total)
	}
	if _, err := c.Reload(ctx); err != nil {
		t.Fatal(err)
	}
	if c.Version() == v1 {
		t.Error("version unchanged after content change")
	}
}

func TestPreviewMatchesStoredRendering(t *testing.T) {
	body := "| a | b |\n|---|---|\n| 1 | 2 |\n"
	docs := map[string]string{"vul-9.md": testutil.Doc(testutil.Valid("VUL-9", "2024-01-01"), body)}
	c := newCatalog(t, testutil.MemoryStore(docs), false)
	ctx := context.Background()

	rec, err := c.Get(ctx, "vul-9")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	html, err := c.Preview(ctx, body)
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	if html != rec.RenderedBody {
		t.Errorf("preview differs from stored rendering:\n%q\n%q", html, rec.RenderedBody)
	}
}

func TestWatch_ReloadsAfterChange(t *testing.T) {
	dir, store := testutil.TestStore(t)
	c := newCatalog(t, store, false)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if _, err := c.Reload(ctx); err != nil {
		t.Fatal(err)
	}

	var mu sync.Mutex
	var reloads []int
	go c.Watch(ctx, store, 50*time.Millisecond, func(s *Snapshot) {
		mu.Lock()
		reloads = append(reloads, len(s.Records))
		mu.Unlock()
	})
	time.Sleep(100 * time.Millisecond)

	for i, id := range []string{"VUL-1", "VUL-2", "VUL-3"} {
		name := strings.ToLower(id) + ".md"
		testutil.WriteFile(t, dir, name, testutil.Doc(testutil.Valid(id, "2024-01-0"+string(rune('1'+i))), ""))
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if st, _ := c.Stats(ctx); st.Total == 3 {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}
	if st, _ := c.Stats(ctx); st.Total != 3 {
		t.Fatalf("total = %d after watcher reload", st.Total)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(reloads) == 0 || reloads[len(reloads)-1] != 3 {
		t.Errorf("callback saw %v", reloads)
	}
}

func TestReload_StaleDoesNotReplaceNewer(t *testing.T) {
	c := newCatalog(t, testutil.MemoryStore(seed()), false)
	newer := c.build(nil, nil, 10)
	c.snap.Store(newer)
	c.gen.Store(4)

	got, err := c.Reload(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if got != newer || c.snap.Load() != newer {
		t.Error("older reload replaced a newer snapshot")
	}
}

func TestSnapshotSearch_NarrowsGivenRecords(t *testing.T) {
	c := newCatalog(t, testutil.MemoryStore(seed()), false)
	snap, err := c.Reload(context.Background())
	if err != nil {
		t.Fatalf("Reload: %v", err)
	}
	subset := snap.Records[1:] // vul-002, vul-001
	if got := slugs(snap.search(subset, "redirect")); got != "" {
		t.Errorf("search outside subset returned %q", got)
	}
	if got := slugs(snap.search(subset, "injection")); got != "vul-001" {
		t.Errorf("subset search = %q", got)
	}
	if got := slugs(snap.search(snap.Records, "redirect")); got != "vul-003" {
		t.Errorf("full search = %q", got)
	}
}

func TestList_BrokenIndexKeepsIDLookup(t *testing.T) {
	docs := seed()
	m := testutil.Valid("VUL-004", "2024-04-01")
	docs["vul-004.md"] = testutil.Doc(m, "Same root cause as VUL-001.")

	logger := testutil.Logger()
	r := render.New(render.Options{Logger: logger})
	opts := search.DefaultOptions()
	opts.Threshold = 2
	c := New(corpus.NewLoader(testutil.MemoryStore(docs), r, corpus.WithLogger(logger)), r,
		Options{Search: opts, Logger: logger})
	if _, err := c.Reload(context.Background()); err != nil {
		t.Fatalf("Reload: %v", err)
	}

	page, err := c.List(context.Background(), query.State{Search: "VUL-001"}, 0, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if got := slugs(page.Records); got != "vul-001" {
		t.Errorf("id lookup = %q, want vul-001 only", got)
	}

	page, err = c.List(context.Background(), query.State{Search: "redirect"}, 0, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if got := slugs(page.Records); got != "vul-003" {
		t.Errorf("substring fallback = %q", got)
	}
}

func TestSuggest(t *testing.T) {
	for _, perRequest := range []bool{false, true} {
		c := newCatalog(t, testutil.MemoryStore(seed()), perRequest)
		if got, ok := c.Suggest(context.Background(), "VUL-0003"); !ok || got != "vul-003" {
			t.Errorf("perRequest=%v: Suggest = %q, %v", perRequest, got, ok)
		}
		if got, ok := c.Suggest(context.Background(), "completely-unrelated"); ok {
			t.Errorf("perRequest=%v: unexpected suggestion %q", perRequest, got)
		}
	}
}
