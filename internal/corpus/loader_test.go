package corpus

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/starford/bugwall/internal/apperr"
	"github.com/starford/bugwall/internal/models"
	"github.com/starford/bugwall/internal/render"
	"github.com/starford/bugwall/internal/storage"
	"github.com/starford/bugwall/internal/testutil"
)

func newLoader(store storage.Provider) *Loader {
	logger := testutil.Logger()
	return NewLoader(store, render.New(render.Options{Logger: logger}), WithLogger(logger), WithConcurrency(4))
}

func slugs(records []models.Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.Slug
	}
	return out
}

func TestLoadAll_AbsentStore(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "bugs")
	store, err := storage.NewFS(dir)
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	if err := os.RemoveAll(dir); err != nil {
		t.Fatal(err)
	}
	ld := newLoader(store)

	records, err := ld.LoadAll(context.Background())
	if err != nil {
		t.Fatalf("LoadAll on absent store: %v", err)
	}
	if records == nil || len(records) != 0 {
		t.Fatalf("want empty non-nil slice, got %v", records)
	}

	testutil.WriteFile(t, dir, "vul-1.md", testutil.Doc(testutil.Valid("VUL-1", "2024-01-01"), "body"))
	records, err = ld.LoadAll(context.Background())
	if err != nil {
		t.Fatalf("second LoadAll: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d records after creation", len(records))
	}
}

func TestLoadAll_NewestFirst(t *testing.T) {
	store := testutil.MemoryStore(map[string]string{
		"a.md": testutil.Doc(testutil.Valid("VUL-1", "2023-06-01"), "a"),
		"b.md": testutil.Doc(testutil.Valid("VUL-2", "2024-03-15"), "b"),
		"c.md": testutil.Doc(testutil.Valid("VUL-3", "not a date"), "c"),
		"d.md": testutil.Doc(testutil.Valid("VUL-4", "2024-01-20"), "d"),
		"e.md": testutil.Doc(testutil.Valid("VUL-5", "2024-01-20"), "e"),
	})
	records, err := newLoader(store).LoadAll(context.Background())
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	want := []string{"b", "d", "e", "a", "c"}
	got := slugs(records)
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("order = %v, want %v", got, want)
	}
	for i := 1; i < len(records); i++ {
		prev, cur := records[i-1], records[i]
		if cur.HasDate() && prev.HasDate() && cur.DateKey > prev.DateKey {
			t.Errorf("records %d and %d out of order", i-1, i)
		}
	}
}

func TestLoadAll_SkipsInvalid(t *testing.T) {
	missing := testutil.Valid("VUL-2", "2024-01-01")
	missing.Title = ""
	badLevel := testutil.Valid("VUL-3", "2024-01-01")
	badLevel.Level = "VI"

	store := testutil.MemoryStore(map[string]string{
		"good.md":     testutil.Doc(testutil.Valid("VUL-1", "2024-01-01"), "ok"),
		"notitle.md":  testutil.Doc(missing, "x"),
		"badlevel.md": testutil.Doc(badLevel, "x"),
		"noheader.md": "# just a body\n",
		"shape.md":    "---\nid: {a: 1}\n---\n",
		"readme.txt":  "ignored",
	})
	records, err := newLoader(store).LoadAll(context.Background())
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if got := slugs(records); len(got) != 1 || got[0] != "good" {
		t.Fatalf("got %v, want [good]", got)
	}
}

func TestLoadAll_RecordFields(t *testing.T) {
	m := testutil.Valid("VUL-7", "2024-05-05")
	m.Tags = []string{"sqli", "auth"}
	doc := testutil.Doc(m, "**bold** text\n")
	store := testutil.MemoryStore(map[string]string{"vul-7.md": doc})

	records, err := newLoader(store).LoadAll(context.Background())
	if err != nil || len(records) != 1 {
		t.Fatalf("LoadAll: %v, %d records", err, len(records))
	}
	r := records[0]
	if r.Slug != "vul-7" || r.Path != "vul-7.md" {
		t.Errorf("slug/path = %q/%q", r.Slug, r.Path)
	}
	if r.Metadata.ID != "VUL-7" || len(r.Metadata.Tags) != 2 {
		t.Errorf("metadata = %+v", r.Metadata)
	}
	if !strings.Contains(r.RenderedBody, "<strong>bold</strong>") {
		t.Errorf("rendered = %q", r.RenderedBody)
	}
	if r.DateKey != "2024-05-05" || r.Checksum == "" {
		t.Errorf("dateKey=%q checksum=%q", r.DateKey, r.Checksum)
	}
	preview, err := render.New(render.Options{Logger: testutil.Logger()}).
		RenderFrom(context.Background(), render.Text("**bold** text\n"), "")
	if err != nil || r.RenderedBody != preview {
		t.Errorf("stored body %q differs from sandboxed %q (%v)", r.RenderedBody, preview, err)
	}
}

func TestLoadAll_DuplicateSlugFirstWins(t *testing.T) {
	dir, store := testutil.TestStore(t)
	testutil.WriteFile(t, dir, "a/vul-1.md", testutil.Doc(testutil.Valid("VUL-1", "2024-01-01"), "first"))
	testutil.WriteFile(t, dir, "b/vul-1.md", testutil.Doc(testutil.Valid("VUL-1B", "2024-02-01"), "second"))

	ld := newLoader(store)
	records, err := ld.LoadAll(context.Background())
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if len(records) != 1 || records[0].Path != "a/vul-1.md" {
		t.Fatalf("got %+v", records)
	}

	rec, err := ld.Get(context.Background(), "vul-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec.Metadata.ID != "VUL-1" {
		t.Errorf("Get returned %s, want the first document", rec.Metadata.ID)
	}
}

func TestLoadAll_StoreUnavailable(t *testing.T) {
	if runtime.GOOS == "windows" || os.Geteuid() == 0 {
		t.Skip("permission bits not enforced")
	}
	dir, store := testutil.TestStore(t)
	testutil.WriteFile(t, dir, "sub/vul-1.md", testutil.Doc(testutil.Valid("VUL-1", "2024-01-01"), "x"))
	locked := filepath.Join(dir, "sub")
	if err := os.Chmod(locked, 0o000); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Chmod(locked, 0o755) })

	records, err := newLoader(store).LoadAll(context.Background())
	if !errors.Is(err, apperr.ErrStoreUnavailable) {
		t.Fatalf("err = %v, want ErrStoreUnavailable", err)
	}
	if records == nil || len(records) != 0 {
		t.Errorf("want empty corpus, got %v", records)
	}
}

func TestListCategories(t *testing.T) {
	net := testutil.Valid("VUL-2", "2024-01-01")
	net.Category = "Network"
	broken := testutil.Valid("VUL-4", "2024-01-01")
	broken.Status = "open"
	broken.Category = "Ghost"

	store := testutil.MemoryStore(map[string]string{
		"1.md": testutil.Doc(testutil.Valid("VUL-1", "2024-01-01"), ""),
		"2.md": testutil.Doc(net, ""),
		"3.md": testutil.Doc(testutil.Valid("VUL-3", "2024-01-01"), ""),
		"4.md": testutil.Doc(broken, ""),
	})
	cats, err := newLoader(store).ListCategories(context.Background())
	if err != nil {
		t.Fatalf("ListCategories: %v", err)
	}
	if strings.Join(cats, ",") != "Network,Web" {
		t.Errorf("got %v", cats)
	}
}

func TestGet_NotFound(t *testing.T) {
	store := testutil.MemoryStore(map[string]string{
		"a.md": testutil.Doc(testutil.Valid("VUL-1", "2024-01-01"), ""),
	})
	_, err := newLoader(store).Get(context.Background(), "missing")
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}
