// Package testutil provides shared test helpers for content stores and
// vulnerability documents.
package testutil

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/starford/bugwall/internal/storage"
)

// Meta is the header of a test document. Empty fields are omitted from the
// generated frontmatter.
type Meta struct {
	ID, Title, Status, Level, Date, Category, Description string
	Tags                                                  []string
}

// Doc builds a document with a frontmatter header and body.
func Doc(m Meta, body string) string {
	var b strings.Builder
	b.WriteString("---\n")
	field := func(k, v string) {
		if v != "" {
			b.WriteString(k + ": " + v + "\n")
		}
	}
	field("id", m.ID)
	field("title", m.Title)
	field("status", m.Status)
	field("level", m.Level)
	field("discoveredAt", m.Date)
	field("category", m.Category)
	field("description", m.Description)
	if len(m.Tags) > 0 {
		b.WriteString("tags: [" + strings.Join(m.Tags, ", ") + "]\n")
	}
	b.WriteString("---\n\n")
	b.WriteString(body)
	return b.String()
}

// Valid returns a Meta with every required field set.
func Valid(id, date string) Meta {
	return Meta{
		ID:       id,
		Title:    "Finding " + id,
		Status:   "unresolved",
		Level:    "III",
		Date:     date,
		Category: "Web",
	}
}

// TestStore creates a temporary content directory with a storage.FS.
func TestStore(t *testing.T) (string, *storage.FS) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	return dir, store
}

// WriteFile writes content to dir/name, creating parent directories.
func WriteFile(t *testing.T, dir, name, content string) {
	t.Helper()
	p := filepath.Join(dir, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

// MemoryStore returns an in-memory store holding docs keyed by name.
func MemoryStore(docs map[string]string) *storage.Memory {
	m := storage.NewMemory()
	for name, content := range docs {
		m.Put(name, []byte(content))
	}
	return m
}

// Logger discards everything.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
