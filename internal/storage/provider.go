// Package storage defines the read-only content store that holds one
// document per vulnerability record.
package storage

import (
	"context"
	"path"
	"strings"
	"time"
)

// Entry describes one document in a content store.
type Entry struct {
	// Name is the store-relative document name using forward slashes.
	Name    string
	Slug    string
	Size    int64
	ModTime time.Time
}

// Provider is the interface for content store access.
type Provider interface {
	// List returns every document with an accepted extension, sorted by Name.
	// An absent store lists as empty.
	List(ctx context.Context) ([]Entry, error)
	// Read returns the raw bytes of the named document.
	Read(ctx context.Context, name string) ([]byte, error)
}

// DefaultExtensions are the document extensions accepted when none are configured.
var DefaultExtensions = []string{".md"}

// SlugOf derives a record slug from a document name: the base name without
// its extension.
func SlugOf(name string) string {
	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	return strings.TrimSuffix(base, path.Ext(base))
}

func hasExtension(name string, exts []string) bool {
	ext := strings.ToLower(path.Ext(name))
	for _, e := range exts {
		if ext == strings.ToLower(e) {
			return true
		}
	}
	return false
}

func normalizeExtensions(exts []string) []string {
	if len(exts) == 0 {
		return DefaultExtensions
	}
	out := make([]string, 0, len(exts))
	for _, e := range exts {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		out = append(out, e)
	}
	if len(out) == 0 {
		return DefaultExtensions
	}
	return out
}
