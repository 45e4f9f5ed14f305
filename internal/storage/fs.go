package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/starford/bugwall/internal/apperr"
)

// FS implements Provider backed by a local directory tree.
type FS struct {
	root string // absolute path to the content directory
	exts []string
}

// NewFS creates a new FS provider rooted at dir. A missing directory is
// created empty so the catalog can run before any content exists.
func NewFS(dir string, exts ...string) (*FS, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("storage: provision root: %w: %v", apperr.ErrStoreUnavailable, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: stat root: %w: %v", apperr.ErrStoreUnavailable, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage: root is not a directory: %s: %w", abs, apperr.ErrStoreUnavailable)
	}
	return &FS{root: abs, exts: normalizeExtensions(exts)}, nil
}

// Root returns the absolute content directory.
func (f *FS) Root() string { return f.root }

// Accepts reports whether name carries one of the provider's extensions.
func (f *FS) Accepts(name string) bool { return hasExtension(name, f.exts) }

// safePath resolves a relative name against the root and rejects any result
// that escapes it.
func (f *FS) safePath(rel string) (string, error) {
	if rel == "" {
		return "", fmt.Errorf("storage: empty document name")
	}
	cleaned := filepath.Clean(filepath.FromSlash(rel))
	if filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("storage: absolute paths not allowed: %s", rel)
	}
	abs := filepath.Join(f.root, cleaned)
	if !strings.HasPrefix(abs, f.root+string(os.PathSeparator)) {
		return "", fmt.Errorf("storage: path escapes content root: %s", rel)
	}
	return abs, nil
}

// List walks the root and returns every accepted document. Hidden files and
// directories are skipped.
func (f *FS) List(ctx context.Context) ([]Entry, error) {
	var out []Entry
	err := filepath.WalkDir(f.root, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if p != f.root && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !f.Accepts(d.Name()) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(f.root, p)
		name := filepath.ToSlash(rel)
		out = append(out, Entry{
			Name:    name,
			Slug:    SlugOf(name),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
		return nil
	})
	switch {
	case err == nil:
	case errors.Is(err, fs.ErrNotExist):
		// Root removed after provisioning: an absent store is an empty corpus.
		return nil, nil
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return nil, err
	default:
		return nil, fmt.Errorf("storage: list: %w: %v", apperr.ErrStoreUnavailable, err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Read returns the raw bytes of a document.
func (f *FS) Read(_ context.Context, name string) ([]byte, error) {
	abs, err := f.safePath(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("storage: read %s: %w", name, apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("storage: read %s: %w", name, err)
	}
	return data, nil
}
