package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/starford/bugwall/internal/apperr"
)

// Memory is an in-memory Provider guarded by an RWMutex. Tests use it as a
// fake content store; it never touches the filesystem.
type Memory struct {
	mu   sync.RWMutex
	docs map[string]memDoc
	exts []string
}

type memDoc struct {
	data    []byte
	modTime time.Time
}

// NewMemory creates an empty in-memory store.
func NewMemory(exts ...string) *Memory {
	return &Memory{docs: make(map[string]memDoc), exts: normalizeExtensions(exts)}
}

// Put inserts or replaces a document.
func (m *Memory) Put(name string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	m.docs[name] = memDoc{data: cp, modTime: time.Now().UTC()}
}

// Remove deletes a document if present.
func (m *Memory) Remove(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.docs, name)
}

// List returns accepted documents sorted by name.
func (m *Memory) List(_ context.Context) ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Entry, 0, len(m.docs))
	for name, d := range m.docs {
		if !hasExtension(name, m.exts) {
			continue
		}
		out = append(out, Entry{Name: name, Slug: SlugOf(name), Size: int64(len(d.data)), ModTime: d.modTime})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Read returns a copy of the named document.
func (m *Memory) Read(_ context.Context, name string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.docs[name]
	if !ok {
		return nil, fmt.Errorf("storage: read %s: %w", name, apperr.ErrNotFound)
	}
	cp := make([]byte, len(d.data))
	copy(cp, d.data)
	return cp, nil
}
