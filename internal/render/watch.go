package render

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/bugwall/internal/parser"
)

// WatchFile renders the document at path once, then again every time it
// changes on disk, after edits settle for the given delay. Any header is
// stripped before rendering. It blocks until ctx is done.
func WatchFile(ctx context.Context, r *Renderer, path string, settle time.Duration, emit func(Result)) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("render: resolve %s: %w", path, err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("render: create watcher: %w", err)
	}
	defer w.Close()

	// Editors often replace the file, so watch its directory.
	if err := w.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("render: watch %s: %w", filepath.Dir(abs), err)
	}

	s := NewSession(r, settle, emit)
	defer s.Close()

	update := func() {
		data, err := os.ReadFile(abs)
		if err != nil {
			r.logger.Warn("preview read failed", slog.String("path", abs), slog.String("error", err.Error()))
			return
		}
		s.Update(parser.Body(data))
	}
	update()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) {
				update()
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			r.logger.Warn("preview watcher error", slog.String("error", err.Error()))
		}
	}
}
