package catalog

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the settle delay between the last content change and
// the reload it triggers.
const DefaultDebounce = 300 * time.Millisecond

// WatchTarget is a directory-backed store the watcher can observe.
type WatchTarget interface {
	Root() string
	Accepts(name string) bool
}

// ReloadCallback is called with each snapshot installed by the watcher.
type ReloadCallback func(snap *Snapshot)

// Watch observes the content directory and reloads the catalog after
// changes settle. Every new change restarts the debounce timer, so bursts
// of writes cause a single reload. Watch blocks until ctx is cancelled.
func (c *Catalog) Watch(ctx context.Context, target WatchTarget, debounce time.Duration, cb ReloadCallback) error {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	root := target.Root()
	if err := addDirsRecursive(w, root); err != nil {
		return err
	}
	c.logger.Info("watcher: started", slog.String("root", root))

	var timer *time.Timer
	var fire <-chan time.Time
	schedule := func() {
		if timer == nil {
			timer = time.NewTimer(debounce)
			fire = timer.C
			return
		}
		timer.Stop()
		timer.Reset(debounce)
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			c.logger.Info("watcher: stopped")
			return nil

		case <-fire:
			snap, err := c.Reload(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				c.logger.Warn("watcher: reload failed", slog.String("error", err.Error()))
			}
			if snap != nil && cb != nil {
				cb(snap)
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, ev.Name); addErr != nil {
						c.logger.Warn("watcher: add new dir failed",
							slog.String("path", ev.Name),
							slog.String("error", addErr.Error()))
					}
					schedule()
					continue
				}
			}
			if ev.Op == fsnotify.Chmod || hidden(root, ev.Name) {
				continue
			}
			// Removed or renamed directories carry no extension; reload anyway.
			if !target.Accepts(ev.Name) && filepath.Ext(ev.Name) != "" {
				continue
			}
			c.logger.Debug("watcher: change", slog.String("path", ev.Name), slog.String("op", ev.Op.String()))
			schedule()

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			c.logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

func hidden(root, p string) bool {
	rel, err := filepath.Rel(root, p)
	if err != nil {
		return false
	}
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		if strings.HasPrefix(part, ".") && part != "." && part != ".." {
			return true
		}
	}
	return false
}

// addDirsRecursive adds root and all its non-hidden subdirectories.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if p != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return w.Add(p)
	})
}
