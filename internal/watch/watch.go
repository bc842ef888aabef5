// Package watch rediscovers targets whose binaries change on disk.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"

	"btp/internal/domain"
	"btp/internal/logger"
)

// DefaultDebounce is how long a binary must stay untouched before it is
// rediscovered. Linkers write in several steps.
const DefaultDebounce = 500 * time.Millisecond

// Reloader rediscovers one target.
type Reloader interface {
	Reload(ctx context.Context, targetID string) error
}

// Watcher watches the directories of the target binaries.
type Watcher struct {
	reloader Reloader
	debounce time.Duration
	fs       *fsnotify.Watcher
	byPath   map[string][]string
	log      *log.Logger
}

// New starts watching the given targets. Directories are watched instead of
// files so binaries replaced by a rebuild are still seen.
func New(reloader Reloader, targets []*domain.Target, debounce time.Duration) (*Watcher, error) {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	w := &Watcher{
		reloader: reloader,
		debounce: debounce,
		fs:       fs,
		byPath:   make(map[string][]string),
		log:      logger.WithComponent("watch"),
	}
	dirs := make(map[string]bool)
	for _, t := range targets {
		path := filepath.Clean(t.Path)
		w.byPath[path] = append(w.byPath[path], t.ID)
		dir := filepath.Dir(path)
		if dirs[dir] {
			continue
		}
		dirs[dir] = true
		if err := fs.Add(dir); err != nil {
			fs.Close()
			return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}
	return w, nil
}

// Run reloads changed targets until ctx is cancelled. Reloads happen one at a
// time on the calling goroutine.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fs.Close()

	timers := make(map[string]*time.Timer)
	fire := make(chan string)
	defer func() {
		for _, t := range timers {
			t.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Chmod) {
				continue
			}
			for _, id := range w.byPath[filepath.Clean(ev.Name)] {
				if t, ok := timers[id]; ok {
					t.Reset(w.debounce)
					continue
				}
				timers[id] = time.AfterFunc(w.debounce, func() {
					select {
					case fire <- id:
					case <-ctx.Done():
					}
				})
			}
		case id := <-fire:
			delete(timers, id)
			w.log.Info("Binary changed, rediscovering", "target", id)
			if err := w.reloader.Reload(ctx, id); err != nil {
				w.log.Warn("Rediscovery failed", "target", id, "err", err)
			}
		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.log.Error("File watcher error", "err", err)
		}
	}
}
