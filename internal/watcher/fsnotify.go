package watcher

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// StartFsNotify triggers detect() when fsnotify reports changes in a
// directory holding a registered script. The watched directory set is
// refreshed every poll interval so newly added scripts are picked up.
func (w *Watcher) StartFsNotify(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	w.mu.RLock()
	debounce := w.debounce
	interval := w.interval
	w.mu.RUnlock()

	watched := map[string]struct{}{}
	w.syncDirs(watcher, watched)
	w.detect()

	// Channel to request debounce resets
	resetCh := make(chan struct{}, 1)
	defer close(resetCh)

	// Debounce goroutine
	go func() {
		var t *time.Timer
		for range resetCh {
			if t != nil {
				t.Stop()
			}
			t = time.AfterFunc(debounce, func() {
				defer func() {
					if r := recover(); r != nil {
						w.log.Error("detect panic", "panic", r)
					}
				}()
				w.detect()
			})
		}
		if t != nil {
			t.Stop()
		}
	}()

	refresh := time.NewTicker(interval)
	defer refresh.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-refresh.C:
			w.syncDirs(watcher, watched)
			w.detect()

		case ev, ok := <-watcher.Events:
			if !ok {
				w.log.Error("events channel closed")
				return nil
			}

			if _, ok := watched[filepath.Dir(ev.Name)]; !ok {
				continue
			}
			w.log.Debug("event", "name", ev.Name, "op", ev.Op.String())

			// Non-blocking send to reset debounce
			select {
			case resetCh <- struct{}{}:
			default:
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.log.Error("fsnotify error", "error", err)
		}
	}
}

// syncDirs aligns the fsnotify watch list with the registered scripts.
func (w *Watcher) syncDirs(watcher *fsnotify.Watcher, watched map[string]struct{}) {
	dirs, err := w.scriptDirs()
	if err != nil {
		w.log.Error("watcher: listing scripts failed", "error", err)
		return
	}

	for dir := range dirs {
		if _, ok := watched[dir]; ok {
			continue
		}
		if err := watcher.Add(dir); err != nil {
			w.log.Warn("cannot watch directory", "dir", dir, "error", err)
			continue
		}
		watched[dir] = struct{}{}
	}

	for dir := range watched {
		if _, ok := dirs[dir]; !ok {
			_ = watcher.Remove(dir)
			delete(watched, dir)
		}
	}
}
