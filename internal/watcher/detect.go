package watcher

import (
	"os"
	"time"
)

// detect enqueues a job for every registered script whose mtime moved past
// the last value seen. The first sighting of a script only records a baseline.
func (w *Watcher) detect() {
	entries, err := w.store.List()
	if err != nil {
		w.log.Error("watcher: listing scripts failed", "error", err)
		return
	}

	live := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		live[e.Name] = struct{}{}

		info, err := os.Stat(e.Path)
		if err != nil {
			continue
		}
		mod := info.ModTime()

		w.mu.RLock()
		last, known := w.seen[e.Name]
		w.mu.RUnlock()

		if !known || last.path != e.Path {
			w.remember(e.Name, e.Path, mod)
			continue
		}
		if !mod.After(last.modTime) {
			continue
		}
		if !w.isStable(e.Path) {
			// still being written; the next pass sees it again
			continue
		}

		w.remember(e.Name, e.Path, mod)
		w.enqueue(e.Name, e.Path, mod)
	}

	w.mu.Lock()
	for name := range w.seen {
		if _, ok := live[name]; !ok {
			delete(w.seen, name)
		}
	}
	w.mu.Unlock()
}

func (w *Watcher) remember(name, path string, mod time.Time) {
	w.mu.Lock()
	w.seen[name] = seenFile{path: path, modTime: mod}
	w.mu.Unlock()
}
