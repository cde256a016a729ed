package watcher

import (
	"time"

	"github.com/RUTUPARNk/script-db/internal/worker"
)

// enqueue submits a modify event; a newer event for the same script replaces
// one that has not been picked up yet.
func (w *Watcher) enqueue(name, path string, mod time.Time) {
	w.mb.Put(name, worker.Job{
		Script:     name,
		SourcePath: path,
		Timestamp:  mod,
	})
	w.log.Info("watcher: change detected", "script", name, "path", path)
}
