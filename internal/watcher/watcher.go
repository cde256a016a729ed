// Package watcher turns edits of registered scripts into modify events.
package watcher

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/RUTUPARNk/script-db/internal/config"
	"github.com/RUTUPARNk/script-db/internal/fsprobe"
	"github.com/RUTUPARNk/script-db/internal/logging"
	"github.com/RUTUPARNk/script-db/internal/mailbox"
	"github.com/RUTUPARNk/script-db/internal/registry"
	"github.com/RUTUPARNk/script-db/internal/worker"
)

// seenFile is the last observed state of a registered script.
type seenFile struct {
	path    string
	modTime time.Time
}

// Watcher observes registered scripts and enqueues a job when one changes.
type Watcher struct {
	mu sync.RWMutex

	interval  time.Duration
	mode      string
	debounce  time.Duration
	stability time.Duration

	store *registry.Store
	log   logging.Logger

	seen map[string]seenFile

	mb *mailbox.Mailbox[string, worker.Job]
}

// New creates a watcher from the watch configuration.
func New(cfg config.WatchConfig, store *registry.Store, log logging.Logger, mb *mailbox.Mailbox[string, worker.Job]) *Watcher {
	return &Watcher{
		interval:  cfg.PollInterval,
		mode:      cfg.Mode,
		debounce:  cfg.DebounceWindow,
		stability: cfg.StabilityWindow,
		store:     store,
		log:       log,
		seen:      make(map[string]seenFile),
		mb:        mb,
	}
}

// Start chooses the watching strategy based on config. In "off" mode it
// returns immediately.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.RLock()
	mode := w.mode
	w.mu.RUnlock()

	switch mode {
	case "", "off":
		w.log.Debug("watcher disabled")
		return nil

	case "fsnotify":
		return w.StartFsNotify(ctx)

	case "poll":
		w.StartPolling(ctx)
		return nil

	case "auto":
		if reason := w.probe(); reason != "" {
			w.log.Warn("fsnotify disabled, polling instead", "reason", reason)
			w.StartPolling(ctx)
			return nil
		}
		return w.StartFsNotify(ctx)

	default:
		return fmt.Errorf("unknown mode %q", mode)
	}
}

// probe returns why fsnotify cannot serve the current script directories,
// or "" when it can.
func (w *Watcher) probe() string {
	dirs, err := w.scriptDirs()
	if err != nil {
		return err.Error()
	}
	for dir := range dirs {
		if res := fsprobe.Notify(dir); !res.FsnotifySupported {
			return fmt.Sprintf("%s: %s", dir, res.Reason)
		}
	}
	return ""
}

// scriptDirs returns the parent directories of all registered scripts.
func (w *Watcher) scriptDirs() (map[string]struct{}, error) {
	entries, err := w.store.List()
	if err != nil {
		return nil, err
	}
	dirs := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		dirs[filepath.Dir(e.Path)] = struct{}{}
	}
	return dirs, nil
}
