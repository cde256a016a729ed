package watcher

import (
	"github.com/RUTUPARNk/script-db/internal/config"
)

// UpdateConfig updates timing fields for hot-reload. The mode is chosen once
// by Start; a different mode is logged and needs a restart.
func (w *Watcher) UpdateConfig(cfg config.WatchConfig) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if cfg.Mode != w.mode {
		w.log.Warn("watch mode change needs a restart", "current", w.mode, "requested", cfg.Mode)
	}
	w.interval = cfg.PollInterval
	w.debounce = cfg.DebounceWindow
	w.stability = cfg.StabilityWindow
}
