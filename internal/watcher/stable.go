package watcher

import (
	"os"
	"time"
)

// isStable reports whether the file size holds still across the stability
// window, i.e. the editor or generator has finished writing.
func (w *Watcher) isStable(path string) bool {
	w.mu.RLock()
	stability := w.stability
	w.mu.RUnlock()

	info1, err := os.Stat(path)
	if err != nil {
		return false
	}

	time.Sleep(stability)

	info2, err := os.Stat(path)
	if err != nil {
		return false
	}

	return info1.Size() == info2.Size() && info1.ModTime().Equal(info2.ModTime())
}
