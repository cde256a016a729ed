package worker

import (
	"time"
)

// Job is a modify event for one registered script, produced by the watcher.
type Job struct {
	Script     string
	SourcePath string
	Timestamp  time.Time
}
