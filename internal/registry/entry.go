package registry

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// ScriptEntry is one tracked script.
//
// Pending is true while a backup is deferred because the script was running
// at the last check; no artifact holds its current content yet.
type ScriptEntry struct {
	Name           string     `json:"name"`
	Path           string     `json:"path"`
	Description    string     `json:"description"`
	LastBackupHash string     `json:"last_backup_hash,omitempty"`
	LastBackupTime *time.Time `json:"last_backup_time,omitempty"`
	Pending        bool       `json:"pending"`
}

// UnmarshalJSON also accepts the older "pending_backup" flag.
func (e *ScriptEntry) UnmarshalJSON(b []byte) error {
	type plain ScriptEntry
	var aux struct {
		plain
		PendingBackup *bool `json:"pending_backup"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	*e = ScriptEntry(aux.plain)
	if aux.PendingBackup != nil && *aux.PendingBackup {
		e.Pending = true
	}
	return nil
}

// BackedUp reports whether at least one snapshot was ever recorded.
func (e ScriptEntry) BackedUp() bool {
	return e.LastBackupHash != ""
}

// Registry maps script name to entry.
type Registry map[string]ScriptEntry

// Pending returns the names of entries awaiting a deferred backup, sorted.
func (r Registry) Pending() []string {
	var names []string
	for name, e := range r {
		if e.Pending {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// ValidateName rejects names that cannot serve as a backup directory.
func ValidateName(name string) error {
	switch {
	case strings.TrimSpace(name) == "":
		return fmt.Errorf("%w: empty", ErrInvalidName)
	case name == "." || name == "..":
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	case strings.ContainsAny(name, `/\`+"\x00"):
		return fmt.Errorf("%w: %q contains a path separator", ErrInvalidName, name)
	}
	return nil
}
