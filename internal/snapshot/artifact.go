package snapshot

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// timeLayout sorts lexically in chronological order (fixed width, UTC).
const timeLayout = "2006-01-02T15-04-05.000000000Z"

const ext = ".gz"

// Artifact is one immutable compressed capture of a script.
type Artifact struct {
	ScriptName  string
	ContentHash string // sha256 of the uncompressed content
	Timestamp   time.Time
	StoragePath string
}

// ID is the artifact file name without extension.
func (a Artifact) ID() string {
	return strings.TrimSuffix(filepath.Base(a.StoragePath), ext)
}

// FileName builds "<timestamp>-<hash>.gz".
func FileName(ts time.Time, hash string) string {
	return ts.UTC().Format(timeLayout) + "-" + hash + ext
}

// ParseName splits an artifact file name into timestamp and hash.
func ParseName(name string) (time.Time, string, bool) {
	if strings.HasPrefix(name, ".") || !strings.HasSuffix(name, ext) {
		return time.Time{}, "", false
	}
	core := strings.TrimSuffix(name, ext)

	i := strings.LastIndex(core, "-")
	if i < 0 {
		return time.Time{}, "", false
	}
	ts, hash := core[:i], core[i+1:]

	if len(hash) != 64 {
		return time.Time{}, "", false
	}
	if _, err := hex.DecodeString(hash); err != nil {
		return time.Time{}, "", false
	}

	t, err := time.Parse(timeLayout, ts)
	if err != nil {
		return time.Time{}, "", false
	}
	return t, hash, true
}

// List returns the artifacts stored under dir for script name, oldest first.
// Temp files and foreign files are ignored.
func List(dir, name string) ([]Artifact, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading folder: %w", err)
	}

	var out []Artifact
	for _, ent := range entries {
		if ent.IsDir() {
			continue
		}
		ts, hash, ok := ParseName(ent.Name())
		if !ok {
			continue
		}
		out = append(out, Artifact{
			ScriptName:  name,
			ContentHash: hash,
			Timestamp:   ts,
			StoragePath: filepath.Join(dir, ent.Name()),
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].StoragePath < out[j].StoragePath
		}
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out, nil
}
