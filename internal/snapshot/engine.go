// Package snapshot writes and lists compressed, hash-named script backups.
package snapshot

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/RUTUPARNk/script-db/internal/fs"
	"github.com/RUTUPARNk/script-db/internal/logging"
	"github.com/RUTUPARNk/script-db/internal/registry"
)

// ErrSourceUnreadable is returned when the script file cannot be read at
// capture time.
var ErrSourceUnreadable = errors.New("source unreadable")

// Engine writes artifacts under root/<script name>/.
type Engine struct {
	root  string
	fs    fs.FS
	log   logging.Logger
	level int
	now   func() time.Time
}

type Option func(*Engine)

// WithCompressionLevel sets the gzip level.
func WithCompressionLevel(level int) Option {
	return func(e *Engine) { e.level = level }
}

// WithClock replaces time.Now for artifact timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func NewEngine(root string, filesystem fs.FS, log logging.Logger, opts ...Option) *Engine {
	if filesystem == nil {
		filesystem = fs.New()
	}
	e := &Engine{
		root:  root,
		fs:    filesystem,
		log:   log,
		level: gzip.DefaultCompression,
		now:   time.Now,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Root returns the backups root.
func (e *Engine) Root() string { return e.root }

// Dir returns the artifact directory for a script.
func (e *Engine) Dir(name string) string {
	return filepath.Join(e.root, name)
}

// List returns the artifacts of a script, oldest first.
func (e *Engine) List(name string) ([]Artifact, error) {
	return List(e.Dir(name), name)
}

// Latest returns the most recent artifact, if any.
func (e *Engine) Latest(name string) (Artifact, bool, error) {
	arts, err := e.List(name)
	if err != nil || len(arts) == 0 {
		return Artifact{}, false, err
	}
	return arts[len(arts)-1], true, nil
}

// Capture snapshots the script described by entry and updates its backup
// fields. When the content hash equals entry.LastBackupHash and that artifact
// is still on disk, nothing is written and created is false.
//
// On a read failure entry.Pending is set so the poller retries later.
func (e *Engine) Capture(ctx context.Context, entry *registry.ScriptEntry) (art Artifact, created bool, err error) {
	data, _, err := e.fs.ReadStable(ctx, entry.Path)
	if err != nil {
		entry.Pending = true
		if ctx.Err() != nil {
			return Artifact{}, false, ctx.Err()
		}
		return Artifact{}, false, fmt.Errorf("%w: %s: %v", ErrSourceUnreadable, entry.Path, err)
	}

	sum := sha256.Sum256(data)
	hash := hex.EncodeToString(sum[:])

	if hash == entry.LastBackupHash {
		latest, ok, err := e.Latest(entry.Name)
		if err != nil {
			return Artifact{}, false, err
		}
		if ok && latest.ContentHash == hash {
			e.log.Debug("content unchanged, no new artifact", "script", entry.Name, "artifact", latest.ID())
			entry.Pending = false
			return latest, false, nil
		}
	}

	art, err = e.write(ctx, entry, data, hash)
	if err != nil {
		entry.Pending = true
		return Artifact{}, false, err
	}

	ts := art.Timestamp
	entry.LastBackupHash = hash
	entry.LastBackupTime = &ts
	entry.Pending = false

	e.log.Info("backup captured", "script", entry.Name, "artifact", art.StoragePath, "bytes", len(data))
	return art, true, nil
}

func (e *Engine) write(ctx context.Context, entry *registry.ScriptEntry, data []byte, hash string) (Artifact, error) {
	dir := e.Dir(entry.Name)
	if err := e.fs.MkdirAll(dir); err != nil {
		return Artifact{}, fmt.Errorf("creating backup dir: %w", err)
	}

	ts := e.now().UTC()
	path := filepath.Join(dir, FileName(ts, hash))
	e.log.Debug("writing artifact", "script", entry.Name, "path", path)

	err := e.fs.WriteAtomic(ctx, path, 0o644, func(w io.Writer) error {
		return encode(w, data, filepath.Base(entry.Path), ts, e.level)
	})
	if err != nil {
		return Artifact{}, fmt.Errorf("writing artifact: %w", err)
	}

	return Artifact{
		ScriptName:  entry.Name,
		ContentHash: hash,
		Timestamp:   ts,
		StoragePath: path,
	}, nil
}

// Rename moves the artifact directory of oldName to newName. It does nothing
// when oldName has no artifacts and refuses to merge into an existing
// directory.
func (e *Engine) Rename(ctx context.Context, oldName, newName string) error {
	src, dst := e.Dir(oldName), e.Dir(newName)
	if _, err := e.fs.Stat(src); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if _, err := e.fs.Stat(dst); err == nil {
		return fmt.Errorf("backups for %q already exist at %s", newName, dst)
	}
	if err := e.fs.MkdirAll(e.root); err != nil {
		return err
	}
	return e.fs.Rename(ctx, src, dst)
}
