// Package reproduce restores backed-up scripts into the reproduced root.
// It only reads artifacts; the registry and the backups are never modified.
package reproduce

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/RUTUPARNk/script-db/internal/fs"
	"github.com/RUTUPARNk/script-db/internal/logging"
	"github.com/RUTUPARNk/script-db/internal/registry"
	"github.com/RUTUPARNk/script-db/internal/snapshot"
)

var (
	// ErrNoArtifacts is returned when a script has never been backed up.
	ErrNoArtifacts = errors.New("no artifacts")
	// ErrUnknownArtifact is returned when the selector matches nothing.
	ErrUnknownArtifact = errors.New("unknown artifact")
	// ErrAmbiguousSelector is returned when the selector matches several artifacts.
	ErrAmbiguousSelector = errors.New("ambiguous artifact selector")
	// ErrDestinationConflict is returned when restoring would overwrite a
	// non-empty file without consent.
	ErrDestinationConflict = errors.New("destination exists")
	// ErrChecksumMismatch is returned when decompressed content does not
	// match the hash in the artifact name.
	ErrChecksumMismatch = errors.New("checksum mismatch")
)

// Latest selects the most recent artifact.
const Latest = "latest"

type Options struct {
	// Overwrite allows replacing an existing non-empty file.
	Overwrite bool
}

// Reproducer restores artifacts from the engine's backups root.
type Reproducer struct {
	engine *snapshot.Engine
	root   string
	fs     fs.FS
	log    logging.Logger
}

func New(engine *snapshot.Engine, root string, filesystem fs.FS, log logging.Logger) *Reproducer {
	if filesystem == nil {
		filesystem = fs.New()
	}
	return &Reproducer{engine: engine, root: root, fs: filesystem, log: log}
}

// Restore decompresses the selected artifact of name into
// <root>/<name>/<original file name> and returns that path.
func (r *Reproducer) Restore(ctx context.Context, name, selector string, opts Options) (string, error) {
	if err := registry.ValidateName(name); err != nil {
		return "", err
	}
	arts, err := r.engine.List(name)
	if err != nil {
		return "", err
	}
	art, err := Select(arts, selector)
	if err != nil {
		return "", fmt.Errorf("%s: %w", name, err)
	}

	contents, err := snapshot.Read(art)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(contents.Data)
	if got := hex.EncodeToString(sum[:]); got != art.ContentHash {
		return "", fmt.Errorf("%w: %s has content %s", ErrChecksumMismatch, art.ID(), got)
	}

	origName := filepath.Base(contents.OrigName)
	if origName == "." || origName == string(filepath.Separator) || origName == "" {
		origName = name
	}

	dir := filepath.Join(r.root, name)
	out := filepath.Join(dir, origName)

	if !opts.Overwrite {
		if info, err := r.fs.Stat(out); err == nil && info.Size > 0 {
			return "", fmt.Errorf("%w: %s", ErrDestinationConflict, out)
		}
	}

	if err := r.fs.MkdirAll(dir); err != nil {
		return "", fmt.Errorf("creating %s: %w", dir, err)
	}
	err = r.fs.WriteAtomic(ctx, out, 0o644, func(w io.Writer) error {
		_, err := w.Write(contents.Data)
		return err
	})
	if err != nil {
		return "", err
	}

	r.log.Info("script reproduced", "script", name, "artifact", art.ID(), "path", out)
	return out, nil
}

// Select picks an artifact: the newest for "" or "latest", otherwise the
// one whose ID equals selector, or the single one whose ID or content hash
// starts with it.
func Select(arts []snapshot.Artifact, selector string) (snapshot.Artifact, error) {
	if len(arts) == 0 {
		return snapshot.Artifact{}, ErrNoArtifacts
	}
	selector = strings.TrimSuffix(strings.TrimSpace(selector), ".gz")
	if selector == "" || selector == Latest {
		return arts[len(arts)-1], nil
	}

	var matches []snapshot.Artifact
	for _, a := range arts {
		if a.ID() == selector {
			return a, nil
		}
		if strings.HasPrefix(a.ID(), selector) || strings.HasPrefix(a.ContentHash, selector) {
			matches = append(matches, a)
		}
	}

	switch len(matches) {
	case 0:
		return snapshot.Artifact{}, fmt.Errorf("%w: %q", ErrUnknownArtifact, selector)
	case 1:
		return matches[0], nil
	}

	// the same content captured twice is still one answer
	first := matches[0].ContentHash
	for _, m := range matches[1:] {
		if m.ContentHash != first {
			return snapshot.Artifact{}, fmt.Errorf("%w: %q matches %d artifacts", ErrAmbiguousSelector, selector, len(matches))
		}
	}
	return matches[len(matches)-1], nil
}
