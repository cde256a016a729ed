package fs

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// writeAtomic writes through a temp file in the destination directory
// (same filesystem, so the final rename is atomic).
func writeAtomic(ctx context.Context, path string, perm os.FileMode, write func(io.Writer) error) error {
	dir := filepath.Dir(path)

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	if err := write(tmp); err != nil {
		return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}

	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("syncing to disk: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.Chmod(tmpPath, perm); err != nil {
		return fmt.Errorf("setting permissions: %w", err)
	}

	if err := renameWithRetry(ctx, tmpPath, path); err != nil {
		return err
	}

	success = true
	return nil
}
