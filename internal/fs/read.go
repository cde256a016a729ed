package fs

import (
	"context"
	"errors"
	"os"
)

// implements whole-file reads with source-change detection.
// A script being edited while we read it yields a retry instead of a torn snapshot.

var errSourceChanged = errors.New("source changed during read")

func readWithRetry(ctx context.Context, f FS, path string) ([]byte, FileInfo, error) {
	var (
		data []byte
		info FileInfo
	)
	err := retry(ctx, "read", func() error {
		before, err := f.Stat(path)
		if err != nil {
			return err
		}

		b, err := os.ReadFile(path)
		if err != nil {
			return err
		}

		after, err := f.Stat(path)
		if err != nil {
			return err
		}

		if sourceChanged(before, after) || int64(len(b)) != after.Size {
			return errSourceChanged
		}

		data, info = b, after
		return nil
	})
	return data, info, err
}

func sourceChanged(orig, now FileInfo) bool {
	if now.Inode != 0 && orig.Inode != 0 && now.Inode != orig.Inode {
		return true
	}
	if now.MTime.After(orig.MTime) {
		return true
	}
	if now.Size != orig.Size {
		return true
	}
	return false
}
