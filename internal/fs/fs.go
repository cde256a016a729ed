// Package fs defines the filesystem abstraction used by script-db.
// It provides the FS interface and the FileInfo type shared across the system.
package fs

import (
	"context"
	"io"
	"os"
	"time"
)

type FileInfo struct {
	Path  string
	Size  int64
	MTime time.Time
	Inode uint64
}

type FS interface {
	Stat(path string) (FileInfo, error)
	// ReadStable reads a whole file, retrying when it changes mid-read.
	ReadStable(ctx context.Context, path string) ([]byte, FileInfo, error)
	// WriteAtomic streams write into a temp file next to path and renames it
	// over path. On any error path is left untouched.
	WriteAtomic(ctx context.Context, path string, perm os.FileMode, write func(io.Writer) error) error
	Rename(ctx context.Context, oldPath, newPath string) error
	MkdirAll(path string) error
	RemoveAll(path string) error
}
