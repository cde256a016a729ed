//go:build !unix

package fs

import "os"

// provides a stub for platforms without POSIX inodes.
// Change detection then relies on size and mtime only.

func inodeOf(info os.FileInfo) uint64 {
	_ = info
	return 0
}
