//go:build !unix && !windows

package registry

// No advisory locking here; the in-process mutex still serializes writers.
func (l *fileLock) lock() error   { return nil }
func (l *fileLock) unlock() error { return nil }
