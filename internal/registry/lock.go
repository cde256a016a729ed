package registry

import "os"

// fileLock is an advisory cross-process lock held for the duration of one
// load-modify-save.
type fileLock struct {
	f *os.File
}

func openLock(path string) (*fileLock, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, err
	}
	return &fileLock{f: f}, nil
}

func (l *fileLock) close() error {
	return l.f.Close()
}
