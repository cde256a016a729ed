// Package registry persists the script registry (scripts.json).
package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/RUTUPARNk/script-db/internal/fs"
	"github.com/RUTUPARNk/script-db/internal/fsprobe"
	"github.com/RUTUPARNk/script-db/internal/logging"
)

// Store owns the registry document. Every read-modify-write runs under one
// mutex plus an advisory lock on <path>.lock, so the foreground CLI and the
// background worker never lose each other's updates.
type Store struct {
	mu   sync.Mutex
	path string
	fs   fs.FS
	log  logging.Logger
	lock *fileLock
}

// Open prepares the registry at path. It fails when the directory cannot be
// written or the lock file cannot be opened.
func Open(path string, filesystem fs.FS, log logging.Logger) (*Store, error) {
	if filesystem == nil {
		filesystem = fs.New()
	}
	if err := fsprobe.Writable(filepath.Dir(path)); err != nil {
		return nil, fmt.Errorf("registry storage: %w", err)
	}
	lock, err := openLock(path + ".lock")
	if err != nil {
		return nil, fmt.Errorf("registry lock: %w", err)
	}
	return &Store{path: path, fs: filesystem, log: log, lock: lock}, nil
}

// Path returns the location of scripts.json.
func (s *Store) Path() string { return s.path }

// Close releases the lock file handle.
func (s *Store) Close() error {
	return s.lock.close()
}

// Load reads the registry. A missing or empty document is an empty registry.
func (s *Store) Load() (Registry, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return Registry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading registry: %w", err)
	}
	return decode(data)
}

func decode(data []byte) (Registry, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return Registry{}, nil
	}

	reg := Registry{}
	switch data[0] {
	case '{':
		if err := json.Unmarshal(data, &reg); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorruptRegistry, err)
		}
		for name, e := range reg {
			if e.Name == "" {
				e.Name = name
				reg[name] = e
			}
			if e.Name != name {
				return nil, fmt.Errorf("%w: key %q holds entry named %q", ErrCorruptRegistry, name, e.Name)
			}
		}
	case '[':
		// list layout written by earlier versions
		var list []ScriptEntry
		if err := json.Unmarshal(data, &list); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorruptRegistry, err)
		}
		for _, e := range list {
			if e.Name == "" {
				continue
			}
			reg[e.Name] = e
		}
	default:
		return nil, fmt.Errorf("%w: unexpected leading %q", ErrCorruptRegistry, data[0])
	}
	return reg, nil
}

// Save writes the full registry atomically.
func (s *Store) Save(reg Registry) error {
	data, err := json.MarshalIndent(reg, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding registry: %w", err)
	}
	data = append(data, '\n')

	return s.fs.WriteAtomic(context.Background(), s.path, 0o644, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
}

// Update runs fn on the current registry and saves the result unless fn
// returns an error. A corrupt document is moved aside and replaced by an
// empty registry.
func (s *Store) Update(fn func(Registry) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.lock.lock(); err != nil {
		return fmt.Errorf("locking registry: %w", err)
	}
	defer s.lock.unlock()

	reg, err := s.Load()
	if errors.Is(err, ErrCorruptRegistry) {
		s.log.Warn("registry unreadable, continuing with an empty one", "path", s.path, "error", err)
		if err := s.quarantine(); err != nil {
			return err
		}
		reg = Registry{}
	} else if err != nil {
		return err
	}

	if err := fn(reg); err != nil {
		return err
	}
	return s.Save(reg)
}

// View runs fn on the current registry without saving. A corrupt document
// reads as empty.
func (s *Store) View(fn func(Registry) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.lock.lock(); err != nil {
		return fmt.Errorf("locking registry: %w", err)
	}
	defer s.lock.unlock()

	reg, err := s.Load()
	if errors.Is(err, ErrCorruptRegistry) {
		s.log.Warn("registry unreadable, treating as empty", "path", s.path, "error", err)
		reg = Registry{}
	} else if err != nil {
		return err
	}
	return fn(reg)
}

// Get returns the entry for name.
func (s *Store) Get(name string) (ScriptEntry, error) {
	var entry ScriptEntry
	err := s.View(func(reg Registry) error {
		e, ok := reg[name]
		if !ok {
			return fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		entry = e
		return nil
	})
	return entry, err
}

// List returns all entries sorted by name.
func (s *Store) List() ([]ScriptEntry, error) {
	var out []ScriptEntry
	err := s.View(func(reg Registry) error {
		for _, e := range reg {
			out = append(out, e)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, err
}

// Upsert inserts or replaces the entry with the same name.
func (s *Store) Upsert(entry ScriptEntry) error {
	if err := ValidateName(entry.Name); err != nil {
		return err
	}
	return s.Update(func(reg Registry) error {
		reg[entry.Name] = entry
		return nil
	})
}

// Insert adds entry, failing with ErrExists on a duplicate name.
func (s *Store) Insert(entry ScriptEntry) error {
	if err := ValidateName(entry.Name); err != nil {
		return err
	}
	return s.Update(func(reg Registry) error {
		if _, ok := reg[entry.Name]; ok {
			return fmt.Errorf("%w: %s", ErrExists, entry.Name)
		}
		reg[entry.Name] = entry
		return nil
	})
}

// Remove deletes the entry for name.
func (s *Store) Remove(name string) error {
	return s.Update(func(reg Registry) error {
		if _, ok := reg[name]; !ok {
			return fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		delete(reg, name)
		return nil
	})
}

func (s *Store) quarantine() error {
	dst := fmt.Sprintf("%s.corrupt-%s", s.path, time.Now().UTC().Format("2006-01-02T15-04-05"))
	if err := s.fs.Rename(context.Background(), s.path, dst); err != nil {
		return fmt.Errorf("moving corrupt registry aside: %w", err)
	}
	s.log.Warn("corrupt registry preserved", "path", dst)
	return nil
}
