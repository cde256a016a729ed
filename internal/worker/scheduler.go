// Package worker decides when registered scripts are backed up: immediately
// when idle, or deferred and retried by the poller while they run.
package worker

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/RUTUPARNk/script-db/internal/liveness"
	"github.com/RUTUPARNk/script-db/internal/logging"
	"github.com/RUTUPARNk/script-db/internal/registry"
	"github.com/RUTUPARNk/script-db/internal/snapshot"
)

// Outcome is what happened to a backup request.
type Outcome int

const (
	Skipped   Outcome = iota // entry no longer pending
	Captured                 // new artifact written
	Unchanged                // content matches the last artifact
	Deferred                 // script running, entry marked pending
)

func (o Outcome) String() string {
	switch o {
	case Captured:
		return "captured"
	case Unchanged:
		return "unchanged"
	case Deferred:
		return "deferred"
	}
	return "skipped"
}

// Scheduler handles add/modify events and pending retries. Liveness is
// checked before the registry lock is taken; the capture itself runs under
// the lock so the entry and its artifact stay consistent.
type Scheduler struct {
	store   *registry.Store
	engine  *snapshot.Engine
	checker liveness.Checker
	log     logging.Logger
}

func NewScheduler(store *registry.Store, engine *snapshot.Engine, checker liveness.Checker, log logging.Logger) *Scheduler {
	return &Scheduler{store: store, engine: engine, checker: checker, log: log}
}

// ScheduleOptions tunes a single backup request.
type ScheduleOptions struct {
	// IgnoreRunning captures even if the script is running.
	IgnoreRunning bool
}

// Schedule backs up name now if it is idle, otherwise marks it pending and
// returns Deferred with a nil error. A capture failure leaves the entry
// pending and is returned.
func (s *Scheduler) Schedule(ctx context.Context, name string, opts ScheduleOptions) (Outcome, error) {
	entry, err := s.store.Get(name)
	if err != nil {
		return Skipped, err
	}
	running := !opts.IgnoreRunning && s.checker.IsRunning(ctx, entry)

	var (
		out        Outcome
		captureErr error
	)
	err = s.store.Update(func(reg registry.Registry) error {
		entry, ok := reg[name]
		if !ok {
			return fmt.Errorf("%w: %s", registry.ErrNotFound, name)
		}
		out, captureErr = s.process(ctx, &entry, running)
		reg[name] = entry
		return nil
	})
	if err != nil {
		return Skipped, err
	}
	return out, captureErr
}

// Add registers a new script and schedules its first backup.
func (s *Scheduler) Add(ctx context.Context, entry registry.ScriptEntry) (Outcome, error) {
	if err := registry.ValidateName(entry.Name); err != nil {
		return Skipped, err
	}
	abs, err := filepath.Abs(entry.Path)
	if err != nil {
		return Skipped, fmt.Errorf("resolving %s: %w", entry.Path, err)
	}
	entry.Path = abs
	entry.LastBackupHash = ""
	entry.LastBackupTime = nil
	entry.Pending = false

	running := s.checker.IsRunning(ctx, entry)

	var (
		out        Outcome
		captureErr error
	)
	err = s.store.Update(func(reg registry.Registry) error {
		if _, ok := reg[entry.Name]; ok {
			return fmt.Errorf("%w: %s", registry.ErrExists, entry.Name)
		}
		out, captureErr = s.process(ctx, &entry, running)
		reg[entry.Name] = entry
		return nil
	})
	if err != nil {
		return Skipped, err
	}
	s.log.Info("script added", "script", entry.Name, "path", entry.Path, "outcome", out.String())
	return out, captureErr
}

// Changes lists the fields a modify event replaces; nil keeps the current value.
type Changes struct {
	Name        *string
	Path        *string
	Description *string
}

// Modify applies changes to a registered script and schedules a backup of
// the result. A rename moves the script's backups along with it.
func (s *Scheduler) Modify(ctx context.Context, name string, ch Changes) (Outcome, error) {
	current, err := s.store.Get(name)
	if err != nil {
		return Skipped, err
	}

	next := current
	if ch.Name != nil && *ch.Name != name {
		if err := registry.ValidateName(*ch.Name); err != nil {
			return Skipped, err
		}
		next.Name = *ch.Name
	}
	if ch.Path != nil {
		abs, err := filepath.Abs(*ch.Path)
		if err != nil {
			return Skipped, fmt.Errorf("resolving %s: %w", *ch.Path, err)
		}
		next.Path = abs
	}
	if ch.Description != nil {
		next.Description = *ch.Description
	}

	running := s.checker.IsRunning(ctx, next)

	var (
		out        Outcome
		captureErr error
		moved      bool
	)
	err = s.store.Update(func(reg registry.Registry) error {
		entry, ok := reg[name]
		if !ok {
			return fmt.Errorf("%w: %s", registry.ErrNotFound, name)
		}
		if next.Name != name {
			if _, taken := reg[next.Name]; taken {
				return fmt.Errorf("%w: %s", registry.ErrExists, next.Name)
			}
			if err := s.engine.Rename(ctx, name, next.Name); err != nil {
				return fmt.Errorf("moving backups: %w", err)
			}
			moved = true
			delete(reg, name)
		}
		entry.Name = next.Name
		entry.Path = next.Path
		entry.Description = next.Description

		out, captureErr = s.process(ctx, &entry, running)
		reg[entry.Name] = entry
		return nil
	})
	if err != nil {
		if moved {
			// the registry still names the old script; its backups follow it back
			if rerr := s.engine.Rename(context.WithoutCancel(ctx), next.Name, name); rerr != nil {
				s.log.Error("moving backups back failed", "script", name, "from", s.engine.Dir(next.Name), "error", rerr)
			}
		}
		return Skipped, err
	}
	s.log.Info("script modified", "script", next.Name, "outcome", out.String())
	return out, captureErr
}

// Delete unregisters a script. Its backups stay on disk.
func (s *Scheduler) Delete(name string) error {
	if err := s.store.Remove(name); err != nil {
		return err
	}
	s.log.Info("script deleted, backups kept", "script", name, "backups", s.engine.Dir(name))
	return nil
}

func (s *Scheduler) process(ctx context.Context, entry *registry.ScriptEntry, running bool) (Outcome, error) {
	if running {
		entry.Pending = true
		s.log.Info("script is running, backup deferred", "script", entry.Name)
		return Deferred, nil
	}

	_, created, err := s.engine.Capture(ctx, entry)
	if err != nil {
		return Skipped, fmt.Errorf("backing up %s: %w", entry.Name, err)
	}
	if created {
		return Captured, nil
	}
	return Unchanged, nil
}
