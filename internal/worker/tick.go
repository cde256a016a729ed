package worker

import (
	"context"
	"errors"
	"fmt"

	"github.com/RUTUPARNk/script-db/internal/registry"
)

// TickReport summarizes one pass over pending entries.
type TickReport struct {
	Pending   int
	Captured  int
	Unchanged int
	Deferred  int
	Failed    int
}

// Remaining is the number of entries still pending after the pass.
func (r TickReport) Remaining() int {
	return r.Deferred + r.Failed
}

// Tick retries every pending entry once. Entries are handled one at a time
// and independently: a failure is logged and the pass moves on. ctx is
// checked between entries; a capture that has started runs to completion.
func (s *Scheduler) Tick(ctx context.Context) TickReport {
	var names []string
	if err := s.store.View(func(reg registry.Registry) error {
		names = reg.Pending()
		return nil
	}); err != nil {
		s.log.Error("poller: reading registry failed", "error", err)
		return TickReport{}
	}

	report := TickReport{Pending: len(names)}
	for i, name := range names {
		if ctx.Err() != nil {
			s.log.Info("poller: stop requested, leaving remaining entries pending", "left", len(names)-i)
			report.Deferred += len(names) - i
			break
		}

		out, err := s.retry(ctx, name)
		switch {
		case err != nil:
			report.Failed++
			s.log.Error("poller: pending backup failed", "script", name, "error", err)
		case out == Captured:
			report.Captured++
		case out == Unchanged:
			report.Unchanged++
		case out == Deferred:
			report.Deferred++
		}
	}

	if report.Pending > 0 {
		s.log.Debug("poller: tick done",
			"pending", report.Pending, "captured", report.Captured, "unchanged", report.Unchanged,
			"deferred", report.Deferred, "failed", report.Failed)
	}
	return report
}

func (s *Scheduler) retry(ctx context.Context, name string) (Outcome, error) {
	entry, err := s.store.Get(name)
	if errors.Is(err, registry.ErrNotFound) {
		return Skipped, nil
	}
	if err != nil {
		return Skipped, err
	}
	if !entry.Pending {
		return Skipped, nil
	}
	if s.checker.IsRunning(ctx, entry) {
		return Deferred, nil
	}

	// a capture is never abandoned halfway because of a stop request
	capCtx := context.WithoutCancel(ctx)

	var (
		out        Outcome
		captureErr error
	)
	err = s.store.Update(func(reg registry.Registry) error {
		entry, ok := reg[name]
		if !ok || !entry.Pending {
			out = Skipped
			return nil
		}
		out, captureErr = s.process(capCtx, &entry, false)
		reg[name] = entry
		return nil
	})
	if err != nil {
		return Skipped, fmt.Errorf("updating registry: %w", err)
	}
	if out == Captured {
		s.log.Info("pending backup captured", "script", name)
	}
	return out, captureErr
}
