package worker

import (
	"context"
	"errors"

	"github.com/RUTUPARNk/script-db/internal/mailbox"
	"github.com/RUTUPARNk/script-db/internal/registry"
)

// contains the loop that continuously pulls modify events from the mailbox
// and schedules a backup for each.

func RunLoop(ctx context.Context, s *Scheduler, mb *mailbox.Mailbox[string, Job]) {
	for {
		job, ok := mb.Take(ctx)
		if !ok {
			return
		}

		out, err := s.Schedule(ctx, job.Script, ScheduleOptions{})
		switch {
		case errors.Is(err, registry.ErrNotFound):
			s.log.Debug("runner: script no longer registered", "script", job.Script)
		case err != nil:
			s.log.Error("runner: backup failed", "script", job.Script, "error", err)
		default:
			s.log.Debug("runner: modify event handled", "script", job.Script, "outcome", out.String())
		}
	}
}
