package worker

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/RUTUPARNk/script-db/internal/config"
	"github.com/RUTUPARNk/script-db/internal/logging"
)

// Poller runs Scheduler.Tick on a cron schedule until ctx is cancelled.
type Poller struct {
	mu    sync.RWMutex
	sched cron.Schedule

	s    *Scheduler
	log  logging.Logger
	wake chan struct{}

	// UntilIdle makes Start return after a tick that leaves nothing pending.
	UntilIdle bool
}

// NewPoller builds a poller from cfg.Schedule, or "@every cfg.PollInterval".
func NewPoller(s *Scheduler, cfg config.WorkerConfig, log logging.Logger) (*Poller, error) {
	sched, err := scheduleFor(cfg)
	if err != nil {
		return nil, err
	}
	return &Poller{
		sched: sched,
		s:     s,
		log:   log,
		wake:  make(chan struct{}, 1),
	}, nil
}

func scheduleFor(cfg config.WorkerConfig) (cron.Schedule, error) {
	if cfg.Schedule != "" {
		return cron.ParseStandard(cfg.Schedule)
	}
	return cron.Every(cfg.PollInterval), nil
}

// Start ticks once immediately, then on every scheduled time. Cancellation
// is observed between ticks and between entries, never mid-capture.
func (p *Poller) Start(ctx context.Context) error {
	p.log.Info("starting poller")
	for {
		report := p.s.Tick(ctx)
		if ctx.Err() != nil {
			p.log.Info("poller stopped")
			return nil
		}
		if p.UntilIdle && report.Remaining() == 0 {
			p.log.Info("nothing pending, poller exiting")
			return nil
		}

		p.mu.RLock()
		next := p.sched.Next(time.Now())
		p.mu.RUnlock()

		t := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			t.Stop()
			p.log.Info("poller stopped")
			return nil
		case <-p.wake:
			t.Stop()
		case <-t.C:
		}
	}
}

// Wake requests an early tick.
func (p *Poller) Wake() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// UpdateConfig hot-reloads the schedule.
func (p *Poller) UpdateConfig(cfg config.WorkerConfig) error {
	sched, err := scheduleFor(cfg)
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.sched = sched
	p.mu.Unlock()
	p.Wake()
	return nil
}
