package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/RUTUPARNk/script-db/internal/mailbox"
	"github.com/RUTUPARNk/script-db/internal/watcher"
	"github.com/RUTUPARNk/script-db/internal/worker"
)

func newWorkerCmd(o *rootOptions) *cobra.Command {
	var untilIdle bool
	cmd := &cobra.Command{
		Use:     "worker",
		Aliases: []string{"run-background-worker"},
		Short:   "Retry pending backups until interrupted",
		Args:    cobra.NoArgs,
		RunE: o.withApp(func(cmd *cobra.Command, _ []string, a *app) error {
			return runWorker(cmd, o, a, untilIdle)
		}),
	}
	cmd.Flags().BoolVar(&untilIdle, "until-idle", false, "exit once nothing is pending")
	return cmd
}

func runWorker(cmd *cobra.Command, o *rootOptions, a *app, untilIdle bool) error {
	// Graceful shutdown
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	poller, err := worker.NewPoller(a.sched, a.cfg.Worker, a.log)
	if err != nil {
		return err
	}
	poller.UntilIdle = untilIdle

	// Mailbox for modify events
	mb := mailbox.New[string, worker.Job]()

	// Watcher (detects script edits and pushes into mailbox)
	watch := watcher.New(a.cfg.Watch, a.store, a.log, mb)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer cancel()
		return poller.Start(gctx)
	})
	g.Go(func() error {
		return watch.Start(gctx)
	})
	g.Go(func() error {
		worker.RunLoop(gctx, a.sched, mb)
		return nil
	})

	// Hot reload on SIGHUP
	go reloadOnHangup(gctx, cmd, o, a, poller, watch)

	err = g.Wait()
	a.log.Info("exit complete")
	return err
}

func reloadOnHangup(ctx context.Context, cmd *cobra.Command, o *rootOptions, a *app, poller *worker.Poller, watch *watcher.Watcher) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGHUP)
	defer signal.Stop(sigCh)

	for {
		select {
		case <-ctx.Done():
			return
		case <-sigCh:
		}

		newCfg, err := o.loadConfig(cmd)
		if err != nil {
			a.log.Error("config reload failed", "error", err)
			continue
		}

		// Apply updates
		if err := poller.UpdateConfig(newCfg.Worker); err != nil {
			a.log.Error("config reload failed", "error", err)
			continue
		}
		watch.UpdateConfig(newCfg.Watch)

		a.log.Info("config reloaded")
	}
}
