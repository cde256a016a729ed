package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/RUTUPARNk/script-db/internal/config"
	"github.com/RUTUPARNk/script-db/internal/fs"
	"github.com/RUTUPARNk/script-db/internal/fsprobe"
	"github.com/RUTUPARNk/script-db/internal/liveness"
	"github.com/RUTUPARNk/script-db/internal/logging"
	"github.com/RUTUPARNk/script-db/internal/registry"
	"github.com/RUTUPARNk/script-db/internal/reproduce"
	"github.com/RUTUPARNk/script-db/internal/snapshot"
	"github.com/RUTUPARNk/script-db/internal/worker"
)

// rootOptions holds the global flags.
type rootOptions struct {
	configPath    string
	registryPath  string
	backupsDir    string
	reproducedDir string
	pollInterval  time.Duration
	logLevel      string
}

// app is the wired core for one command invocation.
type app struct {
	cfg    *config.Config
	log    logging.SlogLogger
	store  *registry.Store
	engine *snapshot.Engine
	sched  *worker.Scheduler
	repro  *reproduce.Reproducer
}

// loadConfig resolves flags > env > file > defaults.
func (o *rootOptions) loadConfig(cmd *cobra.Command) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if cmd.Flags().Changed("config") {
		cfg, err = config.Load(o.configPath)
	} else {
		cfg, err = config.LoadOptional(o.configPath)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("registry") {
		cfg.Paths.Registry = o.registryPath
	}
	if flags.Changed("backups-dir") {
		cfg.Paths.Backups = o.backupsDir
	}
	if flags.Changed("reproduced-dir") {
		cfg.Paths.Reproduced = o.reproducedDir
	}
	if flags.Changed("poll-interval") {
		cfg.Worker.PollInterval = o.pollInterval
		cfg.Worker.Schedule = ""
	}
	if flags.Changed("log-level") {
		cfg.Logging.Level = o.logLevel
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// open loads config and wires the core. Unwritable storage is fatal here.
func (o *rootOptions) open(cmd *cobra.Command) (*app, error) {
	cfg, err := o.loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	logg, err := logging.New(cfg.Logging, cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}

	if err := fsprobe.Writable(cfg.Paths.Backups); err != nil {
		return nil, fmt.Errorf("backups root: %w", err)
	}

	filesystem := fs.New()
	store, err := registry.Open(cfg.Paths.Registry, filesystem, logg)
	if err != nil {
		return nil, err
	}

	engine := snapshot.NewEngine(cfg.Paths.Backups, filesystem, logg,
		snapshot.WithCompressionLevel(cfg.Snapshot.CompressionLevel))
	checker := liveness.NewProcChecker(cfg.Liveness.Timeout, logg)

	return &app{
		cfg:    cfg,
		log:    logg,
		store:  store,
		engine: engine,
		sched:  worker.NewScheduler(store, engine, checker, logg),
		repro:  reproduce.New(engine, cfg.Paths.Reproduced, filesystem, logg),
	}, nil
}

func (a *app) Close() error {
	return a.store.Close()
}

// withApp wraps a command body with app setup and teardown.
func (o *rootOptions) withApp(fn func(cmd *cobra.Command, args []string, a *app) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := o.open(cmd)
		if err != nil {
			return err
		}
		defer a.Close()
		return fn(cmd, args, a)
	}
}
