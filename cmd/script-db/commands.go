package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/RUTUPARNk/script-db/internal/desktop"
	"github.com/RUTUPARNk/script-db/internal/registry"
	"github.com/RUTUPARNk/script-db/internal/reproduce"
	"github.com/RUTUPARNk/script-db/internal/worker"
)

func newRootCmd() *cobra.Command {
	return newRootCmdWith(desktop.New())
}

func newRootCmdWith(opener desktop.Opener) *cobra.Command {
	o := &rootOptions{}

	root := &cobra.Command{
		Use:           "script-db",
		Short:         "Index your scripts and keep reproducible compressed backups of them",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&o.configPath, "config", "config.yaml", "config file (optional when absent)")
	pf.StringVar(&o.registryPath, "registry", "", "registry document (default scripts.json)")
	pf.StringVar(&o.backupsDir, "backups-dir", "", "backups root (default ./backups)")
	pf.StringVar(&o.reproducedDir, "reproduced-dir", "", "restore root (default ./reproduced)")
	pf.DurationVar(&o.pollInterval, "poll-interval", 0, "pending backup poll interval, at least 1s (default 5s)")
	pf.StringVar(&o.logLevel, "log-level", "", "debug, info, warn or error")

	root.AddCommand(
		newAddCmd(o),
		newModifyCmd(o),
		newDeleteCmd(o),
		newListCmd(o),
		newBackupCmd(o),
		newArtifactsCmd(o),
		newReproduceCmd(o),
		newWorkerCmd(o),
		newOpenCmd(o, opener),
		newLaunchCmd(o, opener),
	)
	return root
}

func newAddCmd(o *rootOptions) *cobra.Command {
	var desc string
	cmd := &cobra.Command{
		Use:     "add <name> <path>",
		Aliases: []string{"add-script"},
		Short:   "Register a script and back it up",
		Args:    cobra.ExactArgs(2),
		RunE: o.withApp(func(cmd *cobra.Command, args []string, a *app) error {
			out, err := a.sched.Add(cmd.Context(), registry.ScriptEntry{
				Name:        args[0],
				Path:        args[1],
				Description: desc,
			})
			if err != nil {
				return err
			}
			report(cmd.OutOrStdout(), args[0], out)
			fmt.Fprintln(cmd.OutOrStdout(), "Script added.")
			return nil
		}),
	}
	cmd.Flags().StringVarP(&desc, "description", "d", "", "free-text description")
	return cmd
}

func newModifyCmd(o *rootOptions) *cobra.Command {
	var newName, path, desc string
	cmd := &cobra.Command{
		Use:     "modify <name>",
		Aliases: []string{"modify-script"},
		Short:   "Change a script's name, path or description and back it up",
		Args:    cobra.ExactArgs(1),
		RunE: o.withApp(func(cmd *cobra.Command, args []string, a *app) error {
			var ch worker.Changes
			if cmd.Flags().Changed("name") {
				ch.Name = &newName
			}
			if cmd.Flags().Changed("path") {
				ch.Path = &path
			}
			if cmd.Flags().Changed("description") {
				ch.Description = &desc
			}

			out, err := a.sched.Modify(cmd.Context(), args[0], ch)
			if err != nil {
				return err
			}
			name := args[0]
			if ch.Name != nil {
				name = newName
			}
			report(cmd.OutOrStdout(), name, out)
			fmt.Fprintln(cmd.OutOrStdout(), "Modified.")
			return nil
		}),
	}
	f := cmd.Flags()
	f.StringVar(&newName, "name", "", "rename the script (moves its backups)")
	f.StringVar(&path, "path", "", "new script location")
	f.StringVarP(&desc, "description", "d", "", "new description")
	return cmd
}

func newDeleteCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <name>",
		Aliases: []string{"delete-script"},
		Short:   "Unregister a script; its backups are kept",
		Args:    cobra.ExactArgs(1),
		RunE: o.withApp(func(cmd *cobra.Command, args []string, a *app) error {
			if err := a.sched.Delete(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted entry: %s\n", args[0])
			return nil
		}),
	}
}

func newBackupCmd(o *rootOptions) *cobra.Command {
	var ignoreRunning bool
	cmd := &cobra.Command{
		Use:     "backup <name>",
		Aliases: []string{"force-backup"},
		Short:   "Back up a script now, or defer it while the script runs",
		Args:    cobra.ExactArgs(1),
		RunE: o.withApp(func(cmd *cobra.Command, args []string, a *app) error {
			out, err := a.sched.Schedule(cmd.Context(), args[0], worker.ScheduleOptions{IgnoreRunning: ignoreRunning})
			if err != nil {
				return err
			}
			report(cmd.OutOrStdout(), args[0], out)
			return nil
		}),
	}
	cmd.Flags().BoolVar(&ignoreRunning, "ignore-running", false, "capture even if the script is running")
	return cmd
}

func newArtifactsCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "artifacts <name>",
		Short: "List the backups of a script, oldest first",
		Args:  cobra.ExactArgs(1),
		RunE: o.withApp(func(cmd *cobra.Command, args []string, a *app) error {
			if err := registry.ValidateName(args[0]); err != nil {
				return err
			}
			arts, err := a.engine.List(args[0])
			if err != nil {
				return err
			}
			if len(arts) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "No backups for %s.\n", args[0])
				return nil
			}
			for _, art := range arts {
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %s  %s\n",
					art.Timestamp.Local().Format("2006-01-02 15:04:05"), art.ContentHash[:12], art.ID())
			}
			return nil
		}),
	}
}

func newReproduceCmd(o *rootOptions) *cobra.Command {
	var overwrite bool
	cmd := &cobra.Command{
		Use:   "reproduce <name> [artifact]",
		Short: "Restore a backup into the reproduced root (latest by default)",
		Args:  cobra.RangeArgs(1, 2),
		RunE: o.withApp(func(cmd *cobra.Command, args []string, a *app) error {
			selector := reproduce.Latest
			if len(args) == 2 {
				selector = args[1]
			}
			out, err := a.repro.Restore(cmd.Context(), args[0], selector, reproduce.Options{Overwrite: overwrite})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Reproduced to %s\n", out)
			return nil
		}),
	}
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "replace an existing restored file")
	return cmd
}

func newOpenCmd(o *rootOptions, opener desktop.Opener) *cobra.Command {
	return &cobra.Command{
		Use:   "open <name>",
		Short: "Open the folder containing a script",
		Args:  cobra.ExactArgs(1),
		RunE: o.withApp(func(cmd *cobra.Command, args []string, a *app) error {
			e, err := a.store.Get(args[0])
			if err != nil {
				return err
			}
			return opener.OpenPath(e.Path)
		}),
	}
}

func newLaunchCmd(o *rootOptions, opener desktop.Opener) *cobra.Command {
	return &cobra.Command{
		Use:     "launch <name>",
		Aliases: []string{"execute"},
		Short:   "Run a script in a new window",
		Args:    cobra.ExactArgs(1),
		RunE: o.withApp(func(cmd *cobra.Command, args []string, a *app) error {
			e, err := a.store.Get(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Launching '%s' in a new window...\n", e.Name)
			return opener.Launch(e.Path)
		}),
	}
}

func report(w io.Writer, name string, out worker.Outcome) {
	switch out {
	case worker.Captured:
		fmt.Fprintf(w, "Backup saved for '%s'.\n", name)
	case worker.Unchanged:
		fmt.Fprintf(w, "'%s' is unchanged since its last backup.\n", name)
	case worker.Deferred:
		fmt.Fprintf(w, "'%s' appears to be running; backup deferred until it exits.\n", name)
	}
}
