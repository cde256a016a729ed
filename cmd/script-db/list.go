package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/RUTUPARNk/script-db/internal/registry"
)

var (
	nameStyle    = lipgloss.NewStyle().Bold(true)
	pendingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	labelStyle   = lipgloss.NewStyle().Faint(true).PaddingLeft(4)
)

func newListCmd(o *rootOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"list-scripts", "ls"},
		Short:   "List registered scripts",
		Args:    cobra.NoArgs,
		RunE: o.withApp(func(cmd *cobra.Command, _ []string, a *app) error {
			entries, err := a.store.List()
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), entries)
			}
			renderList(cmd.OutOrStdout(), entries)
			return nil
		}),
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print entries as JSON")
	return cmd
}

func writeJSON(w io.Writer, entries []registry.ScriptEntry) error {
	if entries == nil {
		entries = []registry.ScriptEntry{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(entries)
}

func renderList(w io.Writer, entries []registry.ScriptEntry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No scripts registered yet.")
		return
	}

	fmt.Fprintln(w, "Registered scripts:")
	for i, e := range entries {
		line := fmt.Sprintf("%d. %s", i+1, nameStyle.Render(e.Name))
		if e.Pending {
			line += " " + pendingStyle.Render("[PENDING BACKUP]")
		}
		fmt.Fprintln(w, line)
		fmt.Fprintln(w, labelStyle.Render("Path: ")+e.Path)
		fmt.Fprintln(w, labelStyle.Render("Desc: ")+e.Description)

		last := "never"
		if e.LastBackupTime != nil {
			last = fmt.Sprintf("%s (%s)", e.LastBackupTime.Local().Format("2006-01-02 15:04:05"), short(e.LastBackupHash))
		}
		fmt.Fprintln(w, labelStyle.Render("Last backup: ")+last)
	}
}

func short(hash string) string {
	if len(hash) > 12 {
		return hash[:12]
	}
	return hash
}
