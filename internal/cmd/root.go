package cmd

import (
	"github.com/spf13/cobra"
)

// Version is injected at build time via -ldflags
var Version = "dev"

// NewRootCommand creates and returns the root cobra command for treewalk
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "treewalk",
		Short: "Recursive directory walker",
		Long: `Treewalk recursively walks a directory tree and reports every file whose
name matches a pattern, every directory it reached, and every directory it
could not list.

Unreadable directories never abort a walk: they are reported and skipped.
Walks run sequentially or with one goroutine per subtree (--parallel).`,
		Version: Version,
		// Silence usage on errors to avoid duplicate help text
		SilenceUsage: true,
	}

	cmd.AddCommand(NewWalkCommand())
	cmd.AddCommand(NewHistoryCommand())

	return cmd
}
