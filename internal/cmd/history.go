package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/harrison/treewalk/internal/config"
	"github.com/harrison/treewalk/internal/history"
	"github.com/harrison/treewalk/internal/logger"
)

// NewHistoryCommand creates the 'treewalk history' command
func NewHistoryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "Show recorded walks",
		Long: `History lists walks recorded with 'treewalk walk --record', newest first.
Given a run id, it shows that run including its inaccessible directories.

The database is history.db_path from the config file, overridden by --db.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistory,
	}

	cmd.Flags().String("config", "", "Path to config file (default: .treewalk/config.yaml)")
	cmd.Flags().Int("limit", 20, "Maximum number of runs to list (0 = all)")
	cmd.Flags().String("db", "", "History database path (default: .treewalk/history.db)")

	return cmd
}

// runHistory executes the history command
func runHistory(cmd *cobra.Command, args []string) error {
	output := cmd.OutOrStdout()

	cfg, err := loadConfigFile(cmd)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("db") {
		dbFlag, _ := cmd.Flags().GetString("db")
		cfg.MergeWithFlags(config.Flags{HistoryDB: &dbFlag})
	}
	dbPath, err := cfg.HistoryDBPath()
	if err != nil {
		return fmt.Errorf("failed to get history database path: %w", err)
	}

	// Check if database exists
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		fmt.Fprintf(output, "No recorded walks found\n")
		fmt.Fprintf(output, "Database path: %s\n", dbPath)
		return nil
	}

	store, err := history.NewStore(dbPath)
	if err != nil {
		return fmt.Errorf("open history store: %w", err)
	}
	defer store.Close()

	ctx := cmd.Context()
	useColor := logger.IsTerminal(output)

	if len(args) == 1 {
		run, err := store.Get(ctx, args[0])
		if errors.Is(err, history.ErrNotFound) {
			return fmt.Errorf("no recorded walk with id %s", args[0])
		}
		if err != nil {
			return fmt.Errorf("get walk: %w", err)
		}
		printRun(output, run, useColor)
		return nil
	}

	limit, _ := cmd.Flags().GetInt("limit")
	runs, err := store.List(ctx, limit)
	if err != nil {
		return fmt.Errorf("list walks: %w", err)
	}
	if len(runs) == 0 {
		fmt.Fprintf(output, "No recorded walks found\n")
		return nil
	}

	printRuns(output, runs, useColor)
	return nil
}

func printRuns(w io.Writer, runs []*history.Run, useColor bool) {
	bold := color.New(color.Bold)
	red := color.New(color.FgRed)
	setColor(useColor, bold, red)

	fmt.Fprintf(w, "%s\n", bold.Sprintf("%-36s  %-19s  %-10s  %7s  %7s  %7s  %s",
		"ID", "STARTED", "MODE", "FILES", "DIRS", "DENIED", "ROOT"))
	for _, run := range runs {
		denied := fmt.Sprintf("%7d", run.Inaccessible)
		if run.Inaccessible > 0 {
			denied = red.Sprint(denied)
		}
		fmt.Fprintf(w, "%-36s  %-19s  %-10s  %7d  %7d  %s  %s\n",
			run.ID,
			run.StartedAt.Local().Format("2006-01-02 15:04:05"),
			run.Mode,
			run.Files,
			run.Directories,
			denied,
			run.Root,
		)
	}
}

func printRun(w io.Writer, run *history.Run, useColor bool) {
	bold := color.New(color.Bold)
	red := color.New(color.FgRed)
	setColor(useColor, bold, red)

	fmt.Fprintf(w, "%s %s\n", bold.Sprint("Run:"), run.ID)
	fmt.Fprintf(w, "%s %s\n", bold.Sprint("Root:"), run.Root)
	fmt.Fprintf(w, "%s %s\n", bold.Sprint("Pattern:"), run.Pattern)
	fmt.Fprintf(w, "%s %s\n", bold.Sprint("Mode:"), run.Mode)
	fmt.Fprintf(w, "%s %s\n", bold.Sprint("Started:"), run.StartedAt.Local().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "%s %s\n", bold.Sprint("Duration:"), run.Duration)
	fmt.Fprintf(w, "%s %d files (%d bytes), %d directories, %d inaccessible\n",
		bold.Sprint("Summary:"), run.Files, run.TotalBytes, run.Directories, run.Inaccessible)

	if len(run.Failures) > 0 {
		fmt.Fprintf(w, "\n%s\n", red.Sprint("Inaccessible:"))
		for _, f := range run.Failures {
			fmt.Fprintf(w, "  %s: %s\n", f.Path, f.Error)
		}
	}
}

func setColor(enabled bool, colors ...*color.Color) {
	for _, c := range colors {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
}
