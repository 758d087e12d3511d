package cmd

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/harrison/treewalk/internal/config"
	"github.com/harrison/treewalk/internal/fsaccess"
	"github.com/harrison/treewalk/internal/history"
	"github.com/harrison/treewalk/internal/logger"
	"github.com/harrison/treewalk/internal/models"
	"github.com/harrison/treewalk/internal/report"
	"github.com/harrison/treewalk/internal/walker"
)

// NewWalkCommand creates the 'treewalk walk' command
func NewWalkCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "walk <path>",
		Short: "Walk a directory tree and report matching files",
		Long: `Walk recursively lists every file under <path> whose name matches
--pattern, every directory reached, and every directory that could not be
listed. Inaccessible directories are reported, not fatal.

Settings are read from .treewalk/config.yaml (or --config) and overridden
by flags.`,
		Args: cobra.ExactArgs(1),
		RunE: runWalk,
	}

	cmd.Flags().String("config", "", "Path to config file (default: .treewalk/config.yaml)")
	cmd.Flags().StringP("pattern", "p", "*", "File name pattern, matched against base names")
	cmd.Flags().Bool("parallel", false, "Walk subtrees concurrently")
	cmd.Flags().Int("max-concurrency", -1, "Maximum concurrent subtree walks (0 = automatic, -1 = use config)")
	cmd.Flags().String("timeout", "", "Abort the walk after this duration (e.g., 30s, 5m)")
	cmd.Flags().StringP("format", "f", "text", "Report format: text, json, yaml, markdown, html")
	cmd.Flags().StringP("output", "o", "", "Write the report to this file instead of stdout")
	cmd.Flags().String("log-level", "info", "Log level: trace, debug, info, warn, error")
	cmd.Flags().Bool("record", false, "Record a summary of the walk in the history database")
	cmd.Flags().String("db", "", "History database path (default: .treewalk/history.db)")

	return cmd
}

// runWalk implements the walk command logic
func runWalk(cmd *cobra.Command, args []string) error {
	cfg, err := loadWalkConfig(cmd)
	if err != nil {
		return err
	}

	log := logger.NewConsoleLogger(cmd.ErrOrStderr(), cfg.LogLevel)
	w := walker.New(fsaccess.NewOSLister(),
		walker.WithLogger(log),
		walker.WithMaxConcurrency(cfg.MaxConcurrency),
	)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	mode := "sequential"
	walk := w.WalkPath
	if cfg.Parallel {
		mode = "parallel"
		walk = w.WalkParallelPath
	}

	root := args[0]
	log.LogWalkStart(root, mode, cfg.Pattern)

	startedAt := time.Now()
	result, err := walk(ctx, root, cfg.Pattern)
	if err != nil {
		return err
	}
	duration := time.Since(startedAt)
	log.LogSummary(result, duration)

	resolved := root
	if len(result.Directories) > 0 {
		resolved = result.Directories[0].Path
	}

	runID := uuid.NewString()
	meta := report.Meta{
		RunID:     runID,
		Root:      resolved,
		Pattern:   cfg.Pattern,
		Mode:      mode,
		StartedAt: startedAt,
		Duration:  duration,
	}
	outputPath, _ := cmd.Flags().GetString("output")
	if err := writeReport(cmd.OutOrStdout(), cmd.ErrOrStderr(), outputPath, cfg.Format, meta, result); err != nil {
		return err
	}

	if cfg.History.Enabled {
		run := history.NewRun(resolved, cfg.Pattern, mode, startedAt, duration, result)
		run.ID = runID
		if err := recordRun(ctx, cfg, run); err != nil {
			log.LogWarn(fmt.Sprintf("walk %s was not recorded: %v", runID, err))
			return err
		}
		log.LogDebug(fmt.Sprintf("recorded walk %s", runID))
	}
	return nil
}

// loadWalkConfig loads the config file and applies flags that were set
// explicitly on the command line.
func loadWalkConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := loadConfigFile(cmd)
	if err != nil {
		return nil, err
	}

	var flags config.Flags
	if cmd.Flags().Changed("pattern") {
		v, _ := cmd.Flags().GetString("pattern")
		flags.Pattern = &v
	}
	if cmd.Flags().Changed("parallel") {
		v, _ := cmd.Flags().GetBool("parallel")
		flags.Parallel = &v
	}
	if cmd.Flags().Changed("max-concurrency") {
		v, _ := cmd.Flags().GetInt("max-concurrency")
		if v >= 0 {
			flags.MaxConcurrency = &v
		}
	}
	if cmd.Flags().Changed("timeout") {
		timeoutStr, _ := cmd.Flags().GetString("timeout")
		timeout, err := time.ParseDuration(timeoutStr)
		if err != nil {
			return nil, fmt.Errorf("invalid timeout format %q: %w", timeoutStr, err)
		}
		flags.Timeout = &timeout
	}
	if cmd.Flags().Changed("format") {
		v, _ := cmd.Flags().GetString("format")
		flags.Format = &v
	}
	if cmd.Flags().Changed("log-level") {
		v, _ := cmd.Flags().GetString("log-level")
		flags.LogLevel = &v
	}
	if cmd.Flags().Changed("record") {
		v, _ := cmd.Flags().GetBool("record")
		flags.Record = &v
	}
	if cmd.Flags().Changed("db") {
		v, _ := cmd.Flags().GetString("db")
		flags.HistoryDB = &v
	}

	cfg.MergeWithFlags(flags)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// loadConfigFile loads --config, or the default configuration file when the
// flag is empty.
func loadConfigFile(cmd *cobra.Command) (*config.Config, error) {
	configPath, _ := cmd.Flags().GetString("config")
	if configPath == "" {
		var err error
		configPath, err = config.DefaultConfigPath()
		if err != nil {
			return nil, fmt.Errorf("failed to locate config: %w", err)
		}
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", configPath, err)
	}
	return cfg, nil
}

func recordRun(ctx context.Context, cfg *config.Config, run *history.Run) error {
	dbPath, err := cfg.HistoryDBPath()
	if err != nil {
		return fmt.Errorf("failed to get history database path: %w", err)
	}

	store, err := history.NewStore(dbPath)
	if err != nil {
		return fmt.Errorf("open history store: %w", err)
	}
	defer store.Close()

	// The walk deadline does not apply to recording.
	if err := store.Record(context.WithoutCancel(ctx), run); err != nil {
		return fmt.Errorf("record walk: %w", err)
	}
	return nil
}

// writeReport renders the report to out, or to outputPath when set.
func writeReport(out, errOut io.Writer, outputPath, format string, meta report.Meta, result *models.TraversalResult) error {
	doc := report.NewDocument(meta, result)

	if outputPath == "" {
		opts := report.Options{Color: logger.IsTerminal(out)}
		return report.Render(out, format, doc, opts)
	}

	var buf bytes.Buffer
	if err := report.Render(&buf, format, doc, report.Options{}); err != nil {
		return err
	}
	if err := report.WriteFile(outputPath, buf.Bytes()); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	fmt.Fprintf(errOut, "Report written to %s\n", outputPath)
	return nil
}
