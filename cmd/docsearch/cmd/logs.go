package cmd

import (
	"context"
	"fmt"
	"regexp"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/docsearch/internal/logging"
	"github.com/Aman-CERP/docsearch/internal/output"
)

type logsOptions struct {
	follow  bool
	lines   int
	level   string
	filter  string
	noColor bool
	file    string
}

func newLogsCmd(a *app) *cobra.Command {
	var opts logsOptions

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "View docsearch logs",
		Long: `Show the last lines of the docsearch log, optionally following new
entries like 'tail -f'.

Examples:
  docsearch logs -n 100
  docsearch logs -f --level warn
  docsearch logs --filter command_failed`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLogs(cmd.Context(), a, opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.follow, "follow", "f", false, "Follow log output")
	cmd.Flags().IntVarP(&opts.lines, "lines", "n", 50, "Number of lines to show")
	cmd.Flags().StringVar(&opts.level, "level", "", "Minimum level (debug|info|warn|error)")
	cmd.Flags().StringVar(&opts.filter, "filter", "", "Only lines matching this regex")
	cmd.Flags().BoolVar(&opts.noColor, "no-color", false, "Disable colored output")
	cmd.Flags().StringVar(&opts.file, "file", "", "Log file (default: <logging.dir>/docsearch.log)")

	return cmd
}

func runLogs(ctx context.Context, a *app, opts logsOptions) error {
	path, err := logging.FindLogFile(opts.file, a.cfg.Logging.Dir)
	if err != nil {
		return err
	}

	cfg := logging.ViewerConfig{
		Level:   opts.level,
		NoColor: opts.noColor || !output.IsTTY(a.out.Out()),
	}
	if opts.filter != "" {
		if cfg.Pattern, err = regexp.Compile(opts.filter); err != nil {
			return fmt.Errorf("invalid filter: %w", err)
		}
	}
	v := logging.NewViewer(cfg, a.out.Out())

	entries, err := v.Tail(path, opts.lines)
	if err != nil {
		return err
	}
	v.Print(entries)

	if !opts.follow {
		return nil
	}

	ch := make(chan logging.LogEntry, 64)
	done := make(chan error, 1)
	go func() {
		done <- v.Follow(ctx, path, ch)
		close(ch)
	}()
	for entry := range ch {
		v.Print([]logging.LogEntry{entry})
	}
	return <-done
}
