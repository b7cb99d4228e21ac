package cmd

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/docsearch/internal/errors"
	"github.com/Aman-CERP/docsearch/internal/ingest"
	"github.com/Aman-CERP/docsearch/internal/queue"
)

func newSubmitCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "submit [file|-]",
		Short: "Queue a JSON command for the workers",
		Long: `Read one JSON command from a file or stdin and queue it.

  {"op":"index","job":{"file_path":"/srv/uploads/8f3a","filename":"rapport.pdf","folder_id":"7","file_id":"42"}}
  {"op":"tag","file_ids":["42"],"tag":"comptabilite"}
  {"op":"move","file_ids":["42","43"],"folder_id":"9"}
  {"op":"delete_many","file_ids":["42","43"]}`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var r io.Reader = cmd.InOrStdin()
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return errors.New(errors.ErrCodeFileNotFound, "cannot open command file", err).
						WithDetail("path", args[0])
				}
				defer func() { _ = f.Close() }()
				r = f
			}

			var c ingest.Command
			dec := json.NewDecoder(r)
			dec.DisallowUnknownFields()
			if err := dec.Decode(&c); err != nil {
				return errors.ValidationError("command is not valid JSON", err)
			}
			return a.apply(cmd.Context(), c, true)
		},
	}
}

func newQueueCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and repair the command queue",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Count queued, running and failed commands",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			sp, err := a.spool()
			if err != nil {
				return err
			}
			st, err := sp.Stats()
			if err != nil {
				return err
			}
			if a.out.JSONMode() {
				return a.out.JSON(st)
			}
			a.out.Statusf("📥", "%d incoming, %d processing, %d failed", st.Incoming, st.Processing, st.Failed)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "failed",
		Short: "List failed commands with their error",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			sp, err := a.spool()
			if err != nil {
				return err
			}
			return listFailed(a, sp)
		},
	})

	var all bool
	requeue := &cobra.Command{
		Use:   "requeue [name]...",
		Short: "Move failed commands back to the queue",
		RunE: func(_ *cobra.Command, args []string) error {
			sp, err := a.spool()
			if err != nil {
				return err
			}
			names := args
			if all {
				if names, err = sp.FailedCommands(); err != nil {
					return err
				}
			}
			if len(names) == 0 {
				return errors.ValidationError("no command names given", nil).
					WithSuggestion("Pass names from 'docsearch queue failed' or use --all")
			}
			for _, name := range names {
				if err := sp.Requeue(name); err != nil {
					return err
				}
			}
			if a.out.JSONMode() {
				return a.out.JSON(map[string][]string{"requeued": names})
			}
			a.out.Successf("Requeued %d command(s)", len(names))
			return nil
		},
	}
	requeue.Flags().BoolVar(&all, "all", false, "Requeue every failed command")
	cmd.AddCommand(requeue)

	return cmd
}

type failedCommand struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

func listFailed(a *app, sp *queue.Spool) error {
	names, err := sp.FailedCommands()
	if err != nil {
		return err
	}

	failed := make([]failedCommand, 0, len(names))
	for _, name := range names {
		reason, err := sp.FailureReason(name)
		if err != nil {
			reason = err.Error()
		}
		failed = append(failed, failedCommand{Name: name, Reason: reason})
	}

	if a.out.JSONMode() {
		return a.out.JSON(failed)
	}
	if len(failed) == 0 {
		a.out.Success("No failed commands")
		return nil
	}
	rows := make([][]string, 0, len(failed))
	for _, f := range failed {
		rows = append(rows, []string{f.Name, f.Reason})
	}
	return a.out.Table([]string{"NAME", "ERROR"}, rows)
}

func newWorkerCmd(a *app) *cobra.Command {
	var (
		once         bool
		recoverFirst bool
		workers      int
	)

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Run queued commands against the index",
		Long: `Claim commands from the queue and apply them to the index until
interrupted. Several workers may run at once, on one machine or sharing the
storage root. A command interrupted by shutdown returns to the queue.

--recover returns commands abandoned in processing/ by a crashed worker.
Only use it while no other worker is running.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			sp, err := a.spool()
			if err != nil {
				return err
			}
			p, err := a.pipeline(ctx)
			if err != nil {
				return err
			}

			if recoverFirst {
				n, err := sp.Recover()
				if err != nil {
					return err
				}
				a.logger.Info("spool_recovered", slog.Int("commands", n))
				a.out.Successf("Recovered %d abandoned command(s)", n)
			}

			if once {
				n, err := sp.Drain(ctx, p.Apply)
				if a.out.JSONMode() {
					if jerr := a.out.JSON(map[string]int{"processed": n}); jerr != nil {
						return jerr
					}
				} else {
					a.out.Successf("Processed %d command(s)", n)
				}
				return err
			}

			if err := a.startupChecks(ctx); err != nil {
				return err
			}

			opts := queue.RunOptions{
				Workers:      a.cfg.Worker.Workers,
				PollInterval: a.cfg.Worker.PollInterval,
			}
			if workers > 0 {
				opts.Workers = workers
			}

			a.logger.Info("worker_started",
				slog.String("spool", sp.Dir()),
				slog.Int("workers", opts.Workers))
			a.out.Statusf("🚀", "Worker running on %s (Ctrl+C to stop)", sp.Dir())

			err = sp.Run(ctx, p.Apply, opts)
			a.logger.Info("worker_stopped")
			return err
		},
	}

	cmd.Flags().BoolVar(&once, "once", false, "Process the current queue and exit")
	cmd.Flags().BoolVar(&recoverFirst, "recover", false, "Requeue commands abandoned by a crashed worker first")
	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "Concurrent commands (default: worker.workers)")
	return cmd
}
