package cmd

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/docsearch/internal/daemon"
)

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the search daemon",
		Long: `Answer search requests over a Unix socket (JSON-RPC 2.0) until
interrupted. 'docsearch search' uses the daemon when it is running, which
keeps the favorites cache warm across queries.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if err := a.startupChecks(ctx); err != nil {
				return err
			}

			store, err := a.openStore(ctx)
			if err != nil {
				return err
			}

			opts := []daemon.Option{daemon.WithLogger(a.logger)}
			if sp, err := a.spool(); err == nil {
				opts = append(opts, daemon.WithQueue(sp))
			} else {
				a.logger.Warn("spool_unavailable", slog.String("error", err.Error()))
			}

			d, err := daemon.NewDaemon(a.daemonConfig(), store, opts...)
			if err != nil {
				return err
			}

			a.out.Statusf("🚀", "Serving %s on %s", store.Dir(), a.cfg.Server.SocketPath)
			err = d.Start(ctx)
			if ctx.Err() != nil {
				return nil
			}
			return err
		},
	}
}

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon and index status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			st, err := daemon.NewClient(a.daemonConfig()).Status(ctx)
			if err != nil {
				st, err = localStatus(cmd, a)
				if err != nil {
					return err
				}
			}

			if a.out.JSONMode() {
				return a.out.JSON(st)
			}
			printStatus(a, st)
			return nil
		},
	}
}

// localStatus reports the index and queue without a daemon.
func localStatus(cmd *cobra.Command, a *app) (*daemon.StatusResult, error) {
	st := &daemon.StatusResult{IndexDir: a.cfg.Storage.IndexDir}

	store, err := a.openStore(cmd.Context())
	if err != nil {
		return nil, err
	}
	if st.Documents, err = store.Count(cmd.Context()); err != nil {
		st.IndexErr = err.Error()
	}
	if sp, err := a.spool(); err == nil {
		if qs, err := sp.Stats(); err == nil {
			st.Queue = &qs
		}
	}
	return st, nil
}

func printStatus(a *app, st *daemon.StatusResult) {
	if st.Running {
		a.out.Successf("Daemon running (pid %d, up %s)", st.PID, st.Uptime)
	} else {
		a.out.Warning("Daemon not running")
	}

	if st.IndexErr != "" {
		a.out.Errorf("Index %s: %s", st.IndexDir, st.IndexErr)
	} else {
		a.out.Statusf("📚", "%d document(s) in %s", st.Documents, st.IndexDir)
	}
	if q := st.Queue; q != nil {
		a.out.Statusf("📥", "Queue: %d incoming, %d processing, %d failed", q.Incoming, q.Processing, q.Failed)
	}
	if m := st.Queries; m != nil && m.TotalQueries > 0 {
		a.out.Statusf("🔎", "Queries: %d answered, %.1f%% without results", m.TotalQueries, m.ZeroResultPercentage())
		if len(m.TopTerms) > 0 {
			top := m.TopTerms[:min(5, len(m.TopTerms))]
			terms := make([]string, len(top))
			for i, tc := range top {
				terms[i] = fmt.Sprintf("%s (%d)", tc.Term, tc.Count)
			}
			a.out.Statusf("  ", "Top: %s", strings.Join(terms, ", "))
		}
	}
}
