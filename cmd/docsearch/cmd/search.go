package cmd

import (
	"context"
	stderrors "errors"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/docsearch/internal/daemon"
	"github.com/Aman-CERP/docsearch/internal/index"
)

// searchOptions holds CLI flags for search.
type searchOptions struct {
	folder string
	actor  string
	limit  int
	local  bool
}

func newSearchCmd(a *app) *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search indexed documents",
		Long: `Search indexed documents with the boolean query language.

Conditions are joined with & (and) and | (or); & binds tighter. Each
condition matches a phrase in the content, an exact tag, or a fragment of
the title. Matching ignores case and accents. An empty query lists every
document.

The running daemon answers when reachable; otherwise the index is opened
directly.

Examples:
  docsearch search 'rapport annuel'
  docsearch search 'bilan & 2024 | devis' --folder 7
  docsearch search facture --actor 12 --format json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd.Context(), a, strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().StringVar(&opts.folder, "folder", "", "Restrict results to one folder id")
	cmd.Flags().StringVar(&opts.actor, "actor", "", "User id whose favorites are flagged")
	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 0, "Maximum number of results (0: all)")
	cmd.Flags().BoolVar(&opts.local, "local", false, "Search the index directly, bypassing the daemon")

	return cmd
}

func runSearch(ctx context.Context, a *app, query string, opts searchOptions) error {
	a.logger.Info("search_started",
		slog.String("query", query),
		slog.String("folder", opts.folder))

	var (
		results []index.Result
		err     error
		mode    = "daemon"
	)
	if !opts.local {
		results, err = daemon.NewClient(a.daemonConfig()).Search(ctx, daemon.SearchParams{
			Query:  query,
			Folder: opts.folder,
			Actor:  opts.actor,
			Limit:  opts.limit,
		})
	}
	if opts.local || stderrors.Is(err, daemon.ErrNotRunning) {
		mode = "local"
		results, err = searchLocal(ctx, a, query, opts)
	}
	if err != nil {
		return err
	}

	a.logger.Info("search_complete",
		slog.String("mode", mode),
		slog.Int("results", len(results)))
	return printResults(a, results)
}

func searchLocal(ctx context.Context, a *app, query string, opts searchOptions) ([]index.Result, error) {
	store, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}
	results, err := store.Search(ctx, query, index.SearchOptions{Path: opts.folder, Actor: opts.actor})
	if err != nil {
		return nil, err
	}
	if opts.limit > 0 && len(results) > opts.limit {
		results = results[:opts.limit]
	}
	return results, nil
}

func printResults(a *app, results []index.Result) error {
	if a.out.JSONMode() {
		if results == nil {
			results = []index.Result{}
		}
		return a.out.JSON(results)
	}

	if len(results) == 0 {
		a.out.Warning("No documents match")
		return nil
	}

	rows := make([][]string, 0, len(results))
	for _, r := range results {
		fav := ""
		if r.Favorite {
			fav = "★"
		}
		rows = append(rows, []string{r.ID, r.Title, r.Path, strings.Join(r.TagList(), ", "), fav})
	}
	if err := a.out.Table([]string{"ID", "TITLE", "FOLDER", "TAGS", "FAV"}, rows); err != nil {
		return err
	}
	a.out.Newline()
	a.out.Successf("%d document(s)", len(results))
	return nil
}
