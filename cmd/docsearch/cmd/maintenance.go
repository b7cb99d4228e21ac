package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/docsearch/internal/errors"
	"github.com/Aman-CERP/docsearch/internal/index"
)

func newVerifyCmd(a *app) *cobra.Command {
	var prune bool

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Compare the index with the file catalog",
		Long: `Compare indexed ids with the catalog's file table and report files
that were never indexed and documents whose file no longer exists.

With --prune the orphaned documents are deleted. Missing files must be
re-indexed from their stored copy.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			cat, err := a.openCatalog(ctx)
			if err != nil {
				return err
			}
			if cat == nil {
				return errors.ConfigError("verify needs a catalog database", nil).
					WithSuggestion("Set catalog.path in docsearch.yaml or DOCSEARCH_CATALOG_PATH")
			}

			expected, err := cat.FileIDs(ctx)
			if err != nil {
				return err
			}
			store, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			report, err := store.Verify(ctx, expected)
			if err != nil {
				return err
			}

			pruned := 0
			if prune {
				if pruned, err = store.Prune(ctx, report); err != nil {
					return err
				}
			}

			if a.out.JSONMode() {
				return a.out.JSON(struct {
					*index.Report
					Pruned int `json:"pruned"`
				}{report, pruned})
			}
			printReport(a, report, pruned)
			return nil
		},
	}

	cmd.Flags().BoolVar(&prune, "prune", false, "Delete orphaned documents")
	return cmd
}

func printReport(a *app, r *index.Report, pruned int) {
	a.out.Statusf("📂", "%d indexed, %d in catalog (%s)", r.Indexed, r.Expected, r.Duration.Round(time.Millisecond))
	if r.Consistent() {
		a.out.Success("Index matches the catalog")
		return
	}
	if len(r.Missing) > 0 {
		a.out.Warningf("%d file(s) not indexed: %s", len(r.Missing), abbreviate(r.Missing, 20))
	}
	if len(r.Orphans) > 0 {
		a.out.Warningf("%d orphaned document(s): %s", len(r.Orphans), abbreviate(r.Orphans, 20))
	}
	if pruned > 0 {
		a.out.Successf("Pruned %d orphaned document(s)", pruned)
	}
}

func abbreviate(ids []string, n int) string {
	if len(ids) <= n {
		return strings.Join(ids, ", ")
	}
	return fmt.Sprintf("%s, ... (%d more)", strings.Join(ids[:n], ", "), len(ids)-n)
}

func newResetCmd(a *app) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete every document and recreate an empty index",
		Long: `Delete the index directory and recreate it empty. This is the recovery
path for a corrupt index; every file must be indexed again afterwards.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return errors.ValidationError("reset deletes every indexed document", nil).
					WithSuggestion("Re-run with --yes to confirm")
			}
			store, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			if err := store.Reset(cmd.Context()); err != nil {
				return err
			}
			if a.out.JSONMode() {
				return a.out.JSON(map[string]string{"reset": store.Dir()})
			}
			a.out.Successf("Index reset at %s", store.Dir())
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Confirm deletion")
	return cmd
}

func newTokensCmd(a *app) *cobra.Command {
	var (
		extractFile bool
		lemmatize   bool
		limit       int
	)

	cmd := &cobra.Command{
		Use:   "tokens [file|-]",
		Short: "Print the significant words of a text",
		Long: `Normalize a text and print its distinct lemmas, most frequent first.

The text is read from the file argument or stdin. With --extract the file
goes through the document extractor first, so office files, PDFs and
images can be inspected. With --lemmatize the lemmatized text is printed
instead of the token list.

Examples:
  docsearch tokens notes.txt
  docsearch tokens rapport.pdf --extract -n 20
  echo "Les rapports annuels" | docsearch tokens --lemmatize`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			text, err := readText(a, cmd, args, extractFile)
			if err != nil {
				return err
			}
			p, err := a.processor()
			if err != nil {
				return err
			}

			if lemmatize {
				out, err := p.Lemmatize(ctx, text)
				if err != nil {
					return err
				}
				if a.out.JSONMode() {
					return a.out.JSON(map[string]string{"text": out})
				}
				_, err = fmt.Fprintln(a.out.Out(), out)
				return err
			}

			tokens, err := p.Tokenize(ctx, text)
			if err != nil {
				return err
			}
			if limit > 0 && len(tokens) > limit {
				tokens = tokens[:limit]
			}
			if a.out.JSONMode() {
				if tokens == nil {
					tokens = []string{}
				}
				return a.out.JSON(tokens)
			}
			_, err = fmt.Fprintln(a.out.Out(), strings.Join(tokens, "\n"))
			return err
		},
	}

	cmd.Flags().BoolVar(&extractFile, "extract", false, "Extract the file's text with the document readers")
	cmd.Flags().BoolVar(&lemmatize, "lemmatize", false, "Print the lemmatized text instead of tokens")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Print at most n tokens (0: all)")
	return cmd
}

func readText(a *app, cmd *cobra.Command, args []string, extractFile bool) (string, error) {
	if len(args) == 0 || args[0] == "-" {
		if extractFile {
			return "", errors.ValidationError("--extract needs a file argument", nil)
		}
		data, err := io.ReadAll(cmd.InOrStdin())
		return string(data), err
	}

	path := args[0]
	if extractFile {
		ext := strings.TrimPrefix(filepath.Ext(path), ".")
		return a.extractor().Extract(cmd.Context(), path, ext), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", errors.New(errors.ErrCodeFileNotFound, "cannot read text file", err).
			WithDetail("path", path)
	}
	return string(data), nil
}
