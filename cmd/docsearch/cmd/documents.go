package cmd

import (
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/docsearch/internal/ingest"
)

type indexOptions struct {
	id     string
	folder string
	name   string
	tags   []string
	queued bool
}

func newIndexCmd(a *app) *cobra.Command {
	var opts indexOptions

	cmd := &cobra.Command{
		Use:   "index <file>",
		Short: "Extract a file and add it to the index",
		Long: `Extract the text of one stored file and index it under its catalog id.

The declared --name is the document title and selects the reader by
extension, so a stored blob without an extension can still be read.
Re-indexing an existing id replaces the document.

Examples:
  docsearch index /srv/uploads/8f3a --id 42 --folder 7 --name rapport.pdf
  docsearch index scan.png --id 43 --folder 7 --tag facture --queue`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			job := &ingest.Job{
				FilePath: path,
				Filename: opts.name,
				FolderID: opts.folder,
				FileID:   opts.id,
				Tags:     strings.Join(opts.tags, ","),
			}
			if job.Filename == "" {
				job.Filename = filepath.Base(path)
			}
			return a.apply(cmd.Context(), ingest.Command{Op: ingest.OpIndex, Job: job}, opts.queued)
		},
	}

	cmd.Flags().StringVar(&opts.id, "id", "", "Catalog file id (required)")
	cmd.Flags().StringVar(&opts.folder, "folder", "", "Owning folder id")
	cmd.Flags().StringVar(&opts.name, "name", "", "Declared filename (default: base name of <file>)")
	cmd.Flags().StringSliceVar(&opts.tags, "tag", nil, "Initial tag (repeatable)")
	cmd.Flags().BoolVar(&opts.queued, "queue", false, "Queue the command for a worker instead of running it")
	_ = cmd.MarkFlagRequired("id")

	return cmd
}

func newTagCmd(a *app) *cobra.Command {
	var queued bool

	cmd := &cobra.Command{
		Use:   "tag <id> <tag>",
		Short: "Add a tag to an indexed document",
		Long: `Add tags to a document. Separate several tags with ";". Tags
already present are kept once.

Examples:
  docsearch tag 42 comptabilite
  docsearch tag 42 "devis 2024" --queue`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := ingest.Command{Op: ingest.OpTag, FileIDs: []string{args[0]}, Tag: args[1]}
			return a.apply(cmd.Context(), c, queued)
		},
	}

	cmd.Flags().BoolVar(&queued, "queue", false, "Queue the command for a worker instead of running it")
	return cmd
}

func newMoveCmd(a *app) *cobra.Command {
	var queued bool

	cmd := &cobra.Command{
		Use:   "move <folder> <id>...",
		Short: "Move documents to another folder",
		Long: `Reassign documents to a folder. Either every id moves or none does.

Examples:
  docsearch move 9 42 43 44`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := ingest.Command{Op: ingest.OpMove, FolderID: args[0], FileIDs: args[1:]}
			return a.apply(cmd.Context(), c, queued)
		},
	}

	cmd.Flags().BoolVar(&queued, "queue", false, "Queue the command for a worker instead of running it")
	return cmd
}

func newDeleteCmd(a *app) *cobra.Command {
	var queued bool

	cmd := &cobra.Command{
		Use:     "delete <id>...",
		Aliases: []string{"rm"},
		Short:   "Remove documents from the index",
		Long: `Remove documents from the index. Unknown ids are ignored.

Examples:
  docsearch delete 42
  docsearch delete 42 43 44 --queue`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := ingest.Command{Op: ingest.OpDelete, FileIDs: args}
			if len(args) > 1 {
				c.Op = ingest.OpDeleteMany
			}
			return a.apply(cmd.Context(), c, queued)
		},
	}

	cmd.Flags().BoolVar(&queued, "queue", false, "Queue the command for a worker instead of running it")
	return cmd
}
