// Package cmd provides the CLI commands for docsearch.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/docsearch/internal/errors"
	"github.com/Aman-CERP/docsearch/internal/output"
	"github.com/Aman-CERP/docsearch/pkg/version"
)

// skipSetup marks commands that run without loading configuration.
const skipSetup = "docsearch/skip-setup"

// NewRootCmd creates the root command for the docsearch CLI.
func NewRootCmd() *cobra.Command {
	cmd, _ := newRoot()
	return cmd
}

func newRoot() (*cobra.Command, *app) {
	a := &app{}

	cmd := &cobra.Command{
		Use:   "docsearch",
		Short: "Full-text search over uploaded documents",
		Long: `docsearch extracts text from uploaded files (office documents, PDFs,
scans and images through OCR), indexes it in a local bleve index and
answers boolean queries such as

  docsearch search 'bilan annuel & 2024 | devis'

Index writes are serialized by a file lock so CLI commands, queue
workers and the search daemon can share one index directory.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.initOutput(cmd); err != nil {
				return err
			}
			if err := a.startProfiling(cmd); err != nil {
				return err
			}
			if cmd.Annotations[skipSetup] == "true" {
				return nil
			}
			return a.setup(cmd)
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			a.close()
			return nil
		},
	}

	cmd.SetVersionTemplate("docsearch version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&a.configPath, "config", "", "Path to docsearch.yaml (default: <root>/docsearch.yaml)")
	cmd.PersistentFlags().BoolVar(&a.debug, "debug", false, "Log at debug level and mirror logs to stderr")
	cmd.PersistentFlags().StringVar(&a.format, "format", "text", "Output format: text, json")
	cmd.PersistentFlags().StringVar(&a.profile.CPU, "profile-cpu", "", "Write CPU profile to file")
	cmd.PersistentFlags().StringVar(&a.profile.Heap, "profile-mem", "", "Write heap profile to file on exit")
	cmd.PersistentFlags().StringVar(&a.profile.Trace, "profile-trace", "", "Write execution trace to file")

	cmd.AddCommand(newIndexCmd(a))
	cmd.AddCommand(newSearchCmd(a))
	cmd.AddCommand(newTagCmd(a))
	cmd.AddCommand(newMoveCmd(a))
	cmd.AddCommand(newDeleteCmd(a))
	cmd.AddCommand(newVerifyCmd(a))
	cmd.AddCommand(newResetCmd(a))
	cmd.AddCommand(newTokensCmd(a))
	cmd.AddCommand(newSubmitCmd(a))
	cmd.AddCommand(newQueueCmd(a))
	cmd.AddCommand(newWorkerCmd(a))
	cmd.AddCommand(newServeCmd(a))
	cmd.AddCommand(newStatusCmd(a))
	cmd.AddCommand(newConfigCmd(a))
	cmd.AddCommand(newLogsCmd(a))
	cmd.AddCommand(newDoctorCmd(a))
	cmd.AddCommand(newVersionCmd(a))

	return cmd, a
}

// Execute runs the root command and prints any error to stderr.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root, a := newRoot()
	defer a.close()

	err := root.ExecuteContext(ctx)
	if err != nil {
		printError(root, err)
	}
	return err
}

// printError reports err on stderr, as JSON when --format json is set.
func printError(root *cobra.Command, err error) {
	stderr := root.ErrOrStderr()
	if f, _ := root.PersistentFlags().GetString("format"); f == string(output.FormatJSON) {
		if data, jerr := errors.FormatJSON(err); jerr == nil {
			_, _ = fmt.Fprintln(stderr, string(data))
			return
		}
	}
	_, _ = fmt.Fprint(stderr, errors.FormatForCLI(err))
}
