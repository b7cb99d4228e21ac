package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/docsearch/internal/daemon"
	"github.com/Aman-CERP/docsearch/internal/errors"
	"github.com/Aman-CERP/docsearch/internal/extract"
	"github.com/Aman-CERP/docsearch/internal/preflight"
)

func newDoctorCmd(a *app) *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check external tools, storage and services",
		Long: `Run diagnostics:

  - storage root is writable and has free space
  - the open file limit is high enough
  - index opens and can be counted
  - pdftotext, pdftoppm and tesseract are on PATH (OCR and PDF support)
  - catalog database is reachable, when configured
  - search daemon answers, when running

Missing tools are warnings: the affected formats index with empty text.
A passing run is remembered, so serve and worker skip their own checks.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			checker := preflight.New(
				preflight.WithOutput(a.out.Out()),
				preflight.WithVerbose(verbose),
			)
			results := checker.Run(ctx, a.doctorChecks(checker)...)

			if a.out.JSONMode() {
				if err := a.out.JSON(map[string]any{
					"status": preflight.SummaryStatus(results),
					"checks": results,
				}); err != nil {
					return err
				}
			} else {
				checker.PrintResults(results)
			}

			if r, bad := preflight.FirstCritical(results); bad {
				return checkFailed(r)
			}
			if err := preflight.MarkPassed(a.cfg.Storage.Root); err != nil {
				a.logger.Warn("preflight_marker_failed", slog.String("error", err.Error()))
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show remediation details")
	return cmd
}

// coreChecks guard the storage root.
func (a *app) coreChecks(checker *preflight.Checker) []preflight.Check {
	root := a.cfg.Storage.Root
	return []preflight.Check{
		checker.WritePermissions(root),
		checker.DiskSpace(root),
		checker.FileDescriptors(),
	}
}

func (a *app) doctorChecks(checker *preflight.Checker) []preflight.Check {
	checks := a.coreChecks(checker)

	checks = append(checks, preflight.Func("index", true, func(ctx context.Context) (string, error) {
		store, err := a.openStore(ctx)
		if err != nil {
			return "", err
		}
		n, err := store.Count(ctx)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%d document(s) in %s", n, store.Dir()), nil
	}))

	e := a.cfg.Extract
	missing := extract.CheckTools(extract.Config{PDFToText: e.PDFToText, PDFToPPM: e.PDFToPPM, Tesseract: e.Tesseract})
	for _, tool := range []string{e.PDFToText, e.PDFToPPM, e.Tesseract} {
		if tool == "" {
			continue
		}
		checks = append(checks, preflight.Func("tool:"+tool, false, func(context.Context) (string, error) {
			if err, bad := missing[tool]; bad {
				return "", err
			}
			return "found", nil
		}))
	}

	if a.cfg.Catalog.Path != "" {
		checks = append(checks, preflight.Func("catalog", false, func(ctx context.Context) (string, error) {
			if _, err := a.openCatalog(ctx); err != nil {
				return "", err
			}
			return a.cfg.Catalog.Path, nil
		}))
	}

	checks = append(checks, preflight.Func("daemon", false, func(context.Context) (string, error) {
		if !daemon.NewClient(a.daemonConfig()).IsRunning() {
			return "", fmt.Errorf("not running (searches open the index directly)")
		}
		return a.cfg.Server.SocketPath, nil
	}))
	return checks
}

// startupChecks runs the core checks once per storage root and release.
func (a *app) startupChecks(ctx context.Context) error {
	root := a.cfg.Storage.Root
	if !preflight.NeedsCheck(root) {
		return nil
	}

	checker := preflight.New()
	results := checker.Run(ctx, a.coreChecks(checker)...)
	if r, bad := preflight.FirstCritical(results); bad {
		return checkFailed(r)
	}
	for _, r := range results {
		if r.Status != preflight.StatusPass {
			a.logger.Warn("preflight_warning", slog.String("check", r.Name), slog.String("message", r.Message))
		}
	}

	if err := preflight.MarkPassed(root); err != nil {
		a.logger.Warn("preflight_marker_failed", slog.String("error", err.Error()))
	}
	return nil
}

func checkFailed(r preflight.CheckResult) error {
	err := errors.InternalError("system check failed", nil).
		WithDetail("check", r.Name).
		WithDetail("reason", r.Message)
	if r.Details != "" {
		return err.WithSuggestion(r.Details)
	}
	return err.WithSuggestion("Run 'docsearch doctor --verbose' for details")
}
