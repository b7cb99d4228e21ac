package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/docsearch/internal/catalog"
	"github.com/Aman-CERP/docsearch/internal/config"
	"github.com/Aman-CERP/docsearch/internal/daemon"
	"github.com/Aman-CERP/docsearch/internal/extract"
	"github.com/Aman-CERP/docsearch/internal/index"
	"github.com/Aman-CERP/docsearch/internal/ingest"
	"github.com/Aman-CERP/docsearch/internal/logging"
	"github.com/Aman-CERP/docsearch/internal/nlp"
	"github.com/Aman-CERP/docsearch/internal/output"
	"github.com/Aman-CERP/docsearch/internal/profiling"
	"github.com/Aman-CERP/docsearch/internal/queue"
)

// app carries the loaded configuration and the resources opened from it
// for the lifetime of one command.
type app struct {
	configPath string
	debug      bool
	format     string
	profile    profiling.Options

	cfg     *config.Config
	logger  *slog.Logger
	out     *output.Writer
	closers []func()

	catalog *catalog.Catalog
}

func (a *app) initOutput(cmd *cobra.Command) error {
	format, err := output.ParseFormat(a.format)
	if err != nil {
		return err
	}
	a.out = output.New(cmd.OutOrStdout()).WithFormat(format)
	return nil
}

// startProfiling starts the profiles requested on the command line. They
// are flushed when the command's resources are released.
func (a *app) startProfiling(cmd *cobra.Command) error {
	if !a.profile.Enabled() {
		return nil
	}
	session, err := profiling.Start(a.profile)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, func() {
		if err := session.Stop(); err != nil {
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "profiling: %v\n", err)
		}
	})
	return nil
}

// setup loads configuration and starts file logging.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg

	logCfg := logging.Config{
		Level:         cfg.Logging.Level,
		MaxSizeMB:     cfg.Logging.MaxSizeMB,
		MaxFiles:      cfg.Logging.MaxFiles,
		WriteToStderr: cfg.Logging.Stderr || a.debug,
	}
	if cfg.Logging.Dir != "" {
		logCfg.FilePath = filepath.Join(cfg.Logging.Dir, logging.FileName)
	}
	if a.debug {
		logCfg.Level = "debug"
	}

	logger, cleanup, err := logging.Setup(logCfg)
	if err != nil {
		return err
	}
	a.logger = logger
	a.closers = append(a.closers, cleanup)
	slog.SetDefault(logger)

	logger.Debug("command_started",
		slog.String("command", cmd.CommandPath()),
		slog.String("config", cfg.Path()))
	return nil
}

// close releases resources in reverse order of acquisition.
func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func (a *app) indexConfig() index.Config {
	return index.Config{
		LockTimeout:    a.cfg.Index.LockTimeout,
		LockRetryDelay: a.cfg.Index.LockRetryDelay,
		MaxResults:     a.cfg.Index.MaxResults,
	}
}

// openCatalog opens the relational catalog once. It returns nil when no
// catalog is configured.
func (a *app) openCatalog(ctx context.Context) (*catalog.Catalog, error) {
	if a.catalog != nil || a.cfg.Catalog.Path == "" {
		return a.catalog, nil
	}

	c := a.cfg.Catalog
	cat, err := catalog.Open(ctx, catalog.Config{
		Path:               c.Path,
		FavoritesTable:     c.FavoritesTable,
		FavoriteFileColumn: c.FavoriteFileColumn,
		FavoriteUserColumn: c.FavoriteUserColumn,
		FilesTable:         c.FilesTable,
		FileIDColumn:       c.FileIDColumn,
		CacheSize:          c.CacheSize,
		CacheTTL:           c.CacheTTL,
	})
	if err != nil {
		return nil, err
	}
	a.catalog = cat
	a.closers = append(a.closers, func() { _ = cat.Close() })
	return cat, nil
}

// openStore opens the index store, decorating results with favorites when
// a catalog is configured.
func (a *app) openStore(ctx context.Context) (*index.Store, error) {
	opts := []index.Option{index.WithLogger(a.logger)}

	cat, err := a.openCatalog(ctx)
	if err != nil {
		return nil, err
	}
	if cat != nil {
		fav := catalog.NewCachedFavorites(cat, a.cfg.Catalog.CacheSize, a.cfg.Catalog.CacheTTL)
		opts = append(opts, index.WithFavorites(fav))
	}

	return index.Open(a.cfg.Storage.IndexDir, a.indexConfig(), opts...)
}

func (a *app) extractor() *extract.Extractor {
	e := a.cfg.Extract
	return extract.New(extract.Config{
		OCRLanguage: e.OCRLanguage,
		PDFToText:   e.PDFToText,
		PDFToPPM:    e.PDFToPPM,
		Tesseract:   e.Tesseract,
		DPI:         e.DPI,
		PreviewDir:  a.cfg.Storage.PreviewDir,
	}, extract.WithLogger(a.logger))
}

func (a *app) processor() (*nlp.Processor, error) {
	n := a.cfg.NLP
	return nlp.New(nlp.Config{
		BatchSize:      n.BatchSize,
		Workers:        n.Workers,
		MinTokenLength: n.MinTokenLength,
		StopLists:      n.StopLists,
	})
}

func (a *app) pipeline(ctx context.Context) (*ingest.Pipeline, error) {
	store, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}

	w := a.cfg.Worker
	retry := ingest.RetryConfig{
		MaxRetries:      w.MaxRetries,
		InitialInterval: w.RetryInitial,
		MaxInterval:     w.RetryMaxBackoff,
	}
	return ingest.New(store, a.extractor(), retry, a.logger), nil
}

func (a *app) spool() (*queue.Spool, error) {
	return queue.Open(a.cfg.Storage.SpoolDir, a.logger)
}

func (a *app) daemonConfig() daemon.Config {
	s := a.cfg.Server
	return daemon.Config{
		SocketPath:          s.SocketPath,
		PIDPath:             s.PIDPath,
		Timeout:             s.Timeout,
		ShutdownGracePeriod: s.ShutdownGrace,
	}
}

// apply runs c now, or queues it for a worker when queued is set.
func (a *app) apply(ctx context.Context, c ingest.Command, queued bool) error {
	if queued {
		sp, err := a.spool()
		if err != nil {
			return err
		}
		id, err := sp.Submit(c)
		if err != nil {
			return err
		}
		if a.out.JSONMode() {
			return a.out.JSON(map[string]string{"queued": id, "command": c.String()})
		}
		a.out.Successf("Queued %s as %s", c.String(), id)
		return nil
	}

	p, err := a.pipeline(ctx)
	if err != nil {
		return err
	}
	if err := p.Apply(ctx, c); err != nil {
		return err
	}
	if a.out.JSONMode() {
		return a.out.JSON(map[string]string{"done": c.String()})
	}
	a.out.Successf("Done: %s", c.String())
	return nil
}
