package queue

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/docsearch/internal/errors"
	"github.com/Aman-CERP/docsearch/internal/ingest"
)

// Handler applies one command.
type Handler func(ctx context.Context, cmd ingest.Command) error

// RunOptions configures Run.
type RunOptions struct {
	// Workers is the number of commands handled concurrently. Default: 2
	Workers int
	// PollInterval rescans incoming/ even without file events, which covers
	// filesystems where fsnotify is unavailable. Default: 5s
	PollInterval time.Duration
}

func (o RunOptions) withDefaults() RunOptions {
	if o.Workers <= 0 {
		o.Workers = 2
	}
	if o.PollInterval <= 0 {
		o.PollInterval = 5 * time.Second
	}
	return o
}

// Run handles queued commands until ctx is cancelled. Commands interrupted
// by cancellation go back to incoming/. Run returns nil on cancellation.
func (s *Spool) Run(ctx context.Context, h Handler, opts RunOptions) error {
	opts = opts.withDefaults()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var pool errgroup.Group
	pool.SetLimit(opts.Workers)
	defer func() { _ = pool.Wait() }()

	wake := s.watch(runCtx, opts.PollInterval)
	s.logger.Info("spool_worker_started",
		slog.String("dir", s.dir),
		slog.Int("workers", opts.Workers))

	for {
		names, err := s.Pending()
		if err != nil {
			return err
		}
		for _, name := range names {
			if runCtx.Err() != nil {
				break
			}
			// Blocks while every worker is busy.
			pool.Go(func() error {
				s.process(runCtx, name, h)
				return nil
			})
		}

		select {
		case <-runCtx.Done():
			s.logger.Info("spool_worker_stopped", slog.String("dir", s.dir))
			return nil
		case <-wake:
		}
	}
}

// Drain handles every command currently queued, one at a time, and reports
// how many succeeded.
func (s *Spool) Drain(ctx context.Context, h Handler) (int, error) {
	names, err := s.Pending()
	if err != nil {
		return 0, err
	}
	ok := 0
	for _, name := range names {
		if ctx.Err() != nil {
			break
		}
		if s.process(ctx, name, h) {
			ok++
		}
	}
	return ok, nil
}

// process claims and handles one command. It reports whether the command
// succeeded.
func (s *Spool) process(ctx context.Context, name string, h Handler) bool {
	claimed, ok, err := s.claim(name)
	if err != nil {
		s.logger.Warn("spool_claim_failed", slog.String("name", name), slog.String("error", err.Error()))
		return false
	}
	if !ok {
		return false
	}

	start := time.Now()
	cmd, err := readCommand(claimed)
	if err == nil {
		err = h(ctx, cmd)
	}

	switch {
	case err == nil:
		if rmErr := os.Remove(claimed); rmErr != nil {
			s.logger.Warn("spool_cleanup_failed", slog.String("name", name), slog.String("error", rmErr.Error()))
		}
		s.logger.Info("command_done",
			slog.String("name", name),
			slog.String("command", cmd.String()),
			slog.Duration("duration", time.Since(start)))
		return true
	case ctx.Err() != nil:
		if mvErr := os.Rename(claimed, s.path(incomingDir, name)); mvErr != nil {
			s.logger.Error("spool_requeue_failed", slog.String("name", name), slog.String("error", mvErr.Error()))
		}
		return false
	default:
		attrs := []any{slog.String("name", name), slog.String("error", err.Error())}
		for k, v := range errors.FormatForLog(err) {
			if k != "error" {
				attrs = append(attrs, slog.Any(k, v))
			}
		}
		s.logger.Error("command_failed", attrs...)
		s.fail(name, claimed, err)
		return false
	}
}

func readCommand(path string) (ingest.Command, error) {
	var cmd ingest.Command
	data, err := os.ReadFile(path)
	if err != nil {
		return cmd, errors.New(errors.ErrCodeFileNotFound, "read spool file", err)
	}
	if err := json.Unmarshal(data, &cmd); err != nil {
		return cmd, errors.New(errors.ErrCodeFileCorrupt, "decode spool file", err).
			WithDetail("name", filepath.Base(path))
	}
	return cmd, nil
}

// watch signals on new spool files and on every poll tick. Falls back to
// ticks only when fsnotify cannot watch the directory.
func (s *Spool) watch(ctx context.Context, poll time.Duration) <-chan struct{} {
	wake := make(chan struct{}, 1)
	notify := func() {
		select {
		case wake <- struct{}{}:
		default:
		}
	}

	incoming := s.path(incomingDir)
	fsw, err := fsnotify.NewWatcher()
	if err == nil {
		if err = fsw.Add(incoming); err != nil {
			_ = fsw.Close()
		}
	}
	if err != nil {
		s.logger.Warn("spool_watch_unavailable",
			slog.String("dir", incoming),
			slog.String("error", err.Error()),
			slog.Duration("poll_interval", poll))
		fsw = nil
	}

	go func() {
		ticker := time.NewTicker(poll)
		defer ticker.Stop()

		var events <-chan fsnotify.Event
		var errs <-chan error
		if fsw != nil {
			defer func() { _ = fsw.Close() }()
			events, errs = fsw.Events, fsw.Errors
		}

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				notify()
			case ev, ok := <-events:
				if !ok {
					events = nil
					continue
				}
				if ev.Op&(fsnotify.Create|fsnotify.Rename) != 0 && filepath.Ext(ev.Name) == commandExt {
					notify()
				}
			case err, ok := <-errs:
				if !ok {
					errs = nil
					continue
				}
				s.logger.Warn("spool_watch_error", slog.String("error", err.Error()))
			}
		}
	}()

	return wake
}
