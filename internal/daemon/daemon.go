package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Aman-CERP/docsearch/internal/index"
	"github.com/Aman-CERP/docsearch/internal/queue"
	"github.com/Aman-CERP/docsearch/internal/telemetry"
)

// Searcher is the read side of index.Store the daemon serves.
type Searcher interface {
	Search(ctx context.Context, q string, opts index.SearchOptions) ([]index.Result, error)
	Count(ctx context.Context) (uint64, error)
	Dir() string
}

// QueueStats reports spool backlog for status replies.
type QueueStats interface {
	Stats() (queue.Stats, error)
}

// Daemon serves one index over the socket.
type Daemon struct {
	cfg     Config
	store   Searcher
	queue   QueueStats
	pid     *PIDFile
	logger  *slog.Logger
	metrics *telemetry.QueryMetrics
	started time.Time
}

// Option configures a Daemon.
type Option func(*Daemon)

// WithQueue adds spool counts to status replies.
func WithQueue(q QueueStats) Option {
	return func(d *Daemon) { d.queue = q }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(d *Daemon) {
		if l != nil {
			d.logger = l
		}
	}
}

// NewDaemon creates a daemon serving store.
func NewDaemon(cfg Config, store Searcher, opts ...Option) (*Daemon, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if store == nil {
		return nil, fmt.Errorf("invalid config: store is required")
	}

	d := &Daemon{
		cfg:     cfg,
		store:   store,
		pid:     NewPIDFile(cfg.PIDPath),
		logger:  slog.Default(),
		metrics: telemetry.New(telemetry.DefaultConfig()),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Start serves until ctx is cancelled. It refuses to start while another
// live daemon owns the PID file; a stale PID file is replaced.
func (d *Daemon) Start(ctx context.Context) error {
	if err := d.cfg.EnsureDir(); err != nil {
		return err
	}
	if err := d.pid.Claim(d.cfg.SocketPath); err != nil {
		return err
	}
	defer func() {
		if err := d.pid.Release(); err != nil {
			d.logger.Warn("pid_cleanup_failed", slog.String("error", err.Error()))
		}
	}()

	srv, err := NewServer(d.cfg.SocketPath)
	if err != nil {
		return err
	}
	srv.SetHandler(d)
	srv.SetLogger(d.logger)
	srv.SetTimeouts(d.cfg.Timeout, d.cfg.ShutdownGracePeriod)

	d.started = time.Now()
	d.logger.Info("daemon_started",
		slog.String("index", d.store.Dir()),
		slog.String("socket", d.cfg.SocketPath))

	err = srv.ListenAndServe(ctx)
	d.logger.Info("daemon_stopped", slog.Duration("uptime", time.Since(d.started)))
	return err
}

// HandleSearch runs one query against the store.
func (d *Daemon) HandleSearch(ctx context.Context, p SearchParams) ([]SearchResult, error) {
	start := time.Now()
	results, err := d.store.Search(ctx, p.Query, index.SearchOptions{Path: p.Folder, Actor: p.Actor})
	d.metrics.Record(telemetry.QueryEvent{
		Query:       p.Query,
		ResultCount: len(results),
		Latency:     time.Since(start),
		Failed:      err != nil,
	})
	if err != nil {
		return nil, err
	}
	if p.Limit > 0 && len(results) > p.Limit {
		results = results[:p.Limit]
	}
	return results, nil
}

// GetStatus reports index and queue state. Failures are reported in the
// result rather than failing the call.
func (d *Daemon) GetStatus(ctx context.Context) StatusResult {
	queries := d.metrics.Snapshot()
	st := StatusResult{IndexDir: d.store.Dir(), Queries: &queries}

	n, err := d.store.Count(ctx)
	if err != nil {
		st.IndexErr = err.Error()
	} else {
		st.Documents = n
	}

	if d.queue != nil {
		if qs, err := d.queue.Stats(); err == nil {
			st.Queue = &qs
		} else {
			d.logger.Warn("queue_stats_failed", slog.String("error", err.Error()))
		}
	}
	return st
}
