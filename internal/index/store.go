// Package index stores documents in an on-disk bleve index shared by
// several processes.
//
// Every operation runs in its own session: acquire the file lock (exclusive
// for writers, shared for readers), open the index, do the work, close the
// index, release the lock. A writer's mutations go through a single batch,
// so readers see all of them or none. The index is created with a fixed
// schema on first use.
package index

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/Aman-CERP/docsearch/internal/errors"
	"github.com/Aman-CERP/docsearch/internal/lock"
)

// Config holds Store settings.
type Config struct {
	// LockTimeout bounds every lock wait. Zero waits until the context ends.
	LockTimeout time.Duration
	// LockRetryDelay is the lock polling interval.
	LockRetryDelay time.Duration
	// MaxResults caps search hits. Zero returns every match.
	MaxResults int
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		LockTimeout:    30 * time.Second,
		LockRetryDelay: lock.DefaultRetryDelay,
	}
}

// Store is the handle on one index directory. It holds no open resources
// between calls, so any number of Stores (in one or many processes) may
// point at the same directory.
type Store struct {
	dir       string
	cfg       Config
	lock      *lock.FileLock
	mapping   mapping.IndexMapping
	favorites Favorites
	logger    *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithFavorites sets the lookup used to flag favorite results.
func WithFavorites(f Favorites) Option {
	return func(s *Store) { s.favorites = f }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// Open returns a Store for dir. The index itself is created lazily.
func Open(dir string, cfg Config, opts ...Option) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.ConfigError("index directory is required", nil)
	}

	im, err := newIndexMapping()
	if err != nil {
		return nil, errors.InternalError("failed to create index mapping", err)
	}

	s := &Store{
		dir:     filepath.Clean(dir),
		cfg:     cfg,
		mapping: im,
		logger:  slog.Default(),
	}
	s.lock = lock.ForDir(s.dir, lock.WithTimeout(cfg.LockTimeout), lock.WithRetryDelay(cfg.LockRetryDelay))
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Dir returns the index directory.
func (s *Store) Dir() string {
	return s.dir
}

// LockPath returns the path of the lock file guarding the index.
func (s *Store) LockPath() string {
	return s.lock.Path()
}

// write runs fn in an exclusive session, creating the index if needed.
func (s *Store) write(ctx context.Context, fn func(bleve.Index) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	held, err := s.lock.Acquire(ctx, lock.Exclusive)
	if err != nil {
		s.logLockError(err, lock.Exclusive)
		return err
	}
	defer held.Release()

	idx, err := s.openOrCreate()
	if err != nil {
		return err
	}

	fnErr := fn(idx)
	if cerr := idx.Close(); cerr != nil && fnErr == nil {
		return errors.IndexError("failed to close index", cerr)
	}
	return fnErr
}

// read runs fn in a shared session on a read-only handle. An index that
// does not exist yet is created first.
func (s *Store) read(ctx context.Context, fn func(bleve.Index) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if !exists(s.dir) {
		if err := s.write(ctx, func(bleve.Index) error { return nil }); err != nil {
			return err
		}
	}

	held, err := s.lock.Acquire(ctx, lock.Shared)
	if err != nil {
		s.logLockError(err, lock.Shared)
		return err
	}
	defer held.Release()

	if err := validateIndexIntegrity(s.dir); err != nil {
		return s.corrupt(err)
	}

	idx, err := bleve.OpenUsing(s.dir, map[string]interface{}{"read_only": true})
	if err != nil {
		if isCorruptionError(err) {
			return s.corrupt(err)
		}
		return errors.IndexError("failed to open index", err).WithDetail("index", s.dir)
	}

	fnErr := fn(idx)
	_ = idx.Close()
	return fnErr
}

func (s *Store) openOrCreate() (bleve.Index, error) {
	if err := validateIndexIntegrity(s.dir); err != nil {
		return nil, s.corrupt(err)
	}

	idx, err := bleve.Open(s.dir)
	if stderrors.Is(err, bleve.ErrorIndexPathDoesNotExist) {
		if mkErr := os.MkdirAll(filepath.Dir(s.dir), 0755); mkErr != nil {
			return nil, errors.New(errors.ErrCodeFilePermission, "failed to create storage directory", mkErr).
				WithDetail("index", s.dir)
		}
		idx, err = bleve.New(s.dir, s.mapping)
		if err == nil {
			s.logger.Info("index_created", slog.String("path", s.dir))
		}
	}
	if err != nil {
		if isCorruptionError(err) {
			return nil, s.corrupt(err)
		}
		return nil, errors.IndexError("failed to open index", err).WithDetail("index", s.dir)
	}
	return idx, nil
}

func (s *Store) corrupt(cause error) error {
	s.logger.Error("index_corrupted",
		slog.String("path", s.dir),
		slog.String("error", cause.Error()))
	return errors.New(errors.ErrCodeCorruptIndex, "index is corrupt", cause).
		WithDetail("index", s.dir).
		WithSuggestion("Run 'docsearch reset' and re-ingest the documents")
}

func (s *Store) logLockError(err error, mode lock.Mode) {
	if stderrors.Is(err, errors.ErrLockTimeout) {
		s.logger.Warn("lock_timeout",
			slog.String("lock", s.lock.Path()),
			slog.String("mode", mode.String()),
			slog.Duration("timeout", s.cfg.LockTimeout))
	}
}

// Reset deletes the index so the next session recreates it empty.
func (s *Store) Reset(ctx context.Context) error {
	held, err := s.lock.Acquire(ctx, lock.Exclusive)
	if err != nil {
		return err
	}
	defer held.Release()

	if err := os.RemoveAll(s.dir); err != nil {
		return errors.IndexError("failed to remove index", err).WithDetail("index", s.dir)
	}
	s.logger.Info("index_reset", slog.String("path", s.dir))
	return nil
}

func exists(dir string) bool {
	_, err := os.Stat(dir)
	return err == nil
}

// validateIndexIntegrity checks an existing index directory before it is
// opened. A missing directory is valid: it will be created.
func validateIndexIntegrity(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	metaPath := filepath.Join(path, "index_meta.json")
	info, err := os.Stat(metaPath)
	if os.IsNotExist(err) {
		return fmt.Errorf("index_meta.json missing")
	}
	if err != nil {
		return fmt.Errorf("cannot stat index_meta.json: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("index_meta.json is empty")
	}

	data, err := os.ReadFile(metaPath)
	if err != nil {
		return fmt.Errorf("cannot read index_meta.json: %w", err)
	}
	var meta map[string]interface{}
	if err := json.Unmarshal(data, &meta); err != nil {
		return fmt.Errorf("index_meta.json is corrupt: %w", err)
	}
	return nil
}

// isCorruptionError checks if an error from bleve indicates a damaged index.
func isCorruptionError(err error) bool {
	if err == nil {
		return false
	}
	if stderrors.Is(err, bleve.ErrorIndexMetaCorrupt) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "unexpected end of JSON") ||
		strings.Contains(msg, "error parsing mapping JSON") ||
		strings.Contains(msg, "failed to load segment") ||
		strings.Contains(msg, "error opening bolt")
}
