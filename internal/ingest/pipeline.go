// Package ingest applies document lifecycle commands to the index: new
// uploads are extracted and indexed, tag edits and folder moves update the
// stored document, deletions remove it.
package ingest

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/Aman-CERP/docsearch/internal/errors"
	"github.com/Aman-CERP/docsearch/internal/index"
)

// Index is the subset of index.Store the pipeline writes through.
type Index interface {
	Add(ctx context.Context, doc index.Document) error
	AddTag(ctx context.Context, id, tag string) error
	TransferDocuments(ctx context.Context, ids []string, newPath string) error
	Delete(ctx context.Context, id string) error
	DeleteMany(ctx context.Context, ids []string) error
}

// Extractor turns files into text and previews.
type Extractor interface {
	Extract(ctx context.Context, path, ext string) string
	Screenshot(ctx context.Context, path, ext, folderID, fileID string) error
}

// RetryConfig bounds retries of retryable index errors such as lock
// timeouts.
type RetryConfig struct {
	MaxRetries      uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRetryConfig returns the worker defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:      3,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     10 * time.Second,
	}
}

// Pipeline runs ingestion jobs and commands.
type Pipeline struct {
	index     Index
	extractor Extractor
	retry     RetryConfig
	logger    *slog.Logger
}

// New creates a Pipeline.
func New(idx Index, ex Extractor, retry RetryConfig, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{index: idx, extractor: ex, retry: retry, logger: logger}
}

// Job describes one uploaded file.
type Job struct {
	// FilePath is where the bytes are stored.
	FilePath string `json:"file_path"`
	// Filename is the declared name; it becomes the title and selects
	// the reader by extension.
	Filename string `json:"filename"`
	FolderID string `json:"folder_id"`
	FileID   string `json:"file_id"`
	// Tags is an optional initial comma-joined tag list.
	Tags string `json:"tags,omitempty"`
}

// Extension returns the lowercased extension of the declared filename,
// falling back to the stored path.
func (j Job) Extension() string {
	name := j.Filename
	if filepath.Ext(name) == "" {
		name = j.FilePath
	}
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
}

func (j Job) validate() error {
	switch {
	case strings.TrimSpace(j.FileID) == "":
		return errors.ValidationError("file id is required", nil)
	case strings.TrimSpace(j.FilePath) == "":
		return errors.ValidationError("file path is required", nil).WithDetail("file_id", j.FileID)
	}
	return nil
}

// Ingest extracts the job's file and indexes it. A job cancelled while
// extracting is not indexed. Preview failures are logged only.
func (p *Pipeline) Ingest(ctx context.Context, job Job) error {
	if err := job.validate(); err != nil {
		return err
	}
	start := time.Now()
	ext := job.Extension()

	text := p.extractor.Extract(ctx, job.FilePath, ext)
	if err := ctx.Err(); err != nil {
		p.logger.Info("ingest_cancelled", slog.String("file_id", job.FileID))
		return err
	}

	if err := p.extractor.Screenshot(ctx, job.FilePath, ext, job.FolderID, job.FileID); err != nil {
		p.logger.Warn("preview_failed",
			slog.String("file_id", job.FileID),
			slog.String("error", err.Error()))
	}

	title := job.Filename
	if title == "" {
		title = filepath.Base(job.FilePath)
	}
	doc := index.Document{
		ID:      job.FileID,
		Title:   title,
		Content: text,
		Path:    job.FolderID,
		Tags:    job.Tags,
	}
	if err := p.withRetry(ctx, "index", func() error { return p.index.Add(ctx, doc) }); err != nil {
		return err
	}

	p.logger.Info("file_ingested",
		slog.String("file_id", job.FileID),
		slog.String("folder_id", job.FolderID),
		slog.String("extension", ext),
		slog.Int("chars", len(text)),
		slog.Duration("duration", time.Since(start)))
	return nil
}

// Tag merges ";"-separated tags into a document.
func (p *Pipeline) Tag(ctx context.Context, fileID, tag string) error {
	return p.withRetry(ctx, "tag", func() error { return p.index.AddTag(ctx, fileID, tag) })
}

// Move reassigns documents to folderID.
func (p *Pipeline) Move(ctx context.Context, fileIDs []string, folderID string) error {
	return p.withRetry(ctx, "move", func() error { return p.index.TransferDocuments(ctx, fileIDs, folderID) })
}

// Remove deletes documents. Unknown ids are ignored.
func (p *Pipeline) Remove(ctx context.Context, fileIDs ...string) error {
	if len(fileIDs) == 1 {
		return p.withRetry(ctx, "delete", func() error { return p.index.Delete(ctx, fileIDs[0]) })
	}
	return p.withRetry(ctx, "delete", func() error { return p.index.DeleteMany(ctx, fileIDs) })
}

// withRetry retries fn on retryable errors with exponential backoff.
func (p *Pipeline) withRetry(ctx context.Context, op string, fn func() error) error {
	attempt := 0
	operation := func() error {
		attempt++
		err := fn()
		if err == nil {
			return nil
		}
		if errors.IsRetryable(err) {
			p.logger.Warn("index_busy_retrying",
				slog.String("op", op),
				slog.Int("attempt", attempt),
				slog.String("error", err.Error()))
			return err
		}
		return backoff.Permanent(err)
	}

	b := backoff.NewExponentialBackOff()
	if p.retry.InitialInterval > 0 {
		b.InitialInterval = p.retry.InitialInterval
	}
	if p.retry.MaxInterval > 0 {
		b.MaxInterval = p.retry.MaxInterval
	}
	b.MaxElapsedTime = 0 // bounded by MaxRetries instead

	return backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(b, p.retry.MaxRetries), ctx))
}
