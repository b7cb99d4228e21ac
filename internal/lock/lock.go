// Package lock guards the on-disk index with an advisory file lock shared
// between processes.
//
// Every Acquire opens its own handle on the lock file, so two goroutines of
// the same process contend exactly like two separate processes would.
package lock

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/Aman-CERP/docsearch/internal/errors"
)

// DefaultRetryDelay is the polling interval while waiting for a held lock.
const DefaultRetryDelay = 50 * time.Millisecond

// Mode selects shared or exclusive locking.
type Mode int

const (
	// Shared allows any number of concurrent holders. Used by readers.
	Shared Mode = iota
	// Exclusive admits a single holder. Used by writers.
	Exclusive
)

func (m Mode) String() string {
	if m == Exclusive {
		return "exclusive"
	}
	return "shared"
}

// FileLock names a lock file and the wait policy for acquiring it.
type FileLock struct {
	path       string
	timeout    time.Duration
	retryDelay time.Duration
}

// Option configures a FileLock.
type Option func(*FileLock)

// WithTimeout bounds how long Acquire waits. Zero waits until the context
// is done.
func WithTimeout(d time.Duration) Option {
	return func(l *FileLock) { l.timeout = d }
}

// WithRetryDelay sets the polling interval.
func WithRetryDelay(d time.Duration) Option {
	return func(l *FileLock) {
		if d > 0 {
			l.retryDelay = d
		}
	}
}

// New creates a FileLock for the given lock file path.
func New(path string, opts ...Option) *FileLock {
	l := &FileLock{path: path, retryDelay: DefaultRetryDelay}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// ForDir returns the lock guarding dir; the lock file is the sibling
// "<dir>.lock" so it survives the directory being recreated.
func ForDir(dir string, opts ...Option) *FileLock {
	return New(filepath.Clean(dir)+".lock", opts...)
}

// Path returns the path to the lock file.
func (l *FileLock) Path() string {
	return l.path
}

// Held is an acquired lock. Release is safe to call more than once.
type Held struct {
	fl   *flock.Flock
	mode Mode
}

// Mode reports how the lock is held.
func (h *Held) Mode() Mode {
	return h.mode
}

// Release unlocks and closes the underlying handle.
func (h *Held) Release() error {
	if h == nil || h.fl == nil {
		return nil
	}
	fl := h.fl
	h.fl = nil
	if err := fl.Unlock(); err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return nil
}

// Acquire waits for the lock in the given mode. A wait that outlives the
// configured timeout fails with errors.ErrLockTimeout; a cancelled context
// fails with the context's error.
func (l *FileLock) Acquire(ctx context.Context, mode Mode) (*Held, error) {
	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return nil, errors.New(errors.ErrCodeFilePermission, "failed to create lock directory", err).
			WithDetail("lock", l.path)
	}

	waitCtx := ctx
	if l.timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	fl := flock.New(l.path)
	var (
		ok  bool
		err error
	)
	if mode == Exclusive {
		ok, err = fl.TryLockContext(waitCtx, l.retryDelay)
	} else {
		ok, err = fl.TryRLockContext(waitCtx, l.retryDelay)
	}

	if err != nil || !ok {
		_ = fl.Close()
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if err == nil || stderrors.Is(err, context.DeadlineExceeded) {
			return nil, errors.LockTimeout(l.path, err)
		}
		return nil, errors.New(errors.ErrCodeIndexIO, "failed to acquire lock", err).
			WithDetail("lock", l.path)
	}

	return &Held{fl: fl, mode: mode}, nil
}

// TryAcquire attempts the lock once without waiting. It returns nil, nil
// when the lock is held elsewhere.
func (l *FileLock) TryAcquire(mode Mode) (*Held, error) {
	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}

	fl := flock.New(l.path)
	var (
		ok  bool
		err error
	)
	if mode == Exclusive {
		ok, err = fl.TryLock()
	} else {
		ok, err = fl.TryRLock()
	}
	if err != nil {
		_ = fl.Close()
		return nil, fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !ok {
		_ = fl.Close()
		return nil, nil
	}
	return &Held{fl: fl, mode: mode}, nil
}

// With runs fn while holding the lock in the given mode.
func (l *FileLock) With(ctx context.Context, mode Mode, fn func() error) error {
	held, err := l.Acquire(ctx, mode)
	if err != nil {
		return err
	}
	fnErr := fn()
	relErr := held.Release()
	if fnErr != nil {
		return fnErr
	}
	return relErr
}
