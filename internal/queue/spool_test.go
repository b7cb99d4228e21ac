package queue

import (
	"context"
	stderrors "errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/docsearch/internal/errors"
	"github.com/Aman-CERP/docsearch/internal/ingest"
)

func newSpool(t *testing.T) *Spool {
	t.Helper()
	s, err := Open(t.TempDir(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return s
}

func deleteCmd(ids ...string) ingest.Command {
	return ingest.Command{Op: ingest.OpDelete, FileIDs: ids}
}

// recorder is a Handler that records the commands it sees.
type recorder struct {
	mu   sync.Mutex
	seen []ingest.Command
	err  error
}

func (r *recorder) handle(_ context.Context, cmd ingest.Command) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, cmd)
	return r.err
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.seen)
}

func TestOpen_CreatesLayout(t *testing.T) {
	s := newSpool(t)

	for _, sub := range []string{incomingDir, processingDir, failedDir} {
		assert.DirExists(t, filepath.Join(s.Dir(), sub))
	}

	_, err := Open(" ", nil)
	assert.Equal(t, errors.ErrCodeConfigInvalid, errors.GetCode(err))
}

func TestSubmit_WritesOrderedFiles(t *testing.T) {
	// Given: an empty spool
	s := newSpool(t)

	// When: submitting three commands
	var ids []string
	for _, id := range []string{"1", "2", "3"} {
		got, err := s.Submit(deleteCmd(id))
		require.NoError(t, err)
		ids = append(ids, got)
	}

	// Then: they are pending in submission order with no temp files left
	pending, err := s.Pending()
	require.NoError(t, err)
	require.Len(t, pending, 3)
	for i, id := range ids {
		assert.Equal(t, id+commandExt, pending[i])
	}

	entries, err := os.ReadDir(filepath.Join(s.Dir(), incomingDir))
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}

func TestSubmit_RejectsInvalidCommand(t *testing.T) {
	s := newSpool(t)

	_, err := s.Submit(ingest.Command{Op: ingest.OpTag})

	assert.ErrorIs(t, err, errors.ErrInvalidInput)
	pending, _ := s.Pending()
	assert.Empty(t, pending)
}

func TestDrain_SuccessRemovesFile(t *testing.T) {
	s := newSpool(t)
	_, err := s.Submit(deleteCmd("9"))
	require.NoError(t, err)
	rec := &recorder{}

	n, err := s.Drain(context.Background(), rec.handle)

	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Len(t, rec.seen, 1)
	assert.Equal(t, []string{"9"}, rec.seen[0].FileIDs)

	st, err := s.Stats()
	require.NoError(t, err)
	assert.Equal(t, Stats{}, st)
}

func TestDrain_FailureMovesToFailedWithReason(t *testing.T) {
	// Given: a handler that always fails
	s := newSpool(t)
	_, err := s.Submit(deleteCmd("9"))
	require.NoError(t, err)
	rec := &recorder{err: errors.IndexError("disk full", nil)}

	// When: draining
	n, err := s.Drain(context.Background(), rec.handle)
	require.NoError(t, err)

	// Then: the command is parked in failed/ with the error text
	assert.Zero(t, n)
	failed, err := s.FailedCommands()
	require.NoError(t, err)
	require.Len(t, failed, 1)

	reason, err := s.FailureReason(failed[0])
	require.NoError(t, err)
	assert.Contains(t, reason, "disk full")

	// And: requeue puts it back without the note
	require.NoError(t, s.Requeue(failed[0]))
	st, err := s.Stats()
	require.NoError(t, err)
	assert.Equal(t, Stats{Incoming: 1}, st)
	_, err = s.FailureReason(failed[0])
	assert.True(t, stderrors.Is(err, os.ErrNotExist))
}

func TestDrain_UndecodableFileFails(t *testing.T) {
	s := newSpool(t)
	require.NoError(t, os.WriteFile(filepath.Join(s.Dir(), incomingDir, "bad.json"), []byte("{"), 0o644))
	rec := &recorder{}

	_, err := s.Drain(context.Background(), rec.handle)
	require.NoError(t, err)

	assert.Zero(t, rec.count())
	failed, _ := s.FailedCommands()
	assert.Equal(t, []string{"bad.json"}, failed)
}

func TestRequeue_UnknownName(t *testing.T) {
	s := newSpool(t)

	err := s.Requeue("nope.json")

	assert.Equal(t, errors.ErrCodeFileNotFound, errors.GetCode(err))
}

func TestRecover_ReturnsAbandonedCommands(t *testing.T) {
	s := newSpool(t)
	_, err := s.Submit(deleteCmd("1"))
	require.NoError(t, err)
	pending, _ := s.Pending()
	_, ok, err := s.claim(pending[0])
	require.NoError(t, err)
	require.True(t, ok)

	n, err := s.Recover()

	require.NoError(t, err)
	assert.Equal(t, 1, n)
	st, _ := s.Stats()
	assert.Equal(t, Stats{Incoming: 1}, st)
}

func TestClaim_OnlyOnce(t *testing.T) {
	s := newSpool(t)
	_, err := s.Submit(deleteCmd("1"))
	require.NoError(t, err)
	pending, _ := s.Pending()

	_, first, err := s.claim(pending[0])
	require.NoError(t, err)
	_, second, err := s.claim(pending[0])
	require.NoError(t, err)

	assert.True(t, first)
	assert.False(t, second)
}

func TestRun_PicksUpNewCommands(t *testing.T) {
	// Given: a running worker
	s := newSpool(t)
	rec := &recorder{}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- s.Run(ctx, rec.handle, RunOptions{Workers: 2, PollInterval: 20 * time.Millisecond})
	}()

	// When: commands are submitted after start
	for _, id := range []string{"1", "2", "3"} {
		_, err := s.Submit(deleteCmd(id))
		require.NoError(t, err)
	}

	// Then: each is handled exactly once
	assert.Eventually(t, func() bool { return rec.count() == 3 }, 5*time.Second, 10*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	st, err := s.Stats()
	require.NoError(t, err)
	assert.Equal(t, Stats{}, st)
	assert.Equal(t, 3, rec.count())
}

func TestRun_CancelledCommandIsRequeued(t *testing.T) {
	// Given: a handler that blocks until cancelled
	s := newSpool(t)
	_, err := s.Submit(deleteCmd("1"))
	require.NoError(t, err)

	started := make(chan struct{})
	h := func(ctx context.Context, _ ingest.Command) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, h, RunOptions{Workers: 1, PollInterval: time.Hour}) }()

	// When: the worker is stopped mid-command
	<-started
	cancel()
	require.NoError(t, <-done)

	// Then: the command is back in incoming/, not failed/
	st, err := s.Stats()
	require.NoError(t, err)
	assert.Equal(t, Stats{Incoming: 1}, st)
}
