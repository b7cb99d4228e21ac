package daemon

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/docsearch/internal/errors"
	"github.com/Aman-CERP/docsearch/internal/index"
	"github.com/Aman-CERP/docsearch/internal/queue"
)

func TestNewDaemon_InvalidConfig(t *testing.T) {
	_, err := NewDaemon(Config{PIDPath: "/tmp/x.pid", Timeout: time.Second}, &fakeSearcher{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid config")

	_, err = NewDaemon(testConfig(t), nil)
	assert.Error(t, err)
}

func TestDaemon_StartStop(t *testing.T) {
	// Given: a daemon over a fake store
	cfg := testConfig(t)
	d, err := NewDaemon(cfg, &fakeSearcher{count: 4}, WithQueue(fakeQueue{queue.Stats{Failed: 1}}))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- d.Start(ctx) }()

	// When: it is up
	client := NewClient(cfg)
	require.Eventually(t, client.IsRunning, 2*time.Second, 10*time.Millisecond)

	// Then: PID file and status reflect the running process
	assert.True(t, NewPIDFile(cfg.PIDPath).IsRunning())
	status, err := client.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), status.PID)
	assert.Equal(t, uint64(4), status.Documents)
	require.NotNil(t, status.Queue)
	assert.Equal(t, 1, status.Queue.Failed)

	// And: shutdown removes the PID file
	cancel()
	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("daemon did not stop")
	}
	assert.NoFileExists(t, cfg.PIDPath)
}

func TestDaemon_StalePIDReplaced(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, os.WriteFile(cfg.PIDPath, []byte(stalePID), 0644))

	d, err := NewDaemon(cfg, &fakeSearcher{})
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = d.Start(ctx) }()

	require.Eventually(t, NewClient(cfg).IsRunning, 2*time.Second, 10*time.Millisecond)
	owner, err := NewPIDFile(cfg.PIDPath).Read()
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), owner.PID)
	assert.Equal(t, cfg.SocketPath, owner.Socket)
}

func TestDaemon_RefusesSecondInstance(t *testing.T) {
	// Given: a PID file owned by a live process (this one)
	cfg := testConfig(t)
	require.NoError(t, NewPIDFile(cfg.PIDPath).Claim(""))

	d, err := NewDaemon(cfg, &fakeSearcher{})
	require.NoError(t, err)

	// When: starting
	err = d.Start(context.Background())

	// Then: it refuses and leaves the owner's file alone
	require.ErrorIs(t, err, ErrAlreadyRunning)
	assert.FileExists(t, cfg.PIDPath)
}

func TestDaemon_HandleSearch(t *testing.T) {
	store := &fakeSearcher{results: []index.Result{
		{Document: index.Document{ID: "1"}},
		{Document: index.Document{ID: "2"}},
		{Document: index.Document{ID: "3"}},
	}}
	d, err := NewDaemon(testConfig(t), store)
	require.NoError(t, err)

	results, err := d.HandleSearch(context.Background(), SearchParams{Query: "a | b", Folder: "9", Actor: "u", Limit: 2})

	require.NoError(t, err)
	assert.Len(t, results, 2)
	assert.Equal(t, "a | b", store.lastQuery)
	assert.Equal(t, index.SearchOptions{Path: "9", Actor: "u"}, store.lastOpts)
}

func TestDaemon_GetStatus_ReportsIndexError(t *testing.T) {
	store := &fakeSearcher{countErr: errors.New(errors.ErrCodeCorruptIndex, "index is corrupt", nil)}
	d, err := NewDaemon(testConfig(t), store)
	require.NoError(t, err)

	st := d.GetStatus(context.Background())

	assert.Equal(t, "/data/index", st.IndexDir)
	assert.Zero(t, st.Documents)
	assert.Contains(t, st.IndexErr, "ERR_205")
	assert.Nil(t, st.Queue)
}

var _ Searcher = (*index.Store)(nil)

func TestDaemon_StatusReportsQueryMetrics(t *testing.T) {
	// Given: a daemon that answered a hit, a miss and a failure
	store := &fakeSearcher{results: []index.Result{{Document: index.Document{ID: "1"}}}}
	d, err := NewDaemon(testConfig(t), store)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = d.HandleSearch(ctx, SearchParams{Query: "Devis"})
	require.NoError(t, err)
	store.results = nil
	_, err = d.HandleSearch(ctx, SearchParams{Query: "inconnu"})
	require.NoError(t, err)
	store.err = errors.InternalError("boom", nil)
	_, err = d.HandleSearch(ctx, SearchParams{Query: "devis"})
	require.Error(t, err)

	// When: asking for status
	st := d.GetStatus(ctx)

	// Then: the query snapshot is attached
	require.NotNil(t, st.Queries)
	assert.Equal(t, int64(3), st.Queries.TotalQueries)
	assert.Equal(t, int64(1), st.Queries.FailedQueries)
	assert.Equal(t, []string{"inconnu"}, st.Queries.ZeroResultQueries)
	assert.Equal(t, int64(1), st.Queries.ExactRepeatCount)
	assert.Equal(t, "devis", st.Queries.TopTerms[0].Term)
}
