package daemon

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/docsearch/internal/index"
	"github.com/Aman-CERP/docsearch/internal/queue"
)

// testSocketPath returns a short unique socket path; t.TempDir paths can
// exceed the Unix socket path limit.
func testSocketPath(t *testing.T, kind string) string {
	t.Helper()
	p := filepath.Join("/tmp", fmt.Sprintf("docsearch-%s-%d.sock", kind, time.Now().UnixNano()))
	t.Cleanup(func() { os.Remove(p) })
	return p
}

func testConfig(t *testing.T) Config {
	t.Helper()
	return Config{
		SocketPath:          testSocketPath(t, "daemon"),
		PIDPath:             filepath.Join(t.TempDir(), "daemon.pid"),
		Timeout:             5 * time.Second,
		ShutdownGracePeriod: 2 * time.Second,
	}
}

// fakeSearcher serves canned results and records the last request.
type fakeSearcher struct {
	results  []index.Result
	err      error
	count    uint64
	countErr error

	lastQuery string
	lastOpts  index.SearchOptions
}

func (f *fakeSearcher) Search(_ context.Context, q string, opts index.SearchOptions) ([]index.Result, error) {
	f.lastQuery, f.lastOpts = q, opts
	return f.results, f.err
}

func (f *fakeSearcher) Count(context.Context) (uint64, error) { return f.count, f.countErr }

func (f *fakeSearcher) Dir() string { return "/data/index" }

type fakeQueue struct{ stats queue.Stats }

func (f fakeQueue) Stats() (queue.Stats, error) { return f.stats, nil }

// startServer runs a server for h until the test ends.
func startServer(t *testing.T, h RequestHandler) (string, *Client) {
	t.Helper()
	socketPath := testSocketPath(t, "server")
	srv, err := NewServer(socketPath)
	require.NoError(t, err)
	srv.SetHandler(h)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = srv.ListenAndServe(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	client := NewClient(Config{SocketPath: socketPath, Timeout: 2 * time.Second})
	require.Eventually(t, client.IsRunning, 2*time.Second, 10*time.Millisecond)
	return socketPath, client
}
