package daemon

import (
	"context"
	"encoding/json"
	"net"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/docsearch/internal/errors"
	"github.com/Aman-CERP/docsearch/internal/index"
)

// handlerFunc adapts functions to RequestHandler.
type handlerFunc struct {
	search func(context.Context, SearchParams) ([]SearchResult, error)
	status StatusResult
}

func (h handlerFunc) HandleSearch(ctx context.Context, p SearchParams) ([]SearchResult, error) {
	return h.search(ctx, p)
}

func (h handlerFunc) GetStatus(context.Context) StatusResult { return h.status }

func rawCall(t *testing.T, socketPath string, payload string) Response {
	t.Helper()
	conn, err := net.Dial("unix", socketPath)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte(payload + "\n"))
	require.NoError(t, err)

	var resp Response
	require.NoError(t, json.NewDecoder(conn).Decode(&resp))
	return resp
}

func TestNewServer_RequiresPath(t *testing.T) {
	_, err := NewServer("")
	assert.Error(t, err)
}

func TestServer_ListenAndServe_RemovesSocketOnExit(t *testing.T) {
	socketPath := testSocketPath(t, "server")
	srv, err := NewServer(socketPath)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe(ctx) }()

	require.Eventually(t, func() bool {
		_, err := os.Stat(socketPath)
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not stop")
	}
	assert.NoFileExists(t, socketPath)
}

func TestServer_ReplacesStaleSocketFile(t *testing.T) {
	socketPath := testSocketPath(t, "server")
	require.NoError(t, os.WriteFile(socketPath, []byte("stale"), 0644))

	srv, err := NewServer(socketPath)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = srv.ListenAndServe(ctx) }()

	client := NewClient(Config{SocketPath: socketPath, Timeout: time.Second})
	assert.Eventually(t, client.IsRunning, 2*time.Second, 10*time.Millisecond)
}

func TestServer_ProtocolErrors(t *testing.T) {
	socketPath, _ := startServer(t, handlerFunc{})

	tests := []struct {
		name     string
		payload  string
		wantCode int
	}{
		{"malformed json", `{"jsonrpc":}`, ErrCodeParseError},
		{"wrong version", `{"jsonrpc":"1.0","method":"ping","id":"1"}`, ErrCodeInvalidRequest},
		{"unknown method", `{"jsonrpc":"2.0","method":"reindex","id":"1"}`, ErrCodeMethodNotFound},
		{"bad params", `{"jsonrpc":"2.0","method":"search","params":{"limit":-3},"id":"1"}`, ErrCodeInvalidParams},
		{"params wrong type", `{"jsonrpc":"2.0","method":"search","params":{"query":5},"id":"1"}`, ErrCodeInvalidParams},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := rawCall(t, socketPath, tt.payload)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.wantCode, resp.Error.Code)
		})
	}
}

func TestServer_SearchErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantData string
	}{
		{"lock timeout", errors.LockTimeout("/i.lock", nil), ErrCodeIndexBusy, errors.ErrCodeLockTimeout},
		{"corrupt", errors.New(errors.ErrCodeCorruptIndex, "bad meta", nil), ErrCodeIndexCorrupt, errors.ErrCodeCorruptIndex},
		{"validation", errors.ValidationError("bad", nil), ErrCodeInvalidParams, errors.ErrCodeInvalidInput},
		{"other", errors.IndexError("io", nil), ErrCodeSearchFailed, errors.ErrCodeIndexIO},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := searchError("1", tt.err)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.wantCode, resp.Error.Code)
			assert.Equal(t, tt.wantData, resp.Error.Data)
		})
	}
}

func TestServer_SearchWithoutHandler(t *testing.T) {
	socketPath := testSocketPath(t, "server")
	srv, err := NewServer(socketPath)
	require.NoError(t, err)

	resp := srv.handleRequest(context.Background(), Request{JSONRPC: "2.0", Method: MethodSearch, ID: "1"})

	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeInternalError, resp.Error.Code)
}

func TestServer_EmptyResultsEncodeAsArray(t *testing.T) {
	h := handlerFunc{search: func(context.Context, SearchParams) ([]SearchResult, error) { return nil, nil }}
	socketPath, _ := startServer(t, h)

	conn, err := net.Dial("unix", socketPath)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, json.NewEncoder(conn).Encode(Request{JSONRPC: "2.0", Method: MethodSearch, ID: "1"}))

	var raw map[string]json.RawMessage
	require.NoError(t, json.NewDecoder(conn).Decode(&raw))
	assert.Equal(t, "[]", string(raw["result"]))
}

func TestServer_ConcurrentConnections(t *testing.T) {
	h := handlerFunc{search: func(_ context.Context, p SearchParams) ([]SearchResult, error) {
		return []SearchResult{{Document: index.Document{ID: p.Query}}}, nil
	}}
	_, client := startServer(t, h)

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results, err := client.Search(context.Background(), SearchParams{Query: "q"})
			if err == nil && (len(results) != 1 || results[0].ID != "q") {
				err = assert.AnError
			}
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
}
