package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/docsearch/internal/daemon"
)

func TestServe_AnswersSearchAndStatus(t *testing.T) {
	// Given: an indexed document and a running daemon
	isolate(t)
	mustRun(t, "index", writeFile(t, "blob", "Cahier des charges"), "--id", "1", "--folder", "4", "--name", "cdc.txt")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	root, a := newRoot()
	defer a.close()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"serve"})
	done := make(chan error, 1)
	go func() { done <- root.ExecuteContext(ctx) }()

	client := daemon.NewClient(daemon.Config{SocketPath: os.Getenv("DOCSEARCH_SOCKET"), Timeout: time.Second})
	require.Eventually(t, client.IsRunning, 5*time.Second, 20*time.Millisecond)

	// When: searching and asking for status through the CLI
	assert.Equal(t, []string{"1"}, searchIDs(t, "charges"))

	var st daemon.StatusResult
	require.NoError(t, json.Unmarshal([]byte(mustRun(t, "status", "--format", "json")), &st))

	// Then: the daemon answered
	assert.True(t, st.Running)
	assert.Equal(t, os.Getpid(), st.PID)
	assert.Equal(t, uint64(1), st.Documents)
	require.NotNil(t, st.Queue)
	require.NotNil(t, st.Queries)
	assert.Equal(t, int64(1), st.Queries.TotalQueries)
	assert.Equal(t, "charges", st.Queries.TopTerms[0].Term)

	// And: a second daemon is refused
	_, err := run(t, "", "serve")
	assert.Error(t, err)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(15 * time.Second):
		t.Fatal("daemon did not stop")
	}
	assert.False(t, client.IsRunning())
}
