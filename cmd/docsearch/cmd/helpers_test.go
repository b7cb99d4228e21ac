package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// isolate points docsearch at a fresh storage root and returns it.
func isolate(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	t.Setenv("DOCSEARCH_ROOT", root)
	t.Setenv("DOCSEARCH_CONFIG", "")
	t.Setenv("DOCSEARCH_SOCKET", fmt.Sprintf("/tmp/docsearch-cli-%d.sock", time.Now().UnixNano()))
	t.Chdir(t.TempDir())
	return root
}

// run executes the CLI with args and returns stdout.
func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root, a := newRoot()
	defer a.close()

	out := &bytes.Buffer{}
	root.SetOut(out)
	root.SetErr(&bytes.Buffer{})
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)

	err := root.Execute()
	return out.String(), err
}

func mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := run(t, "", args...)
	require.NoError(t, err, "docsearch %s", strings.Join(args, " "))
	return out
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

type hit struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Path  string `json:"path"`
	Tags  string `json:"tags"`
}

func searchIDs(t *testing.T, args ...string) []string {
	t.Helper()
	out := mustRun(t, append([]string{"search", "--format", "json"}, args...)...)

	var hits []hit
	require.NoError(t, json.Unmarshal([]byte(out), &hits), out)
	ids := make([]string, 0, len(hits))
	for _, h := range hits {
		ids = append(ids, h.ID)
	}
	return ids
}
