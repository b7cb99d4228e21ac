package cmd

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/docsearch/pkg/version"
)

func TestRootCmd_ShowsHelp(t *testing.T) {
	out, err := run(t, "", "--help")

	require.NoError(t, err)
	assert.Contains(t, out, "docsearch")
	for _, sub := range []string{"index", "search", "tag", "move", "delete", "verify", "tokens", "submit", "worker", "serve"} {
		assert.Contains(t, out, sub)
	}
}

func TestRootCmd_RejectsUnknownFormat(t *testing.T) {
	isolate(t)

	_, err := run(t, "", "status", "--format", "xml")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown output format")
}

func TestVersionCmd(t *testing.T) {
	// Given: no configuration at all
	t.Setenv("DOCSEARCH_CONFIG", "/nonexistent/docsearch.yaml")

	// When: printing the version
	out := mustRun(t, "version", "--short")

	// Then: config loading is skipped
	assert.Equal(t, version.Short()+"\n", out)

	var info version.BuildInfo
	require.NoError(t, json.Unmarshal([]byte(mustRun(t, "version", "--format", "json")), &info))
	assert.Equal(t, version.Version, info.Version)
}

func TestConfigErrorsSurface(t *testing.T) {
	isolate(t)
	t.Setenv("DOCSEARCH_CONFIG", "/nonexistent/docsearch.yaml")

	_, err := run(t, "status")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "config file not found")
}

func TestRootCmd_ProfileFlags(t *testing.T) {
	// Given: heap and CPU profiles requested
	dir := t.TempDir()
	cpu := filepath.Join(dir, "cpu.prof")
	heap := filepath.Join(dir, "heap.prof")

	// When: running any command
	mustRun(t, "version", "--short", "--profile-cpu", cpu, "--profile-mem", heap)

	// Then: both files are written once the command finishes
	for _, path := range []string{cpu, heap} {
		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Greater(t, info.Size(), int64(0))
	}
}
