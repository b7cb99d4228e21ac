package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/docsearch/internal/errors"
)

// isolate points the storage root at a temp dir and runs from another one
// so no real config or .env is picked up.
func isolate(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	t.Setenv(EnvPrefix+"ROOT", root)
	t.Setenv(EnvPrefix+"CONFIG", "")
	t.Chdir(t.TempDir())
	return root
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestNewConfig_ReturnsDefaults(t *testing.T) {
	cfg := NewConfig()

	assert.Equal(t, 1, cfg.Version)
	assert.Equal(t, 30*time.Second, cfg.Index.LockTimeout)
	assert.Equal(t, "fra", cfg.Extract.OCRLanguage)
	assert.Equal(t, 300, cfg.Extract.DPI)
	assert.Equal(t, 100000, cfg.NLP.BatchSize)
	assert.Equal(t, 3, cfg.NLP.MinTokenLength)
	assert.Equal(t, []string{"stop_fr", "stop_en"}, cfg.NLP.StopLists)
	assert.Equal(t, "FAVORIS", cfg.Catalog.FavoritesTable)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_NoConfigFile_ResolvesPathsUnderRoot(t *testing.T) {
	// Given: an empty storage root
	root := isolate(t)

	// When: loading
	cfg, err := Load("")

	// Then: defaults apply and paths are absolute under the root
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "index"), cfg.Storage.IndexDir)
	assert.Equal(t, filepath.Join(root, "spool"), cfg.Storage.SpoolDir)
	assert.Equal(t, filepath.Join(root, "previews"), cfg.Storage.PreviewDir)
	assert.Equal(t, filepath.Join(root, "daemon.sock"), cfg.Server.SocketPath)
	assert.Equal(t, filepath.Join(root, "logs"), cfg.Logging.Dir)
	assert.Empty(t, cfg.Catalog.Path)
}

func TestLoad_YamlFileOverridesDefaults(t *testing.T) {
	// Given: a config file in the root
	root := isolate(t)
	writeFile(t, filepath.Join(root, FileName), `
index:
  lock_timeout: 5s
  max_results: 50
extract:
  ocr_language: fra+eng
catalog:
  path: app.db
  cache_ttl: 1m
storage:
  preview_dir: ""
  index_dir: /srv/index
`)

	// When: loading
	cfg, err := Load("")

	// Then: file values win, untouched keys keep defaults
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, cfg.Index.LockTimeout)
	assert.Equal(t, 50, cfg.Index.MaxResults)
	assert.Equal(t, "fra+eng", cfg.Extract.OCRLanguage)
	assert.Equal(t, "pdftotext", cfg.Extract.PDFToText)
	assert.Equal(t, filepath.Join(root, "app.db"), cfg.Catalog.Path)
	assert.Equal(t, time.Minute, cfg.Catalog.CacheTTL)
	assert.Equal(t, "FAVORIS", cfg.Catalog.FavoritesTable)
	assert.Empty(t, cfg.Storage.PreviewDir, "empty preview_dir disables previews")
	assert.Equal(t, "/srv/index", cfg.Storage.IndexDir)
}

func TestLoad_ExplicitPathMustExist(t *testing.T) {
	isolate(t)

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))

	assert.Equal(t, errors.ErrCodeConfigNotFound, errors.GetCode(err))
}

func TestLoad_ConfigEnvVarSelectsFile(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "custom.yaml")
	writeFile(t, path, "worker:\n  workers: 7\n")
	t.Setenv(EnvPrefix+"CONFIG", path)

	cfg, err := Load("")

	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Worker.Workers)
	assert.Equal(t, path, cfg.Path())
}

func TestLoad_InvalidYaml(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"syntax", "index: [unclosed"},
		{"unknown key", "index:\n  lock_timeut: 5s\n"},
		{"bad duration", "index:\n  lock_timeout: soon\n"},
		{"wrong type", "worker:\n  workers: many\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := isolate(t)
			writeFile(t, filepath.Join(root, FileName), tt.content)

			_, err := Load("")

			assert.Equal(t, errors.ErrCodeConfigInvalid, errors.GetCode(err))
		})
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	// Given: a file and conflicting environment
	root := isolate(t)
	writeFile(t, filepath.Join(root, FileName), "logging:\n  level: warn\nindex:\n  lock_timeout: 5s\n")
	t.Setenv(EnvPrefix+"LOG_LEVEL", "debug")
	t.Setenv(EnvPrefix+"LOCK_TIMEOUT", "750ms")
	t.Setenv(EnvPrefix+"WORKERS", "9")
	t.Setenv(EnvPrefix+"OCR_LANGUAGE", "")

	// When: loading
	cfg, err := Load("")

	// Then: environment wins and empty values are ignored
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 750*time.Millisecond, cfg.Index.LockTimeout)
	assert.Equal(t, 9, cfg.Worker.Workers)
	assert.Equal(t, "fra", cfg.Extract.OCRLanguage)
}

func TestLoad_BadEnvValues(t *testing.T) {
	isolate(t)
	t.Setenv(EnvPrefix+"MAX_RESULTS", "lots")

	_, err := Load("")
	assert.Equal(t, errors.ErrCodeConfigInvalid, errors.GetCode(err))

	t.Setenv(EnvPrefix+"MAX_RESULTS", "")
	t.Setenv(EnvPrefix+"POLL_INTERVAL", "often")
	_, err = Load("")
	assert.Equal(t, errors.ErrCodeConfigInvalid, errors.GetCode(err))
}

func TestLoad_DotEnvSuppliesVariables(t *testing.T) {
	// Given: a .env in the working directory
	isolate(t)
	writeFile(t, ".env", EnvPrefix+"CATALOG_PATH=/srv/app/db.sqlite\n")
	t.Setenv(EnvPrefix+"CATALOG_PATH", "")
	require.NoError(t, os.Unsetenv(EnvPrefix+"CATALOG_PATH"))

	// When: loading
	cfg, err := Load("")

	// Then: the .env value is used
	require.NoError(t, err)
	assert.Equal(t, "/srv/app/db.sqlite", cfg.Catalog.Path)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative lock timeout", func(c *Config) { c.Index.LockTimeout = -time.Second }},
		{"zero retry delay", func(c *Config) { c.Index.LockRetryDelay = 0 }},
		{"negative max results", func(c *Config) { c.Index.MaxResults = -1 }},
		{"zero dpi", func(c *Config) { c.Extract.DPI = 0 }},
		{"zero batch", func(c *Config) { c.NLP.BatchSize = 0 }},
		{"zero workers", func(c *Config) { c.Worker.Workers = 0 }},
		{"bad level", func(c *Config) { c.Logging.Level = "verbose" }},
		{"no root", func(c *Config) { c.Storage.Root = " " }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			tt.mutate(cfg)

			err := cfg.Validate()

			assert.Equal(t, errors.ErrCodeConfigInvalid, errors.GetCode(err))
		})
	}

	zero := NewConfig()
	zero.Index.LockTimeout = 0
	assert.NoError(t, zero.Validate(), "zero lock timeout waits forever")
}

func TestWriteYAML_RoundTrips(t *testing.T) {
	root := isolate(t)
	cfg := NewConfig()
	cfg.Index.MaxResults = 25
	cfg.Worker.PollInterval = 2 * time.Second

	path := filepath.Join(root, FileName)
	require.NoError(t, cfg.WriteYAML(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 25, loaded.Index.MaxResults)
	assert.Equal(t, 2*time.Second, loaded.Worker.PollInterval)
}
