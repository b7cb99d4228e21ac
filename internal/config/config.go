// Package config loads docsearch settings.
//
// Values are applied in order of increasing precedence:
//  1. Hardcoded defaults
//  2. The YAML file (--config, $DOCSEARCH_CONFIG, or <root>/docsearch.yaml)
//  3. Environment variables (DOCSEARCH_*), which a .env file may supply
package config

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/Aman-CERP/docsearch/internal/errors"
)

// FileName is the config file looked up in the storage root.
const FileName = "docsearch.yaml"

// EnvPrefix prefixes every environment override.
const EnvPrefix = "DOCSEARCH_"

// Config represents the complete docsearch configuration.
type Config struct {
	Version int           `yaml:"version" json:"version"`
	Storage StorageConfig `yaml:"storage" json:"storage"`
	Index   IndexConfig   `yaml:"index" json:"index"`
	Extract ExtractConfig `yaml:"extract" json:"extract"`
	NLP     NLPConfig     `yaml:"nlp" json:"nlp"`
	Catalog CatalogConfig `yaml:"catalog" json:"catalog"`
	Worker  WorkerConfig  `yaml:"worker" json:"worker"`
	Server  ServerConfig  `yaml:"server" json:"server"`
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// StorageConfig locates on-disk state. Relative paths are resolved against
// Root.
type StorageConfig struct {
	// Root holds everything below unless overridden. Default: ~/.docsearch
	Root string `yaml:"root" json:"root"`
	// IndexDir is the bleve index directory. Default: <root>/index
	IndexDir string `yaml:"index_dir" json:"index_dir"`
	// SpoolDir is the command queue. Default: <root>/spool
	SpoolDir string `yaml:"spool_dir" json:"spool_dir"`
	// PreviewDir receives PNG previews; empty disables them.
	// Default: <root>/previews
	PreviewDir string `yaml:"preview_dir" json:"preview_dir"`
}

// IndexConfig configures index access.
type IndexConfig struct {
	// LockTimeout bounds every wait on the index lock. Zero waits forever.
	LockTimeout time.Duration `yaml:"lock_timeout" json:"lock_timeout"`
	// LockRetryDelay is the lock polling interval.
	LockRetryDelay time.Duration `yaml:"lock_retry_delay" json:"lock_retry_delay"`
	// MaxResults caps search hits. Zero returns every match.
	MaxResults int `yaml:"max_results" json:"max_results"`
}

// ExtractConfig configures text extraction and previews.
type ExtractConfig struct {
	OCRLanguage string `yaml:"ocr_language" json:"ocr_language"`
	PDFToText   string `yaml:"pdftotext" json:"pdftotext"`
	PDFToPPM    string `yaml:"pdftoppm" json:"pdftoppm"`
	Tesseract   string `yaml:"tesseract" json:"tesseract"`
	DPI         int    `yaml:"dpi" json:"dpi"`
}

// NLPConfig configures the lexical normalizer.
type NLPConfig struct {
	BatchSize      int      `yaml:"batch_size" json:"batch_size"`
	Workers        int      `yaml:"workers" json:"workers"`
	MinTokenLength int      `yaml:"min_token_length" json:"min_token_length"`
	StopLists      []string `yaml:"stop_lists" json:"stop_lists"`
}

// CatalogConfig points at the relational store holding favorites and the
// file table. An empty Path disables favorites and catalog checks.
type CatalogConfig struct {
	Path               string        `yaml:"path" json:"path"`
	FavoritesTable     string        `yaml:"favorites_table" json:"favorites_table"`
	FavoriteFileColumn string        `yaml:"favorite_file_column" json:"favorite_file_column"`
	FavoriteUserColumn string        `yaml:"favorite_user_column" json:"favorite_user_column"`
	FilesTable         string        `yaml:"files_table" json:"files_table"`
	FileIDColumn       string        `yaml:"file_id_column" json:"file_id_column"`
	CacheSize          int           `yaml:"cache_size" json:"cache_size"`
	CacheTTL           time.Duration `yaml:"cache_ttl" json:"cache_ttl"`
}

// WorkerConfig configures the queue worker.
type WorkerConfig struct {
	Workers      int           `yaml:"workers" json:"workers"`
	PollInterval time.Duration `yaml:"poll_interval" json:"poll_interval"`
	// MaxRetries bounds retries of a busy index per command.
	MaxRetries      uint64        `yaml:"max_retries" json:"max_retries"`
	RetryInitial    time.Duration `yaml:"retry_initial" json:"retry_initial"`
	RetryMaxBackoff time.Duration `yaml:"retry_max_backoff" json:"retry_max_backoff"`
}

// ServerConfig configures the search daemon.
type ServerConfig struct {
	// SocketPath defaults to <root>/daemon.sock.
	SocketPath string `yaml:"socket_path" json:"socket_path"`
	// PIDPath defaults to <root>/daemon.pid.
	PIDPath       string        `yaml:"pid_path" json:"pid_path"`
	Timeout       time.Duration `yaml:"timeout" json:"timeout"`
	ShutdownGrace time.Duration `yaml:"shutdown_grace" json:"shutdown_grace"`
}

// LoggingConfig configures file logging.
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	// Dir defaults to <root>/logs.
	Dir       string `yaml:"dir" json:"dir"`
	MaxSizeMB int    `yaml:"max_size_mb" json:"max_size_mb"`
	MaxFiles  int    `yaml:"max_files" json:"max_files"`
	// Stderr also writes logs to stderr.
	Stderr bool `yaml:"stderr" json:"stderr"`
}

// NewConfig creates a new Config with sensible defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Storage: StorageConfig{
			Root:       defaultRoot(),
			IndexDir:   "index",
			SpoolDir:   "spool",
			PreviewDir: "previews",
		},
		Index: IndexConfig{
			LockTimeout:    30 * time.Second,
			LockRetryDelay: 50 * time.Millisecond,
		},
		Extract: ExtractConfig{
			OCRLanguage: "fra",
			PDFToText:   "pdftotext",
			PDFToPPM:    "pdftoppm",
			Tesseract:   "tesseract",
			DPI:         300,
		},
		NLP: NLPConfig{
			BatchSize:      100000,
			Workers:        runtime.NumCPU(),
			MinTokenLength: 3,
			StopLists:      []string{"stop_fr", "stop_en"},
		},
		Catalog: CatalogConfig{
			FavoritesTable:     "FAVORIS",
			FavoriteFileColumn: "id_Fichier",
			FavoriteUserColumn: "id_Utilisateur",
			FilesTable:         "FICHIER",
			FileIDColumn:       "id_Fichier",
			CacheSize:          256,
			CacheTTL:           30 * time.Second,
		},
		Worker: WorkerConfig{
			Workers:         2,
			PollInterval:    5 * time.Second,
			MaxRetries:      3,
			RetryInitial:    500 * time.Millisecond,
			RetryMaxBackoff: 10 * time.Second,
		},
		Server: ServerConfig{
			SocketPath:    "daemon.sock",
			PIDPath:       "daemon.pid",
			Timeout:       30 * time.Second,
			ShutdownGrace: 10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:     "info",
			Dir:       "logs",
			MaxSizeMB: 10,
			MaxFiles:  5,
		},
	}
}

func defaultRoot() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".docsearch")
	}
	return filepath.Join(home, ".docsearch")
}

// Load builds the effective configuration. path may be empty, in which case
// $DOCSEARCH_CONFIG or <root>/docsearch.yaml is used when present. An
// explicit path that does not exist is an error.
func Load(path string) (*Config, error) {
	// Step 1: .env never overrides variables already set
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	cfg := NewConfig()
	if root := os.Getenv(EnvPrefix + "ROOT"); root != "" {
		cfg.Storage.Root = root
	}

	// Step 2: YAML file
	explicit := path != ""
	if !explicit {
		path = os.Getenv(EnvPrefix + "CONFIG")
		explicit = path != ""
	}
	if !explicit {
		path = filepath.Join(cfg.Storage.Root, FileName)
	}
	if err := cfg.loadYAML(path, explicit); err != nil {
		return nil, err
	}

	// Step 3: environment overrides (highest precedence)
	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}

	cfg.resolvePaths()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadDotEnv(path string) error {
	if _, err := os.Stat(path); stderrors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return errors.ConfigError("failed to load .env", err).WithDetail("path", path)
	}
	return nil
}

// loadYAML overlays the file onto c. Keys absent from the file keep their
// current value; unknown keys are rejected.
func (c *Config) loadYAML(path string, required bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			if !required {
				return nil
			}
			return errors.New(errors.ErrCodeConfigNotFound, "config file not found", err).
				WithDetail("path", path).
				WithSuggestion("Run 'docsearch config init' to write a default config")
		}
		return errors.ConfigError("failed to read config file", err).WithDetail("path", path)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !stderrors.Is(err, io.EOF) {
		return errors.ConfigError("failed to parse config file", err).WithDetail("path", path)
	}
	return nil
}

// applyEnvOverrides applies DOCSEARCH_* variables. Empty values are ignored.
func (c *Config) applyEnvOverrides() error {
	str := func(name string, dst *string) {
		if v := os.Getenv(EnvPrefix + name); v != "" {
			*dst = v
		}
	}
	var firstErr error
	num := func(name string, dst *int) {
		v := os.Getenv(EnvPrefix + name)
		if v == "" {
			return
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			if firstErr == nil {
				firstErr = errors.ConfigError(fmt.Sprintf("%s%s must be an integer", EnvPrefix, name), err)
			}
			return
		}
		*dst = n
	}
	dur := func(name string, dst *time.Duration) {
		v := os.Getenv(EnvPrefix + name)
		if v == "" {
			return
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			if firstErr == nil {
				firstErr = errors.ConfigError(fmt.Sprintf("%s%s must be a duration", EnvPrefix, name), err)
			}
			return
		}
		*dst = d
	}

	str("ROOT", &c.Storage.Root)
	str("INDEX_DIR", &c.Storage.IndexDir)
	str("SPOOL_DIR", &c.Storage.SpoolDir)
	str("PREVIEW_DIR", &c.Storage.PreviewDir)
	dur("LOCK_TIMEOUT", &c.Index.LockTimeout)
	num("MAX_RESULTS", &c.Index.MaxResults)
	str("OCR_LANGUAGE", &c.Extract.OCRLanguage)
	str("CATALOG_PATH", &c.Catalog.Path)
	num("WORKERS", &c.Worker.Workers)
	dur("POLL_INTERVAL", &c.Worker.PollInterval)
	str("SOCKET", &c.Server.SocketPath)
	str("LOG_LEVEL", &c.Logging.Level)
	str("LOG_DIR", &c.Logging.Dir)

	return firstErr
}

// resolvePaths makes storage paths absolute against Root.
func (c *Config) resolvePaths() {
	resolve := func(p *string) {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(c.Storage.Root, *p)
		}
	}
	resolve(&c.Storage.IndexDir)
	resolve(&c.Storage.SpoolDir)
	resolve(&c.Storage.PreviewDir)
	resolve(&c.Server.SocketPath)
	resolve(&c.Server.PIDPath)
	resolve(&c.Logging.Dir)
	if c.Catalog.Path != "" {
		resolve(&c.Catalog.Path)
	}
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	invalid := func(format string, args ...any) error {
		return errors.ConfigError(fmt.Sprintf(format, args...), nil)
	}

	if strings.TrimSpace(c.Storage.Root) == "" {
		return invalid("storage.root is required")
	}
	if c.Storage.IndexDir == "" {
		return invalid("storage.index_dir is required")
	}
	if c.Index.LockTimeout < 0 {
		return invalid("index.lock_timeout must be non-negative, got %s", c.Index.LockTimeout)
	}
	if c.Index.LockRetryDelay <= 0 {
		return invalid("index.lock_retry_delay must be positive, got %s", c.Index.LockRetryDelay)
	}
	if c.Index.MaxResults < 0 {
		return invalid("index.max_results must be non-negative, got %d", c.Index.MaxResults)
	}
	if c.Extract.DPI <= 0 {
		return invalid("extract.dpi must be positive, got %d", c.Extract.DPI)
	}
	if c.NLP.BatchSize <= 0 {
		return invalid("nlp.batch_size must be positive, got %d", c.NLP.BatchSize)
	}
	if c.NLP.MinTokenLength < 0 {
		return invalid("nlp.min_token_length must be non-negative, got %d", c.NLP.MinTokenLength)
	}
	if c.Catalog.CacheSize < 0 {
		return invalid("catalog.cache_size must be non-negative, got %d", c.Catalog.CacheSize)
	}
	if c.Worker.Workers <= 0 {
		return invalid("worker.workers must be positive, got %d", c.Worker.Workers)
	}
	if c.Worker.PollInterval <= 0 {
		return invalid("worker.poll_interval must be positive, got %s", c.Worker.PollInterval)
	}
	if c.Server.Timeout <= 0 || c.Server.ShutdownGrace <= 0 {
		return invalid("server.timeout and server.shutdown_grace must be positive")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return invalid("logging.level must be 'debug', 'info', 'warn', or 'error', got %s", c.Logging.Level)
	}
	return nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Path returns the config file location used when none is given.
func (c *Config) Path() string {
	if p := os.Getenv(EnvPrefix + "CONFIG"); p != "" {
		return p
	}
	return filepath.Join(c.Storage.Root, FileName)
}
