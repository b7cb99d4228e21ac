// Package queue is a durable directory-backed command queue. Producers drop
// one JSON file per command into incoming/; workers claim a file by renaming
// it into processing/, so each command is handled by exactly one worker
// across processes. Failures land in failed/ next to an .err note.
package queue

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/Aman-CERP/docsearch/internal/errors"
	"github.com/Aman-CERP/docsearch/internal/ingest"
)

const (
	incomingDir   = "incoming"
	processingDir = "processing"
	failedDir     = "failed"

	commandExt = ".json"
	errorExt   = ".err"
)

// Stats counts commands per spool state.
type Stats struct {
	Incoming   int `json:"incoming"`
	Processing int `json:"processing"`
	Failed     int `json:"failed"`
}

// Spool is a queue rooted at one directory.
type Spool struct {
	dir    string
	logger *slog.Logger
}

// Open creates the spool layout under dir if needed.
func Open(dir string, logger *slog.Logger) (*Spool, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.ConfigError("spool directory is required", nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Spool{dir: dir, logger: logger}
	for _, sub := range []string{incomingDir, processingDir, failedDir} {
		if err := os.MkdirAll(s.path(sub), 0o755); err != nil {
			return nil, errors.New(errors.ErrCodeFilePermission, "create spool directory", err).
				WithDetail("path", s.path(sub))
		}
	}
	return s, nil
}

// Dir returns the spool root.
func (s *Spool) Dir() string {
	return s.dir
}

func (s *Spool) path(parts ...string) string {
	return filepath.Join(append([]string{s.dir}, parts...)...)
}

// Submit validates cmd and enqueues it. The returned id names the spool
// file. Ids are time ordered, so commands are picked up in submission order.
func (s *Spool) Submit(cmd ingest.Command) (string, error) {
	if err := cmd.Validate(); err != nil {
		return "", err
	}
	data, err := json.Marshal(cmd)
	if err != nil {
		return "", errors.InternalError("encode command", err)
	}

	u, err := uuid.NewV7()
	if err != nil {
		return "", errors.InternalError("generate command id", err)
	}
	id := u.String()

	// Write under a hidden name so workers never see a partial file.
	tmp := s.path(incomingDir, "."+id+".tmp")
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", errors.New(errors.ErrCodeFilePermission, "write spool file", err).WithDetail("path", tmp)
	}
	if err := os.Rename(tmp, s.path(incomingDir, id+commandExt)); err != nil {
		_ = os.Remove(tmp)
		return "", errors.New(errors.ErrCodeFilePermission, "publish spool file", err).WithDetail("path", tmp)
	}

	s.logger.Debug("command_submitted", slog.String("id", id), slog.String("op", string(cmd.Op)))
	return id, nil
}

// Pending lists queued command file names, oldest first.
func (s *Spool) Pending() ([]string, error) {
	return s.list(incomingDir)
}

// FailedCommands lists failed command file names.
func (s *Spool) FailedCommands() ([]string, error) {
	return s.list(failedDir)
}

// FailureReason returns the error recorded for a failed command.
func (s *Spool) FailureReason(name string) (string, error) {
	data, err := os.ReadFile(s.path(failedDir, strings.TrimSuffix(name, commandExt)+errorExt))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

func (s *Spool) list(sub string) ([]string, error) {
	entries, err := os.ReadDir(s.path(sub))
	if err != nil {
		return nil, errors.New(errors.ErrCodeFileNotFound, "read spool directory", err).
			WithDetail("path", s.path(sub))
	}
	var names []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || filepath.Ext(name) != commandExt {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Stats counts files in each state.
func (s *Spool) Stats() (Stats, error) {
	var st Stats
	for _, c := range []struct {
		sub string
		n   *int
	}{{incomingDir, &st.Incoming}, {processingDir, &st.Processing}, {failedDir, &st.Failed}} {
		names, err := s.list(c.sub)
		if err != nil {
			return Stats{}, err
		}
		*c.n = len(names)
	}
	return st, nil
}

// claim moves name into processing/. It reports false when another worker
// got there first.
func (s *Spool) claim(name string) (string, bool, error) {
	dst := s.path(processingDir, name)
	err := os.Rename(s.path(incomingDir, name), dst)
	switch {
	case err == nil:
		return dst, true, nil
	case stderrors.Is(err, fs.ErrNotExist):
		return "", false, nil
	default:
		return "", false, err
	}
}

// Requeue moves a failed command back to incoming/ and drops its note.
func (s *Spool) Requeue(name string) error {
	if err := os.Rename(s.path(failedDir, name), s.path(incomingDir, name)); err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return errors.New(errors.ErrCodeFileNotFound, "failed command not found", err).WithDetail("name", name)
		}
		return errors.New(errors.ErrCodeFilePermission, "requeue command", err).WithDetail("name", name)
	}
	_ = os.Remove(s.path(failedDir, strings.TrimSuffix(name, commandExt)+errorExt))
	return nil
}

// Recover returns commands left in processing/ by a crashed worker to
// incoming/. Call it only while no worker is running on this spool.
func (s *Spool) Recover() (int, error) {
	names, err := s.list(processingDir)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, name := range names {
		if err := os.Rename(s.path(processingDir, name), s.path(incomingDir, name)); err != nil {
			return n, errors.New(errors.ErrCodeFilePermission, "recover command", err).WithDetail("name", name)
		}
		n++
	}
	if n > 0 {
		s.logger.Info("spool_recovered", slog.Int("commands", n))
	}
	return n, nil
}

func (s *Spool) fail(name, claimed string, cause error) {
	base := strings.TrimSuffix(name, commandExt)
	note := fmt.Sprintf("%s\n", cause)
	if err := os.WriteFile(s.path(failedDir, base+errorExt), []byte(note), 0o644); err != nil {
		s.logger.Warn("spool_note_failed", slog.String("name", name), slog.String("error", err.Error()))
	}
	if err := os.Rename(claimed, s.path(failedDir, name)); err != nil {
		s.logger.Error("spool_move_failed", slog.String("name", name), slog.String("error", err.Error()))
	}
}
