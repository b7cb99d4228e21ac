package daemon

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gofrs/flock"
)

var (
	// ErrPIDFileNotFound is returned when no PID file exists.
	ErrPIDFileNotFound = errors.New("PID file not found")

	// ErrAlreadyRunning is returned by Claim while a live process owns the
	// PID file.
	ErrAlreadyRunning = errors.New("daemon already running")
)

// Owner describes the process recorded in a PID file.
type Owner struct {
	PID     int       `json:"pid"`
	Socket  string    `json:"socket,omitempty"`
	Started time.Time `json:"started"`
}

// PIDFile records which process serves an index.
type PIDFile struct {
	path string
}

// NewPIDFile returns a PIDFile at path.
func NewPIDFile(path string) *PIDFile {
	return &PIDFile{path: path}
}

// Path returns the PID file path.
func (p *PIDFile) Path() string {
	return p.path
}

// Claim records the current process as owner. Claims are serialized by a
// lock beside the PID file, so two daemons starting together cannot both
// win. A file left by a dead process is replaced.
func (p *PIDFile) Claim(socket string) error {
	if err := os.MkdirAll(filepath.Dir(p.path), 0o755); err != nil {
		return fmt.Errorf("create PID directory: %w", err)
	}

	fl := flock.New(p.path + ".lock")
	if err := fl.Lock(); err != nil {
		return fmt.Errorf("lock PID file: %w", err)
	}
	defer func() { _ = fl.Unlock() }()

	if prev, err := p.Read(); err == nil && processExists(prev.PID) {
		return fmt.Errorf("%w (pid %d)", ErrAlreadyRunning, prev.PID)
	}

	data, err := json.Marshal(Owner{PID: os.Getpid(), Socket: socket, Started: time.Now().UTC()})
	if err != nil {
		return err
	}
	tmp := p.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write PID file: %w", err)
	}
	if err := os.Rename(tmp, p.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("write PID file: %w", err)
	}
	return nil
}

// Read returns the recorded owner. A bare process id, as written by
// scripts, is accepted too.
func (p *PIDFile) Read() (Owner, error) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		if os.IsNotExist(err) {
			return Owner{}, ErrPIDFileNotFound
		}
		return Owner{}, fmt.Errorf("read PID file: %w", err)
	}

	text := strings.TrimSpace(string(data))
	if pid, err := strconv.Atoi(text); err == nil {
		return Owner{PID: pid}, nil
	}

	var owner Owner
	if err := json.Unmarshal([]byte(text), &owner); err != nil || owner.PID <= 0 {
		return Owner{}, fmt.Errorf("invalid PID file %s", p.path)
	}
	return owner, nil
}

// Release removes the file when the current process owns it.
func (p *PIDFile) Release() error {
	owner, err := p.Read()
	if errors.Is(err, ErrPIDFileNotFound) {
		return nil
	}
	if err == nil && owner.PID != os.Getpid() {
		return nil
	}
	if err := os.Remove(p.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove PID file: %w", err)
	}
	return nil
}

// IsRunning reports whether the recorded process is alive.
func (p *PIDFile) IsRunning() bool {
	owner, err := p.Read()
	if err != nil {
		return false
	}
	return processExists(owner.PID)
}

func processExists(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}

	// FindProcess always succeeds on Unix; signal 0 probes for the process.
	return process.Signal(syscall.Signal(0)) == nil
}
