// Package daemon serves searches over a Unix socket so repeated CLI and
// application queries reuse one warm process.
package daemon

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Config holds configuration for the daemon service.
type Config struct {
	// SocketPath is the Unix domain socket the daemon listens on.
	SocketPath string

	// PIDPath records the owning process while the daemon runs.
	PIDPath string

	// Timeout bounds one client request, dial included.
	Timeout time.Duration

	// ShutdownGracePeriod bounds how long open connections may finish
	// after shutdown starts.
	ShutdownGracePeriod time.Duration
}

// DefaultConfig places the socket and PID file in the storage root.
func DefaultConfig(root string) Config {
	return Config{
		SocketPath:          filepath.Join(root, "daemon.sock"),
		PIDPath:             filepath.Join(root, "daemon.pid"),
		Timeout:             30 * time.Second,
		ShutdownGracePeriod: 10 * time.Second,
	}
}

// Validate reports every invalid field at once.
func (c Config) Validate() error {
	var errs []error
	if c.SocketPath == "" {
		errs = append(errs, errors.New("socket path cannot be empty"))
	}
	if c.PIDPath == "" {
		errs = append(errs, errors.New("PID path cannot be empty"))
	}
	if c.Timeout <= 0 {
		errs = append(errs, errors.New("timeout must be positive"))
	}
	if c.ShutdownGracePeriod <= 0 {
		errs = append(errs, errors.New("shutdown grace period must be positive"))
	}
	return errors.Join(errs...)
}

// EnsureDir creates the directories holding the socket and PID file.
func (c Config) EnsureDir() error {
	for _, dir := range []string{filepath.Dir(c.SocketPath), filepath.Dir(c.PIDPath)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create daemon directory: %w", err)
		}
	}
	return nil
}
