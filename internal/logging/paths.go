package logging

import (
	"fmt"
	"os"
	"path/filepath"
)

// FileName is the log file name inside the log directory.
const FileName = "docsearch.log"

// DefaultLogDir returns the default log directory (~/.docsearch/logs/).
// Falls back to temp directory if home directory is unavailable.
func DefaultLogDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".docsearch", "logs")
	}
	return filepath.Join(home, ".docsearch", "logs")
}

// DefaultLogPath returns the default log file path.
func DefaultLogPath() string {
	return filepath.Join(DefaultLogDir(), FileName)
}

// FindLogFile returns explicit if given, else the log file in dir.
func FindLogFile(explicit, dir string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err == nil {
			return explicit, nil
		}
		return "", fmt.Errorf("log file not found: %s", explicit)
	}

	if dir == "" {
		dir = DefaultLogDir()
	}
	path := filepath.Join(dir, FileName)
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}

	return "", fmt.Errorf("no log file found at %s; run a docsearch command first", path)
}
