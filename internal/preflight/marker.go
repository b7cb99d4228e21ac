package preflight

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Aman-CERP/docsearch/pkg/version"
)

// MarkerFile is the name of the file that records a passing run.
const MarkerFile = ".preflight-passed"

// NeedsCheck reports whether root has no marker, or one written by a
// different docsearch version.
func NeedsCheck(root string) bool {
	content, err := os.ReadFile(filepath.Join(root, MarkerFile))
	if err != nil {
		return true
	}
	_, ver, ok := strings.Cut(strings.TrimSpace(string(content)), " ")
	return !ok || ver != version.Version
}

// MarkPassed records a passing run in root.
func MarkPassed(root string) error {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return fmt.Errorf("create marker directory: %w", err)
	}

	content := time.Now().Format(time.RFC3339) + " " + version.Version + "\n"
	return os.WriteFile(filepath.Join(root, MarkerFile), []byte(content), 0o644)
}

// ClearMarker removes the marker, forcing a check on the next run.
func ClearMarker(root string) error {
	err := os.Remove(filepath.Join(root, MarkerFile))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove marker file: %w", err)
	}
	return nil
}

// MarkerAge returns how long ago checks passed, or zero without a marker.
func MarkerAge(root string) time.Duration {
	content, err := os.ReadFile(filepath.Join(root, MarkerFile))
	if err != nil {
		return 0
	}

	stamp, _, _ := strings.Cut(strings.TrimSpace(string(content)), " ")
	t, err := time.Parse(time.RFC3339, stamp)
	if err != nil {
		return 0
	}
	return time.Since(t)
}
