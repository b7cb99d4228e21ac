package extract

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// CommandRunner executes external tools. It is swapped out in tests.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec and returns stdout.
type ExecRunner struct{}

// Run implements CommandRunner.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return nil, fmt.Errorf("%s failed: %w: %s", name, err, msg)
		}
		return nil, fmt.Errorf("%s failed: %w", name, err)
	}
	return out, nil
}

// CheckTools reports which of the configured external tools are missing
// from PATH. The map is empty when everything is installed.
func CheckTools(cfg Config) map[string]error {
	missing := make(map[string]error)
	for _, tool := range []string{cfg.PDFToText, cfg.PDFToPPM, cfg.Tesseract} {
		if tool == "" {
			continue
		}
		if _, err := exec.LookPath(tool); err != nil {
			missing[tool] = err
		}
	}
	return missing
}
