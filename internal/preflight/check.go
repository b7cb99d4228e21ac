package preflight

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
)

// CheckStatus represents the result of a preflight check.
type CheckStatus int

const (
	// StatusPass indicates the check passed successfully.
	StatusPass CheckStatus = iota
	// StatusWarn indicates a non-critical warning.
	StatusWarn
	// StatusFail indicates the check failed.
	StatusFail
)

// String returns the string representation of a CheckStatus.
func (s CheckStatus) String() string {
	switch s {
	case StatusPass:
		return "PASS"
	case StatusWarn:
		return "WARN"
	case StatusFail:
		return "FAIL"
	default:
		return "UNKNOWN"
	}
}

// MarshalJSON encodes the status by name.
func (s CheckStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(strings.ToLower(s.String()))
}

// CheckResult holds the result of a single preflight check.
type CheckResult struct {
	Name     string      `json:"name"`
	Status   CheckStatus `json:"status"`
	Message  string      `json:"message"`
	Details  string      `json:"details,omitempty"`
	Required bool        `json:"required"`
}

// IsCritical returns true if this is a required check that failed.
func (r CheckResult) IsCritical() bool {
	return r.Required && r.Status == StatusFail
}

// Check produces one result.
type Check func(ctx context.Context) CheckResult

// Func adapts fn into a Check. A nil error passes with the returned
// message. An error fails a required check and warns otherwise.
func Func(name string, required bool, fn func(ctx context.Context) (string, error)) Check {
	return func(ctx context.Context) CheckResult {
		result := CheckResult{Name: name, Required: required}
		msg, err := fn(ctx)
		switch {
		case err == nil:
			result.Status = StatusPass
			result.Message = msg
		case required:
			result.Status = StatusFail
			result.Message = err.Error()
		default:
			result.Status = StatusWarn
			result.Message = err.Error()
		}
		return result
	}
}

// Checker performs preflight validation checks.
type Checker struct {
	verbose bool
	output  io.Writer
}

// Option configures a Checker.
type Option func(*Checker)

// WithVerbose enables verbose output.
func WithVerbose(verbose bool) Option {
	return func(c *Checker) {
		c.verbose = verbose
	}
}

// WithOutput sets the output writer.
func WithOutput(w io.Writer) Option {
	return func(c *Checker) {
		c.output = w
	}
}

// New creates a new Checker with the given options.
func New(opts ...Option) *Checker {
	c := &Checker{
		output: os.Stdout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run runs checks in order. Checks after a cancelled context are skipped.
func (c *Checker) Run(ctx context.Context, checks ...Check) []CheckResult {
	results := make([]CheckResult, 0, len(checks))
	for _, check := range checks {
		if ctx.Err() != nil {
			break
		}
		results = append(results, check(ctx))
	}
	return results
}

// HasCriticalFailures returns true if any required check failed.
func HasCriticalFailures(results []CheckResult) bool {
	for _, r := range results {
		if r.IsCritical() {
			return true
		}
	}
	return false
}

// FirstCritical returns the first critical failure, if any.
func FirstCritical(results []CheckResult) (CheckResult, bool) {
	for _, r := range results {
		if r.IsCritical() {
			return r, true
		}
	}
	return CheckResult{}, false
}

// SummaryStatus returns a summary status string for the results.
func SummaryStatus(results []CheckResult) string {
	hasWarnings := false
	for _, r := range results {
		if r.IsCritical() {
			return "failed"
		}
		if r.Status != StatusPass {
			hasWarnings = true
		}
	}
	if hasWarnings {
		return "ready_with_warnings"
	}
	return "ready"
}

// PrintResults prints check results to the configured output.
func (c *Checker) PrintResults(results []CheckResult) {
	_, _ = fmt.Fprintln(c.output, "docsearch system check")
	_, _ = fmt.Fprintln(c.output, "======================")
	_, _ = fmt.Fprintln(c.output)

	for _, r := range results {
		_, _ = fmt.Fprintf(c.output, "[%s] %s: %s\n", r.Status, r.Name, r.Message)
		if c.verbose && r.Details != "" {
			_, _ = fmt.Fprintf(c.output, "      %s\n", r.Details)
		}
	}

	_, _ = fmt.Fprintln(c.output)
	_, _ = fmt.Fprintf(c.output, "Status: %s\n", strings.ToUpper(SummaryStatus(results)))
}
