// Package output provides consistent CLI output: status lines, result
// tables, JSON documents and a progress bar on terminals.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/mattn/go-isatty"
)

// Format selects between human and machine output.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// ParseFormat validates a --format flag value.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case "", FormatText:
		return FormatText, nil
	case FormatJSON:
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want text or json)", s)
	}
}

// Writer provides formatted output for CLI.
type Writer struct {
	out    io.Writer
	format Format
	tty    bool
}

// New creates a text Writer. Progress bars are shown only when out is a
// terminal.
func New(out io.Writer) *Writer {
	return &Writer{out: out, format: FormatText, tty: IsTTY(out)}
}

// WithFormat returns a copy of w writing in format f.
func (w *Writer) WithFormat(f Format) *Writer {
	c := *w
	c.format = f
	return &c
}

// JSONMode reports whether structured output was requested.
func (w *Writer) JSONMode() bool {
	return w.format == FormatJSON
}

// Out returns the underlying writer.
func (w *Writer) Out() io.Writer {
	return w.out
}

// IsTTY checks if output is a terminal.
func IsTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok || f == nil {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Status prints a status message with an icon.
// Errors from writing are intentionally ignored for console output.
func (w *Writer) Status(icon, msg string) {
	if w.JSONMode() {
		return
	}
	if icon != "" {
		_, _ = fmt.Fprintf(w.out, "%s %s\n", icon, msg)
	} else {
		_, _ = fmt.Fprintf(w.out, "   %s\n", msg)
	}
}

// Statusf prints a formatted status message with an icon.
func (w *Writer) Statusf(icon, format string, args ...any) {
	w.Status(icon, fmt.Sprintf(format, args...))
}

// Success prints a success message with checkmark.
func (w *Writer) Success(msg string) {
	w.Status("✅", msg)
}

// Successf prints a formatted success message.
func (w *Writer) Successf(format string, args ...any) {
	w.Success(fmt.Sprintf(format, args...))
}

// Warning prints a warning message.
func (w *Writer) Warning(msg string) {
	w.Status("⚠️ ", msg)
}

// Warningf prints a formatted warning message.
func (w *Writer) Warningf(format string, args ...any) {
	w.Warning(fmt.Sprintf(format, args...))
}

// Error prints an error message.
func (w *Writer) Error(msg string) {
	w.Status("❌", msg)
}

// Errorf prints a formatted error message.
func (w *Writer) Errorf(format string, args ...any) {
	w.Error(fmt.Sprintf(format, args...))
}

// JSON writes v as indented JSON followed by a newline.
func (w *Writer) JSON(v any) error {
	enc := json.NewEncoder(w.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Table prints rows under headers in aligned columns.
func (w *Writer) Table(headers []string, rows [][]string) error {
	tw := tabwriter.NewWriter(w.out, 0, 4, 2, ' ', 0)
	if _, err := fmt.Fprintln(tw, strings.Join(headers, "\t")); err != nil {
		return err
	}
	for _, row := range rows {
		if _, err := fmt.Fprintln(tw, strings.Join(row, "\t")); err != nil {
			return err
		}
	}
	return tw.Flush()
}

// Newline prints an empty line.
func (w *Writer) Newline() {
	if !w.JSONMode() {
		_, _ = fmt.Fprintln(w.out)
	}
}

// Progress prints a progress bar with message. Nothing is printed when
// the output is not a terminal.
func (w *Writer) Progress(current, total int, msg string) {
	if total <= 0 || !w.tty || w.JSONMode() {
		return
	}

	pct := float64(current) / float64(total) * 100
	bar := renderProgressBar(current, total, 30)

	_, _ = fmt.Fprintf(w.out, "\r[%s] %.0f%% %s", bar, pct, msg)
	if current >= total {
		_, _ = fmt.Fprintln(w.out)
	}
}

// renderProgressBar creates a text progress bar.
func renderProgressBar(current, total, width int) string {
	if total <= 0 {
		return strings.Repeat("░", width)
	}

	filled := int(float64(current) / float64(total) * float64(width))
	filled = max(0, min(filled, width))

	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}
