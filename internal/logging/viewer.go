package logging

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strings"
	"time"
)

// LogEntry represents a parsed JSON log line.
type LogEntry struct {
	Time    time.Time      `json:"time"`
	Level   string         `json:"level"`
	Msg     string         `json:"msg"`
	Attrs   map[string]any `json:"-"`
	Raw     string         `json:"-"`
	IsValid bool           `json:"-"`
}

// ViewerConfig configures the log viewer.
type ViewerConfig struct {
	Level   string         // minimum level shown
	Pattern *regexp.Regexp // raw line must match
	NoColor bool
}

// Viewer filters and prints log entries written by Setup.
type Viewer struct {
	config ViewerConfig
	out    io.Writer
	poll   time.Duration
}

// NewViewer creates a new log viewer.
func NewViewer(cfg ViewerConfig, out io.Writer) *Viewer {
	return &Viewer{
		config: cfg,
		out:    out,
		poll:   100 * time.Millisecond,
	}
}

const maxLineSize = 1024 * 1024

// Tail returns the matching entries among the last n lines of path.
func (v *Viewer) Tail(path string, n int) ([]LogEntry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	defer func() { _ = file.Close() }()

	if n <= 0 {
		return nil, nil
	}

	// Ring of the last n lines.
	ring := make([]string, 0, n)
	next := 0
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	for scanner.Scan() {
		line := scanner.Text()
		if len(ring) < n {
			ring = append(ring, line)
			continue
		}
		ring[next] = line
		next = (next + 1) % n
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read log file: %w", err)
	}

	lines := append(ring[next:len(ring):len(ring)], ring[:next]...)
	entries := make([]LogEntry, 0, len(lines))
	for _, line := range lines {
		if line == "" {
			continue
		}
		entry := parseLine(line)
		if v.matchesFilter(entry) {
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

// Follow sends entries appended to path until ctx is cancelled. When the
// file shrinks after a rotation it is reopened from the start.
func (v *Viewer) Follow(ctx context.Context, path string, entries chan<- LogEntry) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer func() { _ = file.Close() }()

	offset, err := file.Seek(0, io.SeekEnd)
	if err != nil {
		return fmt.Errorf("failed to seek to end: %w", err)
	}

	reader := bufio.NewReaderSize(file, 64*1024)
	ticker := time.NewTicker(v.poll)
	defer ticker.Stop()

	var partial string
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		if info, err := os.Stat(path); err == nil && info.Size() < offset {
			_ = file.Close()
			if file, err = os.Open(path); err != nil {
				return fmt.Errorf("failed to reopen log file: %w", err)
			}
			reader.Reset(file)
			offset, partial = 0, ""
		}

		for {
			chunk, err := reader.ReadString('\n')
			offset += int64(len(chunk))
			if err != nil {
				// Incomplete line; finish it on the next tick.
				partial += chunk
				break
			}

			line := strings.TrimSuffix(partial+chunk, "\n")
			partial = ""
			if line == "" {
				continue
			}

			entry := parseLine(line)
			if !v.matchesFilter(entry) {
				continue
			}
			select {
			case entries <- entry:
			case <-ctx.Done():
				return nil
			}
		}
	}
}

// FormatEntry formats a log entry for display.
func (v *Viewer) FormatEntry(entry LogEntry) string {
	if !entry.IsValid {
		return entry.Raw
	}

	keys := make([]string, 0, len(entry.Attrs))
	for k := range entry.Attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteString(entry.Time.Format("15:04:05.000"))
	sb.WriteByte(' ')
	sb.WriteString(v.formatLevel(entry.Level))
	sb.WriteByte(' ')
	sb.WriteString(entry.Msg)
	for _, k := range keys {
		fmt.Fprintf(&sb, " %s=%v", k, entry.Attrs[k])
	}
	return sb.String()
}

// Print prints entries to the output.
func (v *Viewer) Print(entries []LogEntry) {
	for _, entry := range entries {
		_, _ = fmt.Fprintln(v.out, v.FormatEntry(entry))
	}
}

// parseLine parses a JSON log line into LogEntry.
func parseLine(line string) LogEntry {
	entry := LogEntry{Raw: line}

	var data map[string]any
	if err := json.Unmarshal([]byte(line), &data); err != nil {
		return entry
	}
	entry.IsValid = true

	if t, ok := data["time"].(string); ok {
		if parsed, err := time.Parse(time.RFC3339Nano, t); err == nil {
			entry.Time = parsed
		}
	}
	entry.Level, _ = data["level"].(string)
	entry.Msg, _ = data["msg"].(string)

	entry.Attrs = make(map[string]any, len(data))
	for k, val := range data {
		switch k {
		case "time", "level", "msg":
		default:
			entry.Attrs[k] = val
		}
	}
	return entry
}

// matchesFilter checks if an entry matches the configured filters.
func (v *Viewer) matchesFilter(entry LogEntry) bool {
	if v.config.Level != "" && LevelFromString(entry.Level) < LevelFromString(v.config.Level) {
		return false
	}
	if v.config.Pattern != nil && !v.config.Pattern.MatchString(entry.Raw) {
		return false
	}
	return true
}

// formatLevel formats the log level with optional color.
func (v *Viewer) formatLevel(level string) string {
	levelStr := strings.ToUpper(level)
	if len(levelStr) > 5 {
		levelStr = levelStr[:5]
	}
	levelStr = fmt.Sprintf("%-5s", levelStr)

	if v.config.NoColor {
		return levelStr
	}

	switch strings.ToLower(level) {
	case "debug":
		return "\033[90m" + levelStr + "\033[0m"
	case "info":
		return "\033[32m" + levelStr + "\033[0m"
	case "warn", "warning":
		return "\033[33m" + levelStr + "\033[0m"
	case "error":
		return "\033[31m" + levelStr + "\033[0m"
	default:
		return levelStr
	}
}
