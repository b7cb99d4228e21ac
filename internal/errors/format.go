package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"sort"
	"strings"
)

func asDocError(err error) *DocError {
	var de *DocError
	if stderrors.As(err, &de) {
		return de
	}
	return Wrap(ErrCodeInternal, err)
}

// FormatForCLI formats an error for terminal display.
func FormatForCLI(err error) string {
	if err == nil {
		return ""
	}

	de := asDocError(err)

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Error: %s\n", de.Message))

	if len(de.Details) > 0 {
		keys := make([]string, 0, len(de.Details))
		for k := range de.Details {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			sb.WriteString(fmt.Sprintf("  %s: %s\n", k, de.Details[k]))
		}
	}

	if de.Suggestion != "" {
		sb.WriteString(fmt.Sprintf("  Hint: %s\n", de.Suggestion))
	}

	sb.WriteString(fmt.Sprintf("  Code: %s\n", de.Code))

	return sb.String()
}

// jsonError is the JSON representation of an error.
type jsonError struct {
	Code       string            `json:"code"`
	Message    string            `json:"message"`
	Category   string            `json:"category"`
	Severity   string            `json:"severity"`
	Details    map[string]string `json:"details,omitempty"`
	Suggestion string            `json:"suggestion,omitempty"`
	Cause      string            `json:"cause,omitempty"`
	Retryable  bool              `json:"retryable"`
}

// FormatJSON returns a JSON representation of the error.
func FormatJSON(err error) ([]byte, error) {
	if err == nil {
		return json.Marshal(nil)
	}

	de := asDocError(err)
	je := jsonError{
		Code:       de.Code,
		Message:    de.Message,
		Category:   string(de.Category),
		Severity:   string(de.Severity),
		Details:    de.Details,
		Suggestion: de.Suggestion,
		Retryable:  de.Retryable,
	}
	if de.Cause != nil {
		je.Cause = de.Cause.Error()
	}

	return json.Marshal(je)
}

// FormatForLog returns key-value pairs suitable for slog attributes.
func FormatForLog(err error) map[string]any {
	if err == nil {
		return nil
	}

	var de *DocError
	if !stderrors.As(err, &de) {
		return map[string]any{"error": err.Error()}
	}

	result := map[string]any{
		"error_code": de.Code,
		"message":    de.Message,
		"category":   string(de.Category),
		"retryable":  de.Retryable,
	}
	if de.Cause != nil {
		result["cause"] = de.Cause.Error()
	}
	for k, v := range de.Details {
		result["detail_"+k] = v
	}

	return result
}
