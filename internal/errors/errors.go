package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// DocError is the structured error type for docsearch.
// It carries enough context for logging, retry decisions and CLI output.
type DocError struct {
	// Code is the unique error code (e.g., "ERR_207_LOCK_TIMEOUT").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category.
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if the operation can be retried.
	Retryable bool

	// Suggestion is an actionable suggestion for the user.
	Suggestion string
}

// Error implements the error interface.
func (e *DocError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *DocError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a DocError with the same code.
func (e *DocError) Is(target error) bool {
	if t, ok := target.(*DocError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
func (e *DocError) WithDetail(key, value string) *DocError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
func (e *DocError) WithSuggestion(suggestion string) *DocError {
	e.Suggestion = suggestion
	return e
}

// New creates a new DocError with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *DocError {
	return &DocError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates a DocError from an existing error.
// The error's message becomes the DocError message.
func Wrap(code string, err error) *DocError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// ConfigError creates a configuration-related error.
func ConfigError(message string, cause error) *DocError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// IndexError creates an index I/O error.
func IndexError(message string, cause error) *DocError {
	return New(ErrCodeIndexIO, message, cause)
}

// ValidationError creates a validation-related error.
func ValidationError(message string, cause error) *DocError {
	return New(ErrCodeInvalidInput, message, cause)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *DocError {
	return New(ErrCodeInternal, message, cause)
}

// LockTimeout reports that the index lock at path could not be acquired.
func LockTimeout(path string, cause error) *DocError {
	return New(ErrCodeLockTimeout, "timed out waiting for index lock", cause).
		WithDetail("lock", path).
		WithSuggestion("Another process is writing to the index; retry later or raise index.lock_timeout")
}

// NotFound reports one or more unknown document ids.
func NotFound(ids ...string) *DocError {
	msg := "document not found"
	if len(ids) > 1 {
		msg = "documents not found"
	}
	return New(ErrCodeDocumentNotFound, msg, nil).
		WithDetail("ids", strings.Join(ids, ","))
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	var de *DocError
	if stderrors.As(err, &de) {
		return de.Retryable
	}
	return false
}

// IsFatal checks if an error has fatal severity.
// Fatal errors should abort the current operation.
func IsFatal(err error) bool {
	var de *DocError
	if stderrors.As(err, &de) {
		return de.Severity == SeverityFatal
	}
	return false
}

// GetCode extracts the error code from a DocError.
// Returns empty string if no DocError is in the chain.
func GetCode(err error) string {
	var de *DocError
	if stderrors.As(err, &de) {
		return de.Code
	}
	return ""
}

// GetCategory extracts the category from a DocError.
func GetCategory(err error) Category {
	var de *DocError
	if stderrors.As(err, &de) {
		return de.Category
	}
	return ""
}
