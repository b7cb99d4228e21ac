// Package errors provides structured error handling for docsearch.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: Storage errors (files, index, lock)
//   - 4XX: Validation and lookup errors
//   - 5XX: Internal errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryStorage indicates file, index and lock errors.
	CategoryStorage Category = "STORAGE"
	// CategoryValidation indicates bad input or unknown identifiers.
	CategoryValidation Category = "VALIDATION"
	// CategoryInternal indicates unexpected internal errors.
	CategoryInternal Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates unrecoverable error, must abort.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates operation failed but can continue.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation, continuing.
	SeverityWarning Severity = "WARNING"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  = "ERR_102_CONFIG_INVALID"

	// Storage errors (200-299)
	ErrCodeFileNotFound   = "ERR_201_FILE_NOT_FOUND"
	ErrCodeFilePermission = "ERR_202_FILE_PERMISSION"
	ErrCodeDiskFull       = "ERR_203_DISK_FULL"
	ErrCodeCorruptIndex   = "ERR_205_CORRUPT_INDEX"
	ErrCodeFileCorrupt    = "ERR_206_FILE_CORRUPT"
	ErrCodeLockTimeout    = "ERR_207_LOCK_TIMEOUT"
	ErrCodeIndexIO        = "ERR_208_INDEX_IO"

	// Validation errors (400-499)
	ErrCodeInvalidInput     = "ERR_401_INVALID_INPUT"
	ErrCodeDocumentNotFound = "ERR_404_DOCUMENT_NOT_FOUND"

	// Internal errors (500-599)
	ErrCodeInternal         = "ERR_501_INTERNAL"
	ErrCodeSearchFailed     = "ERR_503_SEARCH_FAILED"
	ErrCodeIndexFailed      = "ERR_505_INDEX_FAILED"
	ErrCodeExtractionFailed = "ERR_506_EXTRACTION_FAILED"
)

// Sentinels for errors.Is checks. Matching is by code, so any error built
// with the same code compares equal to these.
var (
	ErrLockTimeout      = New(ErrCodeLockTimeout, "lock wait exceeded", nil)
	ErrDocumentNotFound = New(ErrCodeDocumentNotFound, "document not found", nil)
	ErrCorruptIndex     = New(ErrCodeCorruptIndex, "index is corrupt", nil)
	ErrInvalidInput     = New(ErrCodeInvalidInput, "invalid input", nil)
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}

	// "101" from "ERR_101_CONFIG_NOT_FOUND"
	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryStorage
	case '4':
		return CategoryValidation
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeCorruptIndex, ErrCodeDiskFull:
		return SeverityFatal
	}

	if isRetryableCode(code) {
		return SeverityWarning
	}

	return SeverityError
}

// isRetryableCode checks if an error code represents a retryable error.
func isRetryableCode(code string) bool {
	return code == ErrCodeLockTimeout
}
