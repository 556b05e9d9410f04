// Package errors provides structured error types for ebasdb.
// Every error carries a category and a code so that batch operations can
// tell an isolated adaptation failure from a broken dictionary or a corrupt
// blob on disk.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies errors by failure kind.
type ErrorCategory string

const (
	// ErrCategoryAdaptation marks a raw file or site that could not be
	// processed. Batch operations log it and continue.
	ErrCategoryAdaptation ErrorCategory = "ADAPTATION"

	// ErrCategoryLookup marks a categorical value or code missing from the
	// dictionary.
	ErrCategoryLookup ErrorCategory = "LOOKUP"

	// ErrCategoryStorage marks a missing or corrupt persisted file.
	ErrCategoryStorage ErrorCategory = "STORAGE"

	ErrCategoryValidation ErrorCategory = "VALIDATION"
	ErrCategoryInternal   ErrorCategory = "INTERNAL"
)

// Error codes for each category.
const (
	// Adaptation codes
	CodeExtractFailed = "EXTRACT_FAILED"
	CodeSeriesFailed  = "SERIES_FAILED"
	CodeShapeMismatch = "SHAPE_MISMATCH"

	// Lookup codes
	CodeUnknownValue  = "UNKNOWN_VALUE"
	CodeUnknownCode   = "UNKNOWN_CODE"
	CodeUnknownDomain = "UNKNOWN_DOMAIN"

	// Storage codes
	CodeObjectNotFound  = "OBJECT_NOT_FOUND"
	CodeReadFailed      = "READ_FAILED"
	CodeWriteFailed     = "WRITE_FAILED"
	CodeCorruptBlob     = "CORRUPT_BLOB"
	CodeCodecMismatch   = "CODEC_MISMATCH"
	CodeExportOnlyCodec = "EXPORT_ONLY_CODEC"

	// Validation codes
	CodeInvalidEntry     = "INVALID_ENTRY"
	CodeInvalidCondition = "INVALID_CONDITION"
	CodeAlreadyEncoded   = "ALREADY_ENCODED"
	CodeNotEncoded       = "NOT_ENCODED"
	CodeInvalidConfig    = "INVALID_CONFIG"
	CodeNotLoaded        = "NOT_LOADED"
	CodeEncoderUsed      = "ENCODER_USED"

	// Internal codes
	CodeUnexpected = "UNEXPECTED"
)

// EbasError is the structured error type used throughout the system.
type EbasError struct {
	Category ErrorCategory
	Code     string
	Message  string
	Details  map[string]interface{}
	Cause    error
}

// Error returns a formatted error string.
func (e *EbasError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Category, e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *EbasError) Unwrap() error {
	return e.Cause
}

// Is reports whether the target matches this error's category and code.
func (e *EbasError) Is(target error) bool {
	var t *EbasError
	if errors.As(target, &t) {
		return e.Category == t.Category && e.Code == t.Code
	}
	return false
}

// New creates a new EbasError.
func New(category ErrorCategory, code, message string) *EbasError {
	return &EbasError{
		Category: category,
		Code:     code,
		Message:  message,
	}
}

// Wrap creates a new EbasError wrapping an existing error.
func Wrap(category ErrorCategory, code, message string, cause error) *EbasError {
	return &EbasError{
		Category: category,
		Code:     code,
		Message:  message,
		Cause:    cause,
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *EbasError) WithDetails(details map[string]interface{}) *EbasError {
	cp := *e
	cp.Details = details
	return &cp
}

// GetCategory extracts the error category from an error chain.
// Returns empty string if the error is not an EbasError.
func GetCategory(err error) ErrorCategory {
	var ee *EbasError
	if errors.As(err, &ee) {
		return ee.Category
	}
	return ""
}

// GetCode extracts the error code from an error chain.
// Returns empty string if the error is not an EbasError.
func GetCode(err error) string {
	var ee *EbasError
	if errors.As(err, &ee) {
		return ee.Code
	}
	return ""
}

// IsAdaptation reports whether err is an adaptation failure.
func IsAdaptation(err error) bool { return GetCategory(err) == ErrCategoryAdaptation }

// IsLookup reports whether err is a dictionary lookup failure.
func IsLookup(err error) bool { return GetCategory(err) == ErrCategoryLookup }

// IsStorage reports whether err is a storage failure.
func IsStorage(err error) bool { return GetCategory(err) == ErrCategoryStorage }

// Convenience constructors for common errors.

func NewAdaptationError(code, message string, cause error) *EbasError {
	return Wrap(ErrCategoryAdaptation, code, message, cause)
}

func NewLookupError(code, message string) *EbasError {
	return New(ErrCategoryLookup, code, message)
}

func NewStorageError(code, message string, cause error) *EbasError {
	return Wrap(ErrCategoryStorage, code, message, cause)
}

func NewValidationError(code, message string) *EbasError {
	return New(ErrCategoryValidation, code, message)
}

func NewInternalError(message string, cause error) *EbasError {
	return Wrap(ErrCategoryInternal, CodeUnexpected, message, cause)
}
