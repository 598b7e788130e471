// Package errors provides structured error types for the data abstraction
// layer. All errors carry a category, code, message, and optional cause so
// that callers can map them to response categories without string matching.
package errors

import (
	"errors"
	"fmt"
)

// Category classifies errors by the component that raised them.
type Category string

const (
	CategoryValidation Category = "VALIDATION"
	CategoryMetadata   Category = "METADATA"
	CategoryQuery      Category = "QUERY"
	CategoryAdapter    Category = "ADAPTER"
	CategoryFormula    Category = "FORMULA"
	CategoryConflict   Category = "CONFLICT"
)

// Error codes.
const (
	CodeUnsupportedSource    = "UNSUPPORTED_SOURCE"
	CodeTableNotFound        = "TABLE_NOT_FOUND"
	CodeRowNotFound          = "ROW_NOT_FOUND"
	CodeConnectionNotFound   = "CONNECTION_NOT_FOUND"
	CodeInvalidFilter        = "INVALID_FILTER"
	CodeUnknownAdapterType   = "UNKNOWN_ADAPTER_TYPE"
	CodeConnectionFailed     = "CONNECTION_FAILED"
	CodeFormula              = "FORMULA_ERROR"
	CodeConflict             = "VERSION_CONFLICT"
	CodeUnsupportedOperation = "UNSUPPORTED_OPERATION"
	CodeNotImplemented       = "NOT_IMPLEMENTED"
)

// DALError is the structured error type used throughout the layer.
type DALError struct {
	Category Category
	Code     string
	Message  string
	Cause    error
}

func (e *DALError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Category, e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *DALError) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error's category and code.
func (e *DALError) Is(target error) bool {
	var t *DALError
	if errors.As(target, &t) {
		return e.Category == t.Category && e.Code == t.Code
	}
	return false
}

// New creates a DALError.
func New(category Category, code, message string) *DALError {
	return &DALError{Category: category, Code: code, Message: message}
}

// Newf creates a DALError with a formatted message.
func Newf(category Category, code, format string, args ...any) *DALError {
	return &DALError{Category: category, Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates a DALError wrapping an existing error.
func Wrap(category Category, code, message string, cause error) *DALError {
	return &DALError{Category: category, Code: code, Message: message, Cause: cause}
}

// HasCode reports whether err (or anything in its chain) carries the code.
func HasCode(err error, code string) bool {
	var de *DALError
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// Taxonomy constructors. Callers match with errors.Is against the same
// constructor output or with HasCode.

// UnsupportedSource reports an LQP source kind the engine does not handle.
func UnsupportedSource(kind string) *DALError {
	return Newf(CategoryQuery, CodeUnsupportedSource, "unsupported source kind %q", kind)
}

// TableNotFound reports missing table metadata.
func TableNotFound(tableID string) *DALError {
	return Newf(CategoryMetadata, CodeTableNotFound, "table %q not found", tableID)
}

// RowNotFound reports a missing (or tombstoned) row.
func RowNotFound(tableID, rowID string) *DALError {
	return Newf(CategoryMetadata, CodeRowNotFound, "row %q not found in table %q", rowID, tableID)
}

// ConnectionNotFound reports a missing stored connection.
func ConnectionNotFound(connectionID string) *DALError {
	return Newf(CategoryMetadata, CodeConnectionNotFound, "connection %q not found", connectionID)
}

// InvalidFilter reports a malformed filter tree.
func InvalidFilter(message string) *DALError {
	return New(CategoryValidation, CodeInvalidFilter, message)
}

// UnknownAdapterType reports a registry miss.
func UnknownAdapterType(adapterType string) *DALError {
	return Newf(CategoryAdapter, CodeUnknownAdapterType, "no adapter registered for type %q", adapterType)
}

// ConnectionFailed reports exhausted connection attempts.
func ConnectionFailed(message string, cause error) *DALError {
	return Wrap(CategoryAdapter, CodeConnectionFailed, message, cause)
}

// Formula reports a formula parse or evaluation failure.
func Formula(message string) *DALError {
	return New(CategoryFormula, CodeFormula, message)
}

// Formulaf reports a formula failure with a formatted message.
func Formulaf(format string, args ...any) *DALError {
	return Newf(CategoryFormula, CodeFormula, format, args...)
}

// Conflict reports an optimistic-lock version mismatch.
func Conflict(rowID string) *DALError {
	return Newf(CategoryConflict, CodeConflict, "row %q was modified concurrently", rowID)
}

// UnsupportedOperation reports an operation the adapter forbids.
func UnsupportedOperation(message string) *DALError {
	return New(CategoryAdapter, CodeUnsupportedOperation, message)
}

// NotImplemented reports functionality delegated to another layer.
func NotImplemented(message string) *DALError {
	return New(CategoryQuery, CodeNotImplemented, message)
}
