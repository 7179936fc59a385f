package propsage

import (
	"errors"
	"fmt"
)

// ErrorType represents the category of error
type ErrorType string

const (
	ErrorTypeMalformedInput ErrorType = "malformed_input"
	ErrorTypeUnknownColumn  ErrorType = "unknown_column"
	ErrorTypeInternal       ErrorType = "internal"
	ErrorTypeNotFound       ErrorType = "not_found"
	ErrorTypeValidation     ErrorType = "validation"
	ErrorTypeService        ErrorType = "service"
)

// Error is the unified error value returned by the core operations. The
// core is total: internal failures are converted into Error values (plus
// the fallback payload each operation's contract mandates) at the operation
// boundary, never propagated as panics.
type Error struct {
	Type    ErrorType      `json:"type"`
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Column  string         `json:"column,omitempty"`
	Details map[string]any `json:"details,omitempty"`
	Cause   error          `json:"-"`
}

func (e *Error) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("[%s:%s] column %q: %s", e.Type, e.Code, e.Column, e.Message)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Type, e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// WithColumn adds column context to an Error.
func (e *Error) WithColumn(column string) *Error {
	e.Column = column
	return e
}

// WithCause adds a cause to an Error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithDetail adds a single detail to an Error.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// Error codes used across the core and the service layer.
const (
	ErrCodeUnknownColumn    = "UNKNOWN_COLUMN"
	ErrCodeNonNumericValue  = "NON_NUMERIC_VALUE"
	ErrCodeEmptyDataset     = "EMPTY_DATASET"
	ErrCodeChartFailed      = "CHART_FAILED"
	ErrCodeFilterFailed     = "FILTER_FAILED"
	ErrCodeExportFailed     = "EXPORT_FAILED"
	ErrCodeUploadNotFound   = "UPLOAD_NOT_FOUND"
	ErrCodeResultNotFound   = "RESULT_NOT_FOUND"
	ErrCodeCompletionFailed = "COMPLETION_FAILED"
	ErrCodeInvalidRequest   = "INVALID_REQUEST"
)

// NewError creates a new Error.
func NewError(errType ErrorType, code, message string) *Error {
	return &Error{
		Type:    errType,
		Code:    code,
		Message: message,
	}
}

// NewUnknownColumnError reports a reference to a column absent from the
// dataset.
func NewUnknownColumnError(column string) *Error {
	return NewError(ErrorTypeUnknownColumn, ErrCodeUnknownColumn,
		"column does not exist in the dataset").WithColumn(column)
}

// NewNonNumericError reports a value that failed numeric coercion where a
// number was required.
func NewNonNumericError(column string, value any) *Error {
	return NewError(ErrorTypeMalformedInput, ErrCodeNonNumericValue,
		fmt.Sprintf("value %v is not numeric", value)).WithColumn(column)
}

// NewInternalError wraps an unexpected failure caught at an operation
// boundary.
func NewInternalError(code string, cause error) *Error {
	msg := "internal computation error"
	if cause != nil {
		msg = cause.Error()
	}
	return NewError(ErrorTypeInternal, code, msg).WithCause(cause)
}

// IsErrorType reports whether err is a core Error of the given type.
func IsErrorType(err error, errType ErrorType) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Type == errType
	}
	return false
}
