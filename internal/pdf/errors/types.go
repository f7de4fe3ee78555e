package errors

import (
	stderrors "errors"
	"fmt"
)

// PDFError is a document processing error carrying its taxonomy and the
// location (field, page) it relates to
type PDFError struct {
	Type    ErrorType `json:"type"`
	Message string    `json:"message"`
	Context string    `json:"context,omitempty"`
	Field   string    `json:"field,omitempty"`
	Page    int       `json:"page,omitempty"`
	Err     error     `json:"-"`
}

// ErrorType represents the categories of failure of the form engine
type ErrorType int

const (
	ErrorTypeUnknown ErrorType = iota
	// ErrorTypePrecondition is fatal and raised immediately, never retried
	ErrorTypePrecondition
	// ErrorTypePartialOperation covers a single field, font or image failure
	ErrorTypePartialOperation
	// ErrorTypeCorruptInput is raised when the engine rejects a byte stream
	ErrorTypeCorruptInput
	// ErrorTypeResource covers temp files and other scoped resources
	ErrorTypeResource
)

// Common errors
var (
	ErrNotLoaded       = New(ErrorTypePrecondition, "document not loaded")
	ErrDuplicateField  = New(ErrorTypePrecondition, "duplicate field name")
	ErrFieldNotFound   = New(ErrorTypePrecondition, "field not found in document")
	ErrInvalidGeometry = New(ErrorTypePrecondition, "field geometry out of page bounds")
)

// Error implements the error interface
func (e *PDFError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Type.String(), e.Message)
	if e.Field != "" {
		msg += fmt.Sprintf(" (field %q)", e.Field)
	}
	if e.Page > 0 {
		msg += fmt.Sprintf(" (page %d)", e.Page)
	}
	if e.Context != "" {
		msg += ": " + e.Context
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause
func (e *PDFError) Unwrap() error {
	return e.Err
}

// Is reports sentinel equality by type and message so that sentinels
// decorated with WithField or WithPage still match
func (e *PDFError) Is(target error) bool {
	var t *PDFError
	if !stderrors.As(target, &t) {
		return false
	}
	return t.Type == e.Type && t.Message == e.Message
}

// String returns a string representation of the ErrorType
func (et ErrorType) String() string {
	switch et {
	case ErrorTypePrecondition:
		return "PRECONDITION"
	case ErrorTypePartialOperation:
		return "PARTIAL_OPERATION"
	case ErrorTypeCorruptInput:
		return "CORRUPT_INPUT"
	case ErrorTypeResource:
		return "RESOURCE"
	default:
		return "UNKNOWN"
	}
}

// IsRecoverable reports whether processing may continue past an error of this type
func (et ErrorType) IsRecoverable() bool {
	return et == ErrorTypePartialOperation
}

// New creates a new PDFError
func New(errorType ErrorType, message string) *PDFError {
	return &PDFError{
		Type:    errorType,
		Message: message,
	}
}

// Wrap wraps a cause as a PDFError
func Wrap(errorType ErrorType, message string, err error) *PDFError {
	return &PDFError{
		Type:    errorType,
		Message: message,
		Err:     err,
	}
}

// WithField returns a copy of the error bound to a field name
func (e *PDFError) WithField(name string) *PDFError {
	c := *e
	c.Field = name
	return &c
}

// WithPage returns a copy of the error bound to a page number
func (e *PDFError) WithPage(page int) *PDFError {
	c := *e
	c.Page = page
	return &c
}

// WithContext returns a copy of the error with additional context
func (e *PDFError) WithContext(context string) *PDFError {
	c := *e
	c.Context = context
	return &c
}

// TypeOf returns the ErrorType of the first PDFError in the chain
func TypeOf(err error) ErrorType {
	var pe *PDFError
	if stderrors.As(err, &pe) {
		return pe.Type
	}
	return ErrorTypeUnknown
}
