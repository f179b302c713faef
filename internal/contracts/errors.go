package contracts

import (
	"errors"
	"fmt"
)

// Error taxonomy shared by all battle components.
// Only ValidationError is fatal, and only to the single append call.
var (
	ErrExtractionFailure = errors.New("structured forecast not found in source output")
	ErrQuoteUnavailable  = errors.New("quote unavailable")
	ErrUpstreamCall      = errors.New("upstream call failed")
	ErrValidation        = errors.New("invalid forecast record")
	ErrAlreadySettled    = errors.New("record already settled")
	ErrRecordBusy        = errors.New("record settlement in progress")
	ErrNotFound          = errors.New("record not found")
)

// ValidationError malformed record field at ingestion
type ValidationError struct {
	Field  string
	Reason string
}

// NewValidationError creates a ValidationError
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s %s", ErrValidation.Error(), e.Field, e.Reason)
}

// Is matches ErrValidation
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// UpstreamError wraps a collaborator failure with the collaborator name
type UpstreamError struct {
	Source string
	Err    error
}

// Error implements the error interface
func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrUpstreamCall.Error(), e.Source, e.Err)
}

// Unwrap returns the underlying error
func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// Is matches ErrUpstreamCall
func (e *UpstreamError) Is(target error) bool {
	return target == ErrUpstreamCall
}
