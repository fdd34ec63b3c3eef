// Package shared contains common domain types, errors and events that are
// used across all domain packages. This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base domain errors that can be used for error checking with errors.Is().
var (
	// Validation errors
	ErrInvalidInput    = errors.New("invalid input")
	ErrEmptyValue      = errors.New("value cannot be empty")
	ErrNegativeValue   = errors.New("value cannot be negative")
	ErrValueOutOfRange = errors.New("value out of range")

	// State errors
	ErrInvalidState = errors.New("invalid state")

	// External service errors
	ErrExternalService = errors.New("external service error")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "course", "student", "registry"
	Op      string // Operation that failed, e.g., "Register", "Select"
	Kind    error  // Base error type for errors.Is() checking
	Message string // Human-readable message
	Err     error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching. Two domain errors match when they
// describe the same domain, operation and kind, so a wrapped copy produced by
// WithDetail still matches its sentinel.
func (e *DomainError) Is(target error) bool {
	var de *DomainError
	if errors.As(target, &de) {
		return e.Domain == de.Domain && e.Op == de.Op && e.Kind == de.Kind
	}
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// WithDetail returns a copy of the error carrying an underlying cause.
func (e *DomainError) WithDetail(err error) *DomainError {
	cp := *e
	cp.Err = err
	return &cp
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// Student and teacher errors
var (
	ErrInvalidStudent = NewDomainError("student", "Validate", ErrInvalidInput, "invalid student")
	ErrInvalidTeacher = NewDomainError("teacher", "Validate", ErrInvalidInput, "invalid teacher")
)

// Course errors
var (
	ErrInvalidCourse = NewDomainError("course", "Validate", ErrInvalidInput, "invalid course")
	ErrCourseFull    = NewDomainError("course", "Register", ErrInvalidState, "no seats left")
)

// Registry errors
var (
	// ErrInvalidSelection is reported for non-numeric or out-of-range indices.
	ErrInvalidSelection = NewDomainError("registry", "Select", ErrValueOutOfRange, "invalid selection")
)

// Event bus errors
var (
	ErrEventPublishFailed = NewDomainError("eventbus", "Publish", ErrExternalService, "failed to publish event")
)

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrEmptyValue) ||
		errors.Is(err, ErrNegativeValue) ||
		errors.Is(err, ErrValueOutOfRange)
}

// IsInvalidSelection checks if the error reports a bad menu selection.
func IsInvalidSelection(err error) bool {
	return errors.Is(err, ErrInvalidSelection)
}
