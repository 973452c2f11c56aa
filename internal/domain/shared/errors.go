// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages. This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base domain errors that can be used for error checking with errors.Is().
var (
	// Entity errors
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")
	ErrInvalidEntity = errors.New("invalid entity")

	// Validation errors
	ErrValidation      = errors.New("validation error")
	ErrInvalidID       = errors.New("invalid ID")
	ErrInvalidInput    = errors.New("invalid input")
	ErrEmptyValue      = errors.New("value cannot be empty")
	ErrNegativeValue   = errors.New("value cannot be negative")
	ErrValueOutOfRange = errors.New("value out of range")
	ErrInvalidFormat   = errors.New("invalid format")

	// State errors
	ErrInvalidState    = errors.New("invalid state")
	ErrStateTransition = errors.New("invalid state transition")

	// Authorization errors
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")

	// Storage errors
	ErrTransient           = errors.New("transient storage error")
	ErrUniqueViolation     = errors.New("unique constraint violation")
	ErrTransactionConflict = errors.New("transaction conflict")

	// External service errors
	ErrExternalService = errors.New("external service error")
	ErrTimeout         = errors.New("operation timeout")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "bulletin", "grading", "ranking"
	Op      string // Operation that failed, e.g., "Validate", "Publish"
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

// Is implements errors.Is() matching.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
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

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// FieldError describes a validation failure on a single input field.
// Callers receive it inside a ValidationError so the offending field can
// be surfaced in the response.
type FieldError struct {
	Field   string
	Message string
}

// ValidationError aggregates per-field validation failures.
// It matches ErrValidation via errors.Is().
type ValidationError struct {
	Fields []FieldError
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation error"
	}
	if len(e.Fields) == 1 {
		return fmt.Sprintf("validation error: %s: %s", e.Fields[0].Field, e.Fields[0].Message)
	}
	return fmt.Sprintf("validation error: %d invalid fields (first: %s)", len(e.Fields), e.Fields[0].Field)
}

// Is matches the ErrValidation sentinel.
func (e *ValidationError) Is(target error) bool {
	return errors.Is(ErrValidation, target)
}

// NewValidationError builds a ValidationError from field/message pairs.
func NewValidationError(fields ...FieldError) *ValidationError {
	return &ValidationError{Fields: fields}
}

// Bulletin domain errors
var (
	ErrBulletinNotFound       = NewDomainError("bulletin", "Find", ErrNotFound, "bulletin not found")
	ErrBulletinExists         = NewDomainError("bulletin", "Create", ErrAlreadyExists, "bulletin already exists for this student, year and term")
	ErrBulletinImmutable      = NewDomainError("bulletin", "Recompute", ErrInvalidState, "published or archived bulletins cannot be recomputed")
	ErrBulletinNotValidable   = NewDomainError("bulletin", "Validate", ErrStateTransition, "bulletin can only be validated from draft or pending")
	ErrBulletinNotPublishable = NewDomainError("bulletin", "Publish", ErrStateTransition, "bulletin cannot be published from its current status")
	ErrNotHomeroomTeacher     = NewDomainError("bulletin", "Authorize", ErrForbidden, "actor is not the homeroom teacher of this classroom")
	ErrBulletinNotVisible     = NewDomainError("bulletin", "Read", ErrForbidden, "bulletin is not visible to this actor")
)

// Grading domain errors
var (
	ErrInvalidScale        = NewDomainError("grading", "Normalize", ErrValueOutOfRange, "evaluation scale must be positive")
	ErrScoreOutOfScale     = NewDomainError("grading", "Validate", ErrValueOutOfRange, "score must be within [0, scale]")
	ErrNegativeWeight      = NewDomainError("grading", "Validate", ErrNegativeValue, "evaluation weight cannot be negative")
	ErrNegativeCoefficient = NewDomainError("grading", "Validate", ErrNegativeValue, "subject coefficient cannot be negative")
)

// Ranking domain errors
var (
	ErrDuplicateStudent   = NewDomainError("ranking", "Add", ErrAlreadyExists, "student already present in ranking table")
	ErrRankingNotComputed = NewDomainError("ranking", "Read", ErrInvalidState, "ranking table has not been computed")
)

// Classroom / roster errors
var (
	ErrClassroomNotFound = NewDomainError("classroom", "Find", ErrNotFound, "classroom not found")
	ErrStudentNotFound   = NewDomainError("classroom", "FindStudent", ErrNotFound, "student not found")
	ErrSubjectNotFound   = NewDomainError("classroom", "FindSubject", ErrNotFound, "subject not found")
	ErrNoHomeroomTeacher = NewDomainError("classroom", "CheckHomeroom", ErrInvalidState, "classroom has no homeroom teacher assigned")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsForbidden checks if the error is an authorization denial.
func IsForbidden(err error) bool {
	return errors.Is(err, ErrForbidden) || errors.Is(err, ErrUnauthorized)
}

// IsInvalidState checks if the error is a lifecycle/state error.
func IsInvalidState(err error) bool {
	return errors.Is(err, ErrInvalidState) || errors.Is(err, ErrStateTransition)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidID) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrEmptyValue) ||
		errors.Is(err, ErrNegativeValue) ||
		errors.Is(err, ErrValueOutOfRange) ||
		errors.Is(err, ErrInvalidFormat)
}

// IsRetryable checks if the operation can be retried.
// Only transient storage conditions qualify; validation, authorization and
// state errors are permanent by definition.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransient) ||
		errors.Is(err, ErrTransactionConflict) ||
		errors.Is(err, ErrTimeout)
}
