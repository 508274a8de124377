package types

import (
	"fmt"
	"strings"
)

// NotFoundError indicates a lineage query found nothing when a single result
// was required.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string { return e.Message }

// NewNotFoundError formats a NotFoundError.
func NewNotFoundError(format string, args ...any) *NotFoundError {
	return &NotFoundError{Message: fmt.Sprintf(format, args...)}
}

// UniqueViolationError indicates a business-key collision on insert.
type UniqueViolationError struct {
	Table      string
	Constraint string
	Message    string
}

func (e *UniqueViolationError) Error() string { return e.Message }

// ConflictError indicates one or more relocation destinations already hold a
// different object. The whole relocation is rejected before any file moves.
type ConflictError struct {
	Collisions []FileLocation
}

func (e *ConflictError) Error() string {
	uris := make([]string, len(e.Collisions))
	for i, c := range e.Collisions {
		uris[i] = c.URI()
	}
	return fmt.Sprintf("destination objects already exist: %s", strings.Join(uris, ", "))
}

// ValidationError indicates malformed destination rules or missing required
// fields. Avoiding it is the caller's responsibility.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// NewValidationError formats a ValidationError.
func NewValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// PartialFailureError indicates a relocation ran to completion but some files
// could not be moved. Result.Files is the canonical final location of every
// file; the recorded stores already match it.
type PartialFailureError struct {
	Reason string
	Result *RelocationResult
}

func (e *PartialFailureError) Error() string {
	return fmt.Sprintf("relocation of granule %s completed with %d failed file(s): %s",
		e.Result.GranuleID, len(e.Result.Errors), e.Reason)
}
