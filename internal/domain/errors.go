package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Application error codes
const (
	EINVALID   = "invalid"   // Invalid input or validation failure
	ENOTFOUND  = "not_found" // Resource not found
	ECONFLICT  = "conflict"  // Resource conflict (e.g., duplicate)
	EFORBIDDEN = "forbidden" // Permission denied
	EINTERNAL  = "internal"  // Internal server error
	ENOTIMPL   = "not_impl"  // Not implemented

	// Engine-specific codes
	EBLOCKED   = "blocked"            // Pack generation blocked by readiness rules
	EUNITMATCH = "unit_mismatch"      // Measured unit differs from permit unit
	EREFMATCH  = "reference_mismatch" // Reference conditions differ from permit
)

// Error represents an application error with structured information.
type Error struct {
	Code    string // Machine-readable error code
	Op      string // Operation that failed (e.g., "generation.generate")
	Message string // Human-readable message
	Err     error  // Underlying error
}

func (e *Error) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Errorf creates a new Error with the given code, operation, and formatted message.
func Errorf(code, op, format string, args ...interface{}) *Error {
	return &Error{
		Code:    code,
		Op:      op,
		Message: fmt.Sprintf(format, args...),
	}
}

// ErrorCode returns the code of the root error, or EINTERNAL if none.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	var be *BlockedError
	if errors.As(err, &be) {
		return EBLOCKED
	}
	return EINTERNAL
}

// ErrorMessage returns the human-readable message of the error.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		// For internal errors, return generic message
		if e.Code == EINTERNAL {
			return "An internal error occurred. Please try again later."
		}
		return e.Message
	}
	var be *BlockedError
	if errors.As(err, &be) {
		return be.Error()
	}
	return "An internal error occurred. Please try again later."
}

// ErrorOp returns the operation of the root error, if any.
func ErrorOp(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Op
	}
	return ""
}

// Convenience constructors for common error types

// NotFound creates a not found error.
func NotFound(op, resource, id string) *Error {
	return &Error{
		Code:    ENOTFOUND,
		Op:      op,
		Message: fmt.Sprintf("%s with ID %q not found", resource, id),
	}
}

// Invalid creates a validation error.
func Invalid(op, message string) *Error {
	return &Error{
		Code:    EINVALID,
		Op:      op,
		Message: message,
	}
}

// Conflict creates a conflict error.
func Conflict(op, message string) *Error {
	return &Error{
		Code:    ECONFLICT,
		Op:      op,
		Message: message,
	}
}

// Forbidden creates a permission error.
func Forbidden(op, message string) *Error {
	return &Error{
		Code:    EFORBIDDEN,
		Op:      op,
		Message: message,
	}
}

// Internal creates an internal error, wrapping the underlying error.
func Internal(err error, op, message string) *Error {
	return &Error{
		Code:    EINTERNAL,
		Op:      op,
		Message: message,
		Err:     err,
	}
}

// UnitMismatch creates an error for a measurement whose unit differs from the
// permit limit's unit. Units are never converted automatically; a mismatch is
// always surfaced for human review.
func UnitMismatch(op, measuredUnit, permitUnit string) *Error {
	return &Error{
		Code:    EUNITMATCH,
		Op:      op,
		Message: fmt.Sprintf("measured unit %q does not match permit unit %q; unit conversion requires human review", measuredUnit, permitUnit),
	}
}

// ReferenceConditionMismatch creates an error for a measurement taken under
// reference conditions that differ from those recorded on the permit.
func ReferenceConditionMismatch(op, measured, permit string) *Error {
	return &Error{
		Code:    EREFMATCH,
		Op:      op,
		Message: fmt.Sprintf("measurement reference conditions %q do not match permit reference conditions %q", measured, permit),
	}
}

// BlockedError is returned by pack generation when one or more blocking
// readiness rules failed. It enumerates every blocking failure so the caller
// can present an actionable list; it is a user-facing validation outcome, not
// a system fault.
type BlockedError struct {
	Op       string
	Failures []RuleEvaluation // every entry has Result == RuleResultFail and Blocking == true
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("%s: pack generation blocked by %d rule(s): %s",
		e.Op, len(e.Failures), strings.Join(e.BlockedRuleIDs(), ", "))
}

// BlockedRuleIDs returns the ids of the rules that blocked generation.
func (e *BlockedError) BlockedRuleIDs() []string {
	ids := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		ids = append(ids, f.RuleID)
	}
	return ids
}
