// Package errors provides structured error types for geolod.
//
// This package defines error codes and types that enable:
//   - Feature- and group-scoped failures that can be collected per stage
//   - Machine-readable error codes for programmatic handling
//   - User-friendly error messages in the CLI
//
// # Error Codes
//
// Error codes follow a hierarchical naming convention:
//   - INVALID_*: Input or configuration validation failures
//   - *_FAILED / *_RESULT: Geometry pipeline failures scoped to one feature or group
//   - STORE_* / INTERNAL_*: Collaborator and unexpected failures
//
// # Usage
//
//	err := errors.New(errors.ErrCodeEmptyMerge, "group %s collapsed to zero area", key)
//	if errors.Is(err, errors.ErrCodeEmptyMerge) {
//	    // Handle the collapsed group
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeProjection, origErr, "feature %s", id)
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Input validation errors
	ErrCodeInvalidInput        Code = "INVALID_INPUT"
	ErrCodeInvalidConfig       Code = "INVALID_CONFIG"
	ErrCodeInvalidPath         Code = "INVALID_PATH"
	ErrCodeUnsupportedGeometry Code = "UNSUPPORTED_GEOMETRY"
	ErrCodeSchemaMismatch      Code = "SCHEMA_MISMATCH"

	// Collaborator errors
	ErrCodeInputMissing Code = "INPUT_MISSING"
	ErrCodeNotFound     Code = "NOT_FOUND"
	ErrCodeStore        Code = "STORE_ERROR"

	// Geometry pipeline errors
	ErrCodeGeometryRepair Code = "GEOMETRY_REPAIR_FAILED"
	ErrCodeEmptyMerge     Code = "EMPTY_MERGE_RESULT"
	ErrCodeProjection     Code = "PROJECTION_FAILED"

	// Internal errors
	ErrCodeInternal Code = "INTERNAL_ERROR"
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message
	Cause   error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Is reports whether err has the given error code.
// It unwraps the error chain looking for an *Error with a matching code.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// GetCode extracts the error code from an error, if available.
// Returns empty string if the error is not an *Error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// UserMessage returns a user-friendly message for the error.
// For *Error types, returns the message without the code prefix.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		if e.Cause != nil {
			return fmt.Sprintf("%s: %v", e.Message, e.Cause)
		}
		return e.Message
	}
	return err.Error()
}

// IsFeatureScoped reports whether err describes a failure that affects a
// single feature or merge group rather than the whole run.
func IsFeatureScoped(err error) bool {
	switch GetCode(err) {
	case ErrCodeGeometryRepair, ErrCodeEmptyMerge, ErrCodeProjection,
		ErrCodeSchemaMismatch, ErrCodeUnsupportedGeometry:
		return true
	}
	return false
}
