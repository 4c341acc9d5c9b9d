// Package errors provides structured error types for astkg.
//
// This package defines error codes and types that enable:
//   - Consistent error handling across the codec, CLI and API
//   - Machine-readable error codes for programmatic handling
//   - Node and relation context on structural failures
//
// # Error Codes
//
// Error codes follow a hierarchical naming convention:
//   - INVALID_*: Input validation failures
//   - NOT_FOUND_*: Resource not found
//   - STRUCTURAL_*: Graph shape violations found while decoding
//   - INTERNAL_*: Unexpected internal errors
//
// # Usage
//
//	err := errors.New(errors.ErrCodeInvalidGraph, "graph has no root %q", root)
//	if errors.Is(err, errors.ErrCodeInvalidGraph) {
//	    // Handle validation error
//	}
//
//	// Structural failures name the node and relation
//	err := errors.Integrity("assign_3", "Value", "missing singular relation")
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
	ErrCodeInvalidInput   Code = "INVALID_INPUT"
	ErrCodeInvalidFormat  Code = "INVALID_FORMAT"
	ErrCodeInvalidPath    Code = "INVALID_PATH"
	ErrCodeInvalidGraph   Code = "INVALID_GRAPH"
	ErrCodeInvalidGraphID Code = "INVALID_GRAPH_ID"
	ErrCodeParse          Code = "PARSE_ERROR"

	// Resource not found errors
	ErrCodeNotFound      Code = "NOT_FOUND"
	ErrCodeGraphNotFound Code = "GRAPH_NOT_FOUND"
	ErrCodeFileNotFound  Code = "FILE_NOT_FOUND"

	// Codec errors
	ErrCodeStructuralIntegrity Code = "STRUCTURAL_INTEGRITY"
	ErrCodeDepthExceeded       Code = "DEPTH_EXCEEDED"

	// Backend errors
	ErrCodeStore   Code = "STORE_ERROR"
	ErrCodeTimeout Code = "TIMEOUT"

	// Internal errors
	ErrCodeInternal    Code = "INTERNAL_ERROR"
	ErrCodeUnsupported Code = "UNSUPPORTED_CONSTRUCT"
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

// coder is implemented by typed errors that carry a fixed code.
type coder interface {
	Code() Code
}

// Is reports whether err has the given error code.
// It unwraps the error chain looking for an *Error or a typed error
// exposing Code().
func Is(err error, code Code) bool {
	return GetCode(err) == code && code != ""
}

// GetCode extracts the error code from an error, if available.
// Returns empty string if nothing in the chain carries a code.
func GetCode(err error) Code {
	for err != nil {
		switch e := err.(type) {
		case *Error:
			return e.Code
		case coder:
			return e.Code()
		}
		err = errors.Unwrap(err)
	}
	return ""
}

// UserMessage returns a user-friendly message for the error.
// For *Error types, returns the message without the code prefix.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	var ie *IntegrityError
	if errors.As(err, &ie) {
		return ie.Reason
	}
	return err.Error()
}

// IntegrityError reports a graph that cannot be decoded: a required
// singular relation is missing, or an edge points at an absent node.
type IntegrityError struct {
	NodeID   string // Node whose reconstruction failed
	Relation string // Relation being resolved, empty when not relation-specific
	Reason   string
}

// Integrity creates an IntegrityError for the given node and relation.
func Integrity(nodeID, relation, format string, args ...any) *IntegrityError {
	return &IntegrityError{
		NodeID:   nodeID,
		Relation: relation,
		Reason:   fmt.Sprintf(format, args...),
	}
}

// Error implements the error interface.
func (e *IntegrityError) Error() string {
	if e.Relation == "" {
		return fmt.Sprintf("%s: node %s: %s", ErrCodeStructuralIntegrity, e.NodeID, e.Reason)
	}
	return fmt.Sprintf("%s: node %s, relation %s: %s", ErrCodeStructuralIntegrity, e.NodeID, e.Relation, e.Reason)
}

// Code returns the error code for this error type.
func (e *IntegrityError) Code() Code {
	return ErrCodeStructuralIntegrity
}

// DepthError is returned when recursion passes the configured limit.
type DepthError struct {
	Limit  int
	NodeID string // Node being visited when the limit tripped (decode only)
}

// Error implements the error interface.
func (e *DepthError) Error() string {
	if e.NodeID != "" {
		return fmt.Sprintf("%s: nesting deeper than %d at node %s", ErrCodeDepthExceeded, e.Limit, e.NodeID)
	}
	return fmt.Sprintf("%s: nesting deeper than %d", ErrCodeDepthExceeded, e.Limit)
}

// Code returns the error code for this error type.
func (e *DepthError) Code() Code {
	return ErrCodeDepthExceeded
}
