// Copyright 2026 © The Taxis Authors
// SPDX-License-Identifier: Apache-2.0

// Package errors provides typed error handling with rich context for Taxis.
package errors

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ErrorCode classifies Taxis errors for monitoring and recovery.
type ErrorCode string

const (
	// CodeInternal indicates an internal system error.
	CodeInternal ErrorCode = "INTERNAL_ERROR"

	// CodeInvalidInput indicates the input was invalid.
	CodeInvalidInput ErrorCode = "INVALID_INPUT"

	// CodeUnknownAgent indicates an agent identity is not in the descriptor catalog.
	CodeUnknownAgent ErrorCode = "UNKNOWN_AGENT"

	// CodeCyclicDependency indicates the dependency graph contains a cycle.
	CodeCyclicDependency ErrorCode = "CYCLIC_DEPENDENCY"

	// CodeConstructionFailed indicates an agent could not be constructed or connected.
	CodeConstructionFailed ErrorCode = "CONSTRUCTION_FAILED"

	// CodeProtocolViolation indicates a payload did not match a declared signature.
	CodeProtocolViolation ErrorCode = "PROTOCOL_VIOLATION"

	// CodeStepExecution indicates a workflow step failed during invocation.
	CodeStepExecution ErrorCode = "STEP_EXECUTION"

	// CodeTimeout indicates an operation exceeded its time limit.
	CodeTimeout ErrorCode = "TIMEOUT"

	// CodeBackendUnavailable indicates a reference-data backend could not serve a load.
	CodeBackendUnavailable ErrorCode = "BACKEND_UNAVAILABLE"

	// CodeProviderUnavailable indicates every backend for a domain failed.
	CodeProviderUnavailable ErrorCode = "PROVIDER_UNAVAILABLE"

	// CodeNotFound indicates a resource was not found.
	CodeNotFound ErrorCode = "NOT_FOUND"
)

// TaxisError is a typed error with rich context for observability.
// It implements the error interface and can be unwrapped with errors.As().
type TaxisError struct {
	Code        ErrorCode
	Message     string
	Err         error
	Context     map[string]interface{}
	Attributes  map[string]string
	Recoverable bool
	StatusCode  int
}

// Error implements the error interface.
func (e *TaxisError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap implements errors.Unwrap for error chain traversal.
func (e *TaxisError) Unwrap() error {
	return e.Err
}

// MarshalJSON implements json.Marshaler for structured logging.
func (e *TaxisError) MarshalJSON() ([]byte, error) {
	type Alias TaxisError
	return json.Marshal(&struct {
		Message     string `json:"message"`
		Code        string `json:"code"`
		Err         string `json:"error,omitempty"`
		Recoverable bool   `json:"recoverable"`
		*Alias
	}{
		Message:     e.Error(),
		Code:        string(e.Code),
		Err:         fmt.Sprintf("%v", e.Err),
		Recoverable: e.Recoverable,
		Alias:       (*Alias)(e),
	})
}

// New creates a new TaxisError with the given code, message, and cause.
func New(code ErrorCode, msg string, cause error) *TaxisError {
	return &TaxisError{
		Code:       code,
		Message:    msg,
		Err:        cause,
		Context:    make(map[string]interface{}),
		Attributes: make(map[string]string),
		StatusCode: codeToStatusCode(code),
	}
}

// WithContext adds a key-value pair to the error context.
// Returns the error for method chaining.
func (e *TaxisError) WithContext(key string, value interface{}) *TaxisError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithAttribute adds a string attribute for OTEL traces.
// Returns the error for method chaining.
func (e *TaxisError) WithAttribute(key, value string) *TaxisError {
	if e.Attributes == nil {
		e.Attributes = make(map[string]string)
	}
	e.Attributes[key] = value
	return e
}

// WithRecoverable sets whether the error can be recovered from.
// Returns the error for method chaining.
func (e *TaxisError) WithRecoverable(recoverable bool) *TaxisError {
	e.Recoverable = recoverable
	return e
}

// AsTaxisError attempts to convert an error to a TaxisError.
// Returns the error as TaxisError if it is one, or wraps it otherwise.
func AsTaxisError(err error) *TaxisError {
	if err == nil {
		return nil
	}
	if te, ok := err.(*TaxisError); ok {
		return te
	}
	return New(CodeInternal, "wrapped error", err)
}

// HasCode reports whether err is (or wraps) a TaxisError with the given code.
func HasCode(err error, code ErrorCode) bool {
	for err != nil {
		if te, ok := err.(*TaxisError); ok && te.Code == code {
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// NewCyclicDependency builds a CYCLIC_DEPENDENCY error naming the full cycle path.
func NewCyclicDependency(path []string) *TaxisError {
	return New(CodeCyclicDependency,
		fmt.Sprintf("dependency cycle: %s", strings.Join(path, " -> ")), nil).
		WithContext("path", path)
}

// NewUnknownAgent builds an UNKNOWN_AGENT error for the given identity.
func NewUnknownAgent(identity string) *TaxisError {
	return New(CodeUnknownAgent,
		fmt.Sprintf("agent %q not found in descriptor catalog", identity), nil).
		WithAttribute("agent.id", identity)
}

// codeToStatusCode maps error codes to HTTP status codes.
func codeToStatusCode(code ErrorCode) int {
	switch code {
	case CodeNotFound, CodeUnknownAgent:
		return 404 // NOT_FOUND
	case CodeInvalidInput, CodeProtocolViolation, CodeCyclicDependency:
		return 400 // INVALID_ARGUMENT
	case CodeTimeout:
		return 408 // DEADLINE_EXCEEDED
	case CodeBackendUnavailable, CodeProviderUnavailable:
		return 503 // UNAVAILABLE
	default:
		return 500 // INTERNAL
	}
}
