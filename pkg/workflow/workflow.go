// Copyright 2026 © The Taxis Authors
// SPDX-License-Identifier: Apache-2.0

// Package workflow executes ordered sequences of agent method invocations as
// one logical, auditable unit of work.
package workflow

import (
	"reflect"
	"time"
)

// Step is one workflow step: a target agent identity, a declared method name,
// and a typed input payload.
type Step struct {
	Agent  string `json:"agent" yaml:"agent"`
	Method string `json:"method" yaml:"method"`
	Input  any    `json:"input,omitempty" yaml:"input,omitempty"`
}

// Definition is an immutable workflow submitted by a caller per execution.
// BestEffort selects the continue-on-error failure policy for this workflow.
type Definition struct {
	Name       string `json:"name" yaml:"name"`
	BestEffort bool   `json:"best_effort,omitempty" yaml:"best_effort,omitempty"`
	Steps      []Step `json:"steps" yaml:"steps"`
}

// Status is the overall state of a workflow execution.
type Status string

const (
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// StepResult captures the outcome of one executed step.
type StepResult struct {
	Index      int       `json:"index"`
	Agent      string    `json:"agent"`
	Method     string    `json:"method"`
	Output     any       `json:"output,omitempty"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	// Err carries the typed error for programmatic inspection.
	Err error `json:"-"`
}

// ExecutionRecord is the result of one workflow execution. It is owned by the
// engine for the duration of Execute and handed to the caller afterwards; the
// core does not persist it.
type ExecutionRecord struct {
	CorrelationID string       `json:"correlation_id"`
	Name          string       `json:"name"`
	Status        Status       `json:"status"`
	Steps         []StepResult `json:"steps"`
	StartedAt     time.Time    `json:"started_at"`
	FinishedAt    time.Time    `json:"finished_at"`
}

// typeName returns the payload's type name for signature validation. A nil
// payload has no type.
func typeName(v any) string {
	if v == nil {
		return ""
	}
	return reflect.TypeOf(v).String()
}
