// Copyright 2026 © The Taxis Authors
// SPDX-License-Identifier: Apache-2.0

package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/jmaurel/taxis/pkg/descriptor"
	"github.com/jmaurel/taxis/pkg/errors"
	"github.com/jmaurel/taxis/pkg/eventlog"
	"github.com/jmaurel/taxis/pkg/registry"
	"github.com/jmaurel/taxis/pkg/resilience"
	"github.com/jmaurel/taxis/pkg/telemetry"
)

// Engine executes workflow definitions against the agent registry. Steps run
// in declared order; two concurrent Execute calls proceed independently.
type Engine struct {
	registry *registry.Registry
	store    *descriptor.Store
	events   eventlog.Log
	metrics  *telemetry.CoreMetrics
	tracer   trace.Tracer

	stepTimeout     time.Duration
	continueOnError bool
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithStepTimeout bounds every agent invocation. Zero disables the boundary.
func WithStepTimeout(d time.Duration) EngineOption {
	return func(e *Engine) {
		e.stepTimeout = d
	}
}

// WithContinueOnError makes continue-on-error the default failure policy.
// Individual definitions can still opt in via BestEffort.
func WithContinueOnError(v bool) EngineOption {
	return func(e *Engine) {
		e.continueOnError = v
	}
}

// WithMetrics attaches orchestration metrics.
func WithMetrics(metrics *telemetry.CoreMetrics) EngineOption {
	return func(e *Engine) {
		e.metrics = metrics
	}
}

// NewEngine builds a workflow engine over the registry and descriptor catalog.
func NewEngine(reg *registry.Registry, store *descriptor.Store, events eventlog.Log, opts ...EngineOption) *Engine {
	e := &Engine{
		registry: reg,
		store:    store,
		events:   events,
		tracer:   otel.Tracer("taxis/workflow"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs the definition's steps in declared order and returns the
// execution record. Step failures are reported inside the record per the
// workflow's failure policy; the returned error is reserved for graph and
// protocol defects, which are never swallowed. In both cases the record
// retains every completed step result for partial-result inspection.
func (e *Engine) Execute(ctx context.Context, def Definition) (*ExecutionRecord, error) {
	if len(def.Steps) == 0 {
		return nil, errors.New(errors.CodeInvalidInput, "workflow has no steps", nil)
	}

	record := &ExecutionRecord{
		CorrelationID: uuid.NewString(),
		Name:          def.Name,
		Status:        StatusRunning,
		StartedAt:     time.Now().UTC(),
	}
	ctx = eventlog.WithCorrelationID(ctx, record.CorrelationID)

	ctx, span := e.tracer.Start(ctx, "Workflow.Execute", trace.WithAttributes(
		attribute.String(telemetry.AttrWorkflowName, def.Name),
		attribute.String(telemetry.AttrCorrelationID, record.CorrelationID),
	))
	defer span.End()

	log := slog.Default()
	log.InfoContext(ctx, "workflow.start",
		slog.String("workflow", def.Name),
		slog.String("correlation_id", record.CorrelationID),
		slog.Int("steps", len(def.Steps)),
	)

	continueOnError := def.BestEffort || e.continueOnError
	failed := false

	for i, step := range def.Steps {
		result, err := e.executeStep(ctx, record.CorrelationID, i, step)
		record.Steps = append(record.Steps, result)

		if err != nil {
			// Graph and protocol errors are defects: fail the execution and
			// surface them regardless of policy.
			record.Status = StatusFailed
			record.FinishedAt = time.Now().UTC()
			log.ErrorContext(ctx, "workflow.aborted",
				slog.String("workflow", def.Name),
				slog.String("correlation_id", record.CorrelationID),
				slog.Int("step", i),
				slog.String("error", err.Error()),
			)
			return record, err
		}
		if result.Err != nil {
			failed = true
			if !continueOnError {
				break
			}
		}
	}

	record.FinishedAt = time.Now().UTC()
	if failed {
		record.Status = StatusFailed
	} else {
		record.Status = StatusSucceeded
	}
	span.SetAttributes(attribute.String(telemetry.AttrWorkflowStatus, string(record.Status)))
	log.InfoContext(ctx, "workflow.finished",
		slog.String("workflow", def.Name),
		slog.String("correlation_id", record.CorrelationID),
		slog.String("status", string(record.Status)),
	)
	return record, nil
}

// executeStep runs one step. The second return value is non-nil only for
// graph and protocol errors; agent failures are contained in the result.
func (e *Engine) executeStep(ctx context.Context, correlationID string, index int, step Step) (StepResult, error) {
	result := StepResult{
		Index:     index,
		Agent:     step.Agent,
		Method:    step.Method,
		StartedAt: time.Now().UTC(),
	}

	ctx, span := e.tracer.Start(ctx, "Workflow.Step", trace.WithAttributes(
		telemetry.StepAttributes(correlationID, step.Agent, step.Method, index)...,
	))
	defer span.End()

	finish := func() StepResult {
		result.FinishedAt = time.Now().UTC()
		return result
	}

	d, ok := e.store.Get(step.Agent)
	if !ok {
		err := errors.NewUnknownAgent(step.Agent)
		result.Err, result.Error = err, err.Error()
		e.appendStepEvent(ctx, step, index, eventlog.KindError, map[string]any{"error": err.Error()})
		return finish(), err
	}
	spec, ok := d.Method(step.Method)
	if !ok {
		err := errors.New(errors.CodeProtocolViolation,
			fmt.Sprintf("agent %q declares no method %q", step.Agent, step.Method), nil).
			WithContext("step", index)
		result.Err, result.Error = err, err.Error()
		e.appendStepEvent(ctx, step, index, eventlog.KindError, map[string]any{"error": err.Error()})
		return finish(), err
	}
	if err := checkType("input", spec.Input, step.Input, step, index); err != nil {
		result.Err, result.Error = err, err.Error()
		e.appendStepEvent(ctx, step, index, eventlog.KindError, map[string]any{"error": err.Error()})
		return finish(), err
	}

	inst, err := e.registry.Get(ctx, step.Agent)
	if err != nil {
		// Graph errors surface; construction failures follow the step policy.
		if errors.HasCode(err, errors.CodeCyclicDependency) || errors.HasCode(err, errors.CodeUnknownAgent) {
			result.Err, result.Error = err, err.Error()
			e.appendStepEvent(ctx, step, index, eventlog.KindError, map[string]any{"error": err.Error()})
			return finish(), err
		}
		stepErr := stepExecutionError(step, index, err)
		result.Err, result.Error = stepErr, stepErr.Error()
		e.appendStepEvent(ctx, step, index, eventlog.KindError, map[string]any{"error": stepErr.Error()})
		e.metrics.RecordStep(ctx, step.Agent, step.Method, false)
		return finish(), nil
	}

	output, err := resilience.WithTimeoutResult(ctx, resilience.TimeoutConfig{Duration: e.stepTimeout},
		func(ctx context.Context) (any, error) {
			return inst.Invoke(ctx, step.Method, step.Input)
		})
	if err != nil {
		stepErr := stepExecutionError(step, index, err)
		result.Err, result.Error = stepErr, stepErr.Error()
		e.appendStepEvent(ctx, step, index, eventlog.KindError, map[string]any{"error": stepErr.Error()})
		e.metrics.RecordStep(ctx, step.Agent, step.Method, false)
		return finish(), nil
	}

	if err := checkType("output", spec.Output, output, step, index); err != nil {
		result.Err, result.Error = err, err.Error()
		e.appendStepEvent(ctx, step, index, eventlog.KindError, map[string]any{"error": err.Error()})
		return finish(), err
	}

	result.Output = output
	e.appendStepEvent(ctx, step, index, eventlog.KindInvocation, map[string]any{
		"method": step.Method,
	})
	e.metrics.RecordStep(ctx, step.Agent, step.Method, true)
	return finish(), nil
}

func (e *Engine) appendStepEvent(ctx context.Context, step Step, index int, kind eventlog.Kind, payload map[string]any) {
	if payload == nil {
		payload = map[string]any{}
	}
	payload["step"] = index
	entry := eventlog.Entry{
		AgentID:       step.Agent,
		Kind:          kind,
		CorrelationID: eventlog.CorrelationID(ctx),
		Payload:       payload,
	}
	if err := e.events.Append(ctx, entry); err != nil {
		slog.Default().ErrorContext(ctx, "workflow.event_append_failed",
			slog.String("agent_id", step.Agent),
			slog.String("error", err.Error()),
		)
	}
}

// checkType validates a payload's concrete type against the declared type
// name. An empty declaration accepts any payload.
func checkType(direction, declared string, payload any, step Step, index int) error {
	if declared == "" {
		return nil
	}
	actual := typeName(payload)
	if actual == declared {
		return nil
	}
	return errors.New(errors.CodeProtocolViolation,
		fmt.Sprintf("step %d %s.%s: %s type mismatch: declared %q, got %q",
			index, step.Agent, step.Method, direction, declared, actual), nil).
		WithContext("step", index).
		WithContext("expected_type", declared).
		WithContext("actual_type", actual)
}

func stepExecutionError(step Step, index int, cause error) *errors.TaxisError {
	code := errors.CodeStepExecution
	msg := fmt.Sprintf("step %d %s.%s failed", index, step.Agent, step.Method)
	te := errors.New(code, msg, cause).WithContext("step", index)
	if errors.HasCode(cause, errors.CodeTimeout) {
		te.WithContext("cause", "timeout")
	}
	return te
}
