// Copyright 2026 © The Taxis Authors
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// CoreMetrics tracks orchestration counters for production monitoring.
type CoreMetrics struct {
	constructions    metric.Int64Counter
	stepExecutions   metric.Int64Counter
	providerFallback metric.Int64Counter
}

// NewCoreMetrics creates orchestration metrics on the global meter provider.
func NewCoreMetrics() (*CoreMetrics, error) {
	meter := otel.Meter("taxis/core")

	constructions, err := meter.Int64Counter(
		"taxis.registry.constructions",
		metric.WithDescription("Agent constructions by identity and outcome"),
	)
	if err != nil {
		return nil, err
	}

	stepExecutions, err := meter.Int64Counter(
		"taxis.workflow.steps",
		metric.WithDescription("Workflow step executions by outcome"),
	)
	if err != nil {
		return nil, err
	}

	providerFallback, err := meter.Int64Counter(
		"taxis.provider.fallbacks",
		metric.WithDescription("Reference-data loads served from a fallback backend"),
	)
	if err != nil {
		return nil, err
	}

	return &CoreMetrics{
		constructions:    constructions,
		stepExecutions:   stepExecutions,
		providerFallback: providerFallback,
	}, nil
}

// RecordConstruction counts one agent construction attempt.
func (m *CoreMetrics) RecordConstruction(ctx context.Context, identity string, ok bool) {
	if m == nil {
		return
	}
	m.constructions.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrAgentID, identity),
		attribute.Bool("taxis.outcome.ok", ok),
	))
}

// RecordStep counts one workflow step execution.
func (m *CoreMetrics) RecordStep(ctx context.Context, agentID, method string, ok bool) {
	if m == nil {
		return
	}
	m.stepExecutions.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrAgentID, agentID),
		attribute.String(AttrStepMethod, method),
		attribute.Bool("taxis.outcome.ok", ok),
	))
}

// RecordFallback counts one provider load that fell back to another backend.
func (m *CoreMetrics) RecordFallback(ctx context.Context, domain, origin string) {
	if m == nil {
		return
	}
	m.providerFallback.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrProviderDomain, domain),
		attribute.String(AttrProviderOrigin, origin),
	))
}
