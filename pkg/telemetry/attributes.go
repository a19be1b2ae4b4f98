// Copyright 2026 © The Taxis Authors
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Semantic conventions for Taxis orchestration telemetry.
const (
	// Agent attributes
	AttrAgentID    = "taxis.agent.id"
	AttrAgentState = "taxis.agent.state"

	// Workflow attributes
	AttrWorkflowName   = "taxis.workflow.name"
	AttrWorkflowStatus = "taxis.workflow.status"
	AttrCorrelationID  = "taxis.workflow.correlation_id"
	AttrStepIndex      = "taxis.step.index"
	AttrStepMethod     = "taxis.step.method"

	// Provider attributes
	AttrProviderDomain  = "taxis.provider.domain"
	AttrProviderBackend = "taxis.provider.backend"
	AttrProviderOrigin  = "taxis.provider.origin"
	AttrProviderRecords = "taxis.provider.record_count"

	// Event attributes
	AttrEventKind = "taxis.event.kind"
)

// AgentAttributes returns common attributes for registry spans.
func AgentAttributes(identity, state string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(AttrAgentID, identity),
	}
	if state != "" {
		attrs = append(attrs, attribute.String(AttrAgentState, state))
	}
	return attrs
}

// StepAttributes returns attributes for a workflow step span.
func StepAttributes(correlationID, agentID, method string, index int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrCorrelationID, correlationID),
		attribute.String(AttrAgentID, agentID),
		attribute.String(AttrStepMethod, method),
		attribute.Int(AttrStepIndex, index),
	}
}

// ProviderAttributes returns attributes for reference-data provider spans.
func ProviderAttributes(domain, backend, origin string, records int) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(AttrProviderDomain, domain),
	}
	if backend != "" {
		attrs = append(attrs, attribute.String(AttrProviderBackend, backend))
	}
	if origin != "" {
		attrs = append(attrs, attribute.String(AttrProviderOrigin, origin))
	}
	if records >= 0 {
		attrs = append(attrs, attribute.Int(AttrProviderRecords, records))
	}
	return attrs
}
