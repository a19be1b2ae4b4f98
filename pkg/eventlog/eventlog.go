// Copyright 2026 © The Taxis Authors
// SPDX-License-Identifier: Apache-2.0

// Package eventlog records registration, invocation, and error events emitted
// by the agent registry and the workflow engine. Appends are synchronous:
// every event is observable via Query before the originating call returns.
package eventlog

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// Kind classifies an event entry.
type Kind string

const (
	KindRegistration Kind = "registration"
	KindInvocation   Kind = "invocation"
	KindError        Kind = "error"
)

// Entry is one append-only event. Entries are never mutated or deleted.
type Entry struct {
	Timestamp     time.Time      `json:"timestamp"`
	AgentID       string         `json:"agent_id"`
	Kind          Kind           `json:"kind"`
	CorrelationID string         `json:"correlation_id,omitempty"`
	Payload       map[string]any `json:"payload,omitempty"`
}

// Filter limits event queries. Zero-valued fields match everything.
type Filter struct {
	AgentID       string
	CorrelationID string
	Kind          Kind
	Limit         int
}

// Log is the append-only, queryable event record.
type Log interface {
	Append(ctx context.Context, entry Entry) error
	Query(ctx context.Context, filter Filter) ([]Entry, error)
}

// MemoryLog keeps events in memory, in append order.
type MemoryLog struct {
	mu      sync.RWMutex
	entries []Entry
}

// NewMemoryLog returns an in-memory event log.
func NewMemoryLog() *MemoryLog {
	return &MemoryLog{}
}

// Append adds an entry. A zero timestamp is stamped with the current time.
func (l *MemoryLog) Append(_ context.Context, entry Entry) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, entry)
	return nil
}

// Query returns entries matching the filter, oldest first.
func (l *MemoryLog) Query(_ context.Context, filter Filter) ([]Entry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Entry, 0, len(l.entries))
	for _, entry := range l.entries {
		if !matches(entry, filter) {
			continue
		}
		out = append(out, entry)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}

func matches(entry Entry, filter Filter) bool {
	if filter.AgentID != "" && entry.AgentID != filter.AgentID {
		return false
	}
	if filter.CorrelationID != "" && entry.CorrelationID != filter.CorrelationID {
		return false
	}
	if filter.Kind != "" && entry.Kind != filter.Kind {
		return false
	}
	return true
}

// encodePayload marshals the event payload into JSON.
func encodePayload(payload map[string]any) ([]byte, error) {
	if payload == nil {
		return []byte("null"), nil
	}
	return json.Marshal(payload)
}

// decodePayload parses a JSON event payload.
func decodePayload(raw []byte) (map[string]any, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
