// Copyright 2026 © The Taxis Authors
// SPDX-License-Identifier: Apache-2.0

package eventlog

import "context"

type correlationKey struct{}

// WithCorrelationID attaches a correlation id to the context so events emitted
// downstream (registrations triggered mid-workflow included) share it.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey{}, id)
}

// CorrelationID returns the correlation id from the context, if any.
func CorrelationID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(correlationKey{}).(string)
	return id
}
