// Copyright 2026 © The Taxis Authors
// SPDX-License-Identifier: Apache-2.0

// Package registry owns the live agent population: it constructs agents on
// demand in dependency order, enforces the lifecycle state machine, and keeps
// at most one ready instance per identity.
package registry

import (
	"context"
	"sync"
	"time"

	"github.com/jmaurel/taxis/pkg/errors"
)

// Agent is the contract every orchestrated agent implements. The core never
// inspects an agent beyond this contract: agents are black boxes addressed by
// identity and invoked by declared method name.
type Agent interface {
	// Connect runs the agent's startup hook. It may call reg.Get for the
	// agent's declared dependencies; those are ready by construction order.
	Connect(ctx context.Context, reg *Registry) error

	// Disconnect releases resources the agent exclusively owns.
	Disconnect(ctx context.Context) error

	// Invoke calls a declared method with a typed input payload.
	Invoke(ctx context.Context, method string, input any) (any, error)
}

// Factory constructs the underlying agent implementation from its static
// configuration. Factories run inside the registry's construction path only.
type Factory func(config map[string]any) (Agent, error)

// State is an agent instance's lifecycle state.
type State string

const (
	StateUninitialized State = "uninitialized"
	StateConnecting    State = "connecting"
	StateReady         State = "ready"
	StateDisconnected  State = "disconnected"
)

// Instance pairs an identity with its live agent implementation. The agent
// reference is unexported: it is exclusively owned by the registry, and
// callers interact with it only through Invoke.
type Instance struct {
	Identity  string
	CreatedAt time.Time

	mu    sync.RWMutex
	state State
	agent Agent
}

// State returns the instance lifecycle state.
func (i *Instance) State() State {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.state
}

func (i *Instance) setState(state State) {
	i.mu.Lock()
	i.state = state
	i.mu.Unlock()
}

// Invoke calls a declared method on the underlying agent. The instance must
// be ready.
func (i *Instance) Invoke(ctx context.Context, method string, input any) (any, error) {
	i.mu.RLock()
	state, agent := i.state, i.agent
	i.mu.RUnlock()
	if state != StateReady {
		return nil, errors.New(errors.CodeInternal, "agent instance is not ready", nil).
			WithAttribute("agent.id", i.Identity).
			WithAttribute("agent.state", string(state))
	}
	return agent.Invoke(ctx, method, input)
}
