// Copyright 2026 © The Taxis Authors
// SPDX-License-Identifier: Apache-2.0

package registry

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/jmaurel/taxis/pkg/descriptor"
	"github.com/jmaurel/taxis/pkg/errors"
	"github.com/jmaurel/taxis/pkg/eventlog"
	"github.com/jmaurel/taxis/pkg/telemetry"
)

// Registry is the mutable runtime table mapping identity to live agent
// instance. It is an explicitly constructed value, created at process start
// and passed by reference to every component that needs it; there is no
// ambient global.
type Registry struct {
	store     *descriptor.Store
	factories map[string]Factory
	configs   map[string]map[string]any
	events    eventlog.Log
	metrics   *telemetry.CoreMetrics
	tracer    trace.Tracer

	mu        sync.RWMutex
	instances map[string]*Instance
	flight    singleflight.Group
}

// Option configures a Registry.
type Option func(*Registry)

// WithConfigs supplies per-identity construction configuration passed to the
// agent factory.
func WithConfigs(configs map[string]map[string]any) Option {
	return func(r *Registry) {
		r.configs = configs
	}
}

// WithMetrics attaches orchestration metrics.
func WithMetrics(metrics *telemetry.CoreMetrics) Option {
	return func(r *Registry) {
		r.metrics = metrics
	}
}

// New builds a registry over the descriptor catalog. factories maps identity
// to its construction function; events receives one registration event per
// successful construction.
func New(store *descriptor.Store, factories map[string]Factory, events eventlog.Log, opts ...Option) *Registry {
	r := &Registry{
		store:     store,
		factories: factories,
		events:    events,
		tracer:    otel.Tracer("taxis/registry"),
		instances: make(map[string]*Instance),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Get returns a ready instance for identity, constructing it and any missing
// dependencies bottom-up if necessary. Concurrent calls for the same
// not-yet-ready identity serialize on a single in-flight construction; late
// arrivals wait for its result, and the first caller's context governs it.
func (r *Registry) Get(ctx context.Context, identity string) (*Instance, error) {
	if inst := r.ready(identity); inst != nil {
		return inst, nil
	}

	order, err := r.store.Resolve(identity)
	if err != nil {
		return nil, err
	}

	for _, id := range order {
		if r.ready(id) != nil {
			continue
		}
		id := id
		if _, err, _ := r.flight.Do(id, func() (any, error) {
			return nil, r.construct(ctx, id)
		}); err != nil {
			return nil, err
		}
	}

	inst := r.ready(identity)
	if inst == nil {
		return nil, errors.New(errors.CodeInternal,
			fmt.Sprintf("agent %q not ready after construction", identity), nil)
	}
	return inst, nil
}

// State reports the lifecycle state for identity. Identities never requested
// are uninitialized.
func (r *Registry) State(identity string) State {
	r.mu.RLock()
	inst := r.instances[identity]
	r.mu.RUnlock()
	if inst == nil {
		return StateUninitialized
	}
	return inst.State()
}

// Disconnect transitions a ready instance to disconnected and releases it.
// The identity may be requested again afterwards; a fresh instance is then
// constructed.
func (r *Registry) Disconnect(ctx context.Context, identity string) error {
	r.mu.Lock()
	inst := r.instances[identity]
	if inst == nil || inst.State() != StateReady {
		r.mu.Unlock()
		return errors.New(errors.CodeNotFound,
			fmt.Sprintf("no ready instance for %q", identity), nil)
	}
	delete(r.instances, identity)
	r.mu.Unlock()

	err := inst.agent.Disconnect(ctx)
	inst.setState(StateDisconnected)
	slog.Default().InfoContext(ctx, "registry.disconnect",
		slog.String("agent_id", identity),
	)
	return err
}

// Close disconnects every ready instance. Used at process teardown.
func (r *Registry) Close(ctx context.Context) error {
	r.mu.Lock()
	live := make([]*Instance, 0, len(r.instances))
	for _, inst := range r.instances {
		live = append(live, inst)
	}
	r.instances = make(map[string]*Instance)
	r.mu.Unlock()

	var errs []error
	for _, inst := range live {
		if inst.State() != StateReady {
			continue
		}
		if err := inst.agent.Disconnect(ctx); err != nil {
			errs = append(errs, fmt.Errorf("disconnect %s: %w", inst.Identity, err))
		}
		inst.setState(StateDisconnected)
	}
	if len(errs) > 0 {
		return fmt.Errorf("registry close errors: %v", errs)
	}
	return nil
}

// construct builds and connects one identity. Dependencies are ready by the
// caller's bottom-up ordering. On failure the identity rolls back to
// uninitialized; already-ready dependencies remain ready.
func (r *Registry) construct(ctx context.Context, identity string) error {
	if inst := r.ready(identity); inst != nil {
		return nil
	}

	ctx, span := r.tracer.Start(ctx, "Registry.Construct", trace.WithAttributes(
		telemetry.AgentAttributes(identity, string(StateConnecting))...,
	))
	defer span.End()

	log := slog.Default()
	log.InfoContext(ctx, "registry.construct.start", slog.String("agent_id", identity))

	factory := r.factories[identity]
	if factory == nil {
		return r.constructFailed(ctx, identity, nil,
			errors.New(errors.CodeConstructionFailed,
				fmt.Sprintf("no factory registered for %q", identity), nil))
	}

	inst := &Instance{
		Identity:  identity,
		CreatedAt: time.Now().UTC(),
		state:     StateConnecting,
	}
	r.mu.Lock()
	r.instances[identity] = inst
	r.mu.Unlock()

	agent, err := factory(r.configs[identity])
	if err != nil {
		return r.constructFailed(ctx, identity, inst,
			errors.New(errors.CodeConstructionFailed,
				fmt.Sprintf("factory for %q failed", identity), err))
	}
	inst.mu.Lock()
	inst.agent = agent
	inst.mu.Unlock()

	if err := agent.Connect(ctx, r); err != nil {
		return r.constructFailed(ctx, identity, inst,
			errors.New(errors.CodeConstructionFailed,
				fmt.Sprintf("connect hook for %q failed", identity), err))
	}

	return r.register(ctx, inst)
}

// register finalizes a constructed instance: it marks it ready and emits the
// registration event. It is intentionally unexported; its only call site is
// the registry's own construction path, so no external caller can insert an
// instance without going through dependency resolution and lifecycle hooks.
func (r *Registry) register(ctx context.Context, inst *Instance) error {
	inst.setState(StateReady)

	d, _ := r.store.Get(inst.Identity)
	if err := r.events.Append(ctx, eventlog.Entry{
		AgentID:       inst.Identity,
		Kind:          eventlog.KindRegistration,
		CorrelationID: eventlog.CorrelationID(ctx),
		Payload:       map[string]any{"depends_on": d.DependsOn},
	}); err != nil {
		return err
	}
	r.metrics.RecordConstruction(ctx, inst.Identity, true)
	slog.Default().InfoContext(ctx, "registry.construct.ready",
		slog.String("agent_id", inst.Identity),
	)
	return nil
}

// constructFailed rolls the identity back to uninitialized and returns err.
func (r *Registry) constructFailed(ctx context.Context, identity string, inst *Instance, err *errors.TaxisError) error {
	if inst != nil {
		r.mu.Lock()
		if r.instances[identity] == inst {
			delete(r.instances, identity)
		}
		r.mu.Unlock()
		inst.setState(StateUninitialized)
	}
	r.metrics.RecordConstruction(ctx, identity, false)
	slog.Default().ErrorContext(ctx, "registry.construct.failed",
		slog.String("agent_id", identity),
		slog.String("error", err.Error()),
	)
	return err.WithAttribute("agent.id", identity)
}

func (r *Registry) ready(identity string) *Instance {
	r.mu.RLock()
	inst := r.instances[identity]
	r.mu.RUnlock()
	if inst != nil && inst.State() == StateReady {
		return inst
	}
	return nil
}
