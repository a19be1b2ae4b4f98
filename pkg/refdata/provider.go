// Copyright 2026 © The Taxis Authors
// SPDX-License-Identifier: Apache-2.0

package refdata

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/jmaurel/taxis/pkg/config"
	"github.com/jmaurel/taxis/pkg/errors"
	"github.com/jmaurel/taxis/pkg/resilience"
	"github.com/jmaurel/taxis/pkg/telemetry"
)

// snapshot is one immutable cache generation. Readers see either the previous
// or the next generation atomically, never a partially populated one.
type snapshot struct {
	records  []Record
	byID     map[string]Record
	loadedAt time.Time
	origin   string
}

// Provider serves one reference-data domain from its configured backend,
// falling back transparently when that backend fails.
type Provider struct {
	domain     string
	configured string
	backends   []Backend
	timeout    time.Duration
	metrics    *telemetry.CoreMetrics
	tracer     trace.Tracer

	mu   sync.RWMutex
	snap *snapshot
}

// ProviderOption configures a Provider.
type ProviderOption func(*Provider)

// WithProviderMetrics attaches orchestration metrics.
func WithProviderMetrics(metrics *telemetry.CoreMetrics) ProviderOption {
	return func(p *Provider) {
		p.metrics = metrics
	}
}

// NewProvider builds a provider for domain from its configuration. A remote
// backend always carries the static file as fallback; an absent or
// static-file backend kind serves the static file only.
func NewProvider(domain string, cfg config.ProviderConfig, opts ...ProviderOption) (*Provider, error) {
	p := &Provider{
		domain:  domain,
		timeout: cfg.Timeout,
		tracer:  otel.Tracer("taxis/refdata"),
	}

	static := &StaticFileBackend{Domain: domain, Path: cfg.StaticPath}
	switch cfg.Backend {
	case BackendRemote:
		p.configured = BackendRemote
		remote := NewRemoteBackend(domain, cfg.Endpoint)
		remote.AuthToken = cfg.Token
		p.backends = []Backend{remote, static}
	case "", BackendStaticFile:
		p.configured = BackendStaticFile
		p.backends = []Backend{static}
	default:
		return nil, errors.New(errors.CodeInvalidInput,
			fmt.Sprintf("unknown backend kind %q for domain %q", cfg.Backend, domain), nil)
	}

	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Domain returns the provider's domain name.
func (p *Provider) Domain() string { return p.domain }

// Load fetches the domain's records and swaps in a fresh cache generation.
// Backends are tried in configured-then-fallback order; a fetch failure is
// logged at warning level and never surfaced unless every backend fails, in
// which case PROVIDER_UNAVAILABLE is returned and the previous generation
// stays in place.
func (p *Provider) Load(ctx context.Context) error {
	ctx, span := p.tracer.Start(ctx, "Provider.Load", trace.WithAttributes(
		telemetry.ProviderAttributes(p.domain, p.configured, "", -1)...,
	))
	defer span.End()

	log := slog.Default()
	var lastErr error
	for _, backend := range p.backends {
		records, err := p.fetch(ctx, backend)
		if err != nil {
			lastErr = err
			log.WarnContext(ctx, "refdata.backend_failed",
				slog.String("domain", p.domain),
				slog.String("backend", backend.Kind()),
				slog.String("error", err.Error()),
			)
			continue
		}

		next := &snapshot{
			records:  records,
			byID:     make(map[string]Record, len(records)),
			loadedAt: time.Now().UTC(),
			origin:   backend.Kind(),
		}
		for _, r := range records {
			next.byID[r.ID] = r
		}

		p.mu.Lock()
		p.snap = next
		p.mu.Unlock()

		span.SetAttributes(
			attribute.String(telemetry.AttrProviderOrigin, next.origin),
			attribute.Int(telemetry.AttrProviderRecords, len(records)),
		)

		if next.origin != p.configured {
			p.metrics.RecordFallback(ctx, p.domain, next.origin)
			log.WarnContext(ctx, "refdata.fallback",
				slog.String("domain", p.domain),
				slog.String("configured", p.configured),
				slog.String("origin", next.origin),
			)
		}
		log.InfoContext(ctx, "refdata.loaded",
			slog.String("domain", p.domain),
			slog.String("origin", next.origin),
			slog.Int("records", len(records)),
		)
		return nil
	}

	return errors.New(errors.CodeProviderUnavailable,
		fmt.Sprintf("every backend for domain %q failed", p.domain), lastErr).
		WithAttribute("provider.domain", p.domain)
}

func (p *Provider) fetch(ctx context.Context, backend Backend) ([]Record, error) {
	out, err := resilience.WithTimeoutResult(ctx, resilience.TimeoutConfig{Duration: p.timeout},
		func(ctx context.Context) (any, error) {
			return backend.Fetch(ctx)
		})
	if err != nil {
		if errors.HasCode(err, errors.CodeTimeout) {
			return nil, errors.New(errors.CodeBackendUnavailable,
				fmt.Sprintf("backend %s for domain %q timed out", backend.Kind(), p.domain), err).
				WithAttribute("provider.domain", p.domain).
				WithAttribute("backend.kind", backend.Kind())
		}
		return nil, err
	}
	records, _ := out.([]Record)
	return records, nil
}

// Get returns the record with the given id from the current cache generation.
func (p *Provider) Get(key string) (Record, error) {
	snap, err := p.snapshot()
	if err != nil {
		return Record{}, err
	}
	r, ok := snap.byID[key]
	if !ok {
		return Record{}, errors.New(errors.CodeNotFound,
			fmt.Sprintf("record %q not found in domain %q", key, p.domain), nil)
	}
	return r, nil
}

// GetAll returns all records of the current cache generation, in load order.
func (p *Provider) GetAll() ([]Record, error) {
	snap, err := p.snapshot()
	if err != nil {
		return nil, err
	}
	out := make([]Record, len(snap.records))
	copy(out, snap.records)
	return out, nil
}

// FindByAttribute returns records whose named attribute equals value.
func (p *Provider) FindByAttribute(name string, value any) ([]Record, error) {
	snap, err := p.snapshot()
	if err != nil {
		return nil, err
	}
	var out []Record
	for _, r := range snap.records {
		if v, ok := r.Attribute(name); ok && attributeEquals(v, value) {
			out = append(out, r)
		}
	}
	return out, nil
}

// Origin reports which backend actually served the current generation. Empty
// before the first successful Load.
func (p *Provider) Origin() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.snap == nil {
		return ""
	}
	return p.snap.origin
}

// LoadedAt reports when the current generation was loaded.
func (p *Provider) LoadedAt() time.Time {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.snap == nil {
		return time.Time{}
	}
	return p.snap.loadedAt
}

// Degraded reports whether the provider is serving from a backend other than
// the configured one. Operational tooling can alert on sustained degradation
// even though callers are unaffected.
func (p *Provider) Degraded() bool {
	origin := p.Origin()
	return origin != "" && origin != p.configured
}

func (p *Provider) snapshot() (*snapshot, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.snap == nil {
		return nil, errors.New(errors.CodeProviderUnavailable,
			fmt.Sprintf("domain %q has not been loaded", p.domain), nil).
			WithAttribute("provider.domain", p.domain)
	}
	return p.snap, nil
}
