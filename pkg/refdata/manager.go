// Copyright 2026 © The Taxis Authors
// SPDX-License-Identifier: Apache-2.0

package refdata

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/jmaurel/taxis/pkg/config"
	"github.com/jmaurel/taxis/pkg/errors"
)

// Manager owns one Provider per configured reference-data domain.
type Manager struct {
	mu        sync.RWMutex
	providers map[string]*Provider
}

// NewManager builds providers from the per-domain configuration map. Domains
// with no configuration entry simply have no provider; asking for them fails
// with PROVIDER_UNAVAILABLE.
func NewManager(cfgs map[string]config.ProviderConfig, opts ...ProviderOption) (*Manager, error) {
	m := &Manager{providers: make(map[string]*Provider, len(cfgs))}
	for domain, cfg := range cfgs {
		p, err := NewProvider(domain, cfg, opts...)
		if err != nil {
			return nil, err
		}
		m.providers[domain] = p
	}
	return m, nil
}

// Provider returns the provider serving domain.
func (m *Manager) Provider(domain string) (*Provider, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.providers[domain]
	if !ok {
		return nil, errors.New(errors.CodeProviderUnavailable,
			fmt.Sprintf("no provider configured for domain %q", domain), nil).
			WithAttribute("provider.domain", domain)
	}
	return p, nil
}

// Domains lists the configured domains in stable order.
func (m *Manager) Domains() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.providers))
	for domain := range m.providers {
		out = append(out, domain)
	}
	sort.Strings(out)
	return out
}

// LoadAll loads every configured domain concurrently. The first hard failure
// (both backends down for some domain) cancels the rest and is returned;
// domains that merely fell back load fine.
func (m *Manager) LoadAll(ctx context.Context) error {
	m.mu.RLock()
	providers := make([]*Provider, 0, len(m.providers))
	for _, p := range m.providers {
		providers = append(providers, p)
	}
	m.mu.RUnlock()

	g, ctx := errgroup.WithContext(ctx)
	for _, p := range providers {
		p := p
		g.Go(func() error {
			return p.Load(ctx)
		})
	}
	return g.Wait()
}

// Degraded lists the domains currently served from a fallback backend.
func (m *Manager) Degraded() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []string
	for domain, p := range m.providers {
		if p.Degraded() {
			out = append(out, domain)
		}
	}
	sort.Strings(out)
	return out
}
