// Copyright 2026 © The Taxis Authors
// SPDX-License-Identifier: Apache-2.0

// Package refdata serves reference data (KPIs, principal profiles, business
// processes, data-product contracts, glossary terms) from interchangeable
// backends with transparent fallback.
package refdata

import "reflect"

// Well-known reference-data domains.
const (
	DomainKPI         = "kpi"
	DomainPrincipal   = "principal"
	DomainProcess     = "process"
	DomainDataProduct = "dataproduct"
	DomainGlossary    = "glossary"
)

// KnownDomains lists the reference-data domains the platform ships with.
// Additional domains may be configured; the provider layer does not care.
func KnownDomains() []string {
	return []string{DomainKPI, DomainPrincipal, DomainProcess, DomainDataProduct, DomainGlossary}
}

// Record is one reference-data entry. ID is the stable key the remote
// backend's upsert contract is built on.
type Record struct {
	ID         string         `json:"id" yaml:"id"`
	Name       string         `json:"name,omitempty" yaml:"name,omitempty"`
	Attributes map[string]any `json:"attributes,omitempty" yaml:"attributes,omitempty"`
}

// Attribute looks up a named attribute; "id" and "name" resolve to the
// corresponding fields.
func (r Record) Attribute(name string) (any, bool) {
	switch name {
	case "id":
		return r.ID, true
	case "name":
		return r.Name, true
	}
	v, ok := r.Attributes[name]
	return v, ok
}

// attributeEquals compares an attribute value with the probe. YAML and JSON
// decode scalars into differing concrete types, so comparison goes through
// DeepEqual after stringly-typed normalization is left to the caller.
func attributeEquals(a, b any) bool {
	return reflect.DeepEqual(a, b)
}
