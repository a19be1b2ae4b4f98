// Copyright 2026 © The Taxis Authors
// SPDX-License-Identifier: Apache-2.0

// Package descriptor holds the static catalog of known agents: their
// identities, declared dependencies, and typed method signatures. The catalog
// is immutable once built; the registry and workflow engine read it only.
package descriptor

import (
	"fmt"
	"sort"

	"github.com/jmaurel/taxis/pkg/errors"
)

// MethodSpec declares one callable method of an agent: its name and the type
// names of its input and output payloads. The set of methods per agent is
// closed; the engine validates every invocation against it.
type MethodSpec struct {
	Name   string `json:"name" yaml:"name"`
	Input  string `json:"input" yaml:"input"`
	Output string `json:"output" yaml:"output"`
}

// Descriptor describes one agent identity.
type Descriptor struct {
	Identity  string                `json:"identity" yaml:"identity"`
	DependsOn []string              `json:"depends_on,omitempty" yaml:"depends_on,omitempty"`
	Methods   map[string]MethodSpec `json:"methods,omitempty" yaml:"methods,omitempty"`
}

// Method looks up a declared method by name.
func (d Descriptor) Method(name string) (MethodSpec, bool) {
	spec, ok := d.Methods[name]
	return spec, ok
}

// Store is the immutable descriptor catalog.
type Store struct {
	descriptors map[string]Descriptor
}

// NewStore validates the descriptors and builds a catalog. Identities must be
// unique and non-empty; method specs must carry their own name.
func NewStore(descs ...Descriptor) (*Store, error) {
	store := &Store{descriptors: make(map[string]Descriptor, len(descs))}
	for _, d := range descs {
		if d.Identity == "" {
			return nil, errors.New(errors.CodeInvalidInput, "descriptor identity is required", nil)
		}
		if _, dup := store.descriptors[d.Identity]; dup {
			return nil, errors.New(errors.CodeInvalidInput,
				fmt.Sprintf("duplicate descriptor identity %q", d.Identity), nil)
		}
		for name, spec := range d.Methods {
			if spec.Name == "" {
				spec.Name = name
				d.Methods[name] = spec
			}
			if spec.Name != name {
				return nil, errors.New(errors.CodeInvalidInput,
					fmt.Sprintf("method %q of %q declares mismatched name %q", name, d.Identity, spec.Name), nil)
			}
		}
		store.descriptors[d.Identity] = d
	}
	return store, nil
}

// Get returns the descriptor for identity.
func (s *Store) Get(identity string) (Descriptor, bool) {
	d, ok := s.descriptors[identity]
	return d, ok
}

// Identities returns all catalog identities in sorted order.
func (s *Store) Identities() []string {
	out := make([]string, 0, len(s.descriptors))
	for id := range s.descriptors {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of descriptors in the catalog.
func (s *Store) Len() int {
	return len(s.descriptors)
}
