// Copyright 2026 © The Taxis Authors
// SPDX-License-Identifier: Apache-2.0

package descriptor

import (
	"github.com/jmaurel/taxis/pkg/errors"
)

type visitState uint8

const (
	unvisited visitState = iota
	inProgress
	done
)

// Resolve computes a bottom-up initialization order for identity: every
// dependency precedes its dependent, with identity itself last. The traversal
// is a depth-first walk over declared dependency edges; dependencies are
// visited in declared order so the result is deterministic.
//
// Resolve fails with CodeCyclicDependency naming the full cycle path when a
// cycle is reachable from identity, and with CodeUnknownAgent when any visited
// identity is not in the catalog. It has no side effects.
func (s *Store) Resolve(identity string) ([]string, error) {
	states := make(map[string]visitState, len(s.descriptors))
	var order []string
	var stack []string

	var visit func(id string) error
	visit = func(id string) error {
		d, ok := s.descriptors[id]
		if !ok {
			return errors.NewUnknownAgent(id)
		}
		states[id] = inProgress
		stack = append(stack, id)
		for _, dep := range d.DependsOn {
			switch states[dep] {
			case done:
				continue
			case inProgress:
				return errors.NewCyclicDependency(cyclePath(stack, dep))
			default:
				if err := visit(dep); err != nil {
					return err
				}
			}
		}
		stack = stack[:len(stack)-1]
		states[id] = done
		order = append(order, id)
		return nil
	}

	if err := visit(identity); err != nil {
		return nil, err
	}
	return order, nil
}

// cyclePath slices the traversal stack from the first occurrence of dep and
// closes the loop, e.g. stack [A B] with dep A yields [A B A].
func cyclePath(stack []string, dep string) []string {
	start := 0
	for i, id := range stack {
		if id == dep {
			start = i
			break
		}
	}
	path := make([]string, 0, len(stack)-start+1)
	path = append(path, stack[start:]...)
	path = append(path, dep)
	return path
}
