// Copyright 2026 © The Taxis Authors
// SPDX-License-Identifier: Apache-2.0

package refdata

import (
	"context"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/jmaurel/taxis/pkg/errors"
)

// Backend kinds.
const (
	BackendRemote     = "remote"
	BackendStaticFile = "static-file"
)

// Backend fetches the full record set of one domain. Implementations are
// black boxes to the provider; it only needs fetch semantics.
type Backend interface {
	Kind() string
	Fetch(ctx context.Context) ([]Record, error)
}

// StaticFileBackend reads records from a YAML file on disk.
type StaticFileBackend struct {
	Domain string
	Path   string
}

// staticFile is the on-disk shape: either a bare list or a records key.
type staticFile struct {
	Records []Record `yaml:"records"`
}

// Kind implements Backend.
func (b *StaticFileBackend) Kind() string { return BackendStaticFile }

// Fetch implements Backend.
func (b *StaticFileBackend) Fetch(_ context.Context) ([]Record, error) {
	if strings.TrimSpace(b.Path) == "" {
		return nil, errors.New(errors.CodeBackendUnavailable,
			fmt.Sprintf("no static file configured for domain %q", b.Domain), nil).
			WithAttribute("provider.domain", b.Domain).
			WithAttribute("backend.kind", BackendStaticFile)
	}
	data, err := os.ReadFile(b.Path)
	if err != nil {
		return nil, errors.New(errors.CodeBackendUnavailable,
			fmt.Sprintf("static file for domain %q unreadable", b.Domain), err).
			WithAttribute("provider.domain", b.Domain).
			WithAttribute("backend.kind", BackendStaticFile)
	}

	var records []Record
	if err := yaml.Unmarshal(data, &records); err != nil {
		var wrapped staticFile
		if err2 := yaml.Unmarshal(data, &wrapped); err2 != nil {
			return nil, errors.New(errors.CodeBackendUnavailable,
				fmt.Sprintf("static file for domain %q malformed", b.Domain), err).
				WithAttribute("provider.domain", b.Domain).
				WithAttribute("backend.kind", BackendStaticFile)
		}
		records = wrapped.Records
	}
	return records, nil
}
