// Copyright 2026 © The Taxis Authors
// SPDX-License-Identifier: Apache-2.0

package refdata

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/jmaurel/taxis/pkg/errors"
)

// RemoteBackend fetches records from a remote metadata store over HTTP.
type RemoteBackend struct {
	Domain    string
	BaseURL   string
	HTTP      *http.Client
	AuthToken string
}

// NewRemoteBackend creates a remote backend for domain pointing at baseURL.
func NewRemoteBackend(domain, baseURL string) *RemoteBackend {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	return &RemoteBackend{
		Domain:  domain,
		BaseURL: baseURL,
		HTTP:    http.DefaultClient,
	}
}

// Kind implements Backend.
func (b *RemoteBackend) Kind() string { return BackendRemote }

// Fetch implements Backend. Any transport, status, or decode failure is
// reported as BACKEND_UNAVAILABLE so the provider can fall back.
func (b *RemoteBackend) Fetch(ctx context.Context) ([]Record, error) {
	if b == nil || b.BaseURL == "" {
		return nil, b.unavailable("remote endpoint not configured", nil)
	}
	url := fmt.Sprintf("%s/v1/registry/%s", b.BaseURL, b.Domain)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, b.unavailable("building request failed", err)
	}
	if strings.TrimSpace(b.AuthToken) != "" {
		req.Header.Set("Authorization", "Bearer "+b.AuthToken)
	}
	resp, err := b.http().Do(req)
	if err != nil {
		return nil, b.unavailable("fetch failed", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, b.unavailable(fmt.Sprintf("fetch returned %s", resp.Status), nil)
	}
	var out []Record
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, b.unavailable("malformed response", err)
	}
	return out, nil
}

// Upsert pushes records into the remote store keyed on Record.ID. Re-running
// the same upsert produces no duplicate or divergent state; seeding tooling
// relies on this.
func (b *RemoteBackend) Upsert(ctx context.Context, records []Record) error {
	if b == nil || b.BaseURL == "" {
		return b.unavailable("remote endpoint not configured", nil)
	}
	payload, err := json.Marshal(records)
	if err != nil {
		return err
	}
	url := fmt.Sprintf("%s/v1/registry/%s", b.BaseURL, b.Domain)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(payload))
	if err != nil {
		return b.unavailable("building request failed", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if strings.TrimSpace(b.AuthToken) != "" {
		req.Header.Set("Authorization", "Bearer "+b.AuthToken)
	}
	resp, err := b.http().Do(req)
	if err != nil {
		return b.unavailable("upsert failed", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return b.unavailable(fmt.Sprintf("upsert returned %s", resp.Status), nil)
	}
	return nil
}

func (b *RemoteBackend) http() *http.Client {
	if b != nil && b.HTTP != nil {
		return b.HTTP
	}
	return http.DefaultClient
}

func (b *RemoteBackend) unavailable(msg string, cause error) *errors.TaxisError {
	domain := ""
	if b != nil {
		domain = b.Domain
	}
	return errors.New(errors.CodeBackendUnavailable,
		fmt.Sprintf("remote backend for domain %q: %s", domain, msg), cause).
		WithAttribute("provider.domain", domain).
		WithAttribute("backend.kind", BackendRemote).
		WithRecoverable(true)
}
