// Copyright 2026 © The Taxis Authors
// SPDX-License-Identifier: Apache-2.0

package refdata

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jmaurel/taxis/pkg/config"
	"github.com/jmaurel/taxis/pkg/errors"
)

func writeStaticFile(t *testing.T, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "records.yaml")
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write static file: %v", err)
	}
	return path
}

const kpiYAML = `
- id: kpi-001
  name: monthly-revenue
  attributes:
    unit: EUR
    owner: finance
- id: kpi-002
  name: churn-rate
  attributes:
    unit: percent
    owner: sales
`

func TestStaticProviderServesRecords(t *testing.T) {
	path := writeStaticFile(t, kpiYAML)
	p, err := NewProvider(DomainKPI, config.ProviderConfig{StaticPath: path})
	if err != nil {
		t.Fatalf("NewProvider failed: %v", err)
	}
	if err := p.Load(context.Background()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if p.Origin() != BackendStaticFile {
		t.Errorf("origin = %q, want %q", p.Origin(), BackendStaticFile)
	}
	if p.Degraded() {
		t.Errorf("static provider reported degraded")
	}

	r, err := p.Get("kpi-001")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if r.Name != "monthly-revenue" {
		t.Errorf("record name = %q", r.Name)
	}

	all, err := p.GetAll()
	if err != nil || len(all) != 2 {
		t.Fatalf("GetAll = %d records, err %v", len(all), err)
	}

	sales, err := p.FindByAttribute("owner", "sales")
	if err != nil || len(sales) != 1 || sales[0].ID != "kpi-002" {
		t.Errorf("FindByAttribute(owner, sales) = %+v, err %v", sales, err)
	}

	if _, err := p.Get("kpi-999"); !errors.HasCode(err, errors.CodeNotFound) {
		t.Errorf("missing record error = %v, want NOT_FOUND", err)
	}
}

func TestProviderReadBeforeLoad(t *testing.T) {
	p, err := NewProvider(DomainGlossary, config.ProviderConfig{StaticPath: "unused.yaml"})
	if err != nil {
		t.Fatalf("NewProvider failed: %v", err)
	}
	if _, err := p.GetAll(); !errors.HasCode(err, errors.CodeProviderUnavailable) {
		t.Errorf("read before load error = %v, want PROVIDER_UNAVAILABLE", err)
	}
	if p.Origin() != "" {
		t.Errorf("origin before load = %q, want empty", p.Origin())
	}
}

func TestRemoteProviderFallsBackToStaticFile(t *testing.T) {
	var healthy atomic.Bool
	srv := NewServer("")
	srv.Seed(DomainKPI, []Record{{ID: "kpi-001", Name: "remote-revenue"}})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !healthy.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		srv.Handler().ServeHTTP(w, r)
	}))
	defer ts.Close()

	path := writeStaticFile(t, kpiYAML)
	p, err := NewProvider(DomainKPI, config.ProviderConfig{
		Backend:    BackendRemote,
		Endpoint:   ts.URL,
		StaticPath: path,
		Timeout:    2 * time.Second,
	})
	if err != nil {
		t.Fatalf("NewProvider failed: %v", err)
	}

	// Remote down: callers get static data and never see the failure.
	if err := p.Load(context.Background()); err != nil {
		t.Fatalf("Load with remote down failed: %v", err)
	}
	if p.Origin() != BackendStaticFile {
		t.Errorf("origin = %q, want %q", p.Origin(), BackendStaticFile)
	}
	if !p.Degraded() {
		t.Errorf("provider on fallback did not report degraded")
	}
	if r, err := p.Get("kpi-001"); err != nil || r.Name != "monthly-revenue" {
		t.Errorf("fallback record = %+v, err %v", r, err)
	}

	// Remote recovers: next load serves remote data again.
	healthy.Store(true)
	if err := p.Load(context.Background()); err != nil {
		t.Fatalf("Load after recovery failed: %v", err)
	}
	if p.Origin() != BackendRemote {
		t.Errorf("origin after recovery = %q, want %q", p.Origin(), BackendRemote)
	}
	if p.Degraded() {
		t.Errorf("recovered provider still reported degraded")
	}
	if r, err := p.Get("kpi-001"); err != nil || r.Name != "remote-revenue" {
		t.Errorf("remote record = %+v, err %v", r, err)
	}
}

func TestRemoteFetchTimeoutFallsBackToStaticFile(t *testing.T) {
	release := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer ts.Close()
	defer close(release)

	path := writeStaticFile(t, kpiYAML)
	p, err := NewProvider(DomainKPI, config.ProviderConfig{
		Backend:    BackendRemote,
		Endpoint:   ts.URL,
		StaticPath: path,
		Timeout:    30 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewProvider failed: %v", err)
	}

	start := time.Now()
	if err := p.Load(context.Background()); err != nil {
		t.Fatalf("Load with hanging remote failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("Load was not released by the fetch timeout, took %v", elapsed)
	}
	if p.Origin() != BackendStaticFile {
		t.Errorf("origin = %q, want %q", p.Origin(), BackendStaticFile)
	}
	if !p.Degraded() {
		t.Errorf("provider on timed-out remote did not report degraded")
	}
	if all, err := p.GetAll(); err != nil || len(all) != 2 {
		t.Errorf("GetAll = %d records, err %v", len(all), err)
	}
}

func TestProviderSnapshotConsistencyUnderConcurrentLoad(t *testing.T) {
	genA := []Record{
		{ID: "kpi-001", Attributes: map[string]any{"gen": "a"}},
		{ID: "kpi-002", Attributes: map[string]any{"gen": "a"}},
	}
	genB := []Record{
		{ID: "kpi-101", Attributes: map[string]any{"gen": "b"}},
		{ID: "kpi-102", Attributes: map[string]any{"gen": "b"}},
		{ID: "kpi-103", Attributes: map[string]any{"gen": "b"}},
	}
	var loads atomic.Int64
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		records := genA
		if loads.Add(1)%2 == 0 {
			records = genB
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(records)
	}))
	defer ts.Close()

	p, err := NewProvider(DomainKPI, config.ProviderConfig{
		Backend:  BackendRemote,
		Endpoint: ts.URL,
		Timeout:  2 * time.Second,
	})
	if err != nil {
		t.Fatalf("NewProvider failed: %v", err)
	}
	ctx := context.Background()
	if err := p.Load(ctx); err != nil {
		t.Fatalf("initial Load failed: %v", err)
	}

	done := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
				}
				all, err := p.GetAll()
				if err != nil {
					t.Errorf("GetAll failed mid-load: %v", err)
					return
				}
				// A read sees one complete generation, never a mix.
				if len(all) != len(genA) && len(all) != len(genB) {
					t.Errorf("torn read: %d records", len(all))
					return
				}
				fromA, err := p.FindByAttribute("gen", "a")
				if err != nil {
					t.Errorf("FindByAttribute failed mid-load: %v", err)
					return
				}
				if len(fromA) != 0 && len(fromA) != len(genA) {
					t.Errorf("torn generation: %d records with gen=a", len(fromA))
					return
				}
				// The generation may advance between reads, so a missing id is
				// fine; any other failure is not.
				if _, err := p.Get(all[0].ID); err != nil && !errors.HasCode(err, errors.CodeNotFound) {
					t.Errorf("Get(%s) failed: %v", all[0].ID, err)
					return
				}
			}
		}()
	}

	for i := 0; i < 50; i++ {
		if err := p.Load(ctx); err != nil {
			t.Errorf("Load %d failed: %v", i, err)
			break
		}
	}
	close(done)
	wg.Wait()
}

func TestProviderAllBackendsDown(t *testing.T) {
	p, err := NewProvider(DomainProcess, config.ProviderConfig{
		Backend:    BackendRemote,
		Endpoint:   "http://127.0.0.1:1", // nothing listens here
		StaticPath: filepath.Join(t.TempDir(), "absent.yaml"),
		Timeout:    time.Second,
	})
	if err != nil {
		t.Fatalf("NewProvider failed: %v", err)
	}
	err = p.Load(context.Background())
	if !errors.HasCode(err, errors.CodeProviderUnavailable) {
		t.Fatalf("Load error = %v, want PROVIDER_UNAVAILABLE", err)
	}
}

func TestProviderKeepsPreviousSnapshotOnFailedReload(t *testing.T) {
	path := writeStaticFile(t, kpiYAML)
	p, err := NewProvider(DomainKPI, config.ProviderConfig{StaticPath: path})
	if err != nil {
		t.Fatalf("NewProvider failed: %v", err)
	}
	if err := p.Load(context.Background()); err != nil {
		t.Fatalf("initial Load failed: %v", err)
	}
	if err := os.Remove(path); err != nil {
		t.Fatalf("remove static file: %v", err)
	}
	if err := p.Load(context.Background()); err == nil {
		t.Fatalf("expected reload failure after file removal")
	}
	// Previous generation still serves.
	if all, err := p.GetAll(); err != nil || len(all) != 2 {
		t.Errorf("GetAll after failed reload = %d records, err %v", len(all), err)
	}
}

func TestProviderRejectsUnknownBackend(t *testing.T) {
	_, err := NewProvider(DomainKPI, config.ProviderConfig{Backend: "carrier-pigeon"})
	if !errors.HasCode(err, errors.CodeInvalidInput) {
		t.Errorf("unknown backend error = %v, want INVALID_INPUT", err)
	}
}

func TestManagerLoadAllAndDegraded(t *testing.T) {
	kpiPath := writeStaticFile(t, kpiYAML)
	glossaryPath := writeStaticFile(t, `
- id: term-001
  name: ARR
`)
	m, err := NewManager(map[string]config.ProviderConfig{
		DomainKPI: {
			Backend:    BackendRemote,
			Endpoint:   "http://127.0.0.1:1",
			StaticPath: kpiPath,
			Timeout:    time.Second,
		},
		DomainGlossary: {StaticPath: glossaryPath},
	})
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	if err := m.LoadAll(context.Background()); err != nil {
		t.Fatalf("LoadAll failed: %v", err)
	}

	degraded := m.Degraded()
	if len(degraded) != 1 || degraded[0] != DomainKPI {
		t.Errorf("Degraded() = %v, want [kpi]", degraded)
	}

	kpi, err := m.Provider(DomainKPI)
	if err != nil {
		t.Fatalf("Provider(kpi) failed: %v", err)
	}
	if kpi.Origin() != BackendStaticFile {
		t.Errorf("kpi origin = %q", kpi.Origin())
	}

	if _, err := m.Provider("unknown"); !errors.HasCode(err, errors.CodeProviderUnavailable) {
		t.Errorf("unknown domain error = %v, want PROVIDER_UNAVAILABLE", err)
	}

	domains := m.Domains()
	if len(domains) != 2 || domains[0] != DomainGlossary || domains[1] != DomainKPI {
		t.Errorf("Domains() = %v", domains)
	}
}
