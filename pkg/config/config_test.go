// Copyright 2026 © The Taxis Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("expected default log level info, got %q", cfg.Log.Level)
	}
	if cfg.EventLog.Backend != "memory" {
		t.Errorf("expected default eventlog backend memory, got %q", cfg.EventLog.Backend)
	}
	if cfg.Workflow.StepTimeout != 30*time.Second {
		t.Errorf("expected default step timeout 30s, got %v", cfg.Workflow.StepTimeout)
	}
	if cfg.Workflow.ContinueOnError {
		t.Errorf("expected fail-fast by default")
	}
	if cfg.Providers == nil {
		t.Errorf("expected non-nil providers map")
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := `
log:
  level: debug
  format: json
eventlog:
  backend: sqlite
  path: /tmp/taxis-events.db
providers:
  kpi:
    backend: remote
    endpoint: http://registry.internal:8080
    staticpath: ./refdata/kpi.yaml
    timeout: 5s
  glossary:
    staticpath: ./refdata/glossary.yaml
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Errorf("file values not applied: %+v", cfg.Log)
	}
	if cfg.EventLog.Backend != "sqlite" {
		t.Errorf("expected sqlite eventlog backend, got %q", cfg.EventLog.Backend)
	}
	kpi, ok := cfg.Providers["kpi"]
	if !ok {
		t.Fatalf("expected kpi provider config")
	}
	if kpi.Backend != "remote" || kpi.Timeout != 5*time.Second {
		t.Errorf("kpi provider config mismatch: %+v", kpi)
	}
	// Absent backend selects static-file at construction time.
	if cfg.Providers["glossary"].Backend != "" {
		t.Errorf("expected glossary backend unset, got %q", cfg.Providers["glossary"].Backend)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("TAXIS_LOG_LEVEL", "warn")
	t.Setenv("TAXIS_PROVIDERS_KPI_BACKEND", "remote")
	t.Setenv("TAXIS_PROVIDERS_KPI_ENDPOINT", "http://localhost:9999")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("expected env override warn, got %q", cfg.Log.Level)
	}
	if cfg.Providers["kpi"].Backend != "remote" {
		t.Errorf("expected env-selected remote backend, got %q", cfg.Providers["kpi"].Backend)
	}
	if cfg.Providers["kpi"].Endpoint != "http://localhost:9999" {
		t.Errorf("expected env endpoint, got %q", cfg.Providers["kpi"].Endpoint)
	}
}
