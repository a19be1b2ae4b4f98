// Copyright 2026 © The Taxis Authors
// SPDX-License-Identifier: Apache-2.0

package descriptor

import (
	"os"
	"path/filepath"
	"testing"
)

func writeCatalog(t *testing.T, name, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write catalog: %v", err)
	}
	return path
}

func TestLoadCatalogYAML(t *testing.T) {
	path := writeCatalog(t, "catalog.yaml", `
agents:
  - identity: data-access
    methods:
      Query:
        input: string
        output: '[]map[string]interface {}'
  - identity: kpi-analyzer
    depends_on: [data-access]
    methods:
      Score:
        input: string
        output: float64
`)
	store, err := LoadCatalog(path)
	if err != nil {
		t.Fatalf("LoadCatalog failed: %v", err)
	}
	if store.Len() != 2 {
		t.Fatalf("expected 2 descriptors, got %d", store.Len())
	}
	d, ok := store.Get("kpi-analyzer")
	if !ok {
		t.Fatalf("expected kpi-analyzer descriptor")
	}
	if len(d.DependsOn) != 1 || d.DependsOn[0] != "data-access" {
		t.Errorf("unexpected dependencies: %v", d.DependsOn)
	}
	spec, ok := d.Method("Score")
	if !ok || spec.Input != "string" || spec.Output != "float64" {
		t.Errorf("unexpected Score spec: %+v ok=%v", spec, ok)
	}
}

func TestLoadCatalogJSON(t *testing.T) {
	path := writeCatalog(t, "catalog.json", `{
  "agents": [
    {"identity": "glossary", "methods": {"Lookup": {"input": "string", "output": "string"}}}
  ]
}`)
	store, err := LoadCatalog(path)
	if err != nil {
		t.Fatalf("LoadCatalog failed: %v", err)
	}
	if _, ok := store.Get("glossary"); !ok {
		t.Errorf("expected glossary descriptor")
	}
}

func TestLoadCatalogAutoDetect(t *testing.T) {
	path := writeCatalog(t, "catalog.conf", `agents:
  - identity: solo
`)
	store, err := LoadCatalog(path)
	if err != nil {
		t.Fatalf("LoadCatalog failed: %v", err)
	}
	if _, ok := store.Get("solo"); !ok {
		t.Errorf("expected solo descriptor")
	}
}

func TestLoadCatalogMissingPath(t *testing.T) {
	if _, err := LoadCatalog(""); err == nil {
		t.Errorf("expected error for empty path")
	}
	if _, err := LoadCatalog(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Errorf("expected error for missing file")
	}
}
