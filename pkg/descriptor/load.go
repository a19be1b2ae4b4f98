// Copyright 2026 © The Taxis Authors
// SPDX-License-Identifier: Apache-2.0

package descriptor

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Catalog is the on-disk shape of a descriptor catalog file.
type Catalog struct {
	Agents []Descriptor `json:"agents" yaml:"agents"`
}

// LoadCatalog loads a descriptor catalog from a YAML or JSON file.
func LoadCatalog(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("catalog path is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".json":
		return parseCatalogJSON(data)
	case ".yaml", ".yml":
		return parseCatalogYAML(data)
	default:
		return parseCatalogAuto(data)
	}
}

func parseCatalogJSON(data []byte) (*Store, error) {
	var catalog Catalog
	if err := json.Unmarshal(data, &catalog); err != nil {
		return nil, err
	}
	return NewStore(catalog.Agents...)
}

func parseCatalogYAML(data []byte) (*Store, error) {
	var catalog Catalog
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return nil, err
	}
	return NewStore(catalog.Agents...)
}

func parseCatalogAuto(data []byte) (*Store, error) {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "{") {
		if store, err := parseCatalogJSON(data); err == nil {
			return store, nil
		}
	}
	if store, err := parseCatalogYAML(data); err == nil {
		return store, nil
	}
	if store, err := parseCatalogJSON(data); err == nil {
		return store, nil
	}
	return nil, fmt.Errorf("unsupported catalog format")
}
