// Copyright 2026 © The Taxis Authors
// SPDX-License-Identifier: Apache-2.0

package workflow

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadDefinition loads a workflow definition from a YAML or JSON file.
func LoadDefinition(path string) (*Definition, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("definition path is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".json":
		return parseJSON(data)
	case ".yaml", ".yml":
		return parseYAML(data)
	default:
		return parseAuto(data)
	}
}

func parseJSON(data []byte) (*Definition, error) {
	var def Definition
	if err := json.Unmarshal(data, &def); err != nil {
		return nil, err
	}
	return &def, nil
}

func parseYAML(data []byte) (*Definition, error) {
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, err
	}
	return &def, nil
}

func parseAuto(data []byte) (*Definition, error) {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "{") {
		if def, err := parseJSON(data); err == nil {
			return def, nil
		}
	}
	if def, err := parseYAML(data); err == nil {
		return def, nil
	}
	if def, err := parseJSON(data); err == nil {
		return def, nil
	}
	return nil, fmt.Errorf("unsupported definition format")
}
