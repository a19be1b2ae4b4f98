// Copyright 2026 © The Taxis Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads the process-wide Taxis configuration exactly once.
// Components receive their configuration by value; nothing re-reads the
// environment after Load returns.
package config

import (
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Log       LogConfig                 `koanf:"log"`
	Telemetry TelemetryConfig           `koanf:"telemetry"`
	EventLog  EventLogConfig            `koanf:"eventlog"`
	Workflow  WorkflowConfig            `koanf:"workflow"`
	Providers map[string]ProviderConfig `koanf:"providers"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // json, text
}

type TelemetryConfig struct {
	Exporter     string `koanf:"exporter"` // stdout, otlp
	OTLPEndpoint string `koanf:"endpoint"`
	OTLPInsecure bool   `koanf:"insecure"`
}

type EventLogConfig struct {
	Backend string `koanf:"backend"` // memory, sqlite
	Path    string `koanf:"path"`
}

type WorkflowConfig struct {
	StepTimeout     time.Duration `koanf:"steptimeout"`
	ContinueOnError bool          `koanf:"continueonerror"`
}

// ProviderConfig parameterizes one reference-data domain. An empty or absent
// Backend selects the static-file backend.
type ProviderConfig struct {
	Backend    string        `koanf:"backend"` // remote, static-file
	Endpoint   string        `koanf:"endpoint"`
	Token      string        `koanf:"token"`
	StaticPath string        `koanf:"staticpath"`
	Timeout    time.Duration `koanf:"timeout"`
}

// Load reads defaults, then the optional YAML file at path, then TAXIS_*
// environment variables (TAXIS_PROVIDERS_KPI_BACKEND -> providers.kpi.backend).
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	// Defaults
	k.Set("log.level", "info")
	k.Set("log.format", "text")
	k.Set("telemetry.exporter", "stdout")
	k.Set("eventlog.backend", "memory")
	k.Set("workflow.steptimeout", "30s")
	k.Set("workflow.continueonerror", false)

	// 1. Load from file
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, err
		}
	}

	// 2. Load from ENV (TAXIS_LOG_LEVEL -> log.level)
	if err := k.Load(env.Provider("TAXIS_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(
			strings.TrimPrefix(s, "TAXIS_")), "_", ".", -1)
	}), nil); err != nil {
		return nil, err
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}
	if cfg.Providers == nil {
		cfg.Providers = map[string]ProviderConfig{}
	}

	return &cfg, nil
}
