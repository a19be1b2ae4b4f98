// Copyright 2026 © The Taxis Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"testing"
)

func TestParseGlobalFlags(t *testing.T) {
	flags, args, err := parseGlobalFlags([]string{"--json", "--config", "taxis.yaml", "run", "--workflow", "w.yaml"})
	if err != nil {
		t.Fatalf("parseGlobalFlags failed: %v", err)
	}
	if !flags.JSON || flags.ConfigPath != "taxis.yaml" {
		t.Errorf("unexpected flags: %+v", flags)
	}
	if len(args) != 3 || args[0] != "run" {
		t.Errorf("unexpected args: %v", args)
	}
}

func TestParseGlobalFlagsEquals(t *testing.T) {
	flags, args, err := parseGlobalFlags([]string{"--config=conf.yaml", "events"})
	if err != nil {
		t.Fatalf("parseGlobalFlags failed: %v", err)
	}
	if flags.ConfigPath != "conf.yaml" {
		t.Errorf("ConfigPath = %q", flags.ConfigPath)
	}
	if len(args) != 1 || args[0] != "events" {
		t.Errorf("unexpected args: %v", args)
	}
}

func TestParseGlobalFlagsUnknown(t *testing.T) {
	if _, _, err := parseGlobalFlags([]string{"--bogus"}); err == nil {
		t.Error("expected error for unknown flag")
	}
	if _, _, err := parseGlobalFlags([]string{"--config"}); err == nil {
		t.Error("expected error for missing config value")
	}
}

func TestNormalizeCell(t *testing.T) {
	if got := normalizeCell("  "); got != "-" {
		t.Errorf("empty cell = %q, want -", got)
	}
	if got := normalizeCell("a\tb\n c"); got != "a b c" {
		t.Errorf("normalized cell = %q", got)
	}
}

func TestEchoAgent(t *testing.T) {
	agent, err := echoFactory(nil)
	if err != nil {
		t.Fatalf("echoFactory failed: %v", err)
	}
	out, err := agent.Invoke(context.Background(), "Anything", "payload")
	if err != nil || out != "payload" {
		t.Errorf("Invoke = %v, %v", out, err)
	}
}
