// Copyright 2026 © The Taxis Authors
// SPDX-License-Identifier: Apache-2.0

package resilience

import (
	"context"
	"testing"
	"time"

	"github.com/jmaurel/taxis/pkg/errors"
)

func TestWithTimeoutResultCompletes(t *testing.T) {
	value, err := WithTimeoutResult(context.Background(), TimeoutConfig{Duration: time.Second},
		func(ctx context.Context) (any, error) {
			return 42, nil
		})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if value != 42 {
		t.Errorf("expected 42, got %v", value)
	}
}

func TestWithTimeoutResultExpires(t *testing.T) {
	start := time.Now()
	_, err := WithTimeoutResult(context.Background(), TimeoutConfig{Duration: 20 * time.Millisecond},
		func(ctx context.Context) (any, error) {
			select {
			case <-time.After(5 * time.Second):
				return nil, nil
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		})
	if err == nil {
		t.Fatalf("expected timeout error")
	}
	if !errors.HasCode(err, errors.CodeTimeout) {
		t.Errorf("expected CodeTimeout, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("caller was not released promptly, waited %v", elapsed)
	}
}

func TestWithTimeoutZeroDuration(t *testing.T) {
	called := false
	err := WithTimeout(context.Background(), TimeoutConfig{}, func(ctx context.Context) error {
		called = true
		if _, ok := ctx.Deadline(); ok {
			t.Errorf("no deadline expected with zero duration")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Errorf("fn was not invoked")
	}
}
