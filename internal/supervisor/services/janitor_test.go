// Zondarr - Unified Media Server Invitation Manager
// Copyright 2026 Zondarr Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zondarr/zondarr

package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestJanitorRunsAllTasksPastFailures(t *testing.T) {
	var first, second atomic.Int32
	j := NewJanitor(15*time.Millisecond,
		JanitorTask{Name: "failing", Run: func(ctx context.Context) error {
			first.Add(1)
			return errors.New("sweep failed")
		}},
		JanitorTask{Name: "healthy", Run: func(ctx context.Context) error {
			second.Add(1)
			return nil
		}},
	)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if err := j.Serve(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Serve() = %v, want deadline exceeded", err)
	}

	if first.Load() == 0 {
		t.Fatal("failing task never ran")
	}
	if second.Load() == 0 {
		t.Fatal("task after a failing one never ran")
	}
	if first.Load() != second.Load() {
		t.Fatalf("task runs diverged: %d vs %d", first.Load(), second.Load())
	}
}

func TestJanitorStopsMidPassOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var tail atomic.Int32
	j := NewJanitor(10*time.Millisecond,
		JanitorTask{Name: "canceller", Run: func(ctx context.Context) error {
			cancel()
			return nil
		}},
		JanitorTask{Name: "tail", Run: func(ctx context.Context) error {
			tail.Add(1)
			return nil
		}},
	)

	if err := j.Serve(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Serve() = %v, want context.Canceled", err)
	}
	if tail.Load() != 0 {
		t.Fatalf("tail task ran %d times after cancel, want 0", tail.Load())
	}
}
