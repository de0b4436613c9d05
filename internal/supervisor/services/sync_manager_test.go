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

type countingSyncer struct {
	calls atomic.Int32
	err   error
}

func (c *countingSyncer) SyncAll(ctx context.Context) error {
	c.calls.Add(1)
	return c.err
}

func TestSyncManagerRunsImmediatelyAndOnTick(t *testing.T) {
	syncer := &countingSyncer{}
	m := NewSyncManager(syncer, 25*time.Millisecond, 5*time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Serve(ctx) }()

	deadline := time.After(2 * time.Second)
	for syncer.calls.Load() < 3 {
		select {
		case <-deadline:
			t.Fatalf("sync passes = %d, want >= 3", syncer.calls.Load())
		case <-time.After(10 * time.Millisecond):
		}
	}
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("Serve() = %v, want context.Canceled", err)
	}
}

func TestSyncManagerSurvivesSyncErrors(t *testing.T) {
	syncer := &countingSyncer{err: errors.New("server unreachable")}
	m := NewSyncManager(syncer, 20*time.Millisecond, 0)

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Millisecond)
	defer cancel()
	err := m.Serve(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Serve() = %v, want deadline exceeded", err)
	}
	if syncer.calls.Load() < 2 {
		t.Fatalf("sync passes = %d, want the loop to keep running past errors", syncer.calls.Load())
	}
}
