// Zondarr - Unified Media Server Invitation Manager
// Copyright 2026 Zondarr Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zondarr/zondarr

package supervisor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"
)

type blockingService struct {
	started atomic.Int32
}

func (s *blockingService) Serve(ctx context.Context) error {
	s.started.Add(1)
	<-ctx.Done()
	return ctx.Err()
}

func (s *blockingService) String() string { return "blocking" }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestTreeRunsServicesInBothLayers(t *testing.T) {
	tree := NewTree(testLogger(), DefaultTreeConfig())
	worker := &blockingService{}
	api := &blockingService{}
	tree.AddWorker(worker)
	tree.AddAPIService(api)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := tree.ServeBackground(ctx)

	deadline := time.After(2 * time.Second)
	for worker.started.Load() == 0 || api.started.Load() == 0 {
		select {
		case <-deadline:
			t.Fatalf("services not started: worker=%d api=%d", worker.started.Load(), api.started.Load())
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			t.Fatalf("tree stopped with %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("tree did not stop after cancel")
	}
}

func TestTreeConfigDefaultsApplied(t *testing.T) {
	tree := NewTree(testLogger(), TreeConfig{})
	if tree.config.FailureThreshold != 5.0 {
		t.Errorf("FailureThreshold = %v, want 5.0", tree.config.FailureThreshold)
	}
	if tree.config.ShutdownTimeout != 10*time.Second {
		t.Errorf("ShutdownTimeout = %v, want 10s", tree.config.ShutdownTimeout)
	}
}
