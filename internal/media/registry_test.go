// Zondarr - Unified Media Server Invitation Manager
// Copyright 2026 Zondarr Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zondarr/zondarr

package media

import (
	"context"
	"errors"
	"testing"

	"github.com/zondarr/zondarr/internal/models"
)

type stubClient struct {
	Client
	pings int
}

func (s *stubClient) Ping(ctx context.Context) error {
	s.pings++
	return nil
}

func TestRegistryUnknownType(t *testing.T) {
	r := NewRegistry()
	_, err := r.ClientFor(&models.MediaServer{ID: "s1", Type: "emby"})
	if !errors.Is(err, ErrUnknownServerType) {
		t.Fatalf("expected ErrUnknownServerType, got %v", err)
	}
}

func TestRegistryCachesPerServer(t *testing.T) {
	r := NewRegistry()
	built := 0
	r.Register("fake", func(server *models.MediaServer) Client {
		built++
		return &stubClient{}
	})

	srv := &models.MediaServer{ID: "s1", Type: "fake"}
	a, err := r.ClientFor(srv)
	if err != nil {
		t.Fatalf("ClientFor: %v", err)
	}
	b, err := r.ClientFor(srv)
	if err != nil {
		t.Fatalf("ClientFor (cached): %v", err)
	}
	if a != b {
		t.Fatal("expected the cached client")
	}
	if built != 1 {
		t.Fatalf("factory ran %d times, want 1", built)
	}

	r.Invalidate(srv.ID)
	if _, err := r.ClientFor(srv); err != nil {
		t.Fatalf("ClientFor after invalidate: %v", err)
	}
	if built != 2 {
		t.Fatalf("factory ran %d times after invalidate, want 2", built)
	}
}

func TestBreakerPassesThroughDefinitiveErrors(t *testing.T) {
	var failures int
	c := NewBreakerClient("test-breaker", &failingClient{err: ErrRemoteNotFound, calls: &failures})

	// Definitive answers never trip the breaker, no matter how many.
	for i := 0; i < 20; i++ {
		if err := c.DeleteUser(context.Background(), "x"); !errors.Is(err, ErrRemoteNotFound) {
			t.Fatalf("call %d: expected ErrRemoteNotFound, got %v", i, err)
		}
	}
	if failures != 20 {
		t.Fatalf("underlying client called %d times, want 20", failures)
	}
}

type failingClient struct {
	Client
	err   error
	calls *int
}

func (f *failingClient) DeleteUser(ctx context.Context, externalID string) error {
	*f.calls++
	return f.err
}
