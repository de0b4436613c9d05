// Zondarr - Unified Media Server Invitation Manager
// Copyright 2026 Zondarr Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zondarr/zondarr

package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestLogStreamReplaysAndTails(t *testing.T) {
	env := newAPIEnv(t)
	cookies := env.login(t)

	if _, err := env.capture.Write([]byte(`{"level":"info","message":"one"}` + "\n")); err != nil {
		t.Fatalf("seed log: %v", err)
	}
	if _, err := env.capture.Write([]byte(`{"level":"info","message":"two"}` + "\n")); err != nil {
		t.Fatalf("seed log: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/api/v1/logs/stream", nil).WithContext(ctx)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		env.handler.ServeHTTP(rec, req)
		close(done)
	}()

	// Give the handler time to subscribe and replay, then emit a live
	// entry before shutting the stream down.
	time.Sleep(50 * time.Millisecond)
	if _, err := env.capture.Write([]byte(`{"level":"info","message":"three"}` + "\n")); err != nil {
		t.Fatalf("live log: %v", err)
	}
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("stream handler did not exit on context cancel")
	}

	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Content-Type = %q, want text/event-stream", ct)
	}
	body := rec.Body.String()
	for _, msg := range []string{"one", "two", "three"} {
		if !strings.Contains(body, msg) {
			t.Errorf("stream body missing %q:\n%s", msg, body)
		}
	}
	if !strings.Contains(body, "id: 1\n") {
		t.Errorf("stream body missing event ids:\n%s", body)
	}
}

func TestLogStreamResumesAfterLastEventID(t *testing.T) {
	env := newAPIEnv(t)
	cookies := env.login(t)

	for _, msg := range []string{"first", "second", "third"} {
		if _, err := env.capture.Write([]byte(`{"message":"` + msg + `"}` + "\n")); err != nil {
			t.Fatalf("seed log: %v", err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/api/v1/logs/stream", nil).WithContext(ctx)
	req.Header.Set("Last-Event-ID", "2")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		env.handler.ServeHTTP(rec, req)
		close(done)
	}()
	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("stream handler did not exit on context cancel")
	}

	body := rec.Body.String()
	if strings.Contains(body, "first") || strings.Contains(body, "second") {
		t.Errorf("stream replayed acknowledged entries:\n%s", body)
	}
	if !strings.Contains(body, "third") {
		t.Errorf("stream body missing entry after Last-Event-ID:\n%s", body)
	}
}
