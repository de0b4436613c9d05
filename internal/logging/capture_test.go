// Zondarr - Unified Media Server Invitation Manager
// Copyright 2026 Zondarr Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zondarr/zondarr

package logging

import (
	"fmt"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestCaptureRingReplay(t *testing.T) {
	c := NewCapture(4)

	for i := 1; i <= 6; i++ {
		if _, err := c.Write([]byte(fmt.Sprintf("line-%d\n", i))); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}

	// Ring holds 4 entries; the two oldest were overwritten.
	entries := c.Replay(0)
	if len(entries) != 4 {
		t.Fatalf("Replay(0) returned %d entries, want 4", len(entries))
	}
	if entries[0].Line != "line-3" {
		t.Errorf("oldest entry = %q, want line-3", entries[0].Line)
	}
	if entries[3].Line != "line-6" {
		t.Errorf("newest entry = %q, want line-6", entries[3].Line)
	}

	// Replay after a known seq returns only newer entries.
	after := entries[1].Seq
	newer := c.Replay(after)
	if len(newer) != 2 {
		t.Fatalf("Replay(%d) returned %d entries, want 2", after, len(newer))
	}
	if newer[0].Line != "line-5" {
		t.Errorf("Replay(after) first = %q, want line-5", newer[0].Line)
	}
}

func TestCaptureSubscribe(t *testing.T) {
	c := NewCapture(8)
	ch, cancel := c.Subscribe(2)
	defer cancel()

	if _, err := c.Write([]byte("hello\n")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	e := <-ch
	if e.Line != "hello" {
		t.Errorf("subscriber got %q, want hello", e.Line)
	}
	if e.Seq != 1 {
		t.Errorf("subscriber seq = %d, want 1", e.Seq)
	}
}

func TestCaptureSlowSubscriberDoesNotBlock(t *testing.T) {
	c := NewCapture(8)
	_, cancel := c.Subscribe(1)
	defer cancel()

	// More writes than the subscriber buffer holds; must not deadlock.
	for i := 0; i < 10; i++ {
		if _, err := c.Write([]byte("x\n")); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	if got := c.LastSeq(); got != 10 {
		t.Errorf("LastSeq = %d, want 10", got)
	}
}

func TestCaptureUnsubscribeClosesChannel(t *testing.T) {
	c := NewCapture(8)
	ch, cancel := c.Subscribe(1)
	cancel()
	if _, ok := <-ch; ok {
		t.Error("channel still open after unsubscribe")
	}
	// Second cancel is a no-op.
	cancel()
}

func TestLoggerTeesIntoCapture(t *testing.T) {
	c := NewCapture(16)
	var buf strings.Builder
	logger := zerolog.New(zerolog.MultiLevelWriter(&buf, c)).With().Timestamp().Logger()

	logger.Info().Str("component", "test").Msg("captured")

	entries := c.Replay(0)
	if len(entries) != 1 {
		t.Fatalf("capture holds %d entries, want 1", len(entries))
	}
	if !strings.Contains(entries[0].Line, `"message":"captured"`) {
		t.Errorf("captured line missing message: %s", entries[0].Line)
	}
	if !strings.Contains(buf.String(), "captured") {
		t.Error("primary output did not receive the line")
	}
}
