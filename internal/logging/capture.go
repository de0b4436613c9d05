// Zondarr - Unified Media Server Invitation Manager
// Copyright 2026 Zondarr Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zondarr/zondarr

package logging

import (
	"strings"
	"sync"
)

// Entry is one captured log line. Seq is monotonically increasing and is
// used as the SSE event id so reconnecting clients can resume with
// Last-Event-ID.
type Entry struct {
	Seq  uint64
	Line string // raw JSON as emitted by zerolog
}

// Capture is a bounded ring of recent log lines with subscriber fan-out.
// It implements io.Writer so it can be teed into the zerolog output via
// zerolog.MultiLevelWriter.
//
// Slow subscribers never block logging: when a subscriber channel is full
// the entry is dropped for that subscriber only.
type Capture struct {
	mu      sync.Mutex
	ring    []Entry
	next    int  // next write position in ring
	wrapped bool // ring has been fully written at least once
	seq     uint64
	subs    map[int]chan Entry
	nextSub int
}

// NewCapture creates a capture ring holding up to size recent lines.
func NewCapture(size int) *Capture {
	if size <= 0 {
		size = 500
	}
	return &Capture{
		ring: make([]Entry, size),
		subs: make(map[int]chan Entry),
	}
}

// Write implements io.Writer. Each call is one log line from zerolog.
func (c *Capture) Write(p []byte) (int, error) {
	line := strings.TrimRight(string(p), "\n")
	if line == "" {
		return len(p), nil
	}

	c.mu.Lock()
	c.seq++
	e := Entry{Seq: c.seq, Line: line}
	c.ring[c.next] = e
	c.next++
	if c.next == len(c.ring) {
		c.next = 0
		c.wrapped = true
	}
	for _, ch := range c.subs {
		select {
		case ch <- e:
		default: // subscriber is behind, drop for them
		}
	}
	c.mu.Unlock()

	return len(p), nil
}

// Subscribe registers a new subscriber and returns its channel plus an
// unsubscribe function. The channel is closed on unsubscribe.
func (c *Capture) Subscribe(buffer int) (<-chan Entry, func()) {
	if buffer <= 0 {
		buffer = 64
	}
	ch := make(chan Entry, buffer)

	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = ch
	c.mu.Unlock()

	return ch, func() {
		c.mu.Lock()
		if _, ok := c.subs[id]; ok {
			delete(c.subs, id)
			close(ch)
		}
		c.mu.Unlock()
	}
}

// Replay returns buffered entries with Seq greater than after, oldest
// first. Pass 0 to get the whole ring.
func (c *Capture) Replay(after uint64) []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []Entry
	appendEntry := func(e Entry) {
		if e.Seq > after {
			out = append(out, e)
		}
	}
	if c.wrapped {
		for i := c.next; i < len(c.ring); i++ {
			appendEntry(c.ring[i])
		}
	}
	for i := 0; i < c.next; i++ {
		appendEntry(c.ring[i])
	}
	return out
}

// LastSeq returns the sequence number of the most recent entry.
func (c *Capture) LastSeq() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seq
}
