// Zondarr - Unified Media Server Invitation Manager
// Copyright 2026 Zondarr Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zondarr/zondarr

package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/zondarr/zondarr/internal/logging"
)

// LogStream handles GET /api/v1/logs/stream: a Server-Sent Events feed
// of the application log. Clients that reconnect send Last-Event-ID and
// receive the buffered entries they missed before the live tail resumes.
func (h *Handlers) LogStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, r, http.StatusInternalServerError, ErrCodeInternalError, "Streaming unsupported", nil)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	var after uint64
	if v := r.Header.Get("Last-Event-ID"); v != "" {
		if seq, err := strconv.ParseUint(v, 10, 64); err == nil {
			after = seq
		}
	}

	entries, cancel := h.capture.Subscribe(256)
	defer cancel()

	// Replay after subscribing so entries emitted in between are not
	// lost; duplicates across the seam are filtered by sequence number.
	last := after
	for _, e := range h.capture.Replay(after) {
		writeEvent(w, e)
		last = e.Seq
	}
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case e, open := <-entries:
			if !open {
				return
			}
			if e.Seq <= last {
				continue
			}
			writeEvent(w, e)
			last = e.Seq
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, e logging.Entry) {
	fmt.Fprintf(w, "id: %d\ndata: %s\n\n", e.Seq, e.Line)
}
