// Zondarr - Unified Media Server Invitation Manager
// Copyright 2026 Zondarr Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zondarr/zondarr

package api

import (
	"net/http"
	"strconv"

	"github.com/goccy/go-json"

	"github.com/zondarr/zondarr/internal/validation"
)

// maxBodySize caps request bodies. The largest legitimate payload is a
// wizard with embedded markdown.
const maxBodySize = 1 << 20

// decodeJSON reads and validates a request body into dst. On failure a
// response has already been written and false is returned.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON body", nil)
		return false
	}
	if verr := validation.ValidateStruct(dst); verr != nil {
		respondError(w, r, http.StatusBadRequest, ErrCodeValidationFailed, "Request validation failed", verr.Details())
		return false
	}
	return true
}

// queryInt parses an integer query parameter with a default.
func queryInt(r *http.Request, name string, def int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// clientInfo extracts the caller's address and agent for audit fields.
// RemoteAddr is already the real IP when the RealIP middleware ran.
func clientInfo(r *http.Request) (userAgent, ip string) {
	return r.UserAgent(), r.RemoteAddr
}
