// Zondarr - Unified Media Server Invitation Manager
// Copyright 2026 Zondarr Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zondarr/zondarr

package database

import (
	"errors"
	"strings"
)

// Common store errors. Callers match with errors.Is.
var (
	// ErrNotFound indicates the requested row does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicate indicates a unique constraint was violated.
	ErrDuplicate = errors.New("record already exists")

	// ErrConflict indicates a guarded update matched no rows (e.g. the
	// invitation use counter was already at its limit).
	ErrConflict = errors.New("conflicting concurrent update")
)

// isUniqueViolation reports whether err is a sqlite unique-constraint
// failure. modernc.org/sqlite surfaces these as plain errors carrying the
// SQLITE_CONSTRAINT_UNIQUE message text.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "constraint failed: UNIQUE")
}
