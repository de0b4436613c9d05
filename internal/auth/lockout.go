// Zondarr - Unified Media Server Invitation Manager
// Copyright 2026 Zondarr Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zondarr/zondarr

package auth

import (
	"errors"
	"sync"
	"time"

	"github.com/zondarr/zondarr/internal/logging"
)

// ErrLockedOut indicates the subject must wait before trying again.
var ErrLockedOut = errors.New("too many failed login attempts")

// LockoutConfig tunes the failed-login tracker.
type LockoutConfig struct {
	// Threshold is the number of failures within Window before lockout.
	Threshold int
	// Window is the sliding window failures are counted in.
	Window time.Duration
	// Duration is how long a locked subject stays locked.
	Duration time.Duration
}

type lockoutEntry struct {
	failures    []time.Time
	lockedUntil time.Time
}

// Lockout tracks failed login attempts per subject (username and IP are
// tracked as separate subjects by the caller). State is in-memory:
// a restart forgives outstanding lockouts, which is acceptable for a
// single-admin dashboard.
type Lockout struct {
	cfg LockoutConfig

	mu      sync.Mutex
	entries map[string]*lockoutEntry
	nowFn   func() time.Time
}

// NewLockout builds a tracker. Zero config fields get safe defaults.
func NewLockout(cfg LockoutConfig) *Lockout {
	if cfg.Threshold <= 0 {
		cfg.Threshold = 5
	}
	if cfg.Window <= 0 {
		cfg.Window = 15 * time.Minute
	}
	if cfg.Duration <= 0 {
		cfg.Duration = 15 * time.Minute
	}
	return &Lockout{
		cfg:     cfg,
		entries: make(map[string]*lockoutEntry),
		nowFn:   time.Now,
	}
}

// Check returns ErrLockedOut when the subject is currently locked.
func (l *Lockout) Check(subject string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[subject]
	if !ok {
		return nil
	}
	if l.nowFn().Before(e.lockedUntil) {
		return ErrLockedOut
	}
	return nil
}

// Fail records a failed attempt and locks the subject once the
// threshold is crossed inside the window.
func (l *Lockout) Fail(subject string) {
	now := l.nowFn()

	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[subject]
	if !ok {
		e = &lockoutEntry{}
		l.entries[subject] = e
	}

	cutoff := now.Add(-l.cfg.Window)
	kept := e.failures[:0]
	for _, t := range e.failures {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	e.failures = append(kept, now)

	if len(e.failures) >= l.cfg.Threshold {
		e.lockedUntil = now.Add(l.cfg.Duration)
		e.failures = e.failures[:0]
		logging.Warn().
			Str("subject", subject).
			Time("locked_until", e.lockedUntil).
			Msg("Login lockout engaged")
	}
}

// Reset clears the subject's failure history after a successful login.
func (l *Lockout) Reset(subject string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.entries, subject)
}

// Sweep drops entries that are neither locked nor carrying recent
// failures. Called by the janitor.
func (l *Lockout) Sweep() int {
	now := l.nowFn()
	cutoff := now.Add(-l.cfg.Window)

	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for subject, e := range l.entries {
		if now.After(e.lockedUntil) && (len(e.failures) == 0 || e.failures[len(e.failures)-1].Before(cutoff)) {
			delete(l.entries, subject)
			removed++
		}
	}
	return removed
}
