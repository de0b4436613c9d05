// Zondarr - Unified Media Server Invitation Manager
// Copyright 2026 Zondarr Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zondarr/zondarr

package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/zondarr/zondarr/internal/logging"
)

const denylistPrefix = "revoked:"

// Denylist records revoked token JTIs in badger. Entries carry a TTL
// matching the token's remaining lifetime, so badger garbage-collects
// them once revocation no longer matters.
type Denylist struct {
	db *badger.DB
}

// NewDenylist opens (or creates) the badger store at path. An empty
// path opens an in-memory store, used by tests.
func NewDenylist(path string) (*Denylist, error) {
	opts := badger.DefaultOptions(path)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	// badger's own logger is chatty at INFO; route through zerolog at
	// the levels we actually want.
	opts = opts.WithLogger(badgerLogger{})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open denylist store: %w", err)
	}
	return &Denylist{db: db}, nil
}

// Revoke marks a JTI revoked until its expiry.
func (d *Denylist) Revoke(jti string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil // already expired, nothing to deny
	}
	err := d.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry([]byte(denylistPrefix+jti), []byte{1}).WithTTL(ttl)
		return txn.SetEntry(e)
	})
	if err != nil {
		return fmt.Errorf("failed to revoke token %s: %w", jti, err)
	}
	return nil
}

// IsRevoked reports whether a JTI has been revoked.
func (d *Denylist) IsRevoked(jti string) (bool, error) {
	err := d.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(denylistPrefix + jti))
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check token %s: %w", jti, err)
	}
	return true, nil
}

// RunGC triggers badger value-log garbage collection. Called by the
// janitor; badger returns ErrNoRewrite when there was nothing to do.
func (d *Denylist) RunGC() error {
	err := d.db.RunValueLogGC(0.5)
	if errors.Is(err, badger.ErrNoRewrite) {
		return nil
	}
	return err
}

// Close closes the underlying store.
func (d *Denylist) Close() error {
	return d.db.Close()
}

// badgerLogger adapts badger's logger interface to the zerolog facade.
// Badger INFO/DEBUG output is operational noise, logged at debug.
type badgerLogger struct{}

func (badgerLogger) Errorf(format string, args ...interface{}) {
	logging.Error().Msgf("badger: "+format, args...)
}

func (badgerLogger) Warningf(format string, args ...interface{}) {
	logging.Warn().Msgf("badger: "+format, args...)
}

func (badgerLogger) Infof(format string, args ...interface{}) {
	logging.Debug().Msgf("badger: "+format, args...)
}

func (badgerLogger) Debugf(format string, args ...interface{}) {
	logging.Debug().Msgf("badger: "+format, args...)
}
