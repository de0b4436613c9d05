// Zondarr - Unified Media Server Invitation Manager
// Copyright 2026 Zondarr Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zondarr/zondarr

// Package database provides the sqlite-backed store for all Zondarr
// entities. Each entity gets a thin CRUD surface in its own crud_*.go
// file; schema changes go through the versioned migration system in
// migrations.go.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/zondarr/zondarr/internal/config"
)

// Store wraps the sqlite connection and provides data access methods.
type Store struct {
	conn *sql.DB
	cfg  *config.DatabaseConfig
}

// New opens (creating if necessary) the sqlite database and brings the
// schema up to date.
func New(cfg *config.DatabaseConfig) (*Store, error) {
	// Ensure parent directory exists for the database file.
	// 0750 per gosec G301.
	dbDir := filepath.Dir(cfg.Path)
	if dbDir != "" && dbDir != "." {
		if err := os.MkdirAll(dbDir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create database directory %s: %w", dbDir, err)
		}
	}

	conn, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	busyMs := int64(5000)
	if cfg.BusyTimeout > 0 {
		busyMs = cfg.BusyTimeout.Milliseconds()
	}
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		fmt.Sprintf("PRAGMA busy_timeout = %d", busyMs),
		"PRAGMA synchronous = NORMAL",
	}
	for _, pragma := range pragmas {
		if _, err := conn.Exec(pragma); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	// modernc.org/sqlite serializes writes; one writer connection avoids
	// SQLITE_BUSY churn under concurrent handlers.
	conn.SetMaxOpenConns(1)

	s := &Store{conn: conn, cfg: cfg}
	if err := s.runVersionedMigrations(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return s, nil
}

// NewInMemory opens a fresh in-memory store. Intended for tests.
func NewInMemory() (*Store, error) {
	return New(&config.DatabaseConfig{Path: ":memory:", BusyTimeout: time.Second})
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

// Ping checks that the database connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	if s.conn == nil {
		return fmt.Errorf("database connection is nil")
	}
	return s.conn.PingContext(ctx)
}

// Conn returns the underlying SQL connection for packages that need raw
// access (test fixtures).
func (s *Store) Conn() *sql.DB {
	return s.conn
}

// withTx runs fn inside a transaction, committing on nil error and
// rolling back otherwise.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
			return fmt.Errorf("%w (rollback also failed: %v)", err, rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// now returns the wall-clock time truncated to the second, matching what
// sqlite round-trips through RFC3339 text columns.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Second)
}
