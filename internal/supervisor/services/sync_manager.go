// Zondarr - Unified Media Server Invitation Manager
// Copyright 2026 Zondarr Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zondarr/zondarr

package services

import (
	"context"
	"time"

	"github.com/zondarr/zondarr/internal/logging"
)

// Syncer reconciles every enabled media server. Satisfied by
// services.SyncService.
type Syncer interface {
	SyncAll(ctx context.Context) error
}

// SyncManager runs the background reconciliation loop: one full pass at
// startup, then one per interval. Per-server failures are recorded in
// sync runs and do not crash the service.
type SyncManager struct {
	syncer   Syncer
	interval time.Duration
	// timeout bounds one full pass across all servers. Zero means no
	// bound beyond the serve context.
	timeout time.Duration
}

// NewSyncManager builds the loop service.
func NewSyncManager(syncer Syncer, interval, timeout time.Duration) *SyncManager {
	if interval <= 0 {
		interval = time.Hour
	}
	return &SyncManager{syncer: syncer, interval: interval, timeout: timeout}
}

// Serve implements suture.Service.
func (m *SyncManager) Serve(ctx context.Context) error {
	m.runOnce(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			m.runOnce(ctx)
		}
	}
}

func (m *SyncManager) runOnce(ctx context.Context) {
	runCtx := ctx
	if m.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}
	start := time.Now()
	if err := m.syncer.SyncAll(runCtx); err != nil {
		logging.Warn().Err(err).Msg("Background sync pass finished with errors")
		return
	}
	logging.Debug().Dur("duration", time.Since(start)).Msg("Background sync pass complete")
}

func (m *SyncManager) String() string { return "sync-manager" }
