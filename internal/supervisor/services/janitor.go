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

// JanitorTask is one maintenance chore. Tasks run sequentially; a
// failing task is logged and the rest still run.
type JanitorTask struct {
	Name string
	Run  func(ctx context.Context) error
}

// Janitor periodically runs housekeeping: disabling expired users,
// sweeping lapsed invitations, pruning old refresh tokens and sync runs.
type Janitor struct {
	interval time.Duration
	tasks    []JanitorTask
}

// NewJanitor builds the maintenance loop.
func NewJanitor(interval time.Duration, tasks ...JanitorTask) *Janitor {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	return &Janitor{interval: interval, tasks: tasks}
}

// Serve implements suture.Service.
func (j *Janitor) Serve(ctx context.Context) error {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			j.runAll(ctx)
		}
	}
}

func (j *Janitor) runAll(ctx context.Context) {
	for _, task := range j.tasks {
		if ctx.Err() != nil {
			return
		}
		if err := task.Run(ctx); err != nil {
			logging.Warn().Err(err).Str("task", task.Name).Msg("Janitor task failed")
		}
	}
}

func (j *Janitor) String() string { return "janitor" }
