// Zondarr - Unified Media Server Invitation Manager
// Copyright 2026 Zondarr Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zondarr/zondarr

package services

import (
	"context"
	"testing"

	"github.com/zondarr/zondarr/internal/database"
	"github.com/zondarr/zondarr/internal/media"
	"github.com/zondarr/zondarr/internal/models"
)

func TestSyncImportsRefreshesAndCountsMissing(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	srv, fake := env.addServer(t, "alpha", models.ServerTypeJellyfin)
	svc := NewSyncService(env.store, env.registry)

	// Known user, present remotely with an updated name.
	known := seedUser(t, env, srv.ID, fake, "known")
	fake.users[known.ExternalID].Username = "renamed"

	// Remote-only user, created outside Zondarr.
	if _, err := fake.CreateUser(ctx, media.NewUserRequest{Username: "stranger", Email: "s@example.com"}); err != nil {
		t.Fatalf("seed remote: %v", err)
	}

	// Excluded remote account (the owner).
	owner, err := fake.CreateUser(ctx, media.NewUserRequest{Username: "owner"})
	if err != nil {
		t.Fatalf("seed owner: %v", err)
	}
	if err := env.store.AddSyncExclusion(ctx, &models.SyncExclusion{ServerID: srv.ID, ExternalID: owner.ExternalID}); err != nil {
		t.Fatalf("add exclusion: %v", err)
	}

	// Local-only user the server no longer knows.
	ghost := &models.User{ServerID: srv.ID, ExternalID: "gone-1", Username: "ghost", Enabled: true}
	if err := env.store.CreateUser(ctx, ghost); err != nil {
		t.Fatalf("seed ghost: %v", err)
	}

	run, err := svc.SyncServer(ctx, srv)
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if run.Status != models.SyncStatusOK {
		t.Fatalf("status = %q, want ok", run.Status)
	}
	if run.UsersSeen != 3 {
		t.Fatalf("seen = %d, want 3", run.UsersSeen)
	}
	if run.UsersImported != 1 {
		t.Fatalf("imported = %d, want 1", run.UsersImported)
	}
	if run.UsersMissing != 1 {
		t.Fatalf("missing = %d, want 1", run.UsersMissing)
	}

	// Known user refreshed, LastSeenAt advanced.
	got, err := env.store.GetUser(ctx, known.ID)
	if err != nil {
		t.Fatalf("reload known: %v", err)
	}
	if got.Username != "renamed" {
		t.Fatalf("username = %q, want renamed", got.Username)
	}
	if got.LastSeenAt == nil {
		t.Fatal("LastSeenAt not advanced")
	}

	// Stranger imported without an identity.
	imported, err := env.store.ListUsers(ctx, database.UserFilter{ServerID: srv.ID})
	if err != nil {
		t.Fatalf("list users: %v", err)
	}
	var found *models.User
	for i := range imported {
		if imported[i].Username == "stranger" {
			found = &imported[i]
		}
		if imported[i].Username == "owner" {
			t.Fatal("excluded account was imported")
		}
	}
	if found == nil {
		t.Fatal("stranger not imported")
	}
	if found.IdentityID != nil {
		t.Fatal("imported user should have no identity")
	}

	// Ghost untouched: still present, LastSeenAt still unset.
	gotGhost, err := env.store.GetUser(ctx, ghost.ID)
	if err != nil {
		t.Fatalf("reload ghost: %v", err)
	}
	if gotGhost.LastSeenAt != nil {
		t.Fatal("missing user's LastSeenAt advanced")
	}

	// Server LastSyncAt advanced.
	gotSrv, err := env.store.GetMediaServer(ctx, srv.ID)
	if err != nil {
		t.Fatalf("reload server: %v", err)
	}
	if gotSrv.LastSyncAt == nil {
		t.Fatal("LastSyncAt not advanced")
	}
}

func TestSyncFailureRecordsFailedRun(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	srv, fake := env.addServer(t, "alpha", models.ServerTypeJellyfin)
	svc := NewSyncService(env.store, env.registry)
	fake.failUsers = true

	run, err := svc.SyncServer(ctx, srv)
	if err == nil {
		t.Fatal("expected sync failure")
	}
	if run == nil || run.Status != models.SyncStatusFailed {
		t.Fatalf("run = %+v, want failed status", run)
	}
	if run.Error == "" {
		t.Fatal("failed run should carry the error")
	}

	gotSrv, err := env.store.GetMediaServer(ctx, srv.ID)
	if err != nil {
		t.Fatalf("reload server: %v", err)
	}
	if gotSrv.LastSyncAt != nil {
		t.Fatal("LastSyncAt advanced despite failure")
	}

	latest, err := env.store.LatestSyncRun(ctx, srv.ID)
	if err != nil {
		t.Fatalf("latest run: %v", err)
	}
	if latest.ID != run.ID {
		t.Fatal("failed run not persisted as latest")
	}
}

func TestSyncAllContinuesPastFailingServer(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	srvA, fakeA := env.addServer(t, "alpha", models.ServerTypeJellyfin)
	srvB, _ := env.addServer(t, "beta", models.ServerTypeJellyfin)
	svc := NewSyncService(env.store, env.registry)
	fakeA.failUsers = true

	if err := svc.SyncAll(ctx); err != nil {
		t.Fatalf("sync all: %v", err)
	}

	runA, err := env.store.LatestSyncRun(ctx, srvA.ID)
	if err != nil {
		t.Fatalf("latest run alpha: %v", err)
	}
	if runA.Status != models.SyncStatusFailed {
		t.Fatalf("alpha status = %q, want failed", runA.Status)
	}
	runB, err := env.store.LatestSyncRun(ctx, srvB.ID)
	if err != nil {
		t.Fatalf("latest run beta: %v", err)
	}
	if runB.Status != models.SyncStatusOK {
		t.Fatalf("beta status = %q, want ok", runB.Status)
	}
}
