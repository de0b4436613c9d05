// Zondarr - Unified Media Server Invitation Manager
// Copyright 2026 Zondarr Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zondarr/zondarr

package api

import (
	"net/http"
	"testing"

	"github.com/zondarr/zondarr/internal/media"
	"github.com/zondarr/zondarr/internal/models"
)

func TestServerCreateVerifiesAndLoadsLibraries(t *testing.T) {
	env := newAPIEnv(t)
	cookies := env.login(t)

	// The fake backend must exist before the create call verifies it.
	env.fakes["gamma"] = newFakeMediaClient("gamma")

	rec, envelope := env.do(t, http.MethodPost, "/api/v1/servers/", map[string]string{
		"name":    "gamma",
		"type":    models.ServerTypeJellyfin,
		"url":     "http://gamma.local",
		"api_key": "key-gamma",
	}, cookies)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create server: status = %d, body %s", rec.Code, rec.Body.String())
	}
	var srv models.MediaServer
	dataInto(t, envelope, &srv)
	if !srv.Verified {
		t.Error("create server: not verified against reachable backend")
	}
	if srv.ExternalID != "machine-gamma" {
		t.Errorf("create server: external id = %q", srv.ExternalID)
	}
}

func TestServerSyncAndRunsOverHTTP(t *testing.T) {
	env := newAPIEnv(t)
	srv, fake := env.addServer(t, "alpha", models.ServerTypeJellyfin)
	fake.users["remote-1"] = &media.RemoteUser{ExternalID: "remote-1", Username: "stranger"}
	cookies := env.login(t)

	rec, envelope := env.do(t, http.MethodPost, "/api/v1/servers/"+srv.ID+"/sync", nil, cookies)
	if rec.Code != http.StatusOK {
		t.Fatalf("sync: status = %d, body %s", rec.Code, rec.Body.String())
	}
	var run models.SyncRun
	dataInto(t, envelope, &run)
	if run.Status != models.SyncStatusOK {
		t.Fatalf("sync run status = %s, want ok", run.Status)
	}
	if run.UsersImported != 1 {
		t.Errorf("sync imported = %d, want 1", run.UsersImported)
	}

	rec, envelope = env.do(t, http.MethodGet, "/api/v1/servers/"+srv.ID+"/sync/runs", nil, cookies)
	if rec.Code != http.StatusOK {
		t.Fatalf("list runs: status = %d", rec.Code)
	}
	var runs []models.SyncRun
	dataInto(t, envelope, &runs)
	if len(runs) != 1 {
		t.Fatalf("list runs returned %d, want 1", len(runs))
	}
}

func TestLibraryToggleOverHTTP(t *testing.T) {
	env := newAPIEnv(t)
	srv, _ := env.addServer(t, "alpha", models.ServerTypeJellyfin, "Movies", "Shows")
	cookies := env.login(t)

	rec, envelope := env.do(t, http.MethodGet, "/api/v1/servers/"+srv.ID+"/libraries", nil, cookies)
	if rec.Code != http.StatusOK {
		t.Fatalf("list libraries: status = %d", rec.Code)
	}
	var libs []models.Library
	dataInto(t, envelope, &libs)
	if len(libs) != 2 {
		t.Fatalf("list libraries returned %d, want 2", len(libs))
	}

	rec, _ = env.do(t, http.MethodPut, "/api/v1/servers/"+srv.ID+"/libraries/"+libs[0].ID,
		map[string]bool{"enabled": false}, cookies)
	if rec.Code != http.StatusOK {
		t.Fatalf("toggle library: status = %d, body %s", rec.Code, rec.Body.String())
	}

	rec, envelope = env.do(t, http.MethodGet, "/api/v1/servers/"+srv.ID+"/libraries", nil, cookies)
	if rec.Code != http.StatusOK {
		t.Fatalf("relist libraries: status = %d", rec.Code)
	}
	dataInto(t, envelope, &libs)
	var disabled int
	for _, l := range libs {
		if !l.Enabled {
			disabled++
		}
	}
	if disabled != 1 {
		t.Errorf("disabled libraries = %d, want 1", disabled)
	}
}

func TestStatusDashboard(t *testing.T) {
	env := newAPIEnv(t)
	up, _ := env.addServer(t, "alpha", models.ServerTypeJellyfin)
	down, downFake := env.addServer(t, "beta", models.ServerTypePlex)
	downFake.failPing = true
	cookies := env.login(t)

	rec, envelope := env.do(t, http.MethodGet, "/api/v1/status", nil, cookies)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: status = %d, body %s", rec.Code, rec.Body.String())
	}
	var status models.DashboardStatus
	dataInto(t, envelope, &status)
	if len(status.Servers) != 2 {
		t.Fatalf("status servers = %d, want 2", len(status.Servers))
	}
	reachable := map[string]bool{}
	for _, s := range status.Servers {
		reachable[s.ServerID] = s.Reachable
	}
	if !reachable[up.ID] {
		t.Error("alpha reported unreachable")
	}
	if reachable[down.ID] {
		t.Error("beta reported reachable despite failing ping")
	}
	if status.Version == "" || status.Uptime == "" {
		t.Errorf("status version = %q uptime = %q", status.Version, status.Uptime)
	}
}
