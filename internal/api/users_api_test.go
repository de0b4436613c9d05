// Zondarr - Unified Media Server Invitation Manager
// Copyright 2026 Zondarr Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zondarr/zondarr

package api

import (
	"context"
	"net/http"
	"testing"

	"github.com/zondarr/zondarr/internal/media"
	"github.com/zondarr/zondarr/internal/models"
)

func (env *apiEnv) seedUser(t *testing.T, srv *models.MediaServer, fake *fakeMediaClient, username string) *models.User {
	t.Helper()
	fake.users[username] = &media.RemoteUser{ExternalID: username, Username: username}
	u := &models.User{
		ServerID:   srv.ID,
		ExternalID: username,
		Username:   username,
		Enabled:    true,
	}
	if err := env.store.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return u
}

func TestUserEnableDisableOverHTTP(t *testing.T) {
	env := newAPIEnv(t)
	srv, fake := env.addServer(t, "alpha", models.ServerTypeJellyfin)
	user := env.seedUser(t, srv, fake, "dave")
	cookies := env.login(t)

	rec, envelope := env.do(t, http.MethodPost, "/api/v1/users/"+user.ID+"/disable", nil, cookies)
	if rec.Code != http.StatusOK {
		t.Fatalf("disable: status = %d, body %s", rec.Code, rec.Body.String())
	}
	var got models.User
	dataInto(t, envelope, &got)
	if got.Enabled {
		t.Error("disable: user still enabled")
	}
	if !fake.users["dave"].Disabled {
		t.Error("disable: remote account still enabled")
	}

	rec, envelope = env.do(t, http.MethodPost, "/api/v1/users/"+user.ID+"/enable", nil, cookies)
	if rec.Code != http.StatusOK {
		t.Fatalf("enable: status = %d", rec.Code)
	}
	dataInto(t, envelope, &got)
	if !got.Enabled {
		t.Error("enable: user still disabled")
	}
}

func TestUserClaimAndFilterOverHTTP(t *testing.T) {
	env := newAPIEnv(t)
	srv, fake := env.addServer(t, "alpha", models.ServerTypeJellyfin)
	user := env.seedUser(t, srv, fake, "erin")
	cookies := env.login(t)

	rec, envelope := env.do(t, http.MethodPost, "/api/v1/identities/", map[string]interface{}{
		"display_name": "Erin",
	}, cookies)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create identity: status = %d, body %s", rec.Code, rec.Body.String())
	}
	var identity models.Identity
	dataInto(t, envelope, &identity)

	rec, envelope = env.do(t, http.MethodGet, "/api/v1/users/?orphaned=true", nil, cookies)
	if rec.Code != http.StatusOK {
		t.Fatalf("list orphaned: status = %d", rec.Code)
	}
	var users []models.User
	dataInto(t, envelope, &users)
	if len(users) != 1 {
		t.Fatalf("orphaned users = %d, want 1", len(users))
	}

	rec, envelope = env.do(t, http.MethodPost, "/api/v1/users/"+user.ID+"/claim",
		map[string]string{"identity_id": identity.ID}, cookies)
	if rec.Code != http.StatusOK {
		t.Fatalf("claim: status = %d, body %s", rec.Code, rec.Body.String())
	}
	var claimed models.User
	dataInto(t, envelope, &claimed)
	if claimed.IdentityID == nil || *claimed.IdentityID != identity.ID {
		t.Fatalf("claim: identity = %v, want %s", claimed.IdentityID, identity.ID)
	}

	rec, envelope = env.do(t, http.MethodGet, "/api/v1/users/?orphaned=true", nil, cookies)
	if rec.Code != http.StatusOK {
		t.Fatalf("relist orphaned: status = %d", rec.Code)
	}
	dataInto(t, envelope, &users)
	if len(users) != 0 {
		t.Fatalf("orphaned users after claim = %d, want 0", len(users))
	}
}

func TestUserDeleteRemovesRemoteAccount(t *testing.T) {
	env := newAPIEnv(t)
	srv, fake := env.addServer(t, "alpha", models.ServerTypeJellyfin)
	user := env.seedUser(t, srv, fake, "frank")
	cookies := env.login(t)

	rec, _ := env.do(t, http.MethodDelete, "/api/v1/users/"+user.ID, nil, cookies)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete: status = %d, body %s", rec.Code, rec.Body.String())
	}
	if _, ok := fake.users["frank"]; ok {
		t.Error("delete: remote account survived")
	}
	rec, _ = env.do(t, http.MethodGet, "/api/v1/users/"+user.ID, nil, cookies)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("get deleted: status = %d, want 404", rec.Code)
	}
}
