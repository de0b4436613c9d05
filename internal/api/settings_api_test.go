// Zondarr - Unified Media Server Invitation Manager
// Copyright 2026 Zondarr Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zondarr/zondarr

package api

import (
	"net/http"
	"testing"

	"github.com/zondarr/zondarr/internal/models"
)

func TestSettingsEndpoints(t *testing.T) {
	env := newAPIEnv(t)
	cookies := env.login(t)

	rec, envelope := env.do(t, http.MethodGet, "/api/v1/settings/", nil, cookies)
	if rec.Code != http.StatusOK {
		t.Fatalf("list: status = %d", rec.Code)
	}
	var settings []models.ResolvedSetting
	dataInto(t, envelope, &settings)
	if len(settings) == 0 {
		t.Fatal("list returned no settings")
	}

	rec, envelope = env.do(t, http.MethodPut, "/api/v1/settings/default_invite_duration",
		map[string]string{"value": "72h"}, cookies)
	if rec.Code != http.StatusOK {
		t.Fatalf("put: status = %d, body %s", rec.Code, rec.Body.String())
	}
	var setting models.ResolvedSetting
	dataInto(t, envelope, &setting)
	if setting.Value != "72h" || setting.Source != models.SettingSourceDB {
		t.Errorf("put: value = %q source = %q", setting.Value, setting.Source)
	}

	rec, envelope = env.do(t, http.MethodPut, "/api/v1/settings/default_invite_duration",
		map[string]string{"value": "not a duration"}, cookies)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("put invalid: status = %d, want 400", rec.Code)
	}

	rec, envelope = env.do(t, http.MethodPut, "/api/v1/settings/no_such_key",
		map[string]string{"value": "x"}, cookies)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("put unknown key: status = %d, want 400", rec.Code)
	}

	rec, envelope = env.do(t, http.MethodDelete, "/api/v1/settings/default_invite_duration", nil, cookies)
	if rec.Code != http.StatusOK {
		t.Fatalf("reset: status = %d", rec.Code)
	}
	dataInto(t, envelope, &setting)
	if setting.Source != models.SettingSourceDefault {
		t.Errorf("reset: source = %q, want default", setting.Source)
	}
}
