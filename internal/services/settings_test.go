// Zondarr - Unified Media Server Invitation Manager
// Copyright 2026 Zondarr Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zondarr/zondarr

package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/zondarr/zondarr/internal/database"
	"github.com/zondarr/zondarr/internal/models"
)

func newSettingsService(t *testing.T, env map[string]string) *SettingsService {
	t.Helper()
	store, err := database.NewInMemory()
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	svc := NewSettingsService(store)
	svc.lookupEnv = func(name string) (string, bool) {
		v, ok := env[name]
		return v, ok
	}
	return svc
}

func TestSettingsPrecedence(t *testing.T) {
	ctx := context.Background()
	svc := newSettingsService(t, map[string]string{
		"ZONDARR_SETTING_LOGIN_MESSAGE": "from env",
	})

	t.Run("default", func(t *testing.T) {
		got, err := svc.Get(ctx, SettingServerName)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if got.Value != "Zondarr" || got.Source != models.SettingSourceDefault {
			t.Fatalf("got %+v, want default Zondarr", got)
		}
	})

	t.Run("db overrides default", func(t *testing.T) {
		if err := svc.Set(ctx, SettingServerName, "Family Server"); err != nil {
			t.Fatalf("set: %v", err)
		}
		got, err := svc.Get(ctx, SettingServerName)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if got.Value != "Family Server" || got.Source != models.SettingSourceDB {
			t.Fatalf("got %+v, want db override", got)
		}
	})

	t.Run("env overrides db and is read-only", func(t *testing.T) {
		got, err := svc.Get(ctx, SettingLoginMessage)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if got.Value != "from env" || got.Source != models.SettingSourceEnv || !got.ReadOnly {
			t.Fatalf("got %+v, want read-only env value", got)
		}
		if err := svc.Set(ctx, SettingLoginMessage, "nope"); !errors.Is(err, ErrSettingReadOnly) {
			t.Fatalf("got %v, want ErrSettingReadOnly", err)
		}
	})

	t.Run("reset falls back", func(t *testing.T) {
		if err := svc.Reset(ctx, SettingServerName); err != nil {
			t.Fatalf("reset: %v", err)
		}
		got, err := svc.Get(ctx, SettingServerName)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if got.Source != models.SettingSourceDefault {
			t.Fatalf("source = %q, want default", got.Source)
		}
	})
}

func TestSettingsUnknownKeyAndValidation(t *testing.T) {
	ctx := context.Background()
	svc := newSettingsService(t, nil)

	if _, err := svc.Get(ctx, "no_such_key"); !errors.Is(err, ErrUnknownSetting) {
		t.Fatalf("got %v, want ErrUnknownSetting", err)
	}
	if err := svc.Set(ctx, "no_such_key", "x"); !errors.Is(err, ErrUnknownSetting) {
		t.Fatalf("got %v, want ErrUnknownSetting", err)
	}

	cases := []struct {
		key   string
		value string
		ok    bool
	}{
		{SettingDefaultInviteDuration, "72h", true},
		{SettingDefaultInviteDuration, "three days", false},
		{SettingDefaultMaxUses, "5", true},
		{SettingDefaultMaxUses, "0", false},
		{SettingRequireEmail, "true", true},
		{SettingRequireEmail, "maybe", false},
	}
	for _, tc := range cases {
		err := svc.Set(ctx, tc.key, tc.value)
		if tc.ok && err != nil {
			t.Errorf("%s=%q: unexpected error %v", tc.key, tc.value, err)
		}
		if !tc.ok && err == nil {
			t.Errorf("%s=%q: expected validation error", tc.key, tc.value)
		}
	}
}

func TestSettingsListAndDuration(t *testing.T) {
	ctx := context.Background()
	svc := newSettingsService(t, nil)

	all, err := svc.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != len(settingRegistry) {
		t.Fatalf("listed %d settings, want %d", len(all), len(settingRegistry))
	}
	for i := 1; i < len(all); i++ {
		if all[i-1].Key >= all[i].Key {
			t.Fatalf("settings not sorted: %q before %q", all[i-1].Key, all[i].Key)
		}
	}

	if err := svc.Set(ctx, SettingDefaultInviteDuration, "48h"); err != nil {
		t.Fatalf("set: %v", err)
	}
	d, err := svc.Duration(ctx, SettingDefaultInviteDuration)
	if err != nil {
		t.Fatalf("duration: %v", err)
	}
	if d != 48*time.Hour {
		t.Fatalf("duration = %v, want 48h", d)
	}
}
