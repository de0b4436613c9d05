// Zondarr - Unified Media Server Invitation Manager
// Copyright 2026 Zondarr Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zondarr/zondarr

package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/zondarr/zondarr/internal/database"
	"github.com/zondarr/zondarr/internal/models"
)

// Registered settings keys.
const (
	SettingServerName            = "server_name"
	SettingLoginMessage          = "login_message"
	SettingDefaultInviteDuration = "default_invite_duration"
	SettingDefaultMaxUses        = "default_max_uses"
	SettingRequireEmail          = "require_email"
	SettingAllowDownloadsDefault = "allow_downloads_default"
)

// settingEnvPrefix + upper-cased key names the environment override,
// e.g. ZONDARR_SETTING_SERVER_NAME.
const settingEnvPrefix = "ZONDARR_SETTING_"

type settingSpec struct {
	defaultValue string
	validate     func(string) error
}

// settingRegistry maps every known key to its default and validator.
// Values are stored as strings; typed keys validate on write.
var settingRegistry = map[string]settingSpec{
	SettingServerName:            {defaultValue: "Zondarr"},
	SettingLoginMessage:          {defaultValue: ""},
	SettingDefaultInviteDuration: {defaultValue: "168h", validate: validateDuration},
	SettingDefaultMaxUses:        {defaultValue: "1", validate: validatePositiveInt},
	SettingRequireEmail:          {defaultValue: "false", validate: validateBool},
	SettingAllowDownloadsDefault: {defaultValue: "true", validate: validateBool},
}

func validateDuration(v string) error {
	if _, err := time.ParseDuration(v); err != nil {
		return fmt.Errorf("not a duration: %q", v)
	}
	return nil
}

func validatePositiveInt(v string) error {
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return fmt.Errorf("not a positive integer: %q", v)
	}
	return nil
}

func validateBool(v string) error {
	if _, err := strconv.ParseBool(v); err != nil {
		return fmt.Errorf("not a boolean: %q", v)
	}
	return nil
}

// SettingsService resolves registered settings with env > database >
// default precedence.
type SettingsService struct {
	store *database.Store

	// lookupEnv is swapped in tests.
	lookupEnv func(string) (string, bool)
}

// NewSettingsService builds the service.
func NewSettingsService(store *database.Store) *SettingsService {
	return &SettingsService{store: store, lookupEnv: os.LookupEnv}
}

// Get resolves a single key.
func (s *SettingsService) Get(ctx context.Context, key string) (*models.ResolvedSetting, error) {
	spec, ok := settingRegistry[key]
	if !ok {
		return nil, fmt.Errorf("%q: %w", key, ErrUnknownSetting)
	}
	if v, ok := s.lookupEnv(envName(key)); ok {
		return &models.ResolvedSetting{Key: key, Value: v, Source: models.SettingSourceEnv, ReadOnly: true}, nil
	}
	row, err := s.store.GetSetting(ctx, key)
	switch {
	case err == nil:
		return &models.ResolvedSetting{Key: key, Value: row.Value, Source: models.SettingSourceDB}, nil
	case errors.Is(err, database.ErrNotFound):
		return &models.ResolvedSetting{Key: key, Value: spec.defaultValue, Source: models.SettingSourceDefault}, nil
	default:
		return nil, err
	}
}

// List resolves every registered key, sorted by key name.
func (s *SettingsService) List(ctx context.Context) ([]models.ResolvedSetting, error) {
	stored, err := s.store.ListSettings(ctx)
	if err != nil {
		return nil, err
	}
	byKey := make(map[string]string, len(stored))
	for _, row := range stored {
		byKey[row.Key] = row.Value
	}

	out := make([]models.ResolvedSetting, 0, len(settingRegistry))
	for key, spec := range settingRegistry {
		r := models.ResolvedSetting{Key: key, Value: spec.defaultValue, Source: models.SettingSourceDefault}
		if v, ok := byKey[key]; ok {
			r.Value, r.Source = v, models.SettingSourceDB
		}
		if v, ok := s.lookupEnv(envName(key)); ok {
			r.Value, r.Source, r.ReadOnly = v, models.SettingSourceEnv, true
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// Set stores a database override. Env-controlled keys are rejected.
func (s *SettingsService) Set(ctx context.Context, key, value string) error {
	spec, ok := settingRegistry[key]
	if !ok {
		return fmt.Errorf("%q: %w", key, ErrUnknownSetting)
	}
	if _, ok := s.lookupEnv(envName(key)); ok {
		return fmt.Errorf("%q: %w", key, ErrSettingReadOnly)
	}
	if spec.validate != nil {
		if err := spec.validate(value); err != nil {
			return err
		}
	}
	return s.store.PutSetting(ctx, key, value)
}

// Reset drops the database override so the key falls back to its env
// value or default.
func (s *SettingsService) Reset(ctx context.Context, key string) error {
	if _, ok := settingRegistry[key]; !ok {
		return fmt.Errorf("%q: %w", key, ErrUnknownSetting)
	}
	return s.store.DeleteSetting(ctx, key)
}

// Duration resolves a duration-typed key, falling back to the compiled
// default when the stored value does not parse.
func (s *SettingsService) Duration(ctx context.Context, key string) (time.Duration, error) {
	r, err := s.Get(ctx, key)
	if err != nil {
		return 0, err
	}
	if d, err := time.ParseDuration(r.Value); err == nil {
		return d, nil
	}
	return time.ParseDuration(settingRegistry[key].defaultValue)
}

func envName(key string) string {
	return settingEnvPrefix + strings.ToUpper(key)
}
