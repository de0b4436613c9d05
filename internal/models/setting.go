// Zondarr - Unified Media Server Invitation Manager
// Copyright 2026 Zondarr Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zondarr/zondarr

package models

import "time"

// Setting sources, in precedence order: env beats db beats default.
const (
	SettingSourceEnv     = "env"
	SettingSourceDB      = "db"
	SettingSourceDefault = "default"
)

// AppSetting is a stored override for a registered settings key.
type AppSetting struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ResolvedSetting is what the settings API returns: the effective value
// plus where it came from. Env-sourced settings are read-only.
type ResolvedSetting struct {
	Key      string `json:"key"`
	Value    string `json:"value"`
	Source   string `json:"source"`
	ReadOnly bool   `json:"read_only"`
}
