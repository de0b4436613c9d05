// Zondarr - Unified Media Server Invitation Manager
// Copyright 2026 Zondarr Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zondarr/zondarr

// Package models defines the persistent entities and API response
// envelopes shared across the application.
//
// Entities use TEXT UUID primary keys and carry CreatedAt/UpdatedAt
// timestamps maintained by the database package. Nullable columns are
// represented as pointer fields so that JSON omits them cleanly and SQL
// scans map NULL without sentinel values.
package models
