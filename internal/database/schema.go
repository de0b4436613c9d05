// Zondarr - Unified Media Server Invitation Manager
// Copyright 2026 Zondarr Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zondarr/zondarr

package database

// schemaV1 is the initial schema. Timestamps are RFC3339 TEXT (UTC);
// durations are stored as integer seconds.
const schemaV1 = `
CREATE TABLE IF NOT EXISTS media_servers (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	type TEXT NOT NULL CHECK (type IN ('plex','jellyfin')),
	url TEXT NOT NULL,
	api_key TEXT NOT NULL,
	enabled INTEGER NOT NULL DEFAULT 1,
	external_id TEXT NOT NULL DEFAULT '',
	verified INTEGER NOT NULL DEFAULT 0,
	last_sync_at TEXT,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS libraries (
	id TEXT PRIMARY KEY,
	server_id TEXT NOT NULL REFERENCES media_servers(id) ON DELETE CASCADE,
	external_id TEXT NOT NULL,
	name TEXT NOT NULL,
	type TEXT NOT NULL DEFAULT '',
	enabled INTEGER NOT NULL DEFAULT 1,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	UNIQUE (server_id, external_id)
);

CREATE TABLE IF NOT EXISTS identities (
	id TEXT PRIMARY KEY,
	display_name TEXT NOT NULL,
	email TEXT,
	admin INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_identities_email
	ON identities(email) WHERE email IS NOT NULL;

CREATE TABLE IF NOT EXISTS admin_accounts (
	id TEXT PRIMARY KEY,
	username TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	totp_secret TEXT,
	totp_confirmed_at TEXT,
	last_login_at TEXT,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS refresh_tokens (
	id TEXT PRIMARY KEY,
	admin_id TEXT NOT NULL REFERENCES admin_accounts(id) ON DELETE CASCADE,
	issued_at TEXT NOT NULL,
	expires_at TEXT NOT NULL,
	revoked_at TEXT,
	user_agent TEXT NOT NULL DEFAULT '',
	ip TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_refresh_tokens_admin ON refresh_tokens(admin_id);
CREATE INDEX IF NOT EXISTS idx_refresh_tokens_expires ON refresh_tokens(expires_at);

CREATE TABLE IF NOT EXISTS wizards (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	slug TEXT NOT NULL UNIQUE,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS wizard_steps (
	id TEXT PRIMARY KEY,
	wizard_id TEXT NOT NULL REFERENCES wizards(id) ON DELETE CASCADE,
	position INTEGER NOT NULL,
	title TEXT NOT NULL,
	markdown TEXT NOT NULL DEFAULT '',
	require INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	UNIQUE (wizard_id, position)
);

CREATE TABLE IF NOT EXISTS step_interactions (
	id TEXT PRIMARY KEY,
	step_id TEXT NOT NULL REFERENCES wizard_steps(id) ON DELETE CASCADE,
	kind TEXT NOT NULL CHECK (kind IN ('acknowledge','link','download')),
	label TEXT NOT NULL,
	target TEXT NOT NULL DEFAULT '',
	required INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS invitations (
	id TEXT PRIMARY KEY,
	code TEXT NOT NULL UNIQUE,
	label TEXT NOT NULL DEFAULT '',
	created_by TEXT NOT NULL,
	expires_at TEXT,
	max_uses INTEGER,
	use_count INTEGER NOT NULL DEFAULT 0,
	disabled INTEGER NOT NULL DEFAULT 0,
	user_expires_after INTEGER,
	allow_downloads INTEGER NOT NULL DEFAULT 0,
	allow_live_tv INTEGER NOT NULL DEFAULT 0,
	pre_wizard_id TEXT REFERENCES wizards(id) ON DELETE SET NULL,
	post_wizard_id TEXT REFERENCES wizards(id) ON DELETE SET NULL,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS invitation_servers (
	invitation_id TEXT NOT NULL REFERENCES invitations(id) ON DELETE CASCADE,
	server_id TEXT NOT NULL REFERENCES media_servers(id) ON DELETE CASCADE,
	PRIMARY KEY (invitation_id, server_id)
);

CREATE TABLE IF NOT EXISTS invitation_libraries (
	invitation_id TEXT NOT NULL REFERENCES invitations(id) ON DELETE CASCADE,
	library_id TEXT NOT NULL REFERENCES libraries(id) ON DELETE CASCADE,
	PRIMARY KEY (invitation_id, library_id)
);

CREATE TABLE IF NOT EXISTS users (
	id TEXT PRIMARY KEY,
	identity_id TEXT REFERENCES identities(id) ON DELETE SET NULL,
	server_id TEXT NOT NULL REFERENCES media_servers(id) ON DELETE CASCADE,
	external_id TEXT NOT NULL,
	username TEXT NOT NULL,
	email TEXT,
	enabled INTEGER NOT NULL DEFAULT 1,
	expires_at TEXT,
	invitation_id TEXT REFERENCES invitations(id) ON DELETE SET NULL,
	last_seen_at TEXT,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	UNIQUE (server_id, external_id)
);
CREATE INDEX IF NOT EXISTS idx_users_identity ON users(identity_id);
CREATE INDEX IF NOT EXISTS idx_users_expires ON users(expires_at);

CREATE TABLE IF NOT EXISTS sync_runs (
	id TEXT PRIMARY KEY,
	server_id TEXT NOT NULL REFERENCES media_servers(id) ON DELETE CASCADE,
	started_at TEXT NOT NULL,
	finished_at TEXT,
	status TEXT NOT NULL CHECK (status IN ('running','ok','failed')),
	users_seen INTEGER NOT NULL DEFAULT 0,
	users_imported INTEGER NOT NULL DEFAULT 0,
	users_missing INTEGER NOT NULL DEFAULT 0,
	error TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_sync_runs_server ON sync_runs(server_id, started_at);

CREATE TABLE IF NOT EXISTS sync_exclusions (
	id TEXT PRIMARY KEY,
	server_id TEXT NOT NULL REFERENCES media_servers(id) ON DELETE CASCADE,
	external_id TEXT NOT NULL,
	created_at TEXT NOT NULL,
	UNIQUE (server_id, external_id)
);

CREATE TABLE IF NOT EXISTS app_settings (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
`
