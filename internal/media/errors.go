// Zondarr - Unified Media Server Invitation Manager
// Copyright 2026 Zondarr Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zondarr/zondarr

package media

import "errors"

var (
	// ErrUnknownServerType indicates a server row carries a type no
	// registered factory handles.
	ErrUnknownServerType = errors.New("unknown media server type")

	// ErrRemoteNotFound indicates the remote API returned 404 for the
	// requested account or resource.
	ErrRemoteNotFound = errors.New("remote resource not found")

	// ErrUnauthorized indicates the API key or token was rejected.
	ErrUnauthorized = errors.New("media server rejected credentials")
)
