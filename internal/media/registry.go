// Zondarr - Unified Media Server Invitation Manager
// Copyright 2026 Zondarr Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zondarr/zondarr

package media

import (
	"fmt"
	"sync"

	"github.com/zondarr/zondarr/internal/models"
)

// Factory builds a concrete client for one server row.
type Factory func(server *models.MediaServer) Client

// Registry maps server types to client factories and caches the built
// (breaker-wrapped) client per server id. Changing a server's URL or
// API key must Invalidate its entry.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	clients   map[string]Client
}

// NewRegistry returns a registry with the built-in Plex and Jellyfin
// factories registered.
func NewRegistry() *Registry {
	r := &Registry{
		factories: make(map[string]Factory),
		clients:   make(map[string]Client),
	}
	r.Register(models.ServerTypeJellyfin, func(server *models.MediaServer) Client {
		return NewJellyfinClient(server.URL, server.APIKey)
	})
	r.Register(models.ServerTypePlex, func(server *models.MediaServer) Client {
		return NewPlexClient(server.URL, server.APIKey)
	})
	return r
}

// Register installs a factory for a server type, replacing any existing
// one. Exposed so tests can inject fake clients.
func (r *Registry) Register(serverType string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[serverType] = f
}

// ClientFor returns the breaker-wrapped client for a server, building
// and caching it on first use.
func (r *Registry) ClientFor(server *models.MediaServer) (Client, error) {
	r.mu.RLock()
	if c, ok := r.clients[server.ID]; ok {
		r.mu.RUnlock()
		return c, nil
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.clients[server.ID]; ok {
		return c, nil
	}
	factory, ok := r.factories[server.Type]
	if !ok {
		return nil, fmt.Errorf("%q: %w", server.Type, ErrUnknownServerType)
	}
	c := Client(NewBreakerClient(server.Type+"-"+server.ID, factory(server)))
	r.clients[server.ID] = c
	return c, nil
}

// Invalidate drops the cached client for a server so the next ClientFor
// rebuilds it with fresh connection details.
func (r *Registry) Invalidate(serverID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.clients, serverID)
}
