// Zondarr - Unified Media Server Invitation Manager
// Copyright 2026 Zondarr Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zondarr/zondarr

package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/zondarr/zondarr/internal/auth"
	"github.com/zondarr/zondarr/internal/database"
	"github.com/zondarr/zondarr/internal/media"
	"github.com/zondarr/zondarr/internal/models"
)

// fakeMediaClient is an in-memory media.Client. Failure modes are
// toggled per method to exercise external-first semantics.
type fakeMediaClient struct {
	mu     sync.Mutex
	name   string
	nextID int

	users     map[string]*media.RemoteUser
	policies  map[string]media.UserPolicy
	libraries []media.RemoteLibrary
	deleted   []string

	failCreate     bool
	failSetEnabled bool
	failUsers      bool
}

func newFakeMediaClient(name string) *fakeMediaClient {
	return &fakeMediaClient{
		name:     name,
		users:    make(map[string]*media.RemoteUser),
		policies: make(map[string]media.UserPolicy),
	}
}

func (f *fakeMediaClient) Ping(ctx context.Context) error { return nil }

func (f *fakeMediaClient) ServerInfo(ctx context.Context) (*media.ServerInfo, error) {
	return &media.ServerInfo{Name: f.name, Version: "1.0", ExternalID: "machine-" + f.name}, nil
}

func (f *fakeMediaClient) Libraries(ctx context.Context) ([]media.RemoteLibrary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]media.RemoteLibrary(nil), f.libraries...), nil
}

func (f *fakeMediaClient) Users(ctx context.Context) ([]media.RemoteUser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failUsers {
		return nil, errors.New("listing users failed")
	}
	out := make([]media.RemoteUser, 0, len(f.users))
	for _, u := range f.users {
		out = append(out, *u)
	}
	return out, nil
}

func (f *fakeMediaClient) CreateUser(ctx context.Context, req media.NewUserRequest) (*media.RemoteUser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCreate {
		return nil, errors.New("create user failed")
	}
	f.nextID++
	u := &media.RemoteUser{
		ExternalID: fmt.Sprintf("%s-%d", f.name, f.nextID),
		Username:   req.Username,
		Email:      req.Email,
	}
	f.users[u.ExternalID] = u
	f.policies[u.ExternalID] = req.Policy
	return u, nil
}

func (f *fakeMediaClient) UpdateUserPolicy(ctx context.Context, externalID string, policy media.UserPolicy) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[externalID]; !ok {
		return media.ErrRemoteNotFound
	}
	f.policies[externalID] = policy
	return nil
}

func (f *fakeMediaClient) SetEnabled(ctx context.Context, externalID string, enabled bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSetEnabled {
		return errors.New("set enabled failed")
	}
	u, ok := f.users[externalID]
	if !ok {
		return media.ErrRemoteNotFound
	}
	u.Disabled = !enabled
	return nil
}

func (f *fakeMediaClient) DeleteUser(ctx context.Context, externalID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[externalID]; !ok {
		return media.ErrRemoteNotFound
	}
	delete(f.users, externalID)
	f.deleted = append(f.deleted, externalID)
	return nil
}

func (f *fakeMediaClient) userCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.users)
}

// testEnv bundles a fresh store, a registry whose factories hand out
// fakes keyed by server name, and the services under test.
type testEnv struct {
	store    *database.Store
	registry *media.Registry
	fakes    map[string]*fakeMediaClient
	issuer   *auth.TokenIssuer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store, err := database.NewInMemory()
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	env := &testEnv{
		store:    store,
		registry: media.NewRegistry(),
		fakes:    make(map[string]*fakeMediaClient),
		issuer:   auth.NewTokenIssuer("0123456789abcdef0123456789abcdef", 15*time.Minute, 24*time.Hour, time.Hour),
	}
	factory := func(server *models.MediaServer) media.Client {
		return env.fakes[server.Name]
	}
	env.registry.Register(models.ServerTypeJellyfin, factory)
	env.registry.Register(models.ServerTypePlex, factory)
	return env
}

// addServer creates a server row plus its fake backend, seeded with the
// given libraries (all enabled).
func (env *testEnv) addServer(t *testing.T, name, serverType string, libraries ...string) (*models.MediaServer, *fakeMediaClient) {
	t.Helper()
	fake := newFakeMediaClient(name)
	env.fakes[name] = fake

	srv := &models.MediaServer{
		Name:    name,
		Type:    serverType,
		URL:     "http://" + name + ".local",
		APIKey:  "key-" + name,
		Enabled: true,
	}
	if err := env.store.CreateMediaServer(context.Background(), srv); err != nil {
		t.Fatalf("create server: %v", err)
	}

	libs := make([]models.Library, 0, len(libraries))
	for i, libName := range libraries {
		ext := fmt.Sprintf("lib-%d", i+1)
		libs = append(libs, models.Library{ServerID: srv.ID, ExternalID: ext, Name: libName, Enabled: true})
		fake.libraries = append(fake.libraries, media.RemoteLibrary{ExternalID: ext, Name: libName, Type: "movies"})
	}
	if len(libs) > 0 {
		if err := env.store.ReplaceLibraries(context.Background(), srv.ID, libs); err != nil {
			t.Fatalf("seed libraries: %v", err)
		}
	}
	return srv, fake
}

func (env *testEnv) invitations() *InvitationService {
	return NewInvitationService(env.store, env.registry, NewWizardService(env.store, env.issuer))
}

func intPtr(n int) *int { return &n }

func durationPtr(d time.Duration) *time.Duration { return &d }
