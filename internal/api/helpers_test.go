// Zondarr - Unified Media Server Invitation Manager
// Copyright 2026 Zondarr Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zondarr/zondarr

package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/zondarr/zondarr/internal/auth"
	"github.com/zondarr/zondarr/internal/config"
	"github.com/zondarr/zondarr/internal/database"
	"github.com/zondarr/zondarr/internal/logging"
	"github.com/zondarr/zondarr/internal/media"
	"github.com/zondarr/zondarr/internal/models"
	"github.com/zondarr/zondarr/internal/services"
)

const (
	testAdminUser = "admin"
	testAdminPass = "correct-horse-battery"
)

// fakeMediaClient is an in-memory media.Client backing the HTTP tests.
type fakeMediaClient struct {
	mu     sync.Mutex
	name   string
	nextID int

	users     map[string]*media.RemoteUser
	libraries []media.RemoteLibrary

	failPing   bool
	failCreate bool
}

func newFakeMediaClient(name string) *fakeMediaClient {
	return &fakeMediaClient{name: name, users: make(map[string]*media.RemoteUser)}
}

func (f *fakeMediaClient) Ping(ctx context.Context) error {
	if f.failPing {
		return errors.New("connection refused")
	}
	return nil
}

func (f *fakeMediaClient) ServerInfo(ctx context.Context) (*media.ServerInfo, error) {
	if f.failPing {
		return nil, errors.New("connection refused")
	}
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
	return u, nil
}

func (f *fakeMediaClient) UpdateUserPolicy(ctx context.Context, externalID string, policy media.UserPolicy) error {
	return nil
}

func (f *fakeMediaClient) SetEnabled(ctx context.Context, externalID string, enabled bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
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
	return nil
}

// apiEnv is a full stack behind an httptest request: sqlite store,
// fake media backends and the real router with rate limiting off.
type apiEnv struct {
	handler  http.Handler
	store    *database.Store
	registry *media.Registry
	fakes    map[string]*fakeMediaClient
	svc      Services
	capture  *logging.Capture
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Server.Environment = "development"
	cfg.Security.JWTSecret = "0123456789abcdef0123456789abcdef"
	cfg.Security.AccessTokenTTL = 15 * time.Minute
	cfg.Security.RefreshTokenTTL = 24 * time.Hour
	cfg.Security.WizardProgressTTL = time.Hour
	cfg.Security.RateLimitDisabled = true
	cfg.Security.LockoutThreshold = 5
	cfg.Security.LockoutWindow = time.Minute
	cfg.Security.LockoutDuration = time.Minute
	cfg.API.DefaultPageSize = 50
	cfg.API.MaxPageSize = 200
	return cfg
}

func newAPIEnv(t *testing.T) *apiEnv {
	t.Helper()

	store, err := database.NewInMemory()
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	denylist, err := auth.NewDenylist("")
	if err != nil {
		t.Fatalf("open denylist: %v", err)
	}
	t.Cleanup(func() { _ = denylist.Close() })

	cfg := testConfig()
	env := &apiEnv{
		store:    store,
		registry: media.NewRegistry(),
		fakes:    make(map[string]*fakeMediaClient),
		capture:  logging.NewCapture(100),
	}
	factory := func(server *models.MediaServer) media.Client {
		return env.fakes[server.Name]
	}
	env.registry.Register(models.ServerTypeJellyfin, factory)
	env.registry.Register(models.ServerTypePlex, factory)

	issuer := auth.NewTokenIssuer(cfg.Security.JWTSecret,
		cfg.Security.AccessTokenTTL, cfg.Security.RefreshTokenTTL, cfg.Security.WizardProgressTTL)
	lockout := auth.NewLockout(auth.LockoutConfig{
		Threshold: cfg.Security.LockoutThreshold,
		Window:    cfg.Security.LockoutWindow,
		Duration:  cfg.Security.LockoutDuration,
	})

	wizards := services.NewWizardService(store, issuer)
	env.svc = Services{
		Auth:        services.NewAuthService(store, issuer, denylist, lockout, auth.NewPlexPinClient("zondarr-test"), ""),
		Invitations: services.NewInvitationService(store, env.registry, wizards),
		Users:       services.NewUserService(store, env.registry),
		Servers:     services.NewServerService(store, env.registry),
		Sync:        services.NewSyncService(store, env.registry),
		Settings:    services.NewSettingsService(store),
		Wizards:     wizards,
	}

	if err := env.svc.Auth.EnsureAdmin(context.Background(), testAdminUser, testAdminPass); err != nil {
		t.Fatalf("seed admin: %v", err)
	}

	h := NewHandlers(cfg, store, env.svc, env.registry, issuer, denylist, env.capture)
	env.handler = NewRouter(h).Routes()
	return env
}

// addServer seeds a server row with a fake backend and its libraries.
func (env *apiEnv) addServer(t *testing.T, name, serverType string, libraries ...string) (*models.MediaServer, *fakeMediaClient) {
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

// do runs one request through the router and decodes the envelope.
func (env *apiEnv) do(t *testing.T, method, path string, body interface{}, cookies []*http.Cookie) (*httptest.ResponseRecorder, *models.APIResponse) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}

	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	var envelope models.APIResponse
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
			t.Fatalf("decode envelope from %s %s: %v\nbody: %s", method, path, err, rec.Body.String())
		}
	}
	return rec, &envelope
}

// login authenticates the seeded admin and returns the auth cookies.
func (env *apiEnv) login(t *testing.T) []*http.Cookie {
	t.Helper()
	rec, _ := env.do(t, http.MethodPost, "/api/v1/auth/login", map[string]string{
		"username": testAdminUser,
		"password": testAdminPass,
	}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("login: status = %d, body %s", rec.Code, rec.Body.String())
	}
	cookies := rec.Result().Cookies()
	if len(cookies) == 0 {
		t.Fatal("login set no cookies")
	}
	return cookies
}

// dataMap re-decodes envelope data into a map for field assertions.
func dataMap(t *testing.T, envelope *models.APIResponse) map[string]interface{} {
	t.Helper()
	b, err := json.Marshal(envelope.Data)
	if err != nil {
		t.Fatalf("re-marshal data: %v", err)
	}
	var m map[string]interface{}
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	return m
}

// dataInto decodes envelope data into the given destination struct.
func dataInto(t *testing.T, envelope *models.APIResponse, dst interface{}) {
	t.Helper()
	b, err := json.Marshal(envelope.Data)
	if err != nil {
		t.Fatalf("re-marshal data: %v", err)
	}
	if err := json.Unmarshal(b, dst); err != nil {
		t.Fatalf("decode data: %v", err)
	}
}
