// Zondarr - Unified Media Server Invitation Manager
// Copyright 2026 Zondarr Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zondarr/zondarr

package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestPlexPinFlow(t *testing.T) {
	claimed := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Plex-Client-Identifier") == "" {
			t.Error("missing X-Plex-Client-Identifier header")
		}
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/api/v2/pins":
			fmt.Fprintf(w, `{"id":42,"code":"ABCD","expiresAt":%q}`,
				time.Now().Add(15*time.Minute).Format(time.RFC3339))
		case r.Method == http.MethodGet && r.URL.Path == "/api/v2/pins/42":
			if claimed {
				fmt.Fprint(w, `{"id":42,"code":"ABCD","authToken":"tok-1"}`)
			} else {
				fmt.Fprint(w, `{"id":42,"code":"ABCD","authToken":""}`)
			}
		case r.Method == http.MethodGet && r.URL.Path == "/api/v2/user":
			if r.Header.Get("X-Plex-Token") != "tok-1" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			fmt.Fprint(w, `{"id":77,"username":"sam","email":"sam@example.com"}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := NewPlexPinClient("zondarr-test")
	c.SetBaseURL(srv.URL)
	ctx := context.Background()

	pin, err := c.CreatePin(ctx)
	if err != nil {
		t.Fatalf("CreatePin: %v", err)
	}
	if pin.ID != 42 || pin.Code != "ABCD" {
		t.Fatalf("pin mismatch: %+v", pin)
	}

	if _, err := c.CheckPin(ctx, pin.ID); !errors.Is(err, ErrPinPending) {
		t.Fatalf("expected ErrPinPending, got %v", err)
	}

	claimed = true
	acct, err := c.CheckPin(ctx, pin.ID)
	if err != nil {
		t.Fatalf("CheckPin after claim: %v", err)
	}
	if acct.ID != 77 || acct.Username != "sam" || acct.Email != "sam@example.com" {
		t.Fatalf("account mismatch: %+v", acct)
	}

	if _, err := c.CheckPin(ctx, 999); err == nil {
		t.Fatal("unknown pin should error")
	}
}
