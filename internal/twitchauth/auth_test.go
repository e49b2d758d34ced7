// StreamSync - Live Stream Overlay Notification Pipeline
// Copyright 2026 git-blame-dev
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/git-blame-dev/stream-sync-sub008

package twitchauth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/git-blame-dev/stream-sync-sub008/internal/config"
)

type identityStub struct {
	validateCalls atomic.Int64
	refreshCalls  atomic.Int64

	validateStatus atomic.Int64 // HTTP status for GET /validate
	refreshStatus  atomic.Int64 // HTTP status for POST /token
	refreshBody    string
}

func newIdentityStub() *identityStub {
	s := &identityStub{}
	s.validateStatus.Store(http.StatusOK)
	s.refreshStatus.Store(http.StatusOK)
	return s
}

func (s *identityStub) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/validate", func(w http.ResponseWriter, r *http.Request) {
		s.validateCalls.Add(1)
		status := int(s.validateStatus.Load())
		w.WriteHeader(status)
		if status == http.StatusOK {
			w.Write([]byte(`{"client_id":"cid","login":"streamer","user_id":"42","expires_in":3600}`))
		} else {
			w.Write([]byte(`{"status":401,"message":"invalid access token"}`))
		}
	})
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		s.refreshCalls.Add(1)
		status := int(s.refreshStatus.Load())
		w.WriteHeader(status)
		if status == http.StatusOK {
			w.Write([]byte(`{"access_token":"new_access","refresh_token":"new_refresh","expires_in":14400}`))
		} else {
			body := s.refreshBody
			if body == "" {
				body = `{"error":"invalid_grant","status":400,"message":"Invalid refresh token"}`
			}
			w.Write([]byte(body))
		}
	})
	return mux
}

func testAuthConfig(srv *httptest.Server) config.TwitchAuthConfig {
	return config.TwitchAuthConfig{
		ClientID:     "cid",
		ClientSecret: "secret",
		AccessToken:  "stored_access",
		RefreshToken: "stored_refresh",
		ValidateURL:  srv.URL + "/validate",
		TokenURL:     srv.URL + "/token",
		Timeout:      2 * time.Second,
	}
}

type stubFlow struct {
	calls  atomic.Int64
	tokens *Tokens
	err    error
}

func (f *stubFlow) Obtain(ctx context.Context) (*Tokens, error) {
	f.calls.Add(1)
	return f.tokens, f.err
}

func TestInitialize_ValidTokenGoesReady(t *testing.T) {
	stub := newIdentityStub()
	srv := httptest.NewServer(stub.handler())
	defer srv.Close()

	m := NewManager(testAuthConfig(srv), nil)
	if err := m.Initialize(context.Background()); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if m.State() != StateReady {
		t.Errorf("state = %s, want READY", m.State())
	}
	if got := stub.validateCalls.Load(); got != 1 {
		t.Errorf("validate calls = %d", got)
	}
	if got := stub.refreshCalls.Load(); got != 0 {
		t.Errorf("refresh must not run for a valid token, calls = %d", got)
	}
}

func TestInitialize_ExpiredTokenRefreshesBeforeOAuth(t *testing.T) {
	stub := newIdentityStub()
	stub.validateStatus.Store(http.StatusUnauthorized)
	srv := httptest.NewServer(stub.handler())
	defer srv.Close()

	flow := &stubFlow{tokens: &Tokens{AccessToken: "flow_access"}}
	m := NewManager(testAuthConfig(srv), flow)

	if err := m.Initialize(context.Background()); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if m.State() != StateReady {
		t.Errorf("state = %s, want READY", m.State())
	}
	if flow.calls.Load() != 0 {
		t.Error("oauth flow must not run when refresh succeeds")
	}
	tokens := m.Tokens()
	if tokens.AccessToken != "new_access" || tokens.RefreshToken != "new_refresh" {
		t.Errorf("tokens = %+v", tokens)
	}
}

func TestInitialize_InvalidGrantFallsBackToOAuth(t *testing.T) {
	stub := newIdentityStub()
	stub.validateStatus.Store(http.StatusUnauthorized)
	stub.refreshStatus.Store(http.StatusBadRequest)
	srv := httptest.NewServer(stub.handler())
	defer srv.Close()

	flow := &stubFlow{tokens: &Tokens{AccessToken: "flow_access", RefreshToken: "flow_refresh"}}
	m := NewManager(testAuthConfig(srv), flow)

	if err := m.Initialize(context.Background()); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if m.State() != StateReady {
		t.Errorf("state = %s, want READY", m.State())
	}
	if flow.calls.Load() != 1 {
		t.Errorf("oauth flow calls = %d, want 1", flow.calls.Load())
	}
	if tokens := m.Tokens(); tokens.AccessToken != "flow_access" {
		t.Errorf("tokens = %+v", tokens)
	}
}

func TestInitialize_InvalidGrantWithoutFlowFails(t *testing.T) {
	stub := newIdentityStub()
	stub.validateStatus.Store(http.StatusUnauthorized)
	stub.refreshStatus.Store(http.StatusBadRequest)
	srv := httptest.NewServer(stub.handler())
	defer srv.Close()

	m := NewManager(testAuthConfig(srv), nil)
	if err := m.Initialize(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if m.State() != StateFailed {
		t.Errorf("state = %s, want FAILED", m.State())
	}
}

func TestInitialize_MissingClientCredentialsFailsWithoutOAuth(t *testing.T) {
	stub := newIdentityStub()
	srv := httptest.NewServer(stub.handler())
	defer srv.Close()

	cfg := testAuthConfig(srv)
	cfg.ClientID = ""
	flow := &stubFlow{tokens: &Tokens{AccessToken: "x"}}
	m := NewManager(cfg, flow)

	if err := m.Initialize(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if m.State() != StateFailed {
		t.Errorf("state = %s, want FAILED", m.State())
	}
	if flow.calls.Load() != 0 {
		t.Error("oauth flow must not run without client credentials")
	}
	if stub.validateCalls.Load() != 0 {
		t.Error("no network calls expected without client credentials")
	}
}

func TestInitialize_PlaceholderTokensSkipNetwork(t *testing.T) {
	stub := newIdentityStub()
	srv := httptest.NewServer(stub.handler())
	defer srv.Close()

	cfg := testAuthConfig(srv)
	cfg.AccessToken = "test_token_access"
	cfg.RefreshToken = "test_token_refresh"
	flow := &stubFlow{tokens: &Tokens{AccessToken: "flow_access"}}
	m := NewManager(cfg, flow)

	if err := m.Initialize(context.Background()); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if m.State() != StateReady {
		t.Errorf("state = %s, want READY", m.State())
	}
	if stub.validateCalls.Load() != 0 || stub.refreshCalls.Load() != 0 {
		t.Error("placeholder tokens must never reach the network")
	}
	if flow.calls.Load() != 1 {
		t.Errorf("oauth flow calls = %d, want 1", flow.calls.Load())
	}
}

func TestInitialize_TransientFailureIsRetryable(t *testing.T) {
	stub := newIdentityStub()
	stub.validateStatus.Store(http.StatusInternalServerError)
	srv := httptest.NewServer(stub.handler())
	defer srv.Close()

	m := NewManager(testAuthConfig(srv), nil)
	if err := m.Initialize(context.Background()); err == nil {
		t.Fatal("expected error for transient failure")
	}
	if m.State() != StateUninitialized {
		t.Errorf("state = %s, want UNINITIALIZED", m.State())
	}

	stub.validateStatus.Store(http.StatusOK)
	if err := m.Initialize(context.Background()); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if m.State() != StateReady {
		t.Errorf("state = %s, want READY", m.State())
	}
}

func TestManagers_AreIsolated(t *testing.T) {
	stub := newIdentityStub()
	srv := httptest.NewServer(stub.handler())
	defer srv.Close()

	good := NewManager(testAuthConfig(srv), nil)
	badCfg := testAuthConfig(srv)
	badCfg.ClientID = ""
	bad := NewManager(badCfg, nil)

	if err := bad.Initialize(context.Background()); err == nil {
		t.Fatal("expected failure")
	}
	if err := good.Initialize(context.Background()); err != nil {
		t.Fatalf("good manager affected by bad one: %v", err)
	}
	if good.State() != StateReady || bad.State() != StateFailed {
		t.Errorf("states = %s / %s", good.State(), bad.State())
	}
}

func TestUpdateConfig_ResetsFromReady(t *testing.T) {
	stub := newIdentityStub()
	srv := httptest.NewServer(stub.handler())
	defer srv.Close()

	m := NewManager(testAuthConfig(srv), nil)
	if err := m.Initialize(context.Background()); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if m.State() != StateReady {
		t.Fatalf("state = %s, want READY", m.State())
	}

	next := testAuthConfig(srv)
	next.AccessToken = "rotated_access"
	next.RefreshToken = "rotated_refresh"
	m.UpdateConfig(next)

	if m.State() != StateUninitialized {
		t.Errorf("state = %s, want UNINITIALIZED after config update", m.State())
	}
	if tokens := m.Tokens(); tokens.AccessToken != "rotated_access" {
		t.Errorf("tokens = %+v", tokens)
	}

	// The machine must accept a full lifecycle again.
	if err := m.Initialize(context.Background()); err != nil {
		t.Fatalf("reinitialize: %v", err)
	}
	if m.State() != StateReady {
		t.Errorf("state = %s, want READY after revalidation", m.State())
	}
}

func TestUpdateConfig_RecoversFromFailed(t *testing.T) {
	stub := newIdentityStub()
	srv := httptest.NewServer(stub.handler())
	defer srv.Close()

	cfg := testAuthConfig(srv)
	cfg.ClientID = ""
	m := NewManager(cfg, nil)

	if err := m.Initialize(context.Background()); err == nil {
		t.Fatal("expected failure without client id")
	}
	if m.State() != StateFailed {
		t.Fatalf("state = %s, want FAILED", m.State())
	}

	m.UpdateConfig(testAuthConfig(srv))
	if m.State() != StateUninitialized {
		t.Fatalf("state = %s, want UNINITIALIZED", m.State())
	}
	if err := m.Initialize(context.Background()); err != nil {
		t.Fatalf("initialize after credential fix: %v", err)
	}
	if m.State() != StateReady {
		t.Errorf("state = %s, want READY", m.State())
	}
}

func TestUpdateConfig_InstancesIsolated(t *testing.T) {
	stub := newIdentityStub()
	srv := httptest.NewServer(stub.handler())
	defer srv.Close()

	a := NewManager(testAuthConfig(srv), nil)
	b := NewManager(testAuthConfig(srv), nil)
	if err := a.Initialize(context.Background()); err != nil {
		t.Fatalf("a initialize: %v", err)
	}
	if err := b.Initialize(context.Background()); err != nil {
		t.Fatalf("b initialize: %v", err)
	}

	next := testAuthConfig(srv)
	next.AccessToken = "rotated_access"
	a.UpdateConfig(next)

	if a.State() != StateUninitialized {
		t.Errorf("a state = %s, want UNINITIALIZED", a.State())
	}
	if b.State() != StateReady {
		t.Errorf("b state = %s; updating one instance must not touch another", b.State())
	}
	if tokens := b.Tokens(); tokens.AccessToken == "rotated_access" {
		t.Error("b tokens mutated by a's config update")
	}
}

func TestValidateTokens_SecretNotRequiredForValidation(t *testing.T) {
	stub := newIdentityStub()
	srv := httptest.NewServer(stub.handler())
	defer srv.Close()

	cfg := testAuthConfig(srv)
	cfg.ClientSecret = ""
	m := NewManager(cfg, nil)

	v := m.ValidateTokens(context.Background())
	if !v.IsValid {
		t.Errorf("verdict = %+v, want IsValid", v)
	}
	if err := m.Initialize(context.Background()); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if m.State() != StateReady {
		t.Errorf("state = %s, want READY", m.State())
	}
}

func TestClient_RefreshRequiresSecret(t *testing.T) {
	stub := newIdentityStub()
	srv := httptest.NewServer(stub.handler())
	defer srv.Close()

	cfg := testAuthConfig(srv)
	cfg.ClientSecret = ""
	c := NewClient(cfg)

	if _, err := c.Refresh(context.Background(), "stored_refresh"); err == nil {
		t.Fatal("refresh without a client secret must fail")
	}
	if stub.refreshCalls.Load() != 0 {
		t.Error("no network call expected without a client secret")
	}
}

func TestCleanup_Idempotent(t *testing.T) {
	stub := newIdentityStub()
	srv := httptest.NewServer(stub.handler())
	defer srv.Close()

	m := NewManager(testAuthConfig(srv), nil)
	m.Cleanup()
	m.Cleanup()

	select {
	case <-m.Done():
	default:
		t.Error("done channel should be closed after cleanup")
	}
}

func TestMachine_RejectsInvalidTransitions(t *testing.T) {
	m := newMachine()
	if err := m.transition(StateFailed); err != nil {
		t.Fatalf("uninitialized -> failed: %v", err)
	}
	if err := m.transition(StateReady); err == nil {
		t.Error("failed state must be terminal")
	}
}

func TestValidateTokens_EmptyAccessWithRefresh(t *testing.T) {
	stub := newIdentityStub()
	srv := httptest.NewServer(stub.handler())
	defer srv.Close()

	cfg := testAuthConfig(srv)
	cfg.AccessToken = ""
	m := NewManager(cfg, nil)

	v := m.ValidateTokens(context.Background())
	if !v.NeedsRefresh {
		t.Errorf("verdict = %+v, want NeedsRefresh", v)
	}
	if stub.validateCalls.Load() != 0 {
		t.Error("no probe needed when access token is absent")
	}
}

func TestLoopbackFlow_AuthorizeURLUsesConfiguredScopes(t *testing.T) {
	cfg := config.TwitchAuthConfig{
		ClientID:    "cid",
		RedirectURI: "http://localhost:3000",
		Scopes:      []string{"chat:read", "bits:read"},
	}

	u, err := url.Parse(NewLoopbackFlow(cfg).AuthorizeURL())
	if err != nil {
		t.Fatalf("parse authorize url: %v", err)
	}
	if got := u.Query().Get("scope"); got != "chat:read bits:read" {
		t.Errorf("scope = %q", got)
	}
}

func TestClient_RefreshInvalidGrant(t *testing.T) {
	stub := newIdentityStub()
	stub.refreshStatus.Store(http.StatusBadRequest)
	srv := httptest.NewServer(stub.handler())
	defer srv.Close()

	c := NewClient(testAuthConfig(srv))
	_, err := c.Refresh(context.Background(), "dead_refresh")
	if !errors.Is(err, ErrInvalidGrant) {
		t.Errorf("err = %v, want ErrInvalidGrant", err)
	}
}
