// StreamSync - Live Stream Overlay Notification Pipeline
// Copyright 2026 git-blame-dev
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/git-blame-dev/stream-sync-sub008

package twitchauth

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/git-blame-dev/stream-sync-sub008/internal/config"
	"github.com/git-blame-dev/stream-sync-sub008/internal/logging"
)

// LoopbackFlow implements OAuthFlow by running a local HTTP server and
// waiting for Twitch to redirect back with an authorization code. The
// operator opens AuthorizeURL in a browser; the flow does the rest.
type LoopbackFlow struct {
	cfg    config.TwitchAuthConfig
	client *Client
	server *http.Server
	codes  chan string
}

// NewLoopbackFlow creates a loopback flow bound to cfg.OAuthPort.
func NewLoopbackFlow(cfg config.TwitchAuthConfig) *LoopbackFlow {
	return &LoopbackFlow{
		cfg:    cfg,
		client: NewClient(cfg),
		codes:  make(chan string, 1),
	}
}

// AuthorizeURL is the URL the operator must open to grant access.
func (f *LoopbackFlow) AuthorizeURL() string {
	q := url.Values{
		"response_type": {"code"},
		"client_id":     {f.cfg.ClientID},
		"redirect_uri":  {f.cfg.RedirectURI},
		"scope":         {strings.Join(f.cfg.Scopes, " ")},
	}
	return "https://id.twitch.tv/oauth2/authorize?" + q.Encode()
}

// Obtain runs the loopback server until a code arrives or ctx expires,
// then exchanges the code for tokens.
func (f *LoopbackFlow) Obtain(ctx context.Context) (*Tokens, error) {
	r := chi.NewRouter()
	r.Get("/callback", func(w http.ResponseWriter, req *http.Request) {
		code := req.URL.Query().Get("code")
		if code == "" {
			http.Error(w, "missing code parameter", http.StatusBadRequest)
			return
		}
		select {
		case f.codes <- code:
		default:
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprintln(w, "Authorization received. You can close this tab.")
	})

	f.server = &http.Server{
		Addr:        fmt.Sprintf("127.0.0.1:%d", f.cfg.OAuthPort),
		Handler:     r,
		ReadTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := f.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	defer f.Close()

	logging.Info().
		Str("url", f.AuthorizeURL()).
		Msg("Waiting for Twitch authorization; open the URL in a browser")

	select {
	case code := <-f.codes:
		return f.client.Exchange(ctx, code)
	case err := <-errCh:
		return nil, fmt.Errorf("oauth callback server: %w", err)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close shuts the callback server down. Safe when Obtain never ran.
func (f *LoopbackFlow) Close() error {
	if f.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return f.server.Shutdown(ctx)
}
