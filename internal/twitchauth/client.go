// StreamSync - Live Stream Overlay Notification Pipeline
// Copyright 2026 git-blame-dev
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/git-blame-dev/stream-sync-sub008

package twitchauth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/sony/gobreaker/v2"

	"github.com/git-blame-dev/stream-sync-sub008/internal/config"
	"github.com/git-blame-dev/stream-sync-sub008/internal/logging"
	"github.com/git-blame-dev/stream-sync-sub008/internal/metrics"
)

var (
	// ErrUnauthorized means the access token was rejected by the
	// validate endpoint. Refresh may still succeed.
	ErrUnauthorized = errors.New("twitch rejected access token")

	// ErrInvalidGrant means the refresh token itself is dead. Only a
	// fresh OAuth authorization can recover.
	ErrInvalidGrant = errors.New("refresh token rejected (invalid_grant)")
)

// Tokens is an access/refresh token pair.
type Tokens struct {
	AccessToken  string
	RefreshToken string
}

// TokenInfo is the subset of the validate response the pipeline uses.
type TokenInfo struct {
	ClientID  string `json:"client_id"`
	Login     string `json:"login"`
	UserID    string `json:"user_id"`
	ExpiresIn int    `json:"expires_in"`
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	TokenType    string `json:"token_type"`
}

type tokenError struct {
	Error   string `json:"error"`
	Status  int    `json:"status"`
	Message string `json:"message"`
}

// Client talks to the Twitch identity endpoints. All requests pass
// through a circuit breaker so a flapping identity service cannot hold
// startup hostage with slow failures.
type Client struct {
	cfg     config.TwitchAuthConfig
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[*http.Response]
}

// NewClient builds a client for the endpoints in cfg.
func NewClient(cfg config.TwitchAuthConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	settings := gobreaker.Settings{
		Name:        "twitch-identity",
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Identity circuit breaker state changed")
		},
	}

	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: timeout},
		breaker: gobreaker.NewCircuitBreaker[*http.Response](settings),
	}
}

// do executes the request through the breaker. Any HTTP response counts
// as success for the breaker; only transport failures trip it.
func (c *Client) do(req *http.Request) (*http.Response, error) {
	return c.breaker.Execute(func() (*http.Response, error) {
		return c.http.Do(req)
	})
}

// Validate checks the access token against the validate endpoint.
// Returns ErrUnauthorized when the token is rejected; other errors are
// transient.
func (c *Client) Validate(ctx context.Context, accessToken string) (*TokenInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.ValidateURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build validate request: %w", err)
	}
	req.Header.Set("Authorization", "OAuth "+accessToken)

	resp, err := c.do(req)
	if err != nil {
		return nil, fmt.Errorf("validate token: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		var info TokenInfo
		if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
			return nil, fmt.Errorf("decode validate response: %w", err)
		}
		return &info, nil
	case resp.StatusCode == http.StatusUnauthorized:
		io.Copy(io.Discard, resp.Body)
		return nil, ErrUnauthorized
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("validate endpoint returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
}

// Refresh exchanges the refresh token for a new token pair. Returns
// ErrInvalidGrant when the refresh token is no longer accepted.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*Tokens, error) {
	if c.cfg.ClientSecret == "" {
		return nil, fmt.Errorf("client secret required for token refresh")
	}
	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
		"client_id":     {c.cfg.ClientID},
		"client_secret": {c.cfg.ClientSecret},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.do(req)
	if err != nil {
		metrics.TokenRefreshes.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("refresh token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		var tr tokenResponse
		if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
			metrics.TokenRefreshes.WithLabelValues("error").Inc()
			return nil, fmt.Errorf("decode refresh response: %w", err)
		}
		if tr.AccessToken == "" {
			metrics.TokenRefreshes.WithLabelValues("error").Inc()
			return nil, fmt.Errorf("refresh response missing access token")
		}
		metrics.TokenRefreshes.WithLabelValues("success").Inc()
		tokens := &Tokens{AccessToken: tr.AccessToken, RefreshToken: tr.RefreshToken}
		if tokens.RefreshToken == "" {
			tokens.RefreshToken = refreshToken
		}
		return tokens, nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	var te tokenError
	_ = json.Unmarshal(body, &te)
	if resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnauthorized {
		if te.Error == "invalid_grant" || strings.Contains(te.Message, "Invalid refresh token") {
			metrics.TokenRefreshes.WithLabelValues("invalid_grant").Inc()
			return nil, ErrInvalidGrant
		}
	}
	metrics.TokenRefreshes.WithLabelValues("error").Inc()
	return nil, fmt.Errorf("token endpoint returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
}

// Exchange swaps an authorization code for a token pair at the end of
// an OAuth flow.
func (c *Client) Exchange(ctx context.Context, code string) (*Tokens, error) {
	if c.cfg.ClientSecret == "" {
		return nil, fmt.Errorf("client secret required for code exchange")
	}
	form := url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {code},
		"client_id":     {c.cfg.ClientID},
		"client_secret": {c.cfg.ClientSecret},
		"redirect_uri":  {c.cfg.RedirectURI},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build exchange request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.do(req)
	if err != nil {
		return nil, fmt.Errorf("exchange code: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("token endpoint returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return nil, fmt.Errorf("decode exchange response: %w", err)
	}
	if tr.AccessToken == "" {
		return nil, fmt.Errorf("exchange response missing access token")
	}
	return &Tokens{AccessToken: tr.AccessToken, RefreshToken: tr.RefreshToken}, nil
}
