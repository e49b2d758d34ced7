// StreamSync - Live Stream Overlay Notification Pipeline
// Copyright 2026 git-blame-dev
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/git-blame-dev/stream-sync-sub008

package twitchauth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/git-blame-dev/stream-sync-sub008/internal/config"
	"github.com/git-blame-dev/stream-sync-sub008/internal/logging"
)

// placeholderPrefix marks tokens seeded by test fixtures and example
// configs. They are never sent to the network.
const placeholderPrefix = "test_token_"

// Verdict is the outcome of inspecting the stored tokens. Exactly one
// primary field is set; Retryable marks transient probe failures.
type Verdict struct {
	IsValid                  bool
	NeedsRefresh             bool
	NeedsNewTokens           bool
	MissingClientCredentials bool
	Retryable                bool
}

// OAuthFlow obtains a brand-new token pair interactively. Implementations
// typically run a loopback HTTP server and wait for the redirect.
type OAuthFlow interface {
	Obtain(ctx context.Context) (*Tokens, error)
}

// OAuthFlowFunc adapts a function to OAuthFlow.
type OAuthFlowFunc func(ctx context.Context) (*Tokens, error)

// Obtain implements OAuthFlow.
func (f OAuthFlowFunc) Obtain(ctx context.Context) (*Tokens, error) { return f(ctx) }

// Manager drives the token lifecycle for one Twitch account. Each
// manager owns a private copy of its config and its own state machine,
// so multiple accounts never interfere with each other.
type Manager struct {
	machine *machine
	flow    OAuthFlow

	// mu guards cfg, client, and tokens; UpdateConfig swaps all three.
	mu     sync.Mutex
	cfg    config.TwitchAuthConfig
	client *Client
	tokens Tokens

	cleanup sync.Once
	done    chan struct{}
}

// NewManager creates a manager for the given account config. The config
// is copied; later mutations of the caller's struct have no effect.
func NewManager(cfg config.TwitchAuthConfig, flow OAuthFlow) *Manager {
	return &Manager{
		cfg:     cfg,
		client:  NewClient(cfg),
		machine: newMachine(),
		flow:    flow,
		tokens: Tokens{
			AccessToken:  cfg.AccessToken,
			RefreshToken: cfg.RefreshToken,
		},
		done: make(chan struct{}),
	}
}

// UpdateConfig swaps the account credentials and forces the machine
// back to UNINITIALIZED so the next Initialize revalidates from
// scratch. Works from any state, including FAILED. Each manager owns a
// private config copy; updating one instance never affects another.
func (m *Manager) UpdateConfig(cfg config.TwitchAuthConfig) {
	m.mu.Lock()
	m.cfg = cfg
	m.client = NewClient(cfg)
	m.tokens = Tokens{
		AccessToken:  cfg.AccessToken,
		RefreshToken: cfg.RefreshToken,
	}
	m.mu.Unlock()

	m.machine.reset()
}

// config returns a copy of the current account config.
func (m *Manager) config() config.TwitchAuthConfig {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cfg
}

// api returns the identity client for the current config.
func (m *Manager) api() *Client {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.client
}

// State returns the current lifecycle state.
func (m *Manager) State() State { return m.machine.Current() }

// Ready reports whether a valid access token is available.
func (m *Manager) Ready() bool { return m.machine.Current() == StateReady }

// Tokens returns a copy of the current token pair.
func (m *Manager) Tokens() Tokens {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tokens
}

func (m *Manager) setTokens(t Tokens) {
	m.mu.Lock()
	m.tokens = t
	m.mu.Unlock()
}

func isPlaceholder(token string) bool {
	return strings.HasPrefix(token, placeholderPrefix)
}

// ValidateTokens inspects the stored credentials and probes the
// validate endpoint when that is the only way to decide. It never
// mutates state; Initialize acts on the verdict.
func (m *Manager) ValidateTokens(ctx context.Context) Verdict {
	// The client secret is only needed for the token-exchange grants;
	// validation runs on the access token alone.
	if m.config().ClientID == "" {
		return Verdict{MissingClientCredentials: true}
	}

	tokens := m.Tokens()
	if isPlaceholder(tokens.AccessToken) || isPlaceholder(tokens.RefreshToken) {
		return Verdict{NeedsNewTokens: true}
	}
	if tokens.AccessToken == "" && tokens.RefreshToken == "" {
		return Verdict{NeedsNewTokens: true}
	}
	if tokens.AccessToken == "" {
		return Verdict{NeedsRefresh: true}
	}

	_, err := m.api().Validate(ctx, tokens.AccessToken)
	switch {
	case err == nil:
		return Verdict{IsValid: true}
	case errors.Is(err, ErrUnauthorized):
		if tokens.RefreshToken != "" {
			return Verdict{NeedsRefresh: true}
		}
		return Verdict{NeedsNewTokens: true}
	default:
		logging.Warn().Err(err).Msg("Token validation probe failed")
		return Verdict{Retryable: true}
	}
}

// Initialize drives the machine from its current state to READY or
// FAILED. Transient errors leave the state unchanged and return an
// error so a supervisor can retry. Refresh is always attempted before
// falling back to a fresh OAuth authorization.
func (m *Manager) Initialize(ctx context.Context) error {
	verdict := m.ValidateTokens(ctx)

	switch {
	case verdict.MissingClientCredentials:
		// No OAuth flow can succeed without client credentials, so
		// there is nothing to wait for.
		if err := m.machine.transition(StateFailed); err != nil {
			return err
		}
		return fmt.Errorf("twitch client credentials not configured")

	case verdict.Retryable:
		return fmt.Errorf("token validation unavailable")

	case verdict.IsValid:
		return m.machine.transition(StateReady)

	case verdict.NeedsRefresh:
		return m.refresh(ctx)

	case verdict.NeedsNewTokens:
		if err := m.machine.transition(StateAwaitingOAuth); err != nil {
			return err
		}
		return m.runOAuth(ctx)
	}
	return fmt.Errorf("unreachable verdict %+v", verdict)
}

// refresh exchanges the refresh token. invalid_grant falls through to
// the OAuth flow; transient failures keep the machine in REFRESHING for
// a later retry.
func (m *Manager) refresh(ctx context.Context) error {
	if err := m.machine.transition(StateRefreshing); err != nil {
		return err
	}

	tokens, err := m.api().Refresh(ctx, m.Tokens().RefreshToken)
	if err == nil {
		m.setTokens(*tokens)
		logging.Info().Msg("Twitch tokens refreshed")
		return m.machine.transition(StateReady)
	}
	if errors.Is(err, ErrInvalidGrant) {
		logging.Warn().Msg("Refresh token rejected; new authorization required")
		if terr := m.machine.transition(StateAwaitingOAuth); terr != nil {
			return terr
		}
		return m.runOAuth(ctx)
	}
	return fmt.Errorf("token refresh unavailable: %w", err)
}

// runOAuth obtains a fresh token pair. Without a configured flow, or
// when the flow fails, the manager fails permanently.
func (m *Manager) runOAuth(ctx context.Context) error {
	if m.flow == nil {
		if err := m.machine.transition(StateFailed); err != nil {
			return err
		}
		return fmt.Errorf("new authorization required but no oauth flow configured")
	}

	tokens, err := m.flow.Obtain(ctx)
	if err != nil {
		if terr := m.machine.transition(StateFailed); terr != nil {
			return terr
		}
		return fmt.Errorf("oauth authorization failed: %w", err)
	}

	m.setTokens(*tokens)
	logging.Info().Msg("New Twitch authorization obtained")
	return m.machine.transition(StateReady)
}

// Cleanup releases the manager's resources. Safe to call more than
// once and from any state.
func (m *Manager) Cleanup() {
	m.cleanup.Do(func() {
		close(m.done)
		if closer, ok := m.flow.(interface{ Close() error }); ok {
			_ = closer.Close()
		}
	})
}

// Done is closed when Cleanup runs.
func (m *Manager) Done() <-chan struct{} { return m.done }
