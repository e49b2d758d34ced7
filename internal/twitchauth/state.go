// StreamSync - Live Stream Overlay Notification Pipeline
// Copyright 2026 git-blame-dev
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/git-blame-dev/stream-sync-sub008

// Package twitchauth manages the Twitch OAuth token lifecycle as an
// explicit state machine: validate existing tokens, refresh them when
// expired, and fall back to a fresh OAuth flow only when refresh is
// impossible.
package twitchauth

import (
	"fmt"
	"sync"

	"github.com/git-blame-dev/stream-sync-sub008/internal/metrics"
)

// State is one phase of the token lifecycle.
type State string

const (
	// StateUninitialized is the start state before any validation.
	StateUninitialized State = "UNINITIALIZED"

	// StateRefreshing means a token refresh is in flight.
	StateRefreshing State = "REFRESHING"

	// StateAwaitingOAuth means stored tokens are unusable and a fresh
	// OAuth authorization is required.
	StateAwaitingOAuth State = "AWAITING_OAUTH"

	// StateReady means the access token is valid.
	StateReady State = "READY"

	// StateFailed is terminal: authentication cannot proceed without
	// operator intervention.
	StateFailed State = "FAILED"
)

// allowedTransitions encodes the lifecycle. FAILED is terminal; READY
// can drop back to REFRESHING when a token expires mid-session.
var allowedTransitions = map[State][]State{
	StateUninitialized: {StateRefreshing, StateAwaitingOAuth, StateReady, StateFailed},
	StateRefreshing:    {StateReady, StateAwaitingOAuth, StateFailed},
	StateAwaitingOAuth: {StateReady, StateFailed},
	StateReady:         {StateRefreshing, StateFailed},
	StateFailed:        {},
}

// machine is a guarded state holder. Each auth manager owns its own
// machine; instances never share state.
type machine struct {
	mu    sync.Mutex
	state State
}

func newMachine() *machine {
	return &machine{state: StateUninitialized}
}

// Current returns the current state.
func (m *machine) Current() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// transition moves to the target state, rejecting moves the lifecycle
// does not allow.
func (m *machine) transition(to State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == to {
		return nil
	}
	for _, allowed := range allowedTransitions[m.state] {
		if allowed == to {
			m.state = to
			metrics.AuthStateTransitions.WithLabelValues(string(to)).Inc()
			return nil
		}
	}
	return fmt.Errorf("invalid auth transition %s -> %s", m.state, to)
}

// reset returns the machine to UNINITIALIZED so the lifecycle can run
// again after a credential change. Unlike transition, reset is allowed
// from every state, including FAILED.
func (m *machine) reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == StateUninitialized {
		return
	}
	m.state = StateUninitialized
	metrics.AuthStateTransitions.WithLabelValues(string(StateUninitialized)).Inc()
}
