// StreamSync - Live Stream Overlay Notification Pipeline
// Copyright 2026 git-blame-dev
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/git-blame-dev/stream-sync-sub008

// Package goals tracks per-platform donation goals in each platform's
// native currency and renders the overlay goal display.
package goals

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"sync"

	"github.com/git-blame-dev/stream-sync-sub008/internal/config"
	"github.com/git-blame-dev/stream-sync-sub008/internal/logging"
	"github.com/git-blame-dev/stream-sync-sub008/internal/notification"
)

// State is the persisted per-platform goal state.
type State struct {
	Platform  string  `json:"platform"`
	Total     float64 `json:"total"`
	Target    float64 `json:"target"`
	Currency  string  `json:"currency"`
	Completed bool    `json:"completed"`
}

// Result reports the outcome of crediting a donation.
type Result struct {
	Platform   notification.Platform
	Credited   float64
	Total      float64
	Target     float64
	Percentage float64

	// JustCompleted is true only for the donation that crosses the
	// target; Completed stays true afterwards.
	JustCompleted bool
	Completed     bool

	// Display is the rendered overlay goal line.
	Display string
}

// Tracker maintains goal state for all platforms. Safe for concurrent
// use. State survives restarts when a Store is attached.
type Tracker struct {
	mu     sync.Mutex
	states map[notification.Platform]*State
	conv   config.ConversionConfig
	store  Store
}

// NewTracker creates a tracker from the goals config. A nil store keeps
// totals in memory only.
func NewTracker(cfg config.GoalsConfig, store Store) *Tracker {
	t := &Tracker{
		states: make(map[notification.Platform]*State),
		conv:   cfg.Conversions,
		store:  store,
	}
	targets := map[notification.Platform]config.GoalTarget{
		notification.PlatformTikTok:  cfg.TikTok,
		notification.PlatformTwitch:  cfg.Twitch,
		notification.PlatformYouTube: cfg.YouTube,
	}
	for platform, target := range targets {
		if !target.Enabled {
			continue
		}
		t.states[platform] = &State{
			Platform: string(platform),
			Target:   target.Target,
			Currency: target.Currency,
		}
	}
	return t
}

// Initialize restores persisted totals for every enabled platform.
// Targets and currency always come from config; only the running total
// and completion flag are restored.
func (t *Tracker) Initialize(ctx context.Context) error {
	if t.store == nil {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	for platform, st := range t.states {
		saved, err := t.store.Load(ctx, string(platform))
		if err != nil {
			return fmt.Errorf("restore %s goal: %w", platform, err)
		}
		if saved == nil {
			continue
		}
		st.Total = saved.Total
		st.Completed = saved.Completed
		logging.Debug().
			Str("platform", string(platform)).
			Float64("total", st.Total).
			Msg("Restored goal state")
	}
	return nil
}

// AddDonation credits a donation amount in the platform's native
// currency. Returns nil when goal tracking is not enabled for the
// platform.
func (t *Tracker) AddDonation(ctx context.Context, platform notification.Platform, amount float64) (*Result, error) {
	if amount <= 0 || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return nil, fmt.Errorf("goal credit must be a positive finite amount, got %v", amount)
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	st, ok := t.states[platform]
	if !ok {
		return nil, nil
	}

	wasCompleted := st.Completed
	st.Total += amount
	if st.Total >= st.Target {
		st.Completed = true
	}

	if t.store != nil {
		if err := t.store.Save(ctx, string(platform), st); err != nil {
			// Totals remain correct in memory; persistence catches up on
			// the next credit.
			logging.Warn().Err(err).
				Str("platform", string(platform)).
				Msg("Failed to persist goal state")
		}
	}

	return t.resultLocked(platform, st, amount, !wasCompleted && st.Completed), nil
}

// AddSubscriptionEquivalent credits subscription-like events using the
// configured conversion values: TikTok subs as coins, Twitch subs as
// bits, YouTube memberships as dollars.
func (t *Tracker) AddSubscriptionEquivalent(ctx context.Context, platform notification.Platform, count int) (*Result, error) {
	if count < 1 {
		return nil, fmt.Errorf("subscription count must be >= 1, got %d", count)
	}

	var per float64
	switch platform {
	case notification.PlatformTikTok:
		per = t.conv.CoinsPerSub
	case notification.PlatformTwitch:
		per = t.conv.BitsPerSub
	case notification.PlatformYouTube:
		per = t.conv.SubValueUSD
	default:
		return nil, fmt.Errorf("unknown platform %q", platform)
	}
	return t.AddDonation(ctx, platform, per*float64(count))
}

// Snapshot returns the current state of every tracked goal.
func (t *Tracker) Snapshot() []Result {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]Result, 0, len(t.states))
	for _, platform := range notification.Platforms() {
		st, ok := t.states[platform]
		if !ok {
			continue
		}
		out = append(out, *t.resultLocked(platform, st, 0, false))
	}
	return out
}

// Reset zeroes a platform's total and completion flag.
func (t *Tracker) Reset(ctx context.Context, platform notification.Platform) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	st, ok := t.states[platform]
	if !ok {
		return fmt.Errorf("no goal tracked for platform %q", platform)
	}
	st.Total = 0
	st.Completed = false

	if t.store != nil {
		if err := t.store.Save(ctx, string(platform), st); err != nil {
			return fmt.Errorf("persist %s goal reset: %w", platform, err)
		}
	}
	return nil
}

// Tracks reports whether a platform has an enabled goal.
func (t *Tracker) Tracks(platform notification.Platform) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.states[platform]
	return ok
}

func (t *Tracker) resultLocked(platform notification.Platform, st *State, credited float64, justCompleted bool) *Result {
	pct := 0.0
	if st.Target > 0 {
		pct = math.Round(st.Total/st.Target*1000) / 10
	}
	return &Result{
		Platform:      platform,
		Credited:      credited,
		Total:         st.Total,
		Target:        st.Target,
		Percentage:    pct,
		JustCompleted: justCompleted,
		Completed:     st.Completed,
		Display:       formatDisplay(platform, st),
	}
}

// formatDisplay renders the overlay goal line. Integer currencies zero-pad
// the running total to the target's digit width so the line never shifts
// as the total grows ("0050/1000 coins"). YouTube renders dollars.
func formatDisplay(platform notification.Platform, st *State) string {
	if platform == notification.PlatformYouTube {
		return fmt.Sprintf("$%.2f/$%.2f %s", st.Total, st.Target, st.Currency)
	}
	width := len(strconv.FormatInt(int64(st.Target), 10))
	return fmt.Sprintf("%0*d/%d %s", width, int64(st.Total), int64(st.Target), st.Currency)
}
