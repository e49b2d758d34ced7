// StreamSync - Live Stream Overlay Notification Pipeline
// Copyright 2026 git-blame-dev
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/git-blame-dev/stream-sync-sub008

// Package manager gates canonical events and turns the survivors into
// queued notifications. Gates run in a fixed order: settings, duplicate
// detection, spam detection, burst suppression. Monetization events that
// pass also credit the goal tracker.
package manager

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/git-blame-dev/stream-sync-sub008/internal/cache"
	"github.com/git-blame-dev/stream-sync-sub008/internal/goals"
	"github.com/git-blame-dev/stream-sync-sub008/internal/logging"
	"github.com/git-blame-dev/stream-sync-sub008/internal/metrics"
	"github.com/git-blame-dev/stream-sync-sub008/internal/notification"
)

// Gate reasons reported in Result.Reason.
const (
	ReasonDisabled            = "disabled"
	ReasonDuplicate           = "duplicate"
	ReasonSpam                = "spam_detection"
	ReasonSuppressed          = "suppression"
	ReasonSettingsUnavailable = "settings_unavailable"
)

// Result reports what happened to one event.
type Result struct {
	Success    bool
	Queued     bool
	Disabled   bool
	Suppressed bool
	Reason     string
	Err        error
}

// SettingsProvider answers whether a notification type is enabled. A
// probe error gates the event off (fail closed).
type SettingsProvider interface {
	IsEnabled(t notification.Type) (bool, error)
}

// SpamDetector flags events that should not reach the overlay. Optional;
// aggregated events bypass it because upstream batching already vetted
// them.
type SpamDetector interface {
	IsSpam(ev *notification.Event) bool
}

// UserTracker remembers which users have chatted this session.
type UserTracker interface {
	// FirstMessage records the user and reports whether this was their
	// first chat message of the session.
	FirstMessage(platform notification.Platform, userID string) bool
}

// VFXResolver maps an event to a visual effect, or nil.
type VFXResolver interface {
	Resolve(ev *notification.Event) *notification.VFXConfig
}

// Enqueuer accepts built notifications for display.
type Enqueuer interface {
	Enqueue(n *notification.Notification) error
}

// GoalRecorder credits monetization events. Implemented by goals.Tracker.
type GoalRecorder interface {
	AddDonation(ctx context.Context, platform notification.Platform, amount float64) (*goals.Result, error)
	AddSubscriptionEquivalent(ctx context.Context, platform notification.Platform, count int) (*goals.Result, error)
}

// Options wires the manager's collaborators. Settings, Users, Queue, and
// Builder are required; the rest are optional.
type Options struct {
	Settings SettingsProvider
	Users    UserTracker
	Queue    Enqueuer
	Builder  *notification.Builder

	Dedupe      *cache.DedupeCache
	Suppression *cache.SuppressionStore
	Spam        SpamDetector
	VFX         VFXResolver
	Goals       GoalRecorder

	GreetingsEnabled bool

	// SweepInterval controls periodic cache cleanup. Zero disables the
	// sweeper; tests run without it.
	SweepInterval time.Duration
}

// Manager is the gating pipeline.
type Manager struct {
	opts Options
}

// New creates a manager. Panics if a required collaborator is missing;
// that is a wiring bug, not a runtime condition.
func New(opts Options) *Manager {
	if opts.Settings == nil || opts.Users == nil || opts.Queue == nil || opts.Builder == nil {
		panic("manager: settings, user tracker, queue, and builder are required")
	}
	return &Manager{opts: opts}
}

// HandleEvent adapts Process for the router. Gated events return nil so
// the router never retries them; only infrastructure failures propagate.
func (m *Manager) HandleEvent(ctx context.Context, ev *notification.Event) error {
	res := m.Process(ctx, ev)
	if res.Err != nil {
		return res.Err
	}
	return nil
}

// Process runs one event through every gate and, if it survives, builds
// and enqueues its notification and credits goals.
func (m *Manager) Process(ctx context.Context, ev *notification.Event) Result {
	if ev == nil {
		return Result{Err: fmt.Errorf("nil event")}
	}
	if !ev.Type.Known() {
		return Result{Err: fmt.Errorf("unknown notification type %q", ev.Type)}
	}
	if strings.TrimSpace(ev.Username) == "" {
		return Result{Err: fmt.Errorf("missing username for %s event", ev.Type)}
	}

	if res, gated := m.gate(ev); gated {
		return res
	}

	first := false
	if ev.Type == notification.TypeChatMessage {
		first = m.handleFirstMessage(ctx, ev)
	}

	n, err := m.opts.Builder.Build(*ev)
	if err != nil {
		return Result{Err: fmt.Errorf("build notification: %w", err)}
	}
	n.IsFirstMessage = first

	if m.opts.VFX != nil {
		n.VFX = m.opts.VFX.Resolve(ev)
	}

	if err := m.opts.Queue.Enqueue(n); err != nil {
		return Result{Err: fmt.Errorf("enqueue %s notification: %w", ev.Type, err)}
	}
	metrics.NotificationsQueued.WithLabelValues(string(ev.Platform), string(ev.Type)).Inc()

	m.creditGoals(ctx, ev)

	return Result{Success: true, Queued: true}
}

// gate applies settings, dedupe, spam, and suppression. Returns the
// gated result and true when the event must stop.
func (m *Manager) gate(ev *notification.Event) (Result, bool) {
	enabled, err := m.opts.Settings.IsEnabled(ev.Type)
	if err != nil {
		logging.Warn().Err(err).
			Str("type", string(ev.Type)).
			Msg("Settings probe failed; gating event off")
		metrics.NotificationsGated.WithLabelValues(ReasonSettingsUnavailable).Inc()
		return Result{Success: true, Disabled: true, Reason: ReasonSettingsUnavailable}, true
	}
	if !enabled {
		metrics.NotificationsGated.WithLabelValues(ReasonDisabled).Inc()
		return Result{Success: true, Disabled: true, Reason: ReasonDisabled}, true
	}

	if m.opts.Dedupe != nil {
		if key := ev.DedupeKey(); key != "" && m.opts.Dedupe.Seen(key) {
			metrics.NotificationsGated.WithLabelValues(ReasonDuplicate).Inc()
			return Result{Success: true, Reason: ReasonDuplicate}, true
		}
	}

	if m.opts.Spam != nil && !ev.IsAggregated && m.opts.Spam.IsSpam(ev) {
		metrics.NotificationsGated.WithLabelValues(ReasonSpam).Inc()
		return Result{Success: true, Suppressed: true, Reason: ReasonSpam}, true
	}

	if m.opts.Suppression != nil {
		userKey := ev.UserID
		if userKey == "" {
			userKey = ev.Username
		}
		if suppressed, until := m.opts.Suppression.Track(string(ev.Platform) + ":" + userKey); suppressed {
			logging.Debug().
				Str("user", userKey).
				Time("until", until).
				Msg("User suppressed for notification burst")
			metrics.NotificationsGated.WithLabelValues(ReasonSuppressed).Inc()
			return Result{Success: true, Suppressed: true, Reason: ReasonSuppressed}, true
		}
	}

	return Result{}, false
}

// handleFirstMessage reports whether this is the user's first chat
// message of the session and, when greetings are enabled, enqueues a
// greeting alongside the chat message.
func (m *Manager) handleFirstMessage(_ context.Context, ev *notification.Event) bool {
	userKey := ev.UserID
	if userKey == "" {
		userKey = ev.Username
	}
	if !m.opts.Users.FirstMessage(ev.Platform, userKey) {
		return false
	}
	if !m.opts.GreetingsEnabled {
		return true
	}

	enabled, err := m.opts.Settings.IsEnabled(notification.TypeGreeting)
	if err != nil || !enabled {
		return true
	}

	greeting := *ev
	greeting.Type = notification.TypeGreeting
	greeting.ID = "" // never deduped against the chat message
	greeting.Message = ""

	n, err := m.opts.Builder.Build(greeting)
	if err != nil {
		logging.Warn().Err(err).Msg("Failed to build greeting")
		return true
	}
	n.IsFirstMessage = true
	if m.opts.VFX != nil {
		n.VFX = m.opts.VFX.Resolve(&greeting)
	}
	if err := m.opts.Queue.Enqueue(n); err != nil {
		logging.Warn().Err(err).Msg("Failed to enqueue greeting")
		return true
	}
	metrics.NotificationsQueued.WithLabelValues(string(greeting.Platform), string(greeting.Type)).Inc()
	return true
}

// creditGoals fans monetization events into the goal tracker. Goal
// failures never fail the notification; the display already happened.
func (m *Manager) creditGoals(ctx context.Context, ev *notification.Event) {
	if m.opts.Goals == nil || !ev.Type.IsMonetization() {
		return
	}

	var (
		res *goals.Result
		err error
	)
	switch ev.Type {
	case notification.TypeGift, notification.TypeEnvelope:
		if ev.PaymentError || ev.Amount <= 0 {
			return
		}
		res, err = m.opts.Goals.AddDonation(ctx, ev.Platform, ev.Amount)
	case notification.TypePaypiggy:
		res, err = m.opts.Goals.AddSubscriptionEquivalent(ctx, ev.Platform, 1)
	case notification.TypeGiftPaypiggy:
		res, err = m.opts.Goals.AddSubscriptionEquivalent(ctx, ev.Platform, ev.GiftCount)
	}
	if err != nil {
		logging.Warn().Err(err).
			Str("platform", string(ev.Platform)).
			Str("type", string(ev.Type)).
			Msg("Failed to credit goal")
		return
	}
	if res == nil {
		return
	}

	metrics.GoalCredits.WithLabelValues(string(ev.Platform)).Inc()
	metrics.GoalProgress.WithLabelValues(string(ev.Platform)).Set(res.Percentage)
	if res.JustCompleted {
		logging.Info().
			Str("platform", string(ev.Platform)).
			Str("display", res.Display).
			Msg("Donation goal completed")
	}
}

// RunSweeper periodically evicts expired dedupe entries and stale
// suppression state. Returns immediately when no interval is configured.
func (m *Manager) RunSweeper(ctx context.Context) {
	if m.opts.SweepInterval <= 0 {
		return
	}
	ticker := time.NewTicker(m.opts.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if m.opts.Dedupe != nil {
				m.opts.Dedupe.CleanupExpired()
			}
			if m.opts.Suppression != nil {
				m.opts.Suppression.Cleanup()
			}
			if sweeper, ok := m.opts.Spam.(interface{ Cleanup() }); ok {
				sweeper.Cleanup()
			}
		case <-ctx.Done():
			return
		}
	}
}
