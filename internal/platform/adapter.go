// StreamSync - Live Stream Overlay Notification Pipeline
// Copyright 2026 git-blame-dev
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/git-blame-dev/stream-sync-sub008

// Package platform holds the ingest adapters that turn platform-native
// streams into canonical events on the bus. The Twitch chat adapter is
// the concrete implementation; TikTok and YouTube plug into the same
// Adapter contract.
package platform

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/git-blame-dev/stream-sync-sub008/internal/bus"
	"github.com/git-blame-dev/stream-sync-sub008/internal/logging"
	"github.com/git-blame-dev/stream-sync-sub008/internal/metrics"
	"github.com/git-blame-dev/stream-sync-sub008/internal/notification"
)

// EmitFunc hands one canonical event to the runner for publishing.
// Emit blocks while the rate limiter is saturated.
type EmitFunc func(ev *notification.Event)

// Adapter produces canonical events for one platform. Run blocks until
// ctx is cancelled or the source connection dies; the supervisor
// restarts it on error.
type Adapter interface {
	Platform() notification.Platform
	Run(ctx context.Context, emit EmitFunc) error
}

// Runner drives one adapter and publishes its events to the bus,
// smoothing bursts through a token bucket so a raid's worth of chat
// cannot flood the pipeline in one tick.
type Runner struct {
	adapter Adapter
	bus     *bus.Bus
	limiter *rate.Limiter
}

// NewRunner wraps adapter with a limiter. ratePerSecond <= 0 disables
// limiting.
func NewRunner(adapter Adapter, b *bus.Bus, ratePerSecond float64, burst int) *Runner {
	limit := rate.Inf
	if ratePerSecond > 0 {
		limit = rate.Limit(ratePerSecond)
	}
	if burst < 1 {
		burst = 1
	}
	return &Runner{
		adapter: adapter,
		bus:     b,
		limiter: rate.NewLimiter(limit, burst),
	}
}

// Run implements the supervised service loop for one adapter.
func (r *Runner) Run(ctx context.Context) error {
	platform := r.adapter.Platform()
	logging.Info().Str("platform", string(platform)).Msg("Platform adapter starting")

	emit := func(ev *notification.Event) {
		if ev == nil {
			return
		}
		if err := r.limiter.Wait(ctx); err != nil {
			return
		}
		if ev.Platform == "" {
			ev.Platform = platform
		}
		if err := r.bus.PublishEvent(ev); err != nil {
			logging.Warn().Err(err).
				Str("platform", string(platform)).
				Str("type", string(ev.Type)).
				Msg("Failed to publish event")
			return
		}
		metrics.AdapterEventsPublished.WithLabelValues(string(platform)).Inc()
	}

	if err := r.adapter.Run(ctx, emit); err != nil {
		return fmt.Errorf("%s adapter: %w", platform, err)
	}
	return ctx.Err()
}
