// StreamSync - Live Stream Overlay Notification Pipeline
// Copyright 2026 git-blame-dev
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/git-blame-dev/stream-sync-sub008

package overlay

import (
	"context"
	"time"

	"github.com/goccy/go-json"

	"github.com/git-blame-dev/stream-sync-sub008/internal/bus"
	"github.com/git-blame-dev/stream-sync-sub008/internal/logging"
)

// defaultEffectDuration is assumed when a VFX entry carries no duration.
const defaultEffectDuration = 5 * time.Second

// VFXPlayer consumes effect commands off the bus, actuates the media
// source, and publishes a completion signal once the effect's duration
// elapses. Actuation failures still complete the correlation so the
// display queue never waits the full limit for an effect that never
// started.
type VFXPlayer struct {
	bus     *bus.Bus
	coord   *bus.VFXCoordinator
	display Display
}

// NewVFXPlayer creates a player writing effects to the display.
func NewVFXPlayer(b *bus.Bus, coord *bus.VFXCoordinator, display Display) *VFXPlayer {
	return &VFXPlayer{bus: b, coord: coord, display: display}
}

// Run consumes effect commands until the context is cancelled.
func (p *VFXPlayer) Run(ctx context.Context) error {
	messages, err := p.bus.Subscriber().Subscribe(ctx, bus.TopicVFXCommand)
	if err != nil {
		return err
	}

	for msg := range messages {
		var cmd bus.VFXCommand
		if err := json.Unmarshal(msg.Payload, &cmd); err != nil {
			logging.Warn().Err(err).Msg("Malformed VFX command")
			msg.Ack()
			continue
		}
		p.play(ctx, cmd)
		msg.Ack()
	}
	return nil
}

func (p *VFXPlayer) play(ctx context.Context, cmd bus.VFXCommand) {
	path := cmd.Path
	if path == "" {
		path = cmd.Filename
	}

	if err := p.display.PlayMedia(ctx, cmd.MediaSource, path); err != nil {
		logging.Warn().Err(err).
			Str("command", cmd.CommandKey).
			Msg("Failed to play visual effect")
		p.signalDone(cmd.CorrelationID)
		return
	}

	duration := cmd.Duration
	if duration <= 0 {
		duration = defaultEffectDuration
	}

	go func() {
		timer := time.NewTimer(duration)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
		}
		p.signalDone(cmd.CorrelationID)
	}()
}

func (p *VFXPlayer) signalDone(correlationID string) {
	if err := p.coord.Complete(correlationID); err != nil {
		logging.Warn().Err(err).
			Str("correlation_id", correlationID).
			Msg("Failed to publish VFX completion")
	}
}
