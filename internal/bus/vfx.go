// StreamSync - Live Stream Overlay Notification Pipeline
// Copyright 2026 git-blame-dev
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/git-blame-dev/stream-sync-sub008

package bus

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/git-blame-dev/stream-sync-sub008/internal/logging"
	"github.com/git-blame-dev/stream-sync-sub008/internal/notification"
)

// VFXCommand instructs the overlay to play one visual effect.
type VFXCommand struct {
	CorrelationID string        `json:"correlation_id"`
	CommandKey    string        `json:"command_key"`
	Filename      string        `json:"filename,omitempty"`
	MediaSource   string        `json:"media_source,omitempty"`
	Path          string        `json:"path,omitempty"`
	Duration      time.Duration `json:"duration,omitempty"`
}

// VFXCompletion signals that one effect finished playing.
type VFXCompletion struct {
	CorrelationID string `json:"correlation_id"`
}

// VFXCoordinator correlates effect commands with their completion
// signals. The display queue uses it to hold a notification on screen
// until its effect finishes, bounded by a wait limit so a lost completion
// never stalls the queue.
type VFXCoordinator struct {
	bus *Bus

	mu      sync.Mutex
	waiters map[string]chan struct{}
	started bool
}

// NewVFXCoordinator creates a coordinator on the bus. Call Start before
// awaiting completions.
func NewVFXCoordinator(b *Bus) *VFXCoordinator {
	return &VFXCoordinator{
		bus:     b,
		waiters: make(map[string]chan struct{}),
	}
}

// Start subscribes to the completion topic and dispatches completions to
// waiters. Runs until the context is cancelled or the bus closes.
func (c *VFXCoordinator) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return fmt.Errorf("vfx coordinator already started")
	}
	c.started = true
	c.mu.Unlock()

	messages, err := c.bus.Subscriber().Subscribe(ctx, TopicVFXCompleted)
	if err != nil {
		return fmt.Errorf("subscribe vfx completions: %w", err)
	}

	go func() {
		for msg := range messages {
			var done VFXCompletion
			if err := json.Unmarshal(msg.Payload, &done); err != nil {
				logging.Warn().Err(err).Msg("Malformed VFX completion")
				msg.Ack()
				continue
			}
			c.complete(done.CorrelationID)
			msg.Ack()
		}
	}()
	return nil
}

// Play publishes an effect command for a notification's VFX and returns
// the correlation ID to await on.
func (c *VFXCoordinator) Play(vfx *notification.VFXConfig) (string, error) {
	cmd := VFXCommand{
		CorrelationID: uuid.New().String(),
		CommandKey:    vfx.CommandKey,
		Filename:      vfx.Filename,
		MediaSource:   vfx.MediaSource,
		Path:          vfx.Path,
		Duration:      vfx.Duration,
	}

	payload, err := json.Marshal(cmd)
	if err != nil {
		return "", fmt.Errorf("marshal vfx command: %w", err)
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set(MetaCorrelationID, cmd.CorrelationID)

	c.register(cmd.CorrelationID)
	if err := c.bus.Publisher().Publish(TopicVFXCommand, msg); err != nil {
		c.discard(cmd.CorrelationID)
		return "", fmt.Errorf("publish vfx command: %w", err)
	}
	return cmd.CorrelationID, nil
}

// Await blocks until the effect completes, the wait limit elapses, or the
// context is cancelled. A timeout is not an error: the queue proceeds and
// the late completion is discarded when it arrives.
func (c *VFXCoordinator) Await(ctx context.Context, correlationID string, limit time.Duration) bool {
	c.mu.Lock()
	ch, ok := c.waiters[correlationID]
	c.mu.Unlock()
	if !ok {
		return true
	}
	defer c.discard(correlationID)

	timer := time.NewTimer(limit)
	defer timer.Stop()

	select {
	case <-ch:
		return true
	case <-timer.C:
		logging.Debug().
			Str("correlation_id", correlationID).
			Dur("limit", limit).
			Msg("VFX completion wait limit reached")
		return false
	case <-ctx.Done():
		return false
	}
}

// Complete publishes a completion signal. The overlay calls this when an
// effect finishes playing.
func (c *VFXCoordinator) Complete(correlationID string) error {
	payload, err := json.Marshal(VFXCompletion{CorrelationID: correlationID})
	if err != nil {
		return fmt.Errorf("marshal vfx completion: %w", err)
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set(MetaCorrelationID, correlationID)
	if err := c.bus.Publisher().Publish(TopicVFXCompleted, msg); err != nil {
		return fmt.Errorf("publish vfx completion: %w", err)
	}
	return nil
}

func (c *VFXCoordinator) register(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.waiters[id] = make(chan struct{})
}

func (c *VFXCoordinator) discard(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.waiters, id)
}

func (c *VFXCoordinator) complete(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ch, ok := c.waiters[id]; ok {
		close(ch)
		delete(c.waiters, id)
	}
}
