// StreamSync - Live Stream Overlay Notification Pipeline
// Copyright 2026 git-blame-dev
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/git-blame-dev/stream-sync-sub008

// Package bus provides the in-process event bus connecting platform
// adapters, the notification router, and the overlay. Built on Watermill's
// gochannel Pub/Sub so every hop gets router middleware (retry, poison
// queue, recovery) without an external broker.
package bus

import (
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/git-blame-dev/stream-sync-sub008/internal/notification"
)

// Topics carried on the bus.
const (
	// TopicPlatformEvents carries canonical events from adapters to the
	// notification router.
	TopicPlatformEvents = "platform.events"

	// TopicPlatformEventsPoison receives events that failed processing
	// after all retries.
	TopicPlatformEventsPoison = "platform.events.poison"

	// TopicVFXCommand carries visual effect play commands to the overlay.
	TopicVFXCommand = "overlay.vfx.command"

	// TopicVFXCompleted carries effect completion signals back from the
	// overlay.
	TopicVFXCompleted = "overlay.vfx.completed"
)

// Bus wraps the gochannel Pub/Sub. A single Bus is shared by the whole
// process; Close tears down all subscriptions.
type Bus struct {
	pubsub *gochannel.GoChannel
}

// New creates an in-process bus.
func New(logger watermill.LoggerAdapter) *Bus {
	if logger == nil {
		logger = watermill.NopLogger{}
	}
	return &Bus{
		pubsub: gochannel.NewGoChannel(gochannel.Config{
			// Block publishers instead of dropping when a subscriber
			// falls behind.
			OutputChannelBuffer: 256,
		}, logger),
	}
}

// Publisher returns the bus as a Watermill publisher.
func (b *Bus) Publisher() message.Publisher {
	return b.pubsub
}

// Subscriber returns the bus as a Watermill subscriber.
func (b *Bus) Subscriber() message.Subscriber {
	return b.pubsub
}

// PublishEvent encodes a canonical event and publishes it for the router.
func (b *Bus) PublishEvent(ev *notification.Event) error {
	msg, err := EncodeEvent(ev)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", ev.Type, err)
	}
	if err := b.pubsub.Publish(TopicPlatformEvents, msg); err != nil {
		return fmt.Errorf("publish %s event: %w", ev.Type, err)
	}
	return nil
}

// Close shuts the bus down. Subscribers' channels are closed.
func (b *Bus) Close() error {
	return b.pubsub.Close()
}
