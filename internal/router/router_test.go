// StreamSync - Live Stream Overlay Notification Pipeline
// Copyright 2026 git-blame-dev
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/git-blame-dev/stream-sync-sub008

package router

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/git-blame-dev/stream-sync-sub008/internal/bus"
	"github.com/git-blame-dev/stream-sync-sub008/internal/config"
	"github.com/git-blame-dev/stream-sync-sub008/internal/notification"
)

type recordingHandler struct {
	mu     sync.Mutex
	events []*notification.Event
	err    error
}

func (h *recordingHandler) HandleEvent(_ context.Context, ev *notification.Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, ev)
	return h.err
}

func (h *recordingHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.events)
}

func testRouterConfig() config.RouterConfig {
	return config.RouterConfig{
		RetryCount:           1,
		RetryInitialInterval: 10 * time.Millisecond,
		PoisonQueueEnabled:   true,
		PoisonQueueTopic:     bus.TopicPlatformEventsPoison,
		CloseTimeout:         time.Second,
	}
}

func startRouter(t *testing.T, b *bus.Bus, handler EventHandler) context.CancelFunc {
	t.Helper()
	r, err := New(testRouterConfig(), b, handler, watermill.NopLogger{})
	if err != nil {
		t.Fatalf("new router: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = r.Run(ctx) }()
	select {
	case <-r.Running():
	case <-time.After(5 * time.Second):
		t.Fatal("router did not start")
	}
	t.Cleanup(func() {
		cancel()
		_ = r.Close()
	})
	return cancel
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func TestRouter_DeliversValidEvent(t *testing.T) {
	b := bus.New(watermill.NopLogger{})
	t.Cleanup(func() { _ = b.Close() })
	handler := &recordingHandler{}
	startRouter(t, b, handler)

	ev := notification.NewEvent(notification.PlatformTwitch, notification.TypeFollow)
	ev.Username = "follower"
	if err := b.PublishEvent(ev); err != nil {
		t.Fatalf("publish: %v", err)
	}

	waitFor(t, func() bool { return handler.count() == 1 })
	handler.mu.Lock()
	defer handler.mu.Unlock()
	if handler.events[0].Username != "follower" {
		t.Errorf("event = %+v", handler.events[0])
	}
}

func TestRouter_InvalidEventDroppedPipelineSurvives(t *testing.T) {
	b := bus.New(watermill.NopLogger{})
	t.Cleanup(func() { _ = b.Close() })
	handler := &recordingHandler{}
	startRouter(t, b, handler)

	// Missing username: fails validation, must be dropped without
	// reaching the handler.
	bad := notification.NewEvent(notification.PlatformTwitch, notification.TypeFollow)
	if err := b.PublishEvent(bad); err != nil {
		t.Fatalf("publish: %v", err)
	}

	good := notification.NewEvent(notification.PlatformTwitch, notification.TypeFollow)
	good.Username = "survivor"
	if err := b.PublishEvent(good); err != nil {
		t.Fatalf("publish: %v", err)
	}

	waitFor(t, func() bool { return handler.count() == 1 })
	handler.mu.Lock()
	defer handler.mu.Unlock()
	if handler.events[0].Username != "survivor" {
		t.Errorf("valid event lost: %+v", handler.events)
	}
}

func TestRouter_MalformedPayloadDropped(t *testing.T) {
	b := bus.New(watermill.NopLogger{})
	t.Cleanup(func() { _ = b.Close() })
	handler := &recordingHandler{}
	startRouter(t, b, handler)

	msg := message.NewMessage(watermill.NewUUID(), []byte("{not json"))
	if err := b.Publisher().Publish(bus.TopicPlatformEvents, msg); err != nil {
		t.Fatalf("publish: %v", err)
	}

	good := notification.NewEvent(notification.PlatformTikTok, notification.TypeShare)
	good.Username = "sharer"
	if err := b.PublishEvent(good); err != nil {
		t.Fatalf("publish: %v", err)
	}

	waitFor(t, func() bool { return handler.count() == 1 })
}

func TestRouter_HandlerFailuresGoToPoisonQueue(t *testing.T) {
	b := bus.New(watermill.NopLogger{})
	t.Cleanup(func() { _ = b.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	poisoned, err := b.Subscriber().Subscribe(ctx, bus.TopicPlatformEventsPoison)
	if err != nil {
		t.Fatalf("subscribe poison: %v", err)
	}

	handler := &recordingHandler{err: errors.New("downstream unavailable")}
	startRouter(t, b, handler)

	ev := notification.NewEvent(notification.PlatformTwitch, notification.TypeFollow)
	ev.Username = "unlucky"
	if err := b.PublishEvent(ev); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case msg := <-poisoned:
		decoded, err := bus.DecodeEvent(msg)
		if err != nil {
			t.Fatalf("decode poisoned: %v", err)
		}
		if decoded.Username != "unlucky" {
			t.Errorf("poisoned event = %+v", decoded)
		}
		msg.Ack()
	case <-ctx.Done():
		t.Fatal("poisoned message never arrived")
	}

	// Retried once before poisoning.
	if handler.count() < 2 {
		t.Errorf("expected retry before poison, handler calls = %d", handler.count())
	}
}
