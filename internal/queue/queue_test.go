// StreamSync - Live Stream Overlay Notification Pipeline
// Copyright 2026 git-blame-dev
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/git-blame-dev/stream-sync-sub008

package queue

import (
	"container/heap"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/git-blame-dev/stream-sync-sub008/internal/config"
	"github.com/git-blame-dev/stream-sync-sub008/internal/notification"
	"github.com/git-blame-dev/stream-sync-sub008/internal/overlay"
)

func testQueueConfig() config.QueueConfig {
	return config.QueueConfig{
		MaxSize: 10,
		VFXWait: time.Second,
	}
}

func newTestQueue(display *overlay.FakeDisplay, speaker *overlay.FakeSpeaker) *DisplayQueue {
	q := New(Options{
		Config:     testQueueConfig(),
		TTS:        config.TTSConfig{Enabled: true},
		TextSource: "notification_text",
		Display:    display,
		Speaker:    speaker,
	})
	q.sleep = func(context.Context, time.Duration) {}
	return q
}

func note(t notification.Type, username, display string) *notification.Notification {
	return &notification.Notification{
		Event: notification.Event{
			Platform: notification.PlatformTwitch,
			Type:     t,
			Username: username,
		},
		DisplayMessage: display,
		TTSMessage:     display,
		Priority:       notification.PriorityFor(t),
		Duration:       time.Millisecond,
	}
}

func TestHeap_PriorityThenFIFO(t *testing.T) {
	h := notificationHeap{}
	heap.Init(&h)

	heap.Push(&h, &item{n: note(notification.TypeChatMessage, "a", "chat-1"), seq: 1})
	heap.Push(&h, &item{n: note(notification.TypeChatMessage, "b", "chat-2"), seq: 2})
	heap.Push(&h, &item{n: note(notification.TypeGreeting, "c", "greet"), seq: 3})
	heap.Push(&h, &item{n: note(notification.TypeFollow, "d", "follow"), seq: 4})

	want := []string{"greet", "follow", "chat-1", "chat-2"}
	for i, expected := range want {
		it := heap.Pop(&h).(*item)
		if it.n.DisplayMessage != expected {
			t.Errorf("pop %d = %q, want %q", i, it.n.DisplayMessage, expected)
		}
	}
}

func TestEnqueue_Overflow(t *testing.T) {
	q := newTestQueue(&overlay.FakeDisplay{}, &overlay.FakeSpeaker{})

	for i := 0; i < 10; i++ {
		if err := q.Enqueue(note(notification.TypeChatMessage, "u", "m")); err != nil {
			t.Fatalf("enqueue %d: %v", i, err)
		}
	}
	err := q.Enqueue(note(notification.TypeChatMessage, "u", "overflow"))
	if !errors.Is(err, ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}
	if q.Len() != 10 {
		t.Errorf("len = %d", q.Len())
	}
}

// A higher-priority notification enqueued while a lower one is on screen
// displays next; the one on screen is never interrupted.
func TestRun_HigherPriorityDisplaysNext(t *testing.T) {
	display := &overlay.FakeDisplay{}
	speaker := &overlay.FakeSpeaker{}
	q := newTestQueue(display, speaker)

	var mu sync.Mutex
	order := []string{}
	firstShowing := make(chan struct{})
	release := make(chan struct{})

	// Block the first display until the higher-priority item is queued.
	q.sleep = func(ctx context.Context, d time.Duration) {
		mu.Lock()
		n := len(order)
		mu.Unlock()
		if n == 1 {
			select {
			case <-firstShowing:
			default:
				close(firstShowing)
				<-release
			}
		}
	}

	// Record display order via text updates.
	q.display = displayRecorder{inner: display, record: func(text string) {
		mu.Lock()
		order = append(order, text)
		mu.Unlock()
	}}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = q.Run(ctx) }()

	if err := q.Enqueue(note(notification.TypeChatMessage, "a", "chat")); err != nil {
		t.Fatal(err)
	}
	<-firstShowing

	if err := q.Enqueue(note(notification.TypeChatMessage, "b", "chat-2")); err != nil {
		t.Fatal(err)
	}
	if err := q.Enqueue(note(notification.TypeGreeting, "c", "greeting")); err != nil {
		t.Fatal(err)
	}
	close(release)

	deadline := time.Now().Add(5 * time.Second)
	for {
		mu.Lock()
		n := len(order)
		mu.Unlock()
		if n >= 3 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("queue did not drain")
		}
		time.Sleep(5 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	if order[0] != "chat" {
		t.Errorf("first display = %q", order[0])
	}
	if order[1] != "greeting" {
		t.Errorf("greeting must preempt waiting chat, got %q", order[1])
	}
	if order[2] != "chat-2" {
		t.Errorf("third display = %q", order[2])
	}
}

type displayRecorder struct {
	inner  *overlay.FakeDisplay
	record func(text string)
}

func (d displayRecorder) UpdateTextSource(ctx context.Context, source, text string) error {
	d.record(text)
	return d.inner.UpdateTextSource(ctx, source, text)
}

func (d displayRecorder) ClearTextSource(ctx context.Context, source string) error {
	return d.inner.ClearTextSource(ctx, source)
}

func (d displayRecorder) SetSourceVisibility(ctx context.Context, source string, visible bool) error {
	return d.inner.SetSourceVisibility(ctx, source, visible)
}

func (d displayRecorder) PlayMedia(ctx context.Context, source, path string) error {
	return d.inner.PlayMedia(ctx, source, path)
}

func TestPresent_Sequence(t *testing.T) {
	display := &overlay.FakeDisplay{}
	speaker := &overlay.FakeSpeaker{}
	q := newTestQueue(display, speaker)

	q.present(context.Background(), note(notification.TypeFollow, "f", "f followed!"))

	if len(display.TextUpdates) != 1 || display.TextUpdates[0].Text != "f followed!" {
		t.Errorf("text updates = %+v", display.TextUpdates)
	}
	if len(display.Clears) != 1 {
		t.Errorf("clears = %v", display.Clears)
	}
	if lines := speaker.Lines(); len(lines) != 1 || lines[0] != "f followed!" {
		t.Errorf("spoken = %v", lines)
	}
}

func TestPresent_StagedTTS(t *testing.T) {
	display := &overlay.FakeDisplay{}
	speaker := &overlay.FakeSpeaker{}
	q := newTestQueue(display, speaker)
	q.stageDelay = 100 * time.Millisecond

	var stageDelays int
	q.sleep = func(_ context.Context, d time.Duration) {
		if d == q.stageDelay {
			stageDelays++
		}
	}

	n := note(notification.TypePaypiggy, "test_user_13", "test_user_13 renewed subscription for 3 months!")
	n.TTSStages = []string{
		"test_user_13 renewed subscription for 3 months",
		"great stream",
		"Tier 2",
	}
	q.present(context.Background(), n)

	lines := speaker.Lines()
	if len(lines) != 3 {
		t.Fatalf("spoken = %v", lines)
	}
	for i, want := range n.TTSStages {
		if lines[i] != want {
			t.Errorf("stage %d = %q, want %q", i, lines[i], want)
		}
	}
	if stageDelays != 3 {
		t.Errorf("stage delays = %d, want one per stage", stageDelays)
	}
}

func TestPresent_ChatNeverSpoken(t *testing.T) {
	display := &overlay.FakeDisplay{}
	speaker := &overlay.FakeSpeaker{}
	q := newTestQueue(display, speaker)

	q.present(context.Background(), note(notification.TypeChatMessage, "c", "c: hi"))

	if lines := speaker.Lines(); len(lines) != 0 {
		t.Errorf("chat must never be spoken, got %v", lines)
	}
}

func TestTTSPolicy(t *testing.T) {
	policy := NewTTSPolicy(config.TTSConfig{
		Enabled:  true,
		Disabled: []string{"follow"},
	})

	if policy.Allows(notification.TypeChatMessage) {
		t.Error("chat is always excluded")
	}
	if policy.Allows(notification.TypeFollow) {
		t.Error("disabled list must be honored")
	}
	if !policy.Allows(notification.TypeGift) {
		t.Error("gift should be spoken")
	}

	off := NewTTSPolicy(config.TTSConfig{Enabled: false})
	if off.Allows(notification.TypeGift) {
		t.Error("global disable wins")
	}

	var nilPolicy *TTSPolicy
	if nilPolicy.Allows(notification.TypeGift) {
		t.Error("nil policy must fail closed")
	}
}

func TestPresent_DisplayErrorDoesNotAbort(t *testing.T) {
	display := &overlay.FakeDisplay{Err: errors.New("obs down")}
	speaker := &overlay.FakeSpeaker{}
	q := newTestQueue(display, speaker)

	// Must not panic and must still attempt the spoken stage.
	q.present(context.Background(), note(notification.TypeFollow, "f", "f followed!"))

	if lines := speaker.Lines(); len(lines) != 1 {
		t.Errorf("speech should still run when the overlay fails: %v", lines)
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	q := newTestQueue(&overlay.FakeDisplay{}, &overlay.FakeSpeaker{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- q.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("err = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("run did not stop")
	}

	if err := q.Enqueue(note(notification.TypeFollow, "f", "x")); err == nil {
		t.Error("enqueue after stop must fail")
	}
}
