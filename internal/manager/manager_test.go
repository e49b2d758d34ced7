// StreamSync - Live Stream Overlay Notification Pipeline
// Copyright 2026 git-blame-dev
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/git-blame-dev/stream-sync-sub008

package manager

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/git-blame-dev/stream-sync-sub008/internal/cache"
	"github.com/git-blame-dev/stream-sync-sub008/internal/config"
	"github.com/git-blame-dev/stream-sync-sub008/internal/goals"
	"github.com/git-blame-dev/stream-sync-sub008/internal/notification"
)

type fakeQueue struct {
	mu    sync.Mutex
	items []*notification.Notification
	err   error
}

func (q *fakeQueue) Enqueue(n *notification.Notification) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.items = append(q.items, n)
	return nil
}

func (q *fakeQueue) types() []notification.Type {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]notification.Type, len(q.items))
	for i, n := range q.items {
		out[i] = n.Type
	}
	return out
}

type fakeSettings struct {
	disabled map[notification.Type]bool
	err      error
}

func (s *fakeSettings) IsEnabled(t notification.Type) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	return !s.disabled[t], nil
}

type spamFunc func(*notification.Event) bool

func (f spamFunc) IsSpam(ev *notification.Event) bool { return f(ev) }

func newTestManager(q *fakeQueue, mutate func(*Options)) *Manager {
	opts := Options{
		Settings:         &fakeSettings{},
		Users:            NewSessionUserTracker(100),
		Queue:            q,
		Builder:          notification.NewBuilder(),
		Dedupe:           cache.NewDedupeCache(100, time.Minute),
		GreetingsEnabled: true,
	}
	if mutate != nil {
		mutate(&opts)
	}
	return New(opts)
}

func chatEvent(username, id, msg string) *notification.Event {
	ev := notification.NewEvent(notification.PlatformTwitch, notification.TypeChatMessage)
	ev.Username = username
	ev.UserID = username
	ev.ID = id
	ev.Message = msg
	return ev
}

func TestProcess_QueuesValidEvent(t *testing.T) {
	q := &fakeQueue{}
	m := newTestManager(q, nil)

	ev := notification.NewEvent(notification.PlatformTwitch, notification.TypeFollow)
	ev.Username = "follower"

	res := m.Process(context.Background(), ev)
	if !res.Success || !res.Queued || res.Err != nil {
		t.Fatalf("result = %+v", res)
	}
	if len(q.items) != 1 {
		t.Fatalf("queued = %d", len(q.items))
	}
	if q.items[0].DisplayMessage != "follower followed!" {
		t.Errorf("display = %q", q.items[0].DisplayMessage)
	}
}

func TestProcess_MissingUsername(t *testing.T) {
	m := newTestManager(&fakeQueue{}, nil)

	ev := notification.NewEvent(notification.PlatformTwitch, notification.TypeFollow)
	res := m.Process(context.Background(), ev)
	if res.Err == nil {
		t.Fatal("expected error for missing username")
	}
}

func TestProcess_UnknownType(t *testing.T) {
	m := newTestManager(&fakeQueue{}, nil)

	ev := notification.NewEvent(notification.PlatformTwitch, notification.Type("mystery"))
	ev.Username = "u"
	if res := m.Process(context.Background(), ev); res.Err == nil {
		t.Fatal("expected error for unknown type")
	}
}

func TestProcess_DisabledType(t *testing.T) {
	q := &fakeQueue{}
	m := newTestManager(q, func(o *Options) {
		o.Settings = &fakeSettings{disabled: map[notification.Type]bool{notification.TypeFollow: true}}
	})

	ev := notification.NewEvent(notification.PlatformTwitch, notification.TypeFollow)
	ev.Username = "follower"

	res := m.Process(context.Background(), ev)
	if !res.Success || !res.Disabled || res.Reason != ReasonDisabled {
		t.Fatalf("result = %+v", res)
	}
	if len(q.items) != 0 {
		t.Error("disabled event must not queue")
	}
}

func TestProcess_SettingsProbeFailsClosed(t *testing.T) {
	q := &fakeQueue{}
	m := newTestManager(q, func(o *Options) {
		o.Settings = &fakeSettings{err: errors.New("store offline")}
	})

	ev := notification.NewEvent(notification.PlatformTwitch, notification.TypeFollow)
	ev.Username = "follower"

	res := m.Process(context.Background(), ev)
	if !res.Disabled || res.Reason != ReasonSettingsUnavailable {
		t.Fatalf("result = %+v", res)
	}
	if len(q.items) != 0 {
		t.Error("event must be gated when settings are unavailable")
	}
}

func TestProcess_Duplicate(t *testing.T) {
	q := &fakeQueue{}
	m := newTestManager(q, func(o *Options) { o.GreetingsEnabled = false })

	first := chatEvent("chatter", "msg-1", "hello")
	if res := m.Process(context.Background(), first); !res.Queued {
		t.Fatalf("first = %+v", res)
	}

	dup := chatEvent("chatter", "msg-1", "hello")
	res := m.Process(context.Background(), dup)
	if res.Reason != ReasonDuplicate || res.Queued {
		t.Fatalf("duplicate = %+v", res)
	}
	if len(q.items) != 1 {
		t.Errorf("queued = %d", len(q.items))
	}
}

func TestProcess_EventsWithoutIDNeverDedupe(t *testing.T) {
	q := &fakeQueue{}
	m := newTestManager(q, func(o *Options) { o.GreetingsEnabled = false })

	for i := 0; i < 2; i++ {
		ev := notification.NewEvent(notification.PlatformTwitch, notification.TypeFollow)
		ev.Username = "follower"
		ev.ID = ""
		if res := m.Process(context.Background(), ev); !res.Queued {
			t.Fatalf("event %d = %+v", i, res)
		}
	}
	if len(q.items) != 2 {
		t.Errorf("queued = %d", len(q.items))
	}
}

func TestProcess_SpamGate(t *testing.T) {
	q := &fakeQueue{}
	m := newTestManager(q, func(o *Options) {
		o.GreetingsEnabled = false
		o.Spam = spamFunc(func(ev *notification.Event) bool { return true })
	})

	ev := chatEvent("spammer", "msg-1", "buy followers")
	res := m.Process(context.Background(), ev)
	if res.Reason != ReasonSpam || !res.Suppressed {
		t.Fatalf("result = %+v", res)
	}

	// Aggregated events bypass the spam detector.
	agg := chatEvent("spammer", "msg-2", "combined message")
	agg.IsAggregated = true
	if res := m.Process(context.Background(), agg); !res.Queued {
		t.Fatalf("aggregated = %+v", res)
	}
}

func TestProcess_SpamDetectorCalledOncePerEvent(t *testing.T) {
	q := &fakeQueue{}
	var calls int
	m := newTestManager(q, func(o *Options) {
		o.GreetingsEnabled = false
		o.Spam = spamFunc(func(ev *notification.Event) bool {
			calls++
			return false
		})
	})

	gift := notification.NewEvent(notification.PlatformTikTok, notification.TypeGift)
	gift.Username = "gifter"
	gift.GiftType = "Rose"
	gift.GiftCount = 1
	gift.Amount = 1
	gift.Currency = "coins"
	if res := m.Process(context.Background(), gift); !res.Queued {
		t.Fatalf("gift = %+v", res)
	}
	if calls != 1 {
		t.Fatalf("detector calls = %d, want 1", calls)
	}

	agg := notification.NewEvent(notification.PlatformTikTok, notification.TypeGift)
	agg.Username = "gifter"
	agg.GiftType = "Rose"
	agg.GiftCount = 10
	agg.Amount = 10
	agg.Currency = "coins"
	agg.IsAggregated = true
	if res := m.Process(context.Background(), agg); !res.Queued {
		t.Fatalf("aggregated = %+v", res)
	}
	if calls != 1 {
		t.Errorf("detector calls = %d after aggregated event, want 1", calls)
	}
}

func TestProcess_Suppression(t *testing.T) {
	q := &fakeQueue{}
	m := newTestManager(q, func(o *Options) {
		o.GreetingsEnabled = false
		o.Suppression = cache.NewSuppressionStore(cache.SuppressionConfig{
			MaxPerUser: 2,
			Window:     30 * time.Second,
			Duration:   time.Minute,
			MaxUsers:   100,
		})
	})

	for i := 0; i < 2; i++ {
		ev := chatEvent("burster", fmt.Sprintf("msg-%d", i), "hi")
		if res := m.Process(context.Background(), ev); !res.Queued {
			t.Fatalf("message %d = %+v", i, res)
		}
	}

	ev := chatEvent("burster", "msg-over", "hi")
	res := m.Process(context.Background(), ev)
	if res.Reason != ReasonSuppressed || !res.Suppressed {
		t.Fatalf("result = %+v", res)
	}
}

func TestProcess_FirstMessageGreeting(t *testing.T) {
	q := &fakeQueue{}
	m := newTestManager(q, nil)

	res := m.Process(context.Background(), chatEvent("newcomer", "msg-1", "hello"))
	if !res.Queued {
		t.Fatalf("result = %+v", res)
	}

	types := q.types()
	if len(types) != 2 {
		t.Fatalf("expected greeting + chat, got %v", types)
	}
	if types[0] != notification.TypeGreeting || types[1] != notification.TypeChatMessage {
		t.Errorf("types = %v", types)
	}
	if !q.items[0].IsFirstMessage || !q.items[1].IsFirstMessage {
		t.Error("both notifications should carry the first-message flag")
	}

	// Second message: chat only.
	if res := m.Process(context.Background(), chatEvent("newcomer", "msg-2", "again")); !res.Queued {
		t.Fatalf("second = %+v", res)
	}
	if types := q.types(); len(types) != 3 || types[2] != notification.TypeChatMessage {
		t.Errorf("types = %v", types)
	}
	if q.items[2].IsFirstMessage {
		t.Error("second message must not be marked first")
	}
}

func TestProcess_GreetingDisabledStillMarksFirst(t *testing.T) {
	q := &fakeQueue{}
	m := newTestManager(q, func(o *Options) { o.GreetingsEnabled = false })

	res := m.Process(context.Background(), chatEvent("newcomer", "msg-1", "hello"))
	if !res.Queued {
		t.Fatalf("result = %+v", res)
	}
	if types := q.types(); len(types) != 1 || types[0] != notification.TypeChatMessage {
		t.Fatalf("types = %v", types)
	}
	if !q.items[0].IsFirstMessage {
		t.Error("first-message flag should be set even without a greeting")
	}
}

func TestProcess_GoalFanOut(t *testing.T) {
	q := &fakeQueue{}
	tracker := goals.NewTracker(config.GoalsConfig{
		Enabled: true,
		TikTok:  config.GoalTarget{Enabled: true, Target: 1000, Currency: "coins"},
		Twitch:  config.GoalTarget{Enabled: true, Target: 1000, Currency: "bits"},
		Conversions: config.ConversionConfig{
			CoinsPerSub: 50, SubValueUSD: 4.99, BitsPerSub: 350,
		},
	}, nil)
	m := newTestManager(q, func(o *Options) { o.Goals = tracker })

	gift := notification.NewEvent(notification.PlatformTikTok, notification.TypeGift)
	gift.Username = "gifter"
	gift.GiftType = "Rose"
	gift.GiftCount = 5
	gift.Amount = 5
	gift.Currency = "coins"
	if res := m.Process(context.Background(), gift); !res.Queued {
		t.Fatalf("gift = %+v", res)
	}

	sub := notification.NewEvent(notification.PlatformTwitch, notification.TypePaypiggy)
	sub.Username = "sub"
	if res := m.Process(context.Background(), sub); !res.Queued {
		t.Fatalf("sub = %+v", res)
	}

	snap := tracker.Snapshot()
	for _, s := range snap {
		switch s.Platform {
		case notification.PlatformTikTok:
			if s.Total != 5 {
				t.Errorf("tiktok total = %v", s.Total)
			}
		case notification.PlatformTwitch:
			if s.Total != 350 {
				t.Errorf("twitch total = %v", s.Total)
			}
		}
	}
}

func TestProcess_PaymentErrorSkipsGoal(t *testing.T) {
	q := &fakeQueue{}
	tracker := goals.NewTracker(config.GoalsConfig{
		Enabled: true,
		YouTube: config.GoalTarget{Enabled: true, Target: 100, Currency: "USD"},
		Conversions: config.ConversionConfig{
			CoinsPerSub: 50, SubValueUSD: 4.99, BitsPerSub: 350,
		},
	}, nil)
	m := newTestManager(q, func(o *Options) { o.Goals = tracker })

	gift := notification.NewEvent(notification.PlatformYouTube, notification.TypeGift)
	gift.Username = "payer"
	gift.GiftType = "Super Chat"
	gift.GiftCount = 1
	gift.PaymentError = true
	if res := m.Process(context.Background(), gift); !res.Queued {
		t.Fatalf("gift = %+v", res)
	}

	for _, s := range tracker.Snapshot() {
		if s.Total != 0 {
			t.Errorf("payment-error gift must not credit goals: %+v", s)
		}
	}
}

func TestProcess_EnqueueFailurePropagates(t *testing.T) {
	q := &fakeQueue{err: errors.New("queue full")}
	m := newTestManager(q, func(o *Options) { o.GreetingsEnabled = false })

	ev := notification.NewEvent(notification.PlatformTwitch, notification.TypeFollow)
	ev.Username = "f"
	res := m.Process(context.Background(), ev)
	if res.Err == nil {
		t.Fatal("enqueue failure must surface")
	}
	if err := m.HandleEvent(context.Background(), ev); err == nil {
		t.Fatal("HandleEvent must propagate infrastructure errors")
	}
}

func TestHandleEvent_GatedOutcomesReturnNil(t *testing.T) {
	m := newTestManager(&fakeQueue{}, func(o *Options) {
		o.Settings = &fakeSettings{disabled: map[notification.Type]bool{notification.TypeFollow: true}}
	})

	ev := notification.NewEvent(notification.PlatformTwitch, notification.TypeFollow)
	ev.Username = "f"
	if err := m.HandleEvent(context.Background(), ev); err != nil {
		t.Fatalf("gated event must not error: %v", err)
	}
}

func TestSessionUserTracker_Bounded(t *testing.T) {
	tr := NewSessionUserTracker(2)

	if !tr.FirstMessage(notification.PlatformTwitch, "a") {
		t.Error("a is new")
	}
	if !tr.FirstMessage(notification.PlatformTwitch, "b") {
		t.Error("b is new")
	}
	if tr.FirstMessage(notification.PlatformTwitch, "a") {
		t.Error("a is known")
	}
	// Tracker full: new users are reported as returning.
	if tr.FirstMessage(notification.PlatformTwitch, "c") {
		t.Error("full tracker must not greet new users")
	}

	// Same user on another platform is distinct.
	tr2 := NewSessionUserTracker(10)
	if !tr2.FirstMessage(notification.PlatformTwitch, "a") || !tr2.FirstMessage(notification.PlatformTikTok, "a") {
		t.Error("platforms are tracked independently")
	}

	tr2.Reset()
	if !tr2.FirstMessage(notification.PlatformTwitch, "a") {
		t.Error("reset must forget users")
	}
}

func TestCatalogVFXResolver(t *testing.T) {
	r := NewCatalogVFXResolver(map[string]config.VFXEntry{
		"fireworks": {Filename: "fireworks.webm", Duration: 5 * time.Second},
		"follow":    {Filename: "follow.webm"},
	})

	cmd := notification.NewEvent(notification.PlatformTwitch, notification.TypeCommand)
	cmd.Command = "!fireworks"
	cmd.CommandName = "fireworks"
	vfx := r.Resolve(cmd)
	if vfx == nil || vfx.Filename != "fireworks.webm" {
		t.Errorf("vfx = %+v", vfx)
	}

	follow := notification.NewEvent(notification.PlatformTwitch, notification.TypeFollow)
	if vfx := r.Resolve(follow); vfx == nil || vfx.Filename != "follow.webm" {
		t.Errorf("follow vfx = %+v", vfx)
	}

	share := notification.NewEvent(notification.PlatformTwitch, notification.TypeShare)
	if vfx := r.Resolve(share); vfx != nil {
		t.Errorf("share should have no effect, got %+v", vfx)
	}
}
