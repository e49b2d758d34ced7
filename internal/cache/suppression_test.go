// StreamSync - Live Stream Overlay Notification Pipeline
// Copyright 2026 git-blame-dev
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/git-blame-dev/stream-sync-sub008

package cache

import (
	"fmt"
	"testing"
	"time"
)

// fakeClock advances manually for deterministic window tests.
type fakeClock struct {
	now time.Time
}

func (f *fakeClock) Now() time.Time          { return f.now }
func (f *fakeClock) Advance(d time.Duration) { f.now = f.now.Add(d) }

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1700000000, 0)}
}

func TestSuppressionStore_UnderThreshold(t *testing.T) {
	s := NewSuppressionStore(SuppressionConfig{MaxPerUser: 3, Window: time.Minute, Duration: time.Minute})
	clock := newFakeClock()
	s.SetClock(clock.Now)

	for i := 0; i < 3; i++ {
		if suppressed, _ := s.Track("u1"); suppressed {
			t.Fatalf("notification %d should not be suppressed", i+1)
		}
	}
}

func TestSuppressionStore_ThresholdExceeded(t *testing.T) {
	s := NewSuppressionStore(SuppressionConfig{MaxPerUser: 3, Window: time.Minute, Duration: time.Minute})
	clock := newFakeClock()
	s.SetClock(clock.Now)

	for i := 0; i < 3; i++ {
		s.Track("u1")
	}

	suppressed, until := s.Track("u1")
	if !suppressed {
		t.Fatal("fourth notification should be suppressed")
	}
	if !until.Equal(clock.Now().Add(time.Minute)) {
		t.Errorf("unexpected suppressedUntil: %v", until)
	}
	if !s.IsSuppressed("u1") {
		t.Error("user should report as suppressed")
	}
}

func TestSuppressionStore_PenaltyLapses(t *testing.T) {
	s := NewSuppressionStore(SuppressionConfig{MaxPerUser: 1, Window: 10 * time.Second, Duration: 30 * time.Second})
	clock := newFakeClock()
	s.SetClock(clock.Now)

	s.Track("u1")
	if suppressed, _ := s.Track("u1"); !suppressed {
		t.Fatal("second notification should be suppressed")
	}

	// Past the penalty and past the window: counter has decayed.
	clock.Advance(45 * time.Second)

	if s.IsSuppressed("u1") {
		t.Error("penalty should have lapsed")
	}
	if suppressed, _ := s.Track("u1"); suppressed {
		t.Error("notification after penalty and window should pass")
	}
}

func TestSuppressionStore_WindowSlides(t *testing.T) {
	s := NewSuppressionStore(SuppressionConfig{MaxPerUser: 2, Window: 10 * time.Second, Duration: time.Minute})
	clock := newFakeClock()
	s.SetClock(clock.Now)

	s.Track("u1")
	clock.Advance(15 * time.Second) // first notification out of window
	s.Track("u1")

	if suppressed, _ := s.Track("u1"); suppressed {
		t.Error("count within window is 2 <= max, should not suppress")
	}
}

func TestSuppressionStore_IndependentUsers(t *testing.T) {
	s := NewSuppressionStore(SuppressionConfig{MaxPerUser: 1, Window: time.Minute, Duration: time.Minute})
	clock := newFakeClock()
	s.SetClock(clock.Now)

	s.Track("u1")
	s.Track("u1") // u1 now suppressed

	if suppressed, _ := s.Track("u2"); suppressed {
		t.Error("u2 should not inherit u1's suppression")
	}
}

func TestSuppressionStore_EmptyUserIDIgnored(t *testing.T) {
	s := NewSuppressionStore(DefaultSuppressionConfig())

	if suppressed, _ := s.Track(""); suppressed {
		t.Error("empty user ID should never suppress")
	}
	if s.Len() != 0 {
		t.Error("empty user ID should not be tracked")
	}
}

func TestSuppressionStore_Cleanup(t *testing.T) {
	s := NewSuppressionStore(SuppressionConfig{MaxPerUser: 5, Window: 10 * time.Second, Duration: 10 * time.Second})
	clock := newFakeClock()
	s.SetClock(clock.Now)

	s.Track("stale")
	clock.Advance(5 * time.Second)
	s.Track("fresh")
	clock.Advance(7 * time.Second)

	removed := s.Cleanup()
	if removed != 1 {
		t.Errorf("expected 1 stale record removed, got %d", removed)
	}
	if s.Len() != 1 {
		t.Errorf("expected 1 record remaining, got %d", s.Len())
	}
}

func TestSuppressionStore_CleanupKeepsActivePenalty(t *testing.T) {
	s := NewSuppressionStore(SuppressionConfig{MaxPerUser: 1, Window: time.Second, Duration: time.Hour})
	clock := newFakeClock()
	s.SetClock(clock.Now)

	s.Track("u1")
	s.Track("u1") // suppressed for an hour
	clock.Advance(time.Minute)

	if removed := s.Cleanup(); removed != 0 {
		t.Errorf("active penalty should survive cleanup, removed %d", removed)
	}
	if !s.IsSuppressed("u1") {
		t.Error("u1 should still be suppressed")
	}
}

func TestSuppressionStore_MaxUsersEviction(t *testing.T) {
	s := NewSuppressionStore(SuppressionConfig{MaxPerUser: 5, Window: time.Minute, Duration: time.Minute, MaxUsers: 10})
	clock := newFakeClock()
	s.SetClock(clock.Now)

	for i := 0; i < 20; i++ {
		s.Track(fmt.Sprintf("u%d", i))
		clock.Advance(time.Millisecond)
	}

	if s.Len() > 10 {
		t.Errorf("store should be bounded at 10 users, got %d", s.Len())
	}
}
