// StreamSync - Live Stream Overlay Notification Pipeline
// Copyright 2026 git-blame-dev
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/git-blame-dev/stream-sync-sub008

package manager

import (
	"sync"
	"time"

	"github.com/git-blame-dev/stream-sync-sub008/internal/notification"
)

// DonationSpamDetector flags micro-gift floods: the same user firing
// small gifts one at a time faster than anyone taps a gift button by
// hand. Aggregated events never reach it; the manager skips the
// detector for those.
type DonationSpamDetector struct {
	mu   sync.Mutex
	seen map[string][]time.Time

	// maxSmallGifts small gifts within window from one user flag the
	// next one as spam.
	maxSmallGifts int
	smallAmount   float64
	window        time.Duration

	now func() time.Time
}

// NewDonationSpamDetector creates a detector with the given limits.
// Non-positive arguments fall back to 3 gifts under 5.0 within 10s.
func NewDonationSpamDetector(maxSmallGifts int, smallAmount float64, window time.Duration) *DonationSpamDetector {
	if maxSmallGifts <= 0 {
		maxSmallGifts = 3
	}
	if smallAmount <= 0 {
		smallAmount = 5.0
	}
	if window <= 0 {
		window = 10 * time.Second
	}
	return &DonationSpamDetector{
		seen:          make(map[string][]time.Time),
		maxSmallGifts: maxSmallGifts,
		smallAmount:   smallAmount,
		window:        window,
		now:           time.Now,
	}
}

// IsSpam implements SpamDetector. Only small single gifts count toward
// the flood; large gifts and multi-count gifts always show.
func (d *DonationSpamDetector) IsSpam(ev *notification.Event) bool {
	if ev.Type != notification.TypeGift && ev.Type != notification.TypeEnvelope {
		return false
	}
	if ev.Amount >= d.smallAmount || ev.GiftCount > 1 {
		return false
	}

	key := string(ev.Platform) + ":" + ev.UserID
	if ev.UserID == "" {
		key = string(ev.Platform) + ":" + ev.Username
	}
	now := d.now()
	cutoff := now.Add(-d.window)

	d.mu.Lock()
	defer d.mu.Unlock()

	recent := d.seen[key][:0]
	for _, ts := range d.seen[key] {
		if ts.After(cutoff) {
			recent = append(recent, ts)
		}
	}
	recent = append(recent, now)
	d.seen[key] = recent

	return len(recent) > d.maxSmallGifts
}

// Cleanup drops users with no gifts inside the window. Called from the
// manager's sweeper.
func (d *DonationSpamDetector) Cleanup() {
	cutoff := d.now().Add(-d.window)

	d.mu.Lock()
	defer d.mu.Unlock()
	for key, times := range d.seen {
		live := times[:0]
		for _, ts := range times {
			if ts.After(cutoff) {
				live = append(live, ts)
			}
		}
		if len(live) == 0 {
			delete(d.seen, key)
			continue
		}
		d.seen[key] = live
	}
}
