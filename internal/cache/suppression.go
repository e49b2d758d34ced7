// StreamSync - Live Stream Overlay Notification Pipeline
// Copyright 2026 git-blame-dev
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/git-blame-dev/stream-sync-sub008

package cache

import (
	"sync"
	"time"
)

// windowCounter is a bucketized sliding-window counter. The window is
// divided into buckets summed on read; advancing the window clears buckets
// that have fully elapsed.
//
// Complexity: Increment O(1), Count O(k) where k = number of buckets.
type windowCounter struct {
	buckets    []int64
	bucketSize time.Duration
	windowSize time.Duration
	numBuckets int
	current    int
	lastUpdate time.Time
}

func newWindowCounter(windowSize time.Duration, numBuckets int) *windowCounter {
	if numBuckets <= 0 {
		numBuckets = 10
	}
	if windowSize <= 0 {
		windowSize = time.Minute
	}
	return &windowCounter{
		buckets:    make([]int64, numBuckets),
		bucketSize: windowSize / time.Duration(numBuckets),
		windowSize: windowSize,
		numBuckets: numBuckets,
		lastUpdate: time.Now(),
	}
}

func (w *windowCounter) increment(now time.Time) {
	w.advance(now)
	w.buckets[w.current]++
}

func (w *windowCounter) count(now time.Time) int64 {
	w.advance(now)
	var total int64
	for _, c := range w.buckets {
		total += c
	}
	return total
}

// advance moves the window forward based on elapsed time.
func (w *windowCounter) advance(now time.Time) {
	elapsed := now.Sub(w.lastUpdate)
	bucketsElapsed := int(elapsed / w.bucketSize)
	if bucketsElapsed <= 0 {
		return
	}

	if bucketsElapsed >= w.numBuckets {
		for i := range w.buckets {
			w.buckets[i] = 0
		}
		w.current = 0
	} else {
		for i := 0; i < bucketsElapsed; i++ {
			w.current = (w.current + 1) % w.numBuckets
			w.buckets[w.current] = 0
		}
	}
	w.lastUpdate = now
}

// suppressionRecord tracks one user's notification rate and active penalty.
type suppressionRecord struct {
	counter         *windowCounter
	suppressedUntil time.Time
	lastSeen        time.Time
}

// SuppressionConfig controls the per-user suppression store.
type SuppressionConfig struct {
	// MaxPerUser is the number of notifications a user may emit within the
	// window before suppression kicks in.
	MaxPerUser int

	// Window is the sliding window over which notifications are counted.
	Window time.Duration

	// Duration is how long a user stays suppressed once the threshold is
	// exceeded.
	Duration time.Duration

	// MaxUsers bounds the number of tracked users (0 = unlimited).
	MaxUsers int
}

// DefaultSuppressionConfig returns production defaults.
func DefaultSuppressionConfig() SuppressionConfig {
	return SuppressionConfig{
		MaxPerUser: 5,
		Window:     30 * time.Second,
		Duration:   time.Minute,
		MaxUsers:   10000,
	}
}

// SuppressionStore tracks per-user notification rates over a sliding window
// and answers whether a user's next notification should be suppressed.
//
// A user who exceeds MaxPerUser notifications within Window is suppressed
// for Duration; further notifications during the penalty do not extend it.
type SuppressionStore struct {
	mu      sync.Mutex
	cfg     SuppressionConfig
	records map[string]*suppressionRecord

	// now is injectable for deterministic tests.
	now func() time.Time
}

// NewSuppressionStore creates a suppression store with the given config.
// Zero-valued config fields fall back to defaults.
func NewSuppressionStore(cfg SuppressionConfig) *SuppressionStore {
	def := DefaultSuppressionConfig()
	if cfg.MaxPerUser <= 0 {
		cfg.MaxPerUser = def.MaxPerUser
	}
	if cfg.Window <= 0 {
		cfg.Window = def.Window
	}
	if cfg.Duration <= 0 {
		cfg.Duration = def.Duration
	}
	return &SuppressionStore{
		cfg:     cfg,
		records: make(map[string]*suppressionRecord),
		now:     time.Now,
	}
}

// SetClock replaces the store's time source. Tests use this to avoid
// sleeping through real windows.
func (s *SuppressionStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Track records a notification for the user and reports whether it should
// be suppressed. The first call that pushes the user over the threshold is
// itself suppressed.
func (s *SuppressionStore) Track(userID string) (suppressed bool, until time.Time) {
	if userID == "" {
		return false, time.Time{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()

	rec, exists := s.records[userID]
	if !exists {
		if s.cfg.MaxUsers > 0 && len(s.records) >= s.cfg.MaxUsers {
			s.evictOne()
		}
		rec = &suppressionRecord{counter: newWindowCounter(s.cfg.Window, 10)}
		s.records[userID] = rec
	}
	rec.lastSeen = now

	if now.Before(rec.suppressedUntil) {
		return true, rec.suppressedUntil
	}

	rec.counter.increment(now)
	if rec.counter.count(now) > int64(s.cfg.MaxPerUser) {
		rec.suppressedUntil = now.Add(s.cfg.Duration)
		return true, rec.suppressedUntil
	}
	return false, time.Time{}
}

// IsSuppressed reports whether the user currently has an active penalty,
// without recording a notification.
func (s *SuppressionStore) IsSuppressed(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, exists := s.records[userID]
	if !exists {
		return false
	}
	return s.now().Before(rec.suppressedUntil)
}

// Reset removes the record for a user.
func (s *SuppressionStore) Reset(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, userID)
}

// Len returns the number of tracked users.
func (s *SuppressionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// Cleanup drops records whose entire window is stale and whose penalty has
// lapsed. Returns the number of records removed.
func (s *SuppressionStore) Cleanup() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for userID, rec := range s.records {
		if now.Before(rec.suppressedUntil) {
			continue
		}
		if now.Sub(rec.lastSeen) > s.cfg.Window {
			delete(s.records, userID)
			removed++
		}
	}
	return removed
}

// evictOne removes the stalest record when at capacity.
// Must be called with the lock held.
func (s *SuppressionStore) evictOne() {
	var oldestKey string
	var oldestSeen time.Time
	for key, rec := range s.records {
		if oldestKey == "" || rec.lastSeen.Before(oldestSeen) {
			oldestKey = key
			oldestSeen = rec.lastSeen
		}
	}
	if oldestKey != "" {
		delete(s.records, oldestKey)
	}
}
