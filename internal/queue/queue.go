// StreamSync - Live Stream Overlay Notification Pipeline
// Copyright 2026 git-blame-dev
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/git-blame-dev/stream-sync-sub008

// Package queue holds notifications awaiting display and drives the
// overlay one notification at a time. Ordering is priority descending
// with FIFO ties; a higher-priority arrival displays next but never
// interrupts the notification already on screen.
package queue

import (
	"container/heap"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/git-blame-dev/stream-sync-sub008/internal/bus"
	"github.com/git-blame-dev/stream-sync-sub008/internal/config"
	"github.com/git-blame-dev/stream-sync-sub008/internal/logging"
	"github.com/git-blame-dev/stream-sync-sub008/internal/metrics"
	"github.com/git-blame-dev/stream-sync-sub008/internal/notification"
	"github.com/git-blame-dev/stream-sync-sub008/internal/overlay"
)

// ErrQueueFull is wrapped by Enqueue when the queue is at capacity.
var ErrQueueFull = fmt.Errorf("display queue full")

// vfxWaitTypes are the kinds whose visual effect must finish before the
// display moves on. Monetization effects play concurrently with their
// display time instead.
var vfxWaitTypes = map[notification.Type]bool{
	notification.TypeFollow:   true,
	notification.TypeGreeting: true,
	notification.TypePaypiggy: true,
	notification.TypeRaid:     true,
}

// TTSPolicy decides which notifications are spoken. Chat messages are
// never spoken regardless of policy.
type TTSPolicy struct {
	enabled  bool
	disabled map[notification.Type]bool
}

// NewTTSPolicy builds a policy from config.
func NewTTSPolicy(cfg config.TTSConfig) *TTSPolicy {
	disabled := make(map[notification.Type]bool, len(cfg.Disabled))
	for _, name := range cfg.Disabled {
		disabled[notification.Type(name)] = true
	}
	return &TTSPolicy{enabled: cfg.Enabled, disabled: disabled}
}

// Allows reports whether a type should be spoken. A nil policy allows
// nothing.
func (p *TTSPolicy) Allows(t notification.Type) bool {
	if p == nil || !p.enabled {
		return false
	}
	if t == notification.TypeChatMessage {
		return false
	}
	return !p.disabled[t]
}

// DisplayQueue is the priority queue plus the display scheduler.
type DisplayQueue struct {
	mu      sync.Mutex
	items   notificationHeap
	nextSeq uint64
	maxSize int
	stopped bool
	wake    chan struct{}

	display overlay.Display
	speaker overlay.Speaker
	coord   *bus.VFXCoordinator
	tts     *TTSPolicy

	textSource string
	vfxWait    time.Duration
	stageDelay time.Duration

	// sleep is swappable so tests run without real waits.
	sleep func(ctx context.Context, d time.Duration)
}

// Options wires the queue's collaborators.
type Options struct {
	Config     config.QueueConfig
	TTS        config.TTSConfig
	TextSource string

	Display overlay.Display
	Speaker overlay.Speaker
	VFX     *bus.VFXCoordinator
}

// New creates a display queue. Call Run to start processing.
func New(opts Options) *DisplayQueue {
	speaker := opts.Speaker
	if speaker == nil {
		speaker = overlay.NoopSpeaker{}
	}
	return &DisplayQueue{
		items:      make(notificationHeap, 0, opts.Config.MaxSize),
		maxSize:    opts.Config.MaxSize,
		wake:       make(chan struct{}, 1),
		display:    opts.Display,
		speaker:    speaker,
		coord:      opts.VFX,
		tts:        NewTTSPolicy(opts.TTS),
		textSource: opts.TextSource,
		vfxWait:    opts.Config.VFXWait,
		stageDelay: opts.TTS.StageDelay,
		sleep:      sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

// Enqueue adds a notification. Returns a wrapped ErrQueueFull at
// capacity; the caller decides whether that is fatal.
func (q *DisplayQueue) Enqueue(n *notification.Notification) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.stopped {
		return fmt.Errorf("display queue stopped")
	}
	if len(q.items) >= q.maxSize {
		metrics.QueueOverflows.Inc()
		return fmt.Errorf("%w: %d notifications waiting", ErrQueueFull, len(q.items))
	}

	q.nextSeq++
	heap.Push(&q.items, &item{n: n, seq: q.nextSeq})
	metrics.QueueDepth.Set(float64(len(q.items)))

	select {
	case q.wake <- struct{}{}:
	default:
	}
	return nil
}

// Len returns the number of notifications waiting.
func (q *DisplayQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// pop removes the highest-priority notification, or nil when empty.
func (q *DisplayQueue) pop() *notification.Notification {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil
	}
	it := heap.Pop(&q.items).(*item)
	metrics.QueueDepth.Set(float64(len(q.items)))
	return it.n
}

// Run processes notifications until the context is cancelled. The
// notification on screen finishes its display; waiting ones stay queued.
func (q *DisplayQueue) Run(ctx context.Context) error {
	for {
		n := q.pop()
		if n == nil {
			select {
			case <-q.wake:
				continue
			case <-ctx.Done():
				q.markStopped()
				return ctx.Err()
			}
		}
		q.present(ctx, n)
		if ctx.Err() != nil {
			q.markStopped()
			return ctx.Err()
		}
	}
}

func (q *DisplayQueue) markStopped() {
	q.mu.Lock()
	q.stopped = true
	q.mu.Unlock()
}

// present runs the display sequence for one notification: text update,
// visual effect, speech, display hold, clear.
func (q *DisplayQueue) present(ctx context.Context, n *notification.Notification) {
	started := time.Now()
	defer func() {
		metrics.DisplayDuration.Observe(time.Since(started).Seconds())
	}()

	if err := q.display.UpdateTextSource(ctx, q.textSource, n.DisplayMessage); err != nil {
		logging.Warn().Err(err).
			Str("type", string(n.Type)).
			Msg("Failed to update overlay text")
	}

	q.playVFX(ctx, n)

	q.speak(ctx, n)

	q.sleep(ctx, n.Duration)

	if err := q.display.ClearTextSource(ctx, q.textSource); err != nil {
		logging.Warn().Err(err).Msg("Failed to clear overlay text")
	}
}

// speak plays the notification's TTS stages in order, inserting the
// configured delay before each stage. Notifications built without a
// stage list fall back to the single primary message.
func (q *DisplayQueue) speak(ctx context.Context, n *notification.Notification) {
	if !q.tts.Allows(n.Type) {
		return
	}
	stages := n.TTSStages
	if len(stages) == 0 && n.TTSMessage != "" {
		stages = []string{n.TTSMessage}
	}
	for _, line := range stages {
		if ctx.Err() != nil {
			return
		}
		q.sleep(ctx, q.stageDelay)
		if err := q.speaker.Speak(ctx, line); err != nil {
			logging.Warn().Err(err).
				Str("type", string(n.Type)).
				Msg("TTS announcement failed")
		}
	}
}

// playVFX emits the notification's effect. Kinds in vfxWaitTypes block
// until completion, bounded by the configured wait limit; the rest play
// concurrently with the display hold.
func (q *DisplayQueue) playVFX(ctx context.Context, n *notification.Notification) {
	if n.VFX == nil || q.coord == nil {
		return
	}
	id, err := q.coord.Play(n.VFX)
	if err != nil {
		logging.Warn().Err(err).
			Str("type", string(n.Type)).
			Str("command", n.VFX.CommandKey).
			Msg("Failed to start visual effect")
		return
	}
	if vfxWaitTypes[n.Type] {
		q.coord.Await(ctx, id, q.vfxWait)
	}
}
