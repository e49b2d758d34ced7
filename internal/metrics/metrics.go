// StreamSync - Live Stream Overlay Notification Pipeline
// Copyright 2026 git-blame-dev
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/git-blame-dev/stream-sync-sub008

// Package metrics defines the Prometheus instrumentation for the
// notification pipeline. Metrics are registered with promauto on the
// default registry and exposed by the control server at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Pipeline throughput.
	EventsReceived = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "streamsync_events_received_total",
			Help: "Total canonical events consumed from the bus",
		},
	)

	EventsProcessed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "streamsync_events_processed_total",
			Help: "Total events handled successfully",
		},
	)

	EventsFailed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "streamsync_events_failed_total",
			Help: "Total events whose handler returned an error",
		},
	)

	EventsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streamsync_events_rejected_total",
			Help: "Total events dropped before handling",
		},
		[]string{"reason"}, // "decode", "validation"
	)

	AdapterEventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streamsync_adapter_events_published_total",
			Help: "Total canonical events published by platform adapters",
		},
		[]string{"platform"},
	)

	// Gating outcomes by the notification manager.
	NotificationsGated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streamsync_notifications_gated_total",
			Help: "Total notifications stopped by a gate",
		},
		[]string{"gate"}, // "disabled", "duplicate", "spam_detection", "suppression"
	)

	NotificationsQueued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streamsync_notifications_queued_total",
			Help: "Total notifications enqueued for display",
		},
		[]string{"platform", "type"},
	)

	// Display queue state.
	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "streamsync_queue_depth",
			Help: "Notifications currently waiting for display",
		},
	)

	QueueOverflows = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "streamsync_queue_overflows_total",
			Help: "Total notifications rejected because the queue was full",
		},
	)

	DisplayDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "streamsync_display_duration_seconds",
			Help:    "Wall time one notification occupied the overlay",
			Buckets: []float64{1, 2, 4, 6, 8, 10, 15, 20, 30},
		},
	)

	// Goal tracking.
	GoalCredits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streamsync_goal_credits_total",
			Help: "Total donation credits applied to goals",
		},
		[]string{"platform"},
	)

	GoalProgress = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "streamsync_goal_progress_percent",
			Help: "Current goal completion percentage per platform",
		},
		[]string{"platform"},
	)

	// Overlay connection.
	OverlayConnected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "streamsync_overlay_connected",
			Help: "Whether the OBS WebSocket connection is up (1) or down (0)",
		},
	)

	OverlayRequestErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streamsync_overlay_request_errors_total",
			Help: "Total failed OBS WebSocket requests",
		},
		[]string{"request"},
	)

	// Twitch auth state machine.
	AuthStateTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streamsync_auth_state_transitions_total",
			Help: "Total Twitch auth state machine transitions",
		},
		[]string{"to"},
	)

	TokenRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streamsync_token_refreshes_total",
			Help: "Total Twitch token refresh attempts by outcome",
		},
		[]string{"outcome"}, // "success", "invalid_grant", "error"
	)
)
