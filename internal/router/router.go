// StreamSync - Live Stream Overlay Notification Pipeline
// Copyright 2026 git-blame-dev
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/git-blame-dev/stream-sync-sub008

// Package router consumes canonical platform events off the bus and
// drives them through the notification pipeline. The Watermill router
// supplies panic recovery, retry with backoff, optional throttling, and
// poison queue routing, so one malformed or failing event never tears
// down ingestion.
package router

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"

	"github.com/git-blame-dev/stream-sync-sub008/internal/bus"
	"github.com/git-blame-dev/stream-sync-sub008/internal/config"
	"github.com/git-blame-dev/stream-sync-sub008/internal/logging"
	"github.com/git-blame-dev/stream-sync-sub008/internal/metrics"
	"github.com/git-blame-dev/stream-sync-sub008/internal/notification"
)

// handlerName identifies the pipeline handler in logs and metrics.
const handlerName = "notification-pipeline"

// EventHandler processes one validated canonical event. Implemented by
// the notification manager.
type EventHandler interface {
	HandleEvent(ctx context.Context, ev *notification.Event) error
}

// Router wraps the Watermill router with the StreamSync middleware stack.
type Router struct {
	router  *message.Router
	cfg     config.RouterConfig
	running bool
}

// New creates a router consuming platform events from the bus and
// dispatching them to the handler.
func New(cfg config.RouterConfig, b *bus.Bus, handler EventHandler, logger watermill.LoggerAdapter) (*Router, error) {
	if logger == nil {
		logger = logging.NewWatermillGlobalAdapter()
	}

	wmRouter, err := message.NewRouter(message.RouterConfig{
		CloseTimeout: cfg.CloseTimeout,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create watermill router: %w", err)
	}

	// Middleware order, outer to inner: recover panics, retry transient
	// failures, throttle if configured, poison-queue permanent failures.
	wmRouter.AddMiddleware(middleware.Recoverer)

	retry := middleware.Retry{
		MaxRetries:      cfg.RetryCount,
		InitialInterval: cfg.RetryInitialInterval,
		MaxInterval:     time.Minute,
		Multiplier:      2.0,
		Logger:          logger,
	}
	wmRouter.AddMiddleware(retry.Middleware)

	if cfg.ThrottlePerSecond > 0 {
		throttle := middleware.NewThrottle(int64(cfg.ThrottlePerSecond), time.Second)
		wmRouter.AddMiddleware(throttle.Middleware)
	}

	if cfg.PoisonQueueEnabled && cfg.PoisonQueueTopic != "" {
		poison, err := middleware.PoisonQueue(b.Publisher(), cfg.PoisonQueueTopic)
		if err != nil {
			return nil, fmt.Errorf("create poison queue middleware: %w", err)
		}
		wmRouter.AddMiddleware(poison)
	}

	wmRouter.AddConsumerHandler(
		handlerName,
		bus.TopicPlatformEvents,
		b.Subscriber(),
		pipelineHandler(handler),
	)

	return &Router{router: wmRouter, cfg: cfg}, nil
}

// pipelineHandler decodes and validates each message, then hands it to
// the event handler. Decode and validation failures are permanent: they
// are logged and acked (no retry can fix a malformed event), counted as
// rejected. Handler errors propagate so retry and the poison queue apply.
func pipelineHandler(handler EventHandler) message.NoPublishHandlerFunc {
	return func(msg *message.Message) error {
		metrics.EventsReceived.Inc()

		ev, err := bus.DecodeEvent(msg)
		if err != nil {
			logging.Warn().Err(err).
				Str("message_uuid", msg.UUID).
				Msg("Dropping undecodable event")
			metrics.EventsRejected.WithLabelValues("decode").Inc()
			return nil
		}

		if err := ev.Validate(); err != nil {
			logging.Warn().Err(err).
				Str("platform", string(ev.Platform)).
				Str("type", string(ev.Type)).
				Msg("Dropping invalid event")
			metrics.EventsRejected.WithLabelValues("validation").Inc()
			return nil
		}

		if err := handler.HandleEvent(msg.Context(), ev); err != nil {
			metrics.EventsFailed.Inc()
			return fmt.Errorf("handle %s event: %w", ev.Type, err)
		}
		metrics.EventsProcessed.Inc()
		return nil
	}
}

// Run starts the router and blocks until the context is cancelled.
func (r *Router) Run(ctx context.Context) error {
	r.running = true
	defer func() { r.running = false }()
	return r.router.Run(ctx)
}

// Running returns a channel that closes once the router is consuming.
func (r *Router) Running() <-chan struct{} {
	return r.router.Running()
}

// IsRunning reports whether the router is consuming messages.
func (r *Router) IsRunning() bool {
	return r.running
}

// Close stops the router, waiting up to CloseTimeout for in-flight
// messages.
func (r *Router) Close() error {
	return r.router.Close()
}
