// StreamSync - Live Stream Overlay Notification Pipeline
// Copyright 2026 git-blame-dev
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/git-blame-dev/stream-sync-sub008

// Package main is the entry point for the StreamSync pipeline.
//
// StreamSync turns live events from TikTok, Twitch, and YouTube into
// overlay notifications in OBS: chat alerts, gifts, subscriptions,
// raids, and donation goal progress, with optional visual effects and
// text-to-speech.
//
// # Application Architecture
//
// The process initializes components in the following order:
//
//  1. Configuration: layered load from defaults, config.yaml, and
//     STREAMSYNC_* environment variables (Koanf v2)
//  2. Goal store: BadgerDB persistence for donation goal totals
//  3. Event bus: in-process Watermill pub/sub carrying canonical events
//  4. Overlay: OBS WebSocket v5 client for text, media, and VFX sources
//  5. Display queue: priority queue scheduling one notification at a time
//  6. Notification manager: settings, dedupe, spam, and burst gates
//  7. Event router: Watermill router with retry and poison queue
//  8. Twitch auth: OAuth token state machine gating the chat adapter
//  9. Control API: health, metrics, and goal endpoints (Chi)
//
// Everything long-running is supervised by a suture tree with three
// layers (ingest, pipeline, api) so one crashing adapter cannot take
// the overlay down.
//
// # Configuration
//
// Configuration is loaded via Koanf v2 with layered sources (highest
// priority wins):
//   - Environment variables (STREAMSYNC_* prefix)
//   - Config file (STREAMSYNC_CONFIG_PATH or ./config.yaml)
//   - Built-in defaults
//
// # Signal Handling
//
// The process shuts down gracefully on SIGINT and SIGTERM: the
// supervisor tree stops all services, the control API drains in-flight
// requests, and the goal store is closed last.
package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/git-blame-dev/stream-sync-sub008/internal/bus"
	"github.com/git-blame-dev/stream-sync-sub008/internal/cache"
	"github.com/git-blame-dev/stream-sync-sub008/internal/config"
	"github.com/git-blame-dev/stream-sync-sub008/internal/goals"
	"github.com/git-blame-dev/stream-sync-sub008/internal/logging"
	"github.com/git-blame-dev/stream-sync-sub008/internal/manager"
	"github.com/git-blame-dev/stream-sync-sub008/internal/notification"
	"github.com/git-blame-dev/stream-sync-sub008/internal/overlay"
	"github.com/git-blame-dev/stream-sync-sub008/internal/platform"
	"github.com/git-blame-dev/stream-sync-sub008/internal/queue"
	"github.com/git-blame-dev/stream-sync-sub008/internal/router"
	"github.com/git-blame-dev/stream-sync-sub008/internal/server"
	"github.com/git-blame-dev/stream-sync-sub008/internal/supervisor"
	"github.com/git-blame-dev/stream-sync-sub008/internal/twitchauth"
)

// sweepInterval is how often the dedupe and suppression caches evict
// expired entries.
const sweepInterval = time.Minute

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})
	logging.Info().Msg("Starting StreamSync")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Goal persistence. Without a store path, totals are session-only.
	var store goals.Store = goals.NewInMemoryStore()
	if cfg.Goals.Enabled && cfg.Goals.StorePath != "" {
		badgerStore, db, err := goals.OpenBadgerStore(cfg.Goals.StorePath)
		if err != nil {
			logging.Fatal().Err(err).Str("path", cfg.Goals.StorePath).Msg("Failed to open goal store")
		}
		defer db.Close()
		store = badgerStore
	}
	tracker := goals.NewTracker(cfg.Goals, store)
	if err := tracker.Initialize(ctx); err != nil {
		logging.Fatal().Err(err).Msg("Failed to restore goal state")
	}

	// Event bus and VFX coordination.
	b := bus.New(logging.NewWatermillGlobalAdapter())
	defer b.Close()

	coord := bus.NewVFXCoordinator(b)
	if err := coord.Start(ctx); err != nil {
		logging.Fatal().Err(err).Msg("Failed to start VFX coordinator")
	}

	// Overlay. A disabled overlay still drains the queue so gating,
	// goals, and metrics behave identically in headless runs.
	var display overlay.Display = overlay.NoopDisplay{}
	if cfg.Overlay.Enabled {
		obs := overlay.NewOBSClient(cfg.Overlay)
		connectCtx, cancel := context.WithTimeout(ctx, cfg.Overlay.ConnectTimeout)
		err := obs.Connect(connectCtx)
		cancel()
		if err != nil {
			logging.Warn().Err(err).Str("url", cfg.Overlay.URL).
				Msg("OBS connection failed; overlay commands will error until it recovers")
		}
		defer obs.Close()
		display = obs
	}

	displayQueue := queue.New(queue.Options{
		Config:     cfg.Notifications.Queue,
		TTS:        cfg.Notifications.TTS,
		TextSource: cfg.Overlay.TextSource,
		Display:    display,
		Speaker:    overlay.NoopSpeaker{},
		VFX:        coord,
	})

	// Gating pipeline.
	durations := make(map[notification.Type]time.Duration, len(cfg.Notifications.Durations))
	for name, d := range cfg.Notifications.Durations {
		durations[notification.Type(name)] = d
	}
	mgr := manager.New(manager.Options{
		Settings: manager.NewConfigSettings(cfg.Notifications),
		Users:    manager.NewSessionUserTracker(cfg.Notifications.Greeting.TrackedUsers),
		Queue:    displayQueue,
		Builder:  notification.NewBuilderWithDurations(durations),
		Dedupe:   cache.NewDedupeCache(cfg.Notifications.Dedupe.MaxEntries, cfg.Notifications.Dedupe.TTL),
		Suppression: cache.NewSuppressionStore(cache.SuppressionConfig{
			MaxPerUser: cfg.Notifications.Suppression.MaxPerUser,
			Window:     cfg.Notifications.Suppression.Window,
			Duration:   cfg.Notifications.Suppression.Duration,
			MaxUsers:   cfg.Notifications.Suppression.MaxUsers,
		}),
		Spam:             manager.NewDonationSpamDetector(3, 5.0, 10*time.Second),
		VFX:              manager.NewCatalogVFXResolver(cfg.VFX),
		Goals:            tracker,
		GreetingsEnabled: cfg.Notifications.Greeting.Enabled,
		SweepInterval:    sweepInterval,
	})

	eventRouter, err := router.New(cfg.Router, b, mgr, logging.NewWatermillGlobalAdapter())
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to build event router")
	}

	// Twitch auth and chat ingest.
	var authMgr *twitchauth.Manager
	if cfg.Platforms.Twitch.Enabled {
		flow := twitchauth.NewLoopbackFlow(cfg.Platforms.Twitch.Auth)
		authMgr = twitchauth.NewManager(cfg.Platforms.Twitch.Auth, flow)
		defer authMgr.Cleanup()
	}

	controlAPI := server.New(server.Options{
		Config: cfg.Server,
		Goals:  tracker,
		Auth:   authReporter(authMgr),
		Queue:  displayQueue,
	})

	// Supervision.
	tree := supervisor.NewTree(supervisor.DefaultTreeConfig())
	if cfg.Notifications.Queue.AutoProcess {
		tree.AddPipelineService(supervisor.NewRunner("display-queue", displayQueue.Run))
	} else {
		logging.Info().Msg("Queue auto-processing disabled; drain via control API or tests")
	}
	tree.AddPipelineService(supervisor.NewRunner("event-router", eventRouter.Run))
	tree.AddPipelineService(supervisor.NewRunner("vfx-player", overlay.NewVFXPlayer(b, coord, display).Run))
	tree.AddPipelineService(supervisor.NewRunner("cache-sweeper", func(ctx context.Context) error {
		mgr.RunSweeper(ctx)
		return ctx.Err()
	}))
	tree.AddAPIService(supervisor.NewRunner("control-api", controlAPI.Run))

	if authMgr != nil {
		tree.AddIngestService(supervisor.NewRunner("twitch-auth", func(ctx context.Context) error {
			if authMgr.State() == twitchauth.StateFailed {
				// Terminal; wait instead of restart-looping.
				<-ctx.Done()
				return ctx.Err()
			}
			if err := authMgr.Initialize(ctx); err != nil {
				return err
			}
			<-ctx.Done()
			return ctx.Err()
		}))

		adapter := platform.NewTwitchChatAdapter(cfg.Platforms.Twitch, authMgr)
		runner := platform.NewRunner(adapter, b,
			cfg.Platforms.Twitch.RatePerSecond, cfg.Platforms.Twitch.RateBurst)
		tree.AddIngestService(supervisor.NewRunner("twitch-chat", runner.Run))
	}

	logging.Info().
		Int("port", cfg.Server.Port).
		Bool("overlay", cfg.Overlay.Enabled).
		Bool("goals", cfg.Goals.Enabled).
		Msg("Supervisor tree starting")

	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logging.Fatal().Err(err).Msg("Supervisor tree failed")
	}

	if report, err := tree.UnstoppedServiceReport(); err == nil && len(report) > 0 {
		for _, svc := range report {
			logging.Warn().Str("service", svc.Name).Msg("Service did not stop in time")
		}
	}
	logging.Info().Msg("StreamSync stopped")
}

// authReporter adapts the optional auth manager to the server's
// interface; a nil manager reads as no auth configured.
func authReporter(m *twitchauth.Manager) server.AuthReporter {
	if m == nil {
		return nil
	}
	return m
}
