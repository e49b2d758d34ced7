// StreamSync - Live Stream Overlay Notification Pipeline
// Copyright 2026 git-blame-dev
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/git-blame-dev/stream-sync-sub008

// Package server exposes the local control API: health, Prometheus
// metrics, donation goal state, and auth status. It binds to loopback
// by default; nothing here is meant for the open internet.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/git-blame-dev/stream-sync-sub008/internal/config"
	"github.com/git-blame-dev/stream-sync-sub008/internal/goals"
	"github.com/git-blame-dev/stream-sync-sub008/internal/logging"
	"github.com/git-blame-dev/stream-sync-sub008/internal/notification"
	"github.com/git-blame-dev/stream-sync-sub008/internal/twitchauth"
)

// GoalService is the slice of goals.Tracker the API needs.
type GoalService interface {
	Snapshot() []goals.Result
	Reset(ctx context.Context, platform notification.Platform) error
	AddDonation(ctx context.Context, platform notification.Platform, amount float64) (*goals.Result, error)
	Tracks(platform notification.Platform) bool
}

// AuthReporter reports the Twitch auth lifecycle state.
type AuthReporter interface {
	State() twitchauth.State
}

// QueueReporter reports display queue depth.
type QueueReporter interface {
	Len() int
}

// Options wires the server's collaborators. Goals is required; Auth and
// Queue may be nil when those subsystems are disabled.
type Options struct {
	Config config.ServerConfig
	Goals  GoalService
	Auth   AuthReporter
	Queue  QueueReporter
}

// Server is the control API.
type Server struct {
	opts    Options
	started time.Time
	http    *http.Server
}

// New creates the server. Panics when Goals is missing; that is a
// wiring bug.
func New(opts Options) *Server {
	if opts.Goals == nil {
		panic("server: goal service is required")
	}
	s := &Server{opts: opts, started: time.Now()}

	timeout := opts.Config.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	s.http = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", opts.Config.Host, opts.Config.Port),
		Handler:      s.routes(),
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
		IdleTimeout:  2 * timeout,
	}
	return s
}

// routes builds the chi router.
func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/goals", s.handleGoals)
		r.Post("/goals/{platform}/credit", s.handleGoalCredit)
		r.Post("/goals/{platform}/reset", s.handleGoalReset)
	})

	return r
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler { return s.http.Handler }

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		logging.Info().Str("addr", s.http.Addr).Msg("Control API listening")
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("control api: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.http.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("control api shutdown: %w", err)
		}
		return ctx.Err()
	}
}
