// StreamSync - Live Stream Overlay Notification Pipeline
// Copyright 2026 git-blame-dev
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/git-blame-dev/stream-sync-sub008

// Package supervisor builds the suture tree that keeps StreamSync's
// long-running pieces alive. Three layers isolate failures: a crashing
// platform adapter restarts without touching the display pipeline, and
// neither takes down the control API.
package supervisor

import (
	"context"
	"errors"
	"time"

	"github.com/thejerf/suture/v4"
	"github.com/thejerf/sutureslog"

	"github.com/git-blame-dev/stream-sync-sub008/internal/logging"
)

// TreeConfig holds the failure parameters shared by every supervisor in
// the tree. Zero values fall back to suture's defaults.
type TreeConfig struct {
	FailureThreshold float64
	FailureDecay     float64
	FailureBackoff   time.Duration
	ShutdownTimeout  time.Duration
}

// DefaultTreeConfig returns suture's documented defaults.
func DefaultTreeConfig() TreeConfig {
	return TreeConfig{
		FailureThreshold: 5.0,
		FailureDecay:     30.0,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  10 * time.Second,
	}
}

// Tree is the supervisor hierarchy:
//   - ingest: platform adapters (TikTok, Twitch, YouTube)
//   - pipeline: event router, display queue, VFX player, cache sweeper
//   - api: control API server
type Tree struct {
	root     *suture.Supervisor
	ingest   *suture.Supervisor
	pipeline *suture.Supervisor
	api      *suture.Supervisor
}

// NewTree creates the tree. Supervisor events are logged through the
// global logger via the slog bridge.
func NewTree(config TreeConfig) *Tree {
	if config.FailureThreshold == 0 {
		config.FailureThreshold = 5.0
	}
	if config.FailureDecay == 0 {
		config.FailureDecay = 30.0
	}
	if config.FailureBackoff == 0 {
		config.FailureBackoff = 15 * time.Second
	}
	if config.ShutdownTimeout == 0 {
		config.ShutdownTimeout = 10 * time.Second
	}

	handler := &sutureslog.Handler{Logger: logging.Slog()}
	rootSpec := suture.Spec{
		EventHook:        handler.MustHook(),
		FailureThreshold: config.FailureThreshold,
		FailureDecay:     config.FailureDecay,
		FailureBackoff:   config.FailureBackoff,
		Timeout:          config.ShutdownTimeout,
	}
	childSpec := suture.Spec{
		FailureThreshold: config.FailureThreshold,
		FailureDecay:     config.FailureDecay,
		FailureBackoff:   config.FailureBackoff,
		Timeout:          config.ShutdownTimeout,
	}

	root := suture.New("streamsync", rootSpec)
	ingest := suture.New("ingest-layer", childSpec)
	pipeline := suture.New("pipeline-layer", childSpec)
	api := suture.New("api-layer", childSpec)

	root.Add(ingest)
	root.Add(pipeline)
	root.Add(api)

	return &Tree{root: root, ingest: ingest, pipeline: pipeline, api: api}
}

// AddIngestService supervises a platform adapter.
func (t *Tree) AddIngestService(svc suture.Service) suture.ServiceToken {
	return t.ingest.Add(svc)
}

// AddPipelineService supervises a pipeline component.
func (t *Tree) AddPipelineService(svc suture.Service) suture.ServiceToken {
	return t.pipeline.Add(svc)
}

// AddAPIService supervises the control API.
func (t *Tree) AddAPIService(svc suture.Service) suture.ServiceToken {
	return t.api.Add(svc)
}

// Remove stops and removes a supervised service. Tokens are issued by
// the layer supervisors, so removal is tried against each layer until
// one claims the token.
func (t *Tree) Remove(token suture.ServiceToken) error {
	for _, layer := range []*suture.Supervisor{t.ingest, t.pipeline, t.api} {
		err := layer.Remove(token)
		if !errors.Is(err, suture.ErrWrongSupervisor) {
			return err
		}
	}
	return suture.ErrWrongSupervisor
}

// Serve runs the tree until ctx is cancelled.
func (t *Tree) Serve(ctx context.Context) error {
	return t.root.Serve(ctx)
}

// ServeBackground runs the tree in a goroutine and returns its
// completion channel.
func (t *Tree) ServeBackground(ctx context.Context) <-chan error {
	return t.root.ServeBackground(ctx)
}

// UnstoppedServiceReport lists services that ignored shutdown, for
// debugging hung exits.
func (t *Tree) UnstoppedServiceReport() ([]suture.UnstoppedService, error) {
	return t.root.UnstoppedServiceReport()
}
