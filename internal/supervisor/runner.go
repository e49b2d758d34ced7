// StreamSync - Live Stream Overlay Notification Pipeline
// Copyright 2026 git-blame-dev
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/git-blame-dev/stream-sync-sub008

package supervisor

import (
	"context"
	"errors"
	"fmt"
)

// Runner adapts a blocking run function to suture.Service. The queue,
// router, adapters, and control API all expose Run(ctx) error, so one
// wrapper covers them all.
type Runner struct {
	name string
	run  func(ctx context.Context) error
}

// NewRunner wraps run as a named supervised service.
func NewRunner(name string, run func(ctx context.Context) error) *Runner {
	return &Runner{name: name, run: run}
}

// Serve implements suture.Service. Context cancellation is a normal
// stop; any other error triggers a supervised restart.
func (r *Runner) Serve(ctx context.Context) error {
	err := r.run(ctx)
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ctx.Err()
	}
	return fmt.Errorf("%s: %w", r.name, err)
}

// String names the service in supervisor logs.
func (r *Runner) String() string { return r.name }
