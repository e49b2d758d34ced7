// StreamSync - Live Stream Overlay Notification Pipeline
// Copyright 2026 git-blame-dev
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/git-blame-dev/stream-sync-sub008

// Package overlay drives the stream overlay: text and media sources in
// OBS over its WebSocket protocol, and text-to-speech announcements.
package overlay

import "context"

// Display actuates overlay sources. Implemented by the OBS WebSocket
// client; tests use FakeDisplay.
type Display interface {
	// UpdateTextSource sets the text of a named text source.
	UpdateTextSource(ctx context.Context, source, text string) error

	// ClearTextSource blanks a named text source.
	ClearTextSource(ctx context.Context, source string) error

	// SetSourceVisibility shows or hides a source in the current scene.
	SetSourceVisibility(ctx context.Context, source string, visible bool) error

	// PlayMedia points a media source at a file and restarts playback.
	PlayMedia(ctx context.Context, source, path string) error
}

// Speaker voices notification announcements.
type Speaker interface {
	Speak(ctx context.Context, text string) error
}

// NoopSpeaker discards speech. Used when TTS is disabled or no engine is
// configured.
type NoopSpeaker struct{}

func (NoopSpeaker) Speak(context.Context, string) error { return nil }

// NoopDisplay discards overlay commands. Used when the overlay is
// disabled so the pipeline still drains.
type NoopDisplay struct{}

func (NoopDisplay) UpdateTextSource(context.Context, string, string) error { return nil }
func (NoopDisplay) ClearTextSource(context.Context, string) error          { return nil }
func (NoopDisplay) SetSourceVisibility(context.Context, string, bool) error {
	return nil
}
func (NoopDisplay) PlayMedia(context.Context, string, string) error { return nil }
