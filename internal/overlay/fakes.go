// StreamSync - Live Stream Overlay Notification Pipeline
// Copyright 2026 git-blame-dev
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/git-blame-dev/stream-sync-sub008

package overlay

import (
	"context"
	"sync"
)

// FakeDisplay records overlay calls for tests.
type FakeDisplay struct {
	mu sync.Mutex

	TextUpdates []TextUpdate
	Clears      []string
	Visibility  []VisibilityChange
	MediaPlays  []MediaPlay

	// Err, when set, is returned by every call.
	Err error
}

type TextUpdate struct {
	Source string
	Text   string
}

type VisibilityChange struct {
	Source  string
	Visible bool
}

type MediaPlay struct {
	Source string
	Path   string
}

func (f *FakeDisplay) UpdateTextSource(_ context.Context, source, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	f.TextUpdates = append(f.TextUpdates, TextUpdate{Source: source, Text: text})
	return nil
}

func (f *FakeDisplay) ClearTextSource(_ context.Context, source string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	f.Clears = append(f.Clears, source)
	return nil
}

func (f *FakeDisplay) SetSourceVisibility(_ context.Context, source string, visible bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	f.Visibility = append(f.Visibility, VisibilityChange{Source: source, Visible: visible})
	return nil
}

func (f *FakeDisplay) PlayMedia(_ context.Context, source, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	f.MediaPlays = append(f.MediaPlays, MediaPlay{Source: source, Path: path})
	return nil
}

// Texts returns the text values written so far.
func (f *FakeDisplay) Texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.TextUpdates))
	for i, u := range f.TextUpdates {
		out[i] = u.Text
	}
	return out
}

// FakeSpeaker records spoken lines for tests.
type FakeSpeaker struct {
	mu     sync.Mutex
	Spoken []string
	Err    error
}

func (f *FakeSpeaker) Speak(_ context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	f.Spoken = append(f.Spoken, text)
	return nil
}

// Lines returns the spoken lines so far.
func (f *FakeSpeaker) Lines() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.Spoken...)
}
