// StreamSync - Live Stream Overlay Notification Pipeline
// Copyright 2026 git-blame-dev
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/git-blame-dev/stream-sync-sub008

package manager

import (
	"strings"
	"sync"

	"github.com/git-blame-dev/stream-sync-sub008/internal/config"
	"github.com/git-blame-dev/stream-sync-sub008/internal/notification"
)

// ConfigSettings implements SettingsProvider from the notifications
// config. Types absent from the enable map default to enabled.
type ConfigSettings struct {
	enabled map[notification.Type]bool
}

// NewConfigSettings builds a settings provider from config.
func NewConfigSettings(cfg config.NotificationsConfig) *ConfigSettings {
	enabled := make(map[notification.Type]bool, len(cfg.Enabled))
	for name, on := range cfg.Enabled {
		enabled[notification.Type(name)] = on
	}
	return &ConfigSettings{enabled: enabled}
}

// IsEnabled reports whether a type is enabled.
func (s *ConfigSettings) IsEnabled(t notification.Type) (bool, error) {
	if on, ok := s.enabled[t]; ok {
		return on, nil
	}
	return true, nil
}

// SessionUserTracker remembers which users have chatted this session,
// bounded so a flood of one-message users cannot grow memory without
// limit. Once full, new users are reported as returning, which skips
// their greeting rather than evicting known users.
type SessionUserTracker struct {
	mu    sync.Mutex
	seen  map[string]struct{}
	limit int
}

// NewSessionUserTracker creates a tracker holding up to limit users.
func NewSessionUserTracker(limit int) *SessionUserTracker {
	if limit < 1 {
		limit = 1
	}
	return &SessionUserTracker{
		seen:  make(map[string]struct{}),
		limit: limit,
	}
}

// FirstMessage records the user and reports whether this was their first
// chat message of the session.
func (t *SessionUserTracker) FirstMessage(platform notification.Platform, userID string) bool {
	key := string(platform) + ":" + userID

	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.seen[key]; ok {
		return false
	}
	if len(t.seen) >= t.limit {
		return false
	}
	t.seen[key] = struct{}{}
	return true
}

// Len returns the number of tracked users.
func (t *SessionUserTracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.seen)
}

// Reset forgets all users, e.g. when a new stream session starts.
func (t *SessionUserTracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.seen = make(map[string]struct{})
}

// CatalogVFXResolver resolves effects from the configured catalog.
// Command events resolve by command name; other types resolve by type
// name, so a "follow" entry plays on every follow.
type CatalogVFXResolver struct {
	catalog map[string]config.VFXEntry
}

// NewCatalogVFXResolver builds a resolver from the vfx config map.
func NewCatalogVFXResolver(catalog map[string]config.VFXEntry) *CatalogVFXResolver {
	return &CatalogVFXResolver{catalog: catalog}
}

// Resolve returns the effect for an event, or nil.
func (r *CatalogVFXResolver) Resolve(ev *notification.Event) *notification.VFXConfig {
	var key string
	if ev.Type == notification.TypeCommand {
		key = ev.CommandName
		if key == "" {
			key = ev.Command
		}
		key = strings.TrimPrefix(strings.TrimSpace(key), "!")
	} else {
		key = string(ev.Type)
	}

	entry, ok := r.catalog[key]
	if !ok {
		return nil
	}
	return &notification.VFXConfig{
		CommandKey:  key,
		Filename:    entry.Filename,
		MediaSource: entry.MediaSource,
		Path:        entry.Path,
		Duration:    entry.Duration,
	}
}
