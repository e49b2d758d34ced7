// StreamSync - Live Stream Overlay Notification Pipeline
// Copyright 2026 git-blame-dev
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/git-blame-dev/stream-sync-sub008

package config

import (
	"fmt"
	"strings"
)

// validLogLevels for the logging.level setting.
var validLogLevels = map[string]bool{
	"trace": true, "debug": true, "info": true,
	"warn": true, "error": true, "fatal": true,
}

// validLogFormats for the logging.format setting.
var validLogFormats = map[string]bool{"json": true, "console": true}

// validCurrencies for goal targets. Goals track native platform currency.
var validGoalCurrencies = map[string]bool{
	"coins": true, "bits": true, "USD": true,
}

// Validate checks that required configuration is present and valid.
func (c *Config) Validate() error {
	validators := []func() error{
		c.validateServer,
		c.validateLogging,
		c.validatePlatforms,
		c.validateNotifications,
		c.validateGoals,
		c.validateOverlay,
		c.validateRouter,
		c.validateVFX,
	}
	for _, validate := range validators {
		if err := validate(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("STREAMSYNC_HTTP_PORT must be 1-65535, got %d", c.Server.Port)
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("STREAMSYNC_HTTP_TIMEOUT must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("STREAMSYNC_LOG_LEVEL %q is not a valid level", c.Logging.Level)
	}
	if !validLogFormats[strings.ToLower(c.Logging.Format)] {
		return fmt.Errorf("STREAMSYNC_LOG_FORMAT must be json or console, got %q", c.Logging.Format)
	}
	return nil
}

func (c *Config) validatePlatforms() error {
	if c.Platforms.TikTok.Enabled && c.Platforms.TikTok.Username == "" {
		return fmt.Errorf("STREAMSYNC_TIKTOK_USERNAME is required when STREAMSYNC_TIKTOK_ENABLED=true")
	}
	if c.Platforms.Twitch.Enabled && c.Platforms.Twitch.Channel == "" {
		return fmt.Errorf("STREAMSYNC_TWITCH_CHANNEL is required when STREAMSYNC_TWITCH_ENABLED=true")
	}
	if c.Platforms.YouTube.Enabled {
		if c.Platforms.YouTube.ChannelID == "" {
			return fmt.Errorf("STREAMSYNC_YOUTUBE_CHANNEL_ID is required when STREAMSYNC_YOUTUBE_ENABLED=true")
		}
		if c.Platforms.YouTube.PollInterval <= 0 {
			return fmt.Errorf("STREAMSYNC_YOUTUBE_POLL_INTERVAL must be positive")
		}
	}
	return nil
}

func (c *Config) validateNotifications() error {
	n := c.Notifications
	if n.Dedupe.MaxEntries < 1 {
		return fmt.Errorf("STREAMSYNC_DEDUPE_MAX_ENTRIES must be >= 1")
	}
	if n.Dedupe.TTL <= 0 {
		return fmt.Errorf("STREAMSYNC_DEDUPE_TTL must be positive")
	}
	if n.Suppression.MaxPerUser < 1 {
		return fmt.Errorf("STREAMSYNC_SUPPRESSION_MAX must be >= 1")
	}
	if n.Suppression.Window <= 0 || n.Suppression.Duration <= 0 {
		return fmt.Errorf("suppression window and duration must be positive")
	}
	if n.Queue.MaxSize < 1 {
		return fmt.Errorf("STREAMSYNC_QUEUE_MAX_SIZE must be >= 1")
	}
	if n.Queue.VFXWait <= 0 {
		return fmt.Errorf("STREAMSYNC_QUEUE_VFX_WAIT must be positive")
	}
	return nil
}

func (c *Config) validateGoals() error {
	if !c.Goals.Enabled {
		return nil
	}
	targets := map[string]GoalTarget{
		"tiktok":  c.Goals.TikTok,
		"twitch":  c.Goals.Twitch,
		"youtube": c.Goals.YouTube,
	}
	for name, t := range targets {
		if !t.Enabled {
			continue
		}
		if t.Target <= 0 {
			return fmt.Errorf("goals.%s.target must be positive when enabled", name)
		}
		if !validGoalCurrencies[t.Currency] {
			return fmt.Errorf("goals.%s.currency %q is not supported", name, t.Currency)
		}
	}
	conv := c.Goals.Conversions
	if conv.CoinsPerSub <= 0 || conv.SubValueUSD <= 0 || conv.BitsPerSub <= 0 {
		return fmt.Errorf("goal conversion values must be positive")
	}
	return nil
}

func (c *Config) validateOverlay() error {
	if !c.Overlay.Enabled {
		return nil
	}
	if c.Overlay.URL == "" {
		return fmt.Errorf("STREAMSYNC_OBS_URL is required when STREAMSYNC_OBS_ENABLED=true")
	}
	if !strings.HasPrefix(c.Overlay.URL, "ws://") && !strings.HasPrefix(c.Overlay.URL, "wss://") {
		return fmt.Errorf("STREAMSYNC_OBS_URL must be a ws:// or wss:// URL, got %q", c.Overlay.URL)
	}
	if c.Overlay.TextSource == "" {
		return fmt.Errorf("STREAMSYNC_OBS_TEXT_SOURCE must not be empty")
	}
	return nil
}

func (c *Config) validateRouter() error {
	if c.Router.RetryCount < 0 {
		return fmt.Errorf("STREAMSYNC_ROUTER_RETRY_COUNT must be >= 0")
	}
	if c.Router.PoisonQueueEnabled && c.Router.PoisonQueueTopic == "" {
		return fmt.Errorf("STREAMSYNC_ROUTER_POISON_TOPIC is required when the poison queue is enabled")
	}
	return nil
}

func (c *Config) validateVFX() error {
	for key, entry := range c.VFX {
		if key == "" {
			return fmt.Errorf("vfx entries must have a non-empty command key")
		}
		if entry.Filename == "" && entry.Path == "" {
			return fmt.Errorf("vfx.%s must set filename or path", key)
		}
		if entry.Duration < 0 {
			return fmt.Errorf("vfx.%s duration must not be negative", key)
		}
	}
	return nil
}
