// StreamSync - Live Stream Overlay Notification Pipeline
// Copyright 2026 git-blame-dev
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/git-blame-dev/stream-sync-sub008

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists where config files are searched, in order.
// The first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/streamsync/config.yaml",
	"/etc/streamsync/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "STREAMSYNC_CONFIG_PATH"

// envPrefix is stripped from environment variables before mapping.
const envPrefix = "STREAMSYNC_"

// defaultConfig returns a Config with every optional setting defaulted.
// Defaults are applied first, then overridden by file and env vars.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:    "127.0.0.1",
			Port:    8790,
			Timeout: 30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
		Platforms: PlatformsConfig{
			TikTok: TikTokConfig{
				Enabled:       false,
				RatePerSecond: 20,
				RateBurst:     40,
			},
			Twitch: TwitchConfig{
				Enabled:       false,
				RatePerSecond: 20,
				RateBurst:     40,
				Auth: TwitchAuthConfig{
					RedirectURI: "http://localhost:3000",
					Scopes:      []string{"chat:read", "chat:edit", "channel:read:subscriptions", "bits:read"},
					OAuthPort:   3000,
					ValidateURL: "https://id.twitch.tv/oauth2/validate",
					TokenURL:    "https://id.twitch.tv/oauth2/token",
					Timeout:     10 * time.Second,
				},
			},
			YouTube: YouTubeConfig{
				Enabled:       false,
				PollInterval:  5 * time.Second,
				RatePerSecond: 20,
				RateBurst:     40,
			},
		},
		Notifications: NotificationsConfig{
			// Every type enabled unless overridden.
			Enabled:   map[string]bool{},
			Durations: map[string]time.Duration{},
			TTS: TTSConfig{
				Enabled:    true,
				Disabled:   []string{},
				StageDelay: 500 * time.Millisecond,
			},
			Dedupe: DedupeConfig{
				MaxEntries: 10000,
				TTL:        5 * time.Minute,
			},
			Suppression: SuppressionConfig{
				MaxPerUser: 5,
				Window:     30 * time.Second,
				Duration:   time.Minute,
				MaxUsers:   10000,
			},
			Queue: QueueConfig{
				MaxSize:     100,
				AutoProcess: true,
				VFXWait:     10 * time.Second,
			},
			Greeting: GreetingConfig{
				Enabled:      true,
				TrackedUsers: 10000,
			},
		},
		Goals: GoalsConfig{
			Enabled:   false,
			StorePath: "",
			TikTok:    GoalTarget{Target: 1000, Currency: "coins"},
			Twitch:    GoalTarget{Target: 100, Currency: "bits"},
			YouTube:   GoalTarget{Target: 1, Currency: "USD"},
			Conversions: ConversionConfig{
				CoinsPerSub: 50,
				SubValueUSD: 4.99,
				BitsPerSub:  350,
			},
		},
		Overlay: OverlayConfig{
			Enabled:           false,
			URL:               "ws://127.0.0.1:4455",
			TextSource:        "notification_text",
			MediaSource:       "notification_media",
			ConnectTimeout:    5 * time.Second,
			ReconnectInterval: 3 * time.Second,
		},
		Router: RouterConfig{
			RetryCount:           3,
			RetryInitialInterval: 100 * time.Millisecond,
			ThrottlePerSecond:    0, // unlimited
			PoisonQueueEnabled:   true,
			PoisonQueueTopic:     "platform.events.poison",
			CloseTimeout:         30 * time.Second,
		},
		VFX: map[string]VFXEntry{},
	}
}

// Load loads configuration using Koanf v2 with layered sources. Precedence
// is ENV > file > defaults. The result is validated before return.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	configPath := findConfigFile()
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	envProvider := env.Provider(envPrefix, ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile returns the first config file that exists, or "".
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// sliceConfigPaths lists config paths parsed as comma-separated slices
// when they arrive via environment variables.
var sliceConfigPaths = []string{
	"notifications.tts.disabled",
	"platforms.twitch.auth.scopes",
}

// processSliceFields converts comma-separated env values to slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}
		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envTransformFunc maps STREAMSYNC_* environment variables to config
// paths. Unmapped variables are skipped so unrelated environment noise
// never pollutes the config.
//
// Examples:
//   - STREAMSYNC_LOG_LEVEL -> logging.level
//   - STREAMSYNC_TWITCH_CLIENT_ID -> platforms.twitch.auth.client_id
//   - STREAMSYNC_GOAL_TIKTOK_TARGET -> goals.tiktok.target
func envTransformFunc(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, envPrefix))

	envMappings := map[string]string{
		// Server
		"http_host":    "server.host",
		"http_port":    "server.port",
		"http_timeout": "server.timeout",

		// Logging
		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",

		// TikTok adapter
		"tiktok_enabled":  "platforms.tiktok.enabled",
		"tiktok_username": "platforms.tiktok.username",

		// Twitch adapter and OAuth
		"twitch_enabled":       "platforms.twitch.enabled",
		"twitch_channel":       "platforms.twitch.channel",
		"twitch_client_id":     "platforms.twitch.auth.client_id",
		"twitch_client_secret": "platforms.twitch.auth.client_secret",
		"twitch_access_token":  "platforms.twitch.auth.access_token",
		"twitch_refresh_token": "platforms.twitch.auth.refresh_token",
		"twitch_redirect_uri":  "platforms.twitch.auth.redirect_uri",
		"twitch_oauth_port":    "platforms.twitch.auth.oauth_port",

		// YouTube adapter
		"youtube_enabled":       "platforms.youtube.enabled",
		"youtube_channel_id":    "platforms.youtube.channel_id",
		"youtube_api_key":       "platforms.youtube.api_key",
		"youtube_poll_interval": "platforms.youtube.poll_interval",

		// Notification pipeline
		"tts_enabled":             "notifications.tts.enabled",
		"tts_disabled":            "notifications.tts.disabled",
		"tts_stage_delay":         "notifications.tts.stage_delay",
		"dedupe_max_entries":      "notifications.dedupe.max_entries",
		"dedupe_ttl":              "notifications.dedupe.ttl",
		"suppression_max":         "notifications.suppression.max_per_user",
		"suppression_window":      "notifications.suppression.window",
		"suppression_duration":    "notifications.suppression.duration",
		"queue_max_size":          "notifications.queue.max_size",
		"queue_auto_process":      "notifications.queue.auto_process",
		"queue_vfx_wait":          "notifications.queue.vfx_wait",
		"greeting_enabled":        "notifications.greeting.enabled",
		"greeting_tracked_users":  "notifications.greeting.tracked_users",

		// Goals
		"goals_enabled":           "goals.enabled",
		"goals_store_path":        "goals.store_path",
		"goal_tiktok_enabled":     "goals.tiktok.enabled",
		"goal_tiktok_target":      "goals.tiktok.target",
		"goal_twitch_enabled":     "goals.twitch.enabled",
		"goal_twitch_target":      "goals.twitch.target",
		"goal_youtube_enabled":    "goals.youtube.enabled",
		"goal_youtube_target":     "goals.youtube.target",
		"goal_coins_per_sub":      "goals.conversions.coins_per_sub",
		"goal_sub_value_usd":      "goals.conversions.sub_value_usd",
		"goal_bits_per_sub":       "goals.conversions.bits_per_sub",

		// Overlay (OBS WebSocket)
		"obs_enabled":            "overlay.enabled",
		"obs_url":                "overlay.url",
		"obs_password":           "overlay.password",
		"obs_text_source":        "overlay.text_source",
		"obs_media_source":       "overlay.media_source",
		"obs_connect_timeout":    "overlay.connect_timeout",
		"obs_reconnect_interval": "overlay.reconnect_interval",

		// Router middleware
		"router_retry_count":    "router.retry_count",
		"router_retry_interval": "router.retry_initial_interval",
		"router_throttle":       "router.throttle_per_second",
		"router_poison_enabled": "router.poison_queue_enabled",
		"router_poison_topic":   "router.poison_queue_topic",
		"router_close_timeout":  "router.close_timeout",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}
	return ""
}

// WatchConfigFile sets up a file watcher for hot reload. The caller is
// responsible for mutex protection when swapping configuration.
func WatchConfigFile(path string, callback func()) error {
	provider := file.Provider(path)
	return provider.Watch(func(event interface{}, err error) {
		if err != nil {
			return
		}
		callback()
	})
}
