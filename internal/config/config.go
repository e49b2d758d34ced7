// StreamSync - Live Stream Overlay Notification Pipeline
// Copyright 2026 git-blame-dev
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/git-blame-dev/stream-sync-sub008

// Package config loads and validates StreamSync configuration.
//
// Configuration is layered with Koanf v2:
//  1. Defaults: built-in sensible defaults for every optional setting
//  2. Config file: optional YAML file (config.yaml)
//  3. Environment variables: STREAMSYNC_* overrides any setting
//
// The loaded Config is immutable after Load; components receive the
// sections they need at construction time.
package config

import "time"

// Config holds all application configuration.
type Config struct {
	Server        ServerConfig        `koanf:"server"`
	Logging       LoggingConfig       `koanf:"logging"`
	Platforms     PlatformsConfig     `koanf:"platforms"`
	Notifications NotificationsConfig `koanf:"notifications"`
	Goals         GoalsConfig         `koanf:"goals"`
	Overlay       OverlayConfig       `koanf:"overlay"`
	Router        RouterConfig        `koanf:"router"`
	VFX           map[string]VFXEntry `koanf:"vfx"`
}

// ServerConfig configures the control/health HTTP server.
type ServerConfig struct {
	Host    string        `koanf:"host"`
	Port    int           `koanf:"port"`
	Timeout time.Duration `koanf:"timeout"`
}

// LoggingConfig configures the global zerolog logger.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// PlatformsConfig groups the per-platform ingest adapters.
type PlatformsConfig struct {
	TikTok  TikTokConfig  `koanf:"tiktok"`
	Twitch  TwitchConfig  `koanf:"twitch"`
	YouTube YouTubeConfig `koanf:"youtube"`
}

// TikTokConfig configures the TikTok LIVE adapter.
type TikTokConfig struct {
	Enabled       bool    `koanf:"enabled"`
	Username      string  `koanf:"username"`
	RatePerSecond float64 `koanf:"rate_per_second"`
	RateBurst     int     `koanf:"rate_burst"`
}

// TwitchConfig configures the Twitch adapter, including its OAuth token
// lifecycle.
type TwitchConfig struct {
	Enabled       bool             `koanf:"enabled"`
	Channel       string           `koanf:"channel"`
	RatePerSecond float64          `koanf:"rate_per_second"`
	RateBurst     int              `koanf:"rate_burst"`
	Auth          TwitchAuthConfig `koanf:"auth"`
}

// TwitchAuthConfig holds the Twitch OAuth credentials and endpoints. The
// endpoint URLs are overridable for tests only.
type TwitchAuthConfig struct {
	ClientID     string        `koanf:"client_id"`
	ClientSecret string        `koanf:"client_secret"`
	AccessToken  string        `koanf:"access_token"`
	RefreshToken string        `koanf:"refresh_token"`
	RedirectURI  string        `koanf:"redirect_uri"`
	Scopes       []string      `koanf:"scopes"`
	OAuthPort    int           `koanf:"oauth_port"`
	ValidateURL  string        `koanf:"validate_url"`
	TokenURL     string        `koanf:"token_url"`
	Timeout      time.Duration `koanf:"timeout"`
}

// YouTubeConfig configures the YouTube live chat adapter.
type YouTubeConfig struct {
	Enabled       bool          `koanf:"enabled"`
	ChannelID     string        `koanf:"channel_id"`
	APIKey        string        `koanf:"api_key"`
	PollInterval  time.Duration `koanf:"poll_interval"`
	RatePerSecond float64       `koanf:"rate_per_second"`
	RateBurst     int           `koanf:"rate_burst"`
}

// NotificationsConfig configures the gating pipeline and display queue.
type NotificationsConfig struct {
	// Enabled toggles each canonical event type. Types absent from the
	// map fall back to enabled. Keys are canonical type names.
	Enabled map[string]bool `koanf:"enabled"`

	// Durations overrides per-type display durations. Keys are canonical
	// type names.
	Durations map[string]time.Duration `koanf:"durations"`

	TTS         TTSConfig         `koanf:"tts"`
	Dedupe      DedupeConfig      `koanf:"dedupe"`
	Suppression SuppressionConfig `koanf:"suppression"`
	Queue       QueueConfig       `koanf:"queue"`
	Greeting    GreetingConfig    `koanf:"greeting"`
}

// TTSConfig configures text-to-speech announcements. Chat messages are
// never spoken regardless of these settings.
type TTSConfig struct {
	Enabled bool `koanf:"enabled"`

	// Disabled lists canonical type names excluded from TTS even when
	// TTS is enabled globally.
	Disabled []string `koanf:"disabled"`

	// StageDelay is the pause between overlay text update and speech.
	StageDelay time.Duration `koanf:"stage_delay"`
}

// DedupeConfig configures duplicate-emission detection.
type DedupeConfig struct {
	MaxEntries int           `koanf:"max_entries"`
	TTL        time.Duration `koanf:"ttl"`
}

// SuppressionConfig configures per-user burst suppression.
type SuppressionConfig struct {
	MaxPerUser int           `koanf:"max_per_user"`
	Window     time.Duration `koanf:"window"`
	Duration   time.Duration `koanf:"duration"`
	MaxUsers   int           `koanf:"max_users"`
}

// QueueConfig configures the priority display queue.
type QueueConfig struct {
	MaxSize     int  `koanf:"max_size"`
	AutoProcess bool `koanf:"auto_process"`

	// VFXWait bounds how long a display waits for a visual effect to
	// report completion before proceeding.
	VFXWait time.Duration `koanf:"vfx_wait"`
}

// GreetingConfig configures first-message greetings.
type GreetingConfig struct {
	Enabled bool `koanf:"enabled"`

	// TrackedUsers caps how many distinct users are remembered per
	// session for first-message detection.
	TrackedUsers int `koanf:"tracked_users"`
}

// GoalsConfig configures per-platform donation goal tracking.
type GoalsConfig struct {
	Enabled bool `koanf:"enabled"`

	// StorePath is the Badger directory for goal persistence. Empty
	// disables persistence; totals are then session-only.
	StorePath string `koanf:"store_path"`

	TikTok  GoalTarget `koanf:"tiktok"`
	Twitch  GoalTarget `koanf:"twitch"`
	YouTube GoalTarget `koanf:"youtube"`

	Conversions ConversionConfig `koanf:"conversions"`
}

// GoalTarget is one platform's goal target in its native currency.
type GoalTarget struct {
	Enabled  bool    `koanf:"enabled"`
	Target   float64 `koanf:"target"`
	Currency string  `koanf:"currency"`
}

// ConversionConfig maps subscription-like events onto goal currency.
type ConversionConfig struct {
	// CoinsPerSub credits a TikTok subscription as this many coins.
	CoinsPerSub float64 `koanf:"coins_per_sub"`

	// SubValueUSD credits a YouTube membership or gifted membership as
	// this many dollars.
	SubValueUSD float64 `koanf:"sub_value_usd"`

	// BitsPerSub credits a Twitch subscription as this many bits.
	BitsPerSub float64 `koanf:"bits_per_sub"`
}

// OverlayConfig configures the OBS WebSocket overlay connection.
type OverlayConfig struct {
	Enabled  bool   `koanf:"enabled"`
	URL      string `koanf:"url"`
	Password string `koanf:"password"`

	// TextSource and MediaSource name the OBS sources driven by the
	// display queue.
	TextSource  string `koanf:"text_source"`
	MediaSource string `koanf:"media_source"`

	ConnectTimeout    time.Duration `koanf:"connect_timeout"`
	ReconnectInterval time.Duration `koanf:"reconnect_interval"`
}

// RouterConfig configures the Watermill event router middleware.
type RouterConfig struct {
	RetryCount           int           `koanf:"retry_count"`
	RetryInitialInterval time.Duration `koanf:"retry_initial_interval"`
	ThrottlePerSecond    int           `koanf:"throttle_per_second"`
	PoisonQueueEnabled   bool          `koanf:"poison_queue_enabled"`
	PoisonQueueTopic     string        `koanf:"poison_queue_topic"`
	CloseTimeout         time.Duration `koanf:"close_timeout"`
}

// VFXEntry describes one visual effect in the catalog, keyed by command
// name ("!fireworks" maps to key "fireworks").
type VFXEntry struct {
	Filename    string        `koanf:"filename"`
	MediaSource string        `koanf:"media_source"`
	Path        string        `koanf:"path"`
	Duration    time.Duration `koanf:"duration"`
}
