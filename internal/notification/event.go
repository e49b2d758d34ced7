// StreamSync - Live Stream Overlay Notification Pipeline
// Copyright 2026 git-blame-dev
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/git-blame-dev/stream-sync-sub008

// Package notification defines the canonical event model shared by all
// platform adapters and the builder that turns canonical events into
// display/TTS/log-ready notifications.
//
// The event vocabulary is a closed set: adapters normalize their wire
// formats into these types, and everything downstream (router, manager,
// queue) dispatches on them. Unknown types are rejected, not dropped.
package notification

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// SchemaVersion is the current canonical event schema version.
// Increment this when making breaking changes to Event.
const SchemaVersion = 1

// Platform identifies a source platform.
type Platform string

// Source platforms (closed set).
const (
	PlatformTikTok  Platform = "tiktok"
	PlatformTwitch  Platform = "twitch"
	PlatformYouTube Platform = "youtube"
)

// ParsePlatform resolves a platform name case-insensitively.
func ParsePlatform(s string) (Platform, bool) {
	switch Platform(strings.ToLower(strings.TrimSpace(s))) {
	case PlatformTikTok:
		return PlatformTikTok, true
	case PlatformTwitch:
		return PlatformTwitch, true
	case PlatformYouTube:
		return PlatformYouTube, true
	}
	return "", false
}

// Platforms returns all known platforms.
func Platforms() []Platform {
	return []Platform{PlatformTikTok, PlatformTwitch, PlatformYouTube}
}

// Type identifies a canonical event kind.
type Type string

// Canonical event kinds (closed set). "paypiggy" is the project's name for
// subscription-like monetization: Twitch subs, YouTube memberships, TikTok
// subscriptions and SuperFan tiers.
const (
	TypeChatMessage  Type = "chat-message"
	TypeFollow       Type = "follow"
	TypeShare        Type = "share"
	TypeRaid         Type = "raid"
	TypeGift         Type = "gift"
	TypeEnvelope     Type = "envelope"
	TypePaypiggy     Type = "paypiggy"
	TypeGiftPaypiggy Type = "giftpaypiggy"
	TypeRedemption   Type = "redemption"
	TypeGreeting     Type = "greeting"
	TypeFarewell     Type = "farewell"
	TypeCommand      Type = "command"
	TypeStreamStatus Type = "stream-status"
)

// knownTypes is the authoritative membership set for the vocabulary.
var knownTypes = map[Type]struct{}{
	TypeChatMessage:  {},
	TypeFollow:       {},
	TypeShare:        {},
	TypeRaid:         {},
	TypeGift:         {},
	TypeEnvelope:     {},
	TypePaypiggy:     {},
	TypeGiftPaypiggy: {},
	TypeRedemption:   {},
	TypeGreeting:     {},
	TypeFarewell:     {},
	TypeCommand:      {},
	TypeStreamStatus: {},
}

// Known reports whether the type belongs to the canonical vocabulary.
// Legacy aliases are not accepted.
func (t Type) Known() bool {
	_, ok := knownTypes[t]
	return ok
}

// Types returns every type in the canonical vocabulary.
func Types() []Type {
	out := make([]Type, 0, len(knownTypes))
	for t := range knownTypes {
		out = append(out, t)
	}
	return out
}

// IsMonetization reports whether the type carries money and should be fed
// into the goal tracker.
func (t Type) IsMonetization() bool {
	switch t {
	case TypeGift, TypeEnvelope, TypePaypiggy, TypeGiftPaypiggy:
		return true
	}
	return false
}

// Event is the canonical, platform-normalized event shape. Adapters flatten
// their wire formats into this struct before publishing; it is ephemeral
// and never persisted.
type Event struct {
	SchemaVersion int      `json:"schema_version,omitempty"`
	Platform      Platform `json:"platform"`
	Type          Type     `json:"type"`

	// Username is required for every kind. UserID is the opaque platform
	// identifier; it may be empty for raids.
	Username string `json:"username"`
	UserID   string `json:"user_id,omitempty"`

	// Timestamp is platform-provided or derived at ingest. Required for
	// monetization kinds.
	Timestamp time.Time `json:"timestamp"`

	// ID is the platform message identifier, used for deduplication.
	ID string `json:"id,omitempty"`

	// Chat / command payload.
	Message     string `json:"message,omitempty"`
	Command     string `json:"command,omitempty"`
	CommandName string `json:"command_name,omitempty"`

	// Gift / monetization payload.
	GiftType     string  `json:"gift_type,omitempty"`
	GiftCount    int     `json:"gift_count,omitempty"`
	Amount       float64 `json:"amount,omitempty"`
	Currency     string  `json:"currency,omitempty"`
	IsSuperChat  bool    `json:"is_super_chat,omitempty"`
	Sticker      bool    `json:"sticker,omitempty"`
	IsAggregated bool    `json:"is_aggregated,omitempty"`

	// PaymentError marks a monetization event whose amount/currency could
	// not be parsed upstream. The builder renders "payment details
	// unavailable" copy instead of failing.
	PaymentError bool `json:"payment_error,omitempty"`

	// Raid payload. Pointer distinguishes an explicit 0 from absent.
	ViewerCount *int `json:"viewer_count,omitempty"`

	// Subscription-like payload.
	Tier            string `json:"tier,omitempty"`
	Months          int    `json:"months,omitempty"`
	MembershipLevel string `json:"membership_level,omitempty"`
	IsSuperfan      bool   `json:"is_superfan,omitempty"`
	IsRenewal       bool   `json:"is_renewal,omitempty"`

	// Channel points redemption payload.
	RewardTitle string `json:"reward_title,omitempty"`
	RewardCost  int    `json:"reward_cost,omitempty"`

	// Stream status payload (administrative).
	Status string `json:"status,omitempty"`
	IsLive bool   `json:"is_live,omitempty"`

	Metadata map[string]string `json:"metadata,omitempty"`
}

// NewEvent creates an event with a unique ID, current timestamp, and schema
// version. Adapters that have a platform message ID should overwrite ID.
func NewEvent(platform Platform, t Type) *Event {
	return &Event{
		SchemaVersion: SchemaVersion,
		Platform:      platform,
		Type:          t,
		ID:            uuid.New().String(),
		Timestamp:     time.Now().UTC(),
	}
}

// ValidationError names the offending field when an event or a build input
// is rejected.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// Validate checks required fields per event kind. The router calls this
// before invoking the manager; the manager relies on it having run but
// still guards username independently.
func (e *Event) Validate() error {
	if !e.Type.Known() {
		return &ValidationError{Field: "type", Message: "unknown type " + string(e.Type)}
	}
	if _, ok := ParsePlatform(string(e.Platform)); !ok {
		return &ValidationError{Field: "platform", Message: "unknown platform " + string(e.Platform)}
	}
	if strings.TrimSpace(e.Username) == "" {
		return &ValidationError{Field: "username", Message: "required"}
	}
	if e.Type.IsMonetization() && e.Timestamp.IsZero() {
		return &ValidationError{Field: "timestamp", Message: "required for monetization events"}
	}

	switch e.Type {
	case TypeChatMessage:
		if e.Message == "" {
			return &ValidationError{Field: "message", Message: "required"}
		}
	case TypeRaid:
		if e.ViewerCount == nil {
			return &ValidationError{Field: "viewer_count", Message: "required"}
		}
		if *e.ViewerCount < 0 {
			return &ValidationError{Field: "viewer_count", Message: "must be >= 0"}
		}
	case TypeGift:
		if e.GiftType == "" {
			return &ValidationError{Field: "gift_type", Message: "required"}
		}
		if e.GiftCount < 1 {
			return &ValidationError{Field: "gift_count", Message: "must be >= 1"}
		}
		if !e.PaymentError {
			if e.Amount <= 0 {
				return &ValidationError{Field: "amount", Message: "must be > 0"}
			}
			if e.Currency == "" {
				return &ValidationError{Field: "currency", Message: "required"}
			}
		}
	case TypeEnvelope:
		if !e.PaymentError {
			if e.Amount <= 0 {
				return &ValidationError{Field: "amount", Message: "must be > 0"}
			}
			if e.Currency == "" {
				return &ValidationError{Field: "currency", Message: "required"}
			}
		}
	case TypeGiftPaypiggy:
		if e.GiftCount < 1 {
			return &ValidationError{Field: "gift_count", Message: "must be >= 1"}
		}
	case TypeRedemption:
		if e.RewardTitle == "" {
			return &ValidationError{Field: "reward_title", Message: "required"}
		}
	case TypeCommand:
		if e.Command == "" {
			return &ValidationError{Field: "command", Message: "required"}
		}
	case TypeStreamStatus:
		if e.Status == "" {
			return &ValidationError{Field: "status", Message: "required"}
		}
	}
	return nil
}

// DedupeKey returns the key used for duplicate-emission detection.
// Empty when the event carries no platform message ID; such events are
// never deduplicated.
func (e *Event) DedupeKey() string {
	if e.ID == "" {
		return ""
	}
	return string(e.Platform) + ":" + e.ID
}
