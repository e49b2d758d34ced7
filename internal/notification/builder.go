// StreamSync - Live Stream Overlay Notification Pipeline
// Copyright 2026 git-blame-dev
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/git-blame-dev/stream-sync-sub008

package notification

import (
	"fmt"
	"time"
)

// VFXConfig names the overlay visual effect to play alongside a
// notification. Resolved by the manager from the VFX command catalog.
type VFXConfig struct {
	CommandKey  string        `json:"command_key"`
	Filename    string        `json:"filename,omitempty"`
	MediaSource string        `json:"media_source,omitempty"`
	Path        string        `json:"path,omitempty"`
	Duration    time.Duration `json:"duration,omitempty"`
}

// Notification is the builder's output: the canonical event enriched with
// the three rendered message variants and scheduling fields. Ephemeral;
// consumed by the display queue and never persisted.
type Notification struct {
	Event

	DisplayMessage string
	TTSMessage     string
	LogMessage     string

	// TTSStages is the spoken sequence: the primary announcement first,
	// then the attached message and tier when the event carries them.
	// The queue plays stages in order with a delay between them.
	TTSStages []string

	Priority int
	Duration time.Duration

	VFX            *VFXConfig
	IsFirstMessage bool
}

// paymentUnavailable is the copy rendered when a monetization event's
// amount could not be parsed upstream. It must read as an error, never as
// a raw object or placeholder.
const paymentUnavailable = "payment details unavailable"

// messageTemplates holds the three template variants for one event kind.
type messageTemplates struct {
	display string
	tts     string
	log     string
}

// templates is the fixed catalog. Dynamic copy (subscription verbs, gift
// counts, suffixes) is computed into the data dictionary so each kind has
// exactly one template triple.
var templates = map[Type]messageTemplates{
	TypeChatMessage: {
		display: "{username}: {message}",
		tts:     "{username} says {message}",
		log:     "[{platform}] chat: {username}: {message}",
	},
	TypeFollow: {
		display: "{username} followed!",
		tts:     "{username} just followed",
		log:     "[{platform}] follow: {username}",
	},
	TypeShare: {
		display: "{username} shared the stream!",
		tts:     "{username} shared the stream",
		log:     "[{platform}] share: {username}",
	},
	TypeRaid: {
		display: "{username} is raiding with {viewerDisplay}!",
		tts:     "{username} is raiding with {viewerDisplay}",
		log:     "[{platform}] raid: {username} with {viewerDisplay}",
	},
	TypeGift: {
		display: "{username} sent {giftDisplay}! ({amountDisplay})",
		tts:     "{username} sent {giftSpoken}",
		log:     "[{platform}] gift: {username} sent {giftDisplay} ({amountDisplay})",
	},
	TypeEnvelope: {
		display: "{username} sent a treasure chest! ({amountDisplay})",
		tts:     "{username} sent a treasure chest worth {amountDisplay}",
		log:     "[{platform}] envelope: {username} ({amountDisplay})",
	},
	TypePaypiggy: {
		display: "{username} {subAction}!{tierSuffix}",
		tts:     "{username} {subAction}",
		log:     "[{platform}] subscription: {username} {subAction}{tierSuffix}",
	},
	TypeGiftPaypiggy: {
		display: "{username} gifted {giftedSubs}!",
		tts:     "{username} gifted {giftedSubs}",
		log:     "[{platform}] gifted subs: {username} gifted {giftedSubs}",
	},
	TypeRedemption: {
		display: "{username} redeemed {rewardTitle}!{costSuffix}",
		tts:     "{username} redeemed {rewardTitle}",
		log:     "[{platform}] redemption: {username} redeemed {rewardTitle}{costSuffix}",
	},
	TypeGreeting: {
		display: "Welcome, {username}!",
		tts:     "Welcome to the stream, {username}",
		log:     "[{platform}] greeting: first message from {username}",
	},
	TypeFarewell: {
		display: "Goodbye, {username}!",
		tts:     "See you next time, {username}",
		log:     "[{platform}] farewell: {username}",
	},
	TypeCommand: {
		display: "{username} used !{commandName}",
		tts:     "{username} used the {commandName} command",
		log:     "[{platform}] command: {username} ran {command}",
	},
	TypeStreamStatus: {
		display: "Stream is {status}",
		tts:     "The stream is now {status}",
		log:     "[{platform}] stream status: {status}",
	},
}

// defaultDurations is how long each kind stays on the overlay.
var defaultDurations = map[Type]time.Duration{
	TypeChatMessage:  4 * time.Second,
	TypeFollow:       6 * time.Second,
	TypeShare:        6 * time.Second,
	TypeRaid:         10 * time.Second,
	TypeGift:         8 * time.Second,
	TypeEnvelope:     8 * time.Second,
	TypePaypiggy:     8 * time.Second,
	TypeGiftPaypiggy: 8 * time.Second,
	TypeRedemption:   6 * time.Second,
	TypeGreeting:     6 * time.Second,
	TypeFarewell:     5 * time.Second,
	TypeCommand:      5 * time.Second,
	TypeStreamStatus: 5 * time.Second,
}

// fallbackDuration covers any kind without an explicit duration override.
const fallbackDuration = 6 * time.Second

// Builder renders canonical events into notifications. It is stateless and
// safe for concurrent use; construct one per process and inject it into
// the manager.
type Builder struct {
	durations map[Type]time.Duration
}

// NewBuilder creates a builder with default display durations.
func NewBuilder() *Builder {
	return &Builder{durations: defaultDurations}
}

// NewBuilderWithDurations creates a builder with per-type display duration
// overrides; types absent from the map keep their defaults.
func NewBuilderWithDurations(overrides map[Type]time.Duration) *Builder {
	durations := make(map[Type]time.Duration, len(defaultDurations))
	for t, d := range defaultDurations {
		durations[t] = d
	}
	for t, d := range overrides {
		durations[t] = d
	}
	return &Builder{durations: durations}
}

// Build validates the event, computes the derived display fields, and
// interpolates the display, TTS, and log messages. Failures name the
// offending field; the manager surfaces them as build-failure results.
func (b *Builder) Build(ev Event) (*Notification, error) {
	if err := ev.Validate(); err != nil {
		return nil, fmt.Errorf("build %s notification: %w", ev.Type, err)
	}

	tmpl, ok := templates[ev.Type]
	if !ok {
		// Every known type has a template; Validate rejected unknown ones.
		panic(fmt.Sprintf("notification: no template set for type %q", ev.Type))
	}

	data := b.templateData(ev)

	display, err := Interpolate(tmpl.display, data)
	if err != nil {
		return nil, fmt.Errorf("build %s display message: %w", ev.Type, err)
	}
	tts, err := Interpolate(tmpl.tts, data)
	if err != nil {
		return nil, fmt.Errorf("build %s tts message: %w", ev.Type, err)
	}
	logMsg, err := Interpolate(tmpl.log, data)
	if err != nil {
		return nil, fmt.Errorf("build %s log message: %w", ev.Type, err)
	}

	duration, ok := b.durations[ev.Type]
	if !ok {
		duration = fallbackDuration
	}

	return &Notification{
		Event:          ev,
		DisplayMessage: display,
		TTSMessage:     tts,
		LogMessage:     logMsg,
		TTSStages:      ttsStages(ev, tts),
		Priority:       PriorityFor(ev.Type),
		Duration:       duration,
	}, nil
}

// ttsStages assembles the spoken stage list. Monetization events speak
// their attached message after the announcement; subscriptions above
// Tier 1 get a tier stage last.
func ttsStages(ev Event, primary string) []string {
	stages := []string{primary}

	switch ev.Type {
	case TypeGift, TypeEnvelope, TypePaypiggy, TypeGiftPaypiggy:
		if msg := SanitizeString(ev.Message); msg != "" {
			stages = append(stages, msg)
		}
	}
	if ev.Type == TypePaypiggy {
		if n := parseTier(ev.Tier); n > 1 {
			stages = append(stages, fmt.Sprintf("Tier %d", n))
		}
	}
	return stages
}

// templateData builds the sanitized value dictionary for interpolation.
// Every value passes through the sanitizer; computed copy is assembled
// from constants and sanitized fragments only.
func (b *Builder) templateData(ev Event) map[string]string {
	data := map[string]string{
		"username": SanitizeString(ev.Username),
		"platform": string(ev.Platform),
	}

	switch ev.Type {
	case TypeChatMessage:
		data["message"] = SanitizeString(ev.Message)

	case TypeRaid:
		data["viewerDisplay"] = FormatViewerCount(*ev.ViewerCount)

	case TypeGift:
		giftName := SanitizeString(ev.GiftType)
		data["giftDisplay"] = FormatGiftCountForDisplay(ev.GiftCount, giftName)
		data["giftSpoken"] = FormatGiftCount(ev.GiftCount, giftName)
		data["amountDisplay"] = b.amountDisplay(ev)

	case TypeEnvelope:
		data["amountDisplay"] = b.amountDisplay(ev)

	case TypePaypiggy:
		data["subAction"] = subscriptionAction(ev)
		data["tierSuffix"] = TierSuffix(ev.Tier)

	case TypeGiftPaypiggy:
		data["giftedSubs"] = giftedSubsDisplay(ev)

	case TypeRedemption:
		data["rewardTitle"] = SanitizeString(ev.RewardTitle)
		data["costSuffix"] = costSuffix(ev.RewardCost)

	case TypeCommand:
		data["command"] = SanitizeString(ev.Command)
		data["commandName"] = SanitizeString(ev.CommandName)
		if data["commandName"] == "" {
			data["commandName"] = data["command"]
		}

	case TypeStreamStatus:
		data["status"] = SanitizeString(ev.Status)
	}

	return data
}

// amountDisplay renders the monetary amount, or the payment-error copy
// when the upstream parse failed.
func (b *Builder) amountDisplay(ev Event) string {
	if ev.PaymentError {
		return paymentUnavailable
	}
	return FormatAmount(ev.Amount, ev.Currency)
}

// subscriptionAction resolves the subscription copy per platform and
// superfan flag:
//
//   - isSuperfan: "became a SuperFan" / "renewed SuperFan"
//   - youtube (not superfan): "became a member" / "renewed membership"
//   - otherwise: "subscribed" / "renewed subscription"
//
// Renewals with a month count append " for N months".
func subscriptionAction(ev Event) string {
	var action string
	switch {
	case ev.IsSuperfan && ev.IsRenewal:
		action = "renewed SuperFan"
	case ev.IsSuperfan:
		action = "became a SuperFan"
	case ev.Platform == PlatformYouTube && ev.IsRenewal:
		action = "renewed membership"
	case ev.Platform == PlatformYouTube:
		action = "became a member"
	case ev.IsRenewal:
		action = "renewed subscription"
	default:
		action = "subscribed"
	}

	if ev.IsRenewal && ev.Months > 0 {
		action += " for " + FormatMonths(ev.Months)
	}
	return action
}

// giftedSubsDisplay renders a gifted-subscription count with the
// platform-appropriate noun.
func giftedSubsDisplay(ev Event) string {
	noun := "subscription"
	if ev.Platform == PlatformYouTube {
		noun = "membership"
	}
	if ev.GiftCount == 1 {
		return "a " + noun
	}
	return fmt.Sprintf("%d %ss", ev.GiftCount, noun)
}

// costSuffix renders the channel-points cost when present.
func costSuffix(cost int) string {
	if cost <= 0 {
		return ""
	}
	return fmt.Sprintf(" (%d points)", cost)
}
