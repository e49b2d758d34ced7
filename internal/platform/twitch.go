// StreamSync - Live Stream Overlay Notification Pipeline
// Copyright 2026 git-blame-dev
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/git-blame-dev/stream-sync-sub008

package platform

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/git-blame-dev/stream-sync-sub008/internal/config"
	"github.com/git-blame-dev/stream-sync-sub008/internal/logging"
	"github.com/git-blame-dev/stream-sync-sub008/internal/notification"
	"github.com/git-blame-dev/stream-sync-sub008/internal/twitchauth"
)

// defaultTwitchIRCURL is the production chat endpoint. Tests point the
// adapter at a local server instead.
const defaultTwitchIRCURL = "wss://irc-ws.chat.twitch.tv:443"

// authReadyPollInterval is how often the adapter re-checks the auth
// state while waiting for READY.
const authReadyPollInterval = time.Second

// AuthGate reports whether valid Twitch credentials are available. The
// adapter refuses to connect before READY so Twitch never sees a dead
// token spammed at the login endpoint. Satisfied by *twitchauth.Manager.
type AuthGate interface {
	Ready() bool
	Tokens() twitchauth.Tokens
}

// TwitchChatAdapter reads the channel's chat over IRC-on-WebSocket and
// emits canonical events: chat messages, subscriptions, gift subs, bit
// cheers, and raids.
type TwitchChatAdapter struct {
	cfg  config.TwitchConfig
	auth AuthGate
	url  string

	dial func(ctx context.Context, url string) (*websocket.Conn, error)
}

// NewTwitchChatAdapter creates the adapter. auth must be the manager
// guarding this channel's tokens.
func NewTwitchChatAdapter(cfg config.TwitchConfig, auth AuthGate) *TwitchChatAdapter {
	a := &TwitchChatAdapter{
		cfg:  cfg,
		auth: auth,
		url:  defaultTwitchIRCURL,
	}
	a.dial = func(ctx context.Context, url string) (*websocket.Conn, error) {
		dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
		conn, _, err := dialer.DialContext(ctx, url, nil)
		return conn, err
	}
	return a
}

// Platform implements Adapter.
func (a *TwitchChatAdapter) Platform() notification.Platform {
	return notification.PlatformTwitch
}

// Run connects once READY, authenticates, joins the channel, and
// translates IRC lines until the connection drops or ctx ends.
func (a *TwitchChatAdapter) Run(ctx context.Context, emit EmitFunc) error {
	if err := a.waitForAuth(ctx); err != nil {
		return err
	}

	conn, err := a.dial(ctx, a.url)
	if err != nil {
		return fmt.Errorf("dial twitch chat: %w", err)
	}
	defer conn.Close()

	token := a.auth.Tokens().AccessToken
	channel := strings.ToLower(strings.TrimPrefix(a.cfg.Channel, "#"))
	login := []string{
		"CAP REQ :twitch.tv/tags twitch.tv/commands",
		"PASS oauth:" + token,
		"NICK " + channel,
		"JOIN #" + channel,
	}
	for _, line := range login {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(line)); err != nil {
			return fmt.Errorf("irc login: %w", err)
		}
	}
	logging.Info().Str("channel", channel).Msg("Twitch chat connected")

	// Unblock the read loop when ctx ends.
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("twitch chat read: %w", err)
		}
		for _, line := range strings.Split(string(payload), "\n") {
			msg, ok := parseIRC(line)
			if !ok {
				continue
			}
			switch msg.Command {
			case "PING":
				pong := "PONG :" + msg.Trailing
				if err := conn.WriteMessage(websocket.TextMessage, []byte(pong)); err != nil {
					return fmt.Errorf("irc pong: %w", err)
				}
			case "RECONNECT":
				return fmt.Errorf("twitch requested reconnect")
			case "NOTICE":
				if strings.Contains(msg.Trailing, "Login authentication failed") {
					return fmt.Errorf("twitch chat login rejected")
				}
			case "PRIVMSG", "USERNOTICE":
				if ev := a.translate(msg); ev != nil {
					emit(ev)
				}
			}
		}
	}
}

// waitForAuth blocks until the auth manager reports READY.
func (a *TwitchChatAdapter) waitForAuth(ctx context.Context) error {
	if a.auth.Ready() {
		return nil
	}
	logging.Info().Msg("Twitch adapter waiting for auth READY")
	ticker := time.NewTicker(authReadyPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if a.auth.Ready() {
				return nil
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// translate maps one IRC message to a canonical event, or nil for
// lines the pipeline does not care about.
func (a *TwitchChatAdapter) translate(msg ircMessage) *notification.Event {
	username := msg.Tags["display-name"]
	if username == "" {
		username = nick(msg.Prefix)
	}
	if username == "" {
		username = msg.Tags["login"]
	}

	base := func(t notification.Type) *notification.Event {
		ev := notification.NewEvent(notification.PlatformTwitch, t)
		ev.Username = username
		ev.UserID = msg.Tags["user-id"]
		if id := msg.Tags["id"]; id != "" {
			ev.ID = id
		}
		if ts, err := strconv.ParseInt(msg.Tags["tmi-sent-ts"], 10, 64); err == nil {
			ev.Timestamp = time.UnixMilli(ts).UTC()
		}
		return ev
	}

	if msg.Command == "PRIVMSG" {
		if username == "" || msg.Trailing == "" {
			return nil
		}
		if bits, err := strconv.Atoi(msg.Tags["bits"]); err == nil && bits > 0 {
			ev := base(notification.TypeGift)
			ev.GiftType = "bits"
			ev.GiftCount = 1
			ev.Amount = float64(bits)
			ev.Currency = "bits"
			ev.Message = msg.Trailing
			return ev
		}
		if strings.HasPrefix(msg.Trailing, "!") {
			ev := base(notification.TypeCommand)
			ev.Command = msg.Trailing
			name, _, _ := strings.Cut(strings.TrimPrefix(msg.Trailing, "!"), " ")
			ev.CommandName = name
			return ev
		}
		ev := base(notification.TypeChatMessage)
		ev.Message = msg.Trailing
		return ev
	}

	// USERNOTICE: subs, resubs, gift subs, raids.
	switch msg.Tags["msg-id"] {
	case "sub", "resub":
		ev := base(notification.TypePaypiggy)
		ev.Tier = msg.Tags["msg-param-sub-plan"]
		ev.IsRenewal = msg.Tags["msg-id"] == "resub"
		if months, err := strconv.Atoi(msg.Tags["msg-param-cumulative-months"]); err == nil {
			ev.Months = months
		}
		return ev
	case "subgift", "submysterygift":
		ev := base(notification.TypeGiftPaypiggy)
		ev.Tier = msg.Tags["msg-param-sub-plan"]
		ev.GiftCount = 1
		if count, err := strconv.Atoi(msg.Tags["msg-param-mass-gift-count"]); err == nil && count > 0 {
			ev.GiftCount = count
		}
		return ev
	case "raid":
		ev := base(notification.TypeRaid)
		if raider := msg.Tags["msg-param-displayName"]; raider != "" {
			ev.Username = raider
		}
		if viewers, err := strconv.Atoi(msg.Tags["msg-param-viewerCount"]); err == nil {
			ev.ViewerCount = &viewers
		}
		return ev
	}
	return nil
}
