// StreamSync - Live Stream Overlay Notification Pipeline
// Copyright 2026 git-blame-dev
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/git-blame-dev/stream-sync-sub008

package platform

import (
	"strings"
)

// ircMessage is one parsed IRC line with IRCv3 tags.
type ircMessage struct {
	Tags    map[string]string
	Prefix  string
	Command string
	Params  []string
	// Trailing is the final parameter after " :", typically the chat text.
	Trailing string
}

// parseIRC parses a single IRC line. Returns false for blank lines.
//
// Format: [@tags] [:prefix] COMMAND [params] [:trailing]
func parseIRC(line string) (ircMessage, bool) {
	line = strings.TrimRight(line, "\r\n")
	if strings.TrimSpace(line) == "" {
		return ircMessage{}, false
	}

	msg := ircMessage{Tags: map[string]string{}}

	if strings.HasPrefix(line, "@") {
		raw, rest, ok := strings.Cut(line[1:], " ")
		if !ok {
			return ircMessage{}, false
		}
		for _, pair := range strings.Split(raw, ";") {
			key, value, _ := strings.Cut(pair, "=")
			msg.Tags[key] = unescapeTag(value)
		}
		line = rest
	}

	if strings.HasPrefix(line, ":") {
		prefix, rest, ok := strings.Cut(line[1:], " ")
		if !ok {
			return ircMessage{}, false
		}
		msg.Prefix = prefix
		line = rest
	}

	if body, trailing, ok := strings.Cut(line, " :"); ok {
		msg.Trailing = trailing
		line = body
	}

	fields := strings.Fields(line)
	if len(fields) == 0 {
		return ircMessage{}, false
	}
	msg.Command = fields[0]
	msg.Params = fields[1:]
	return msg, true
}

// unescapeTag reverses IRCv3 tag value escaping.
func unescapeTag(value string) string {
	if !strings.Contains(value, `\`) {
		return value
	}
	var b strings.Builder
	b.Grow(len(value))
	for i := 0; i < len(value); i++ {
		if value[i] != '\\' || i == len(value)-1 {
			b.WriteByte(value[i])
			continue
		}
		i++
		switch value[i] {
		case ':':
			b.WriteByte(';')
		case 's':
			b.WriteByte(' ')
		case 'r':
			b.WriteByte('\r')
		case 'n':
			b.WriteByte('\n')
		case '\\':
			b.WriteByte('\\')
		default:
			b.WriteByte(value[i])
		}
	}
	return b.String()
}

// nick extracts the nickname from an IRC prefix like
// "nick!user@host".
func nick(prefix string) string {
	name, _, _ := strings.Cut(prefix, "!")
	return name
}
