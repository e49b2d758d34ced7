// StreamSync - Live Stream Overlay Notification Pipeline
// Copyright 2026 git-blame-dev
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/git-blame-dev/stream-sync-sub008

package notification

import (
	"strings"
)

// MissingValueError is returned when a template references a key absent
// from the data dictionary.
type MissingValueError struct {
	Key string
}

func (e *MissingValueError) Error() string {
	return "missing template value for {" + e.Key + "}"
}

// InvalidValueError is returned when a substitution would yield a value
// that must never reach the overlay.
type InvalidValueError struct {
	Key   string
	Value string
}

func (e *InvalidValueError) Error() string {
	return "invalid template value for {" + e.Key + "}: " + e.Value
}

// objectObject is the stringification artifact that must never appear in
// rendered output. Upstream adapters have produced it when passing raw
// objects through; interpolation rejects it outright.
const objectObject = "[object Object]"

// Interpolate resolves every {name} placeholder in the template from data.
// It is a single left-to-right pass: placeholders are identifiers matching
// [A-Za-z_][A-Za-z0-9_]*; any other brace content is left untouched.
//
// Every referenced key must be present, and no substituted value may
// contain "[object Object]". Values are expected to be pre-sanitized, so
// substitution cannot introduce new placeholders.
func Interpolate(template string, data map[string]string) (string, error) {
	var b strings.Builder
	b.Grow(len(template))

	for i := 0; i < len(template); {
		c := template[i]
		if c != '{' {
			b.WriteByte(c)
			i++
			continue
		}

		end := strings.IndexByte(template[i:], '}')
		if end < 0 {
			b.WriteString(template[i:])
			break
		}
		key := template[i+1 : i+end]
		if !isIdentifier(key) {
			b.WriteByte(c)
			i++
			continue
		}

		value, ok := data[key]
		if !ok {
			return "", &MissingValueError{Key: key}
		}
		if strings.Contains(value, objectObject) {
			return "", &InvalidValueError{Key: key, Value: value}
		}
		b.WriteString(value)
		i += end + 1
	}

	return b.String(), nil
}

// isIdentifier reports whether s matches [A-Za-z_][A-Za-z0-9_]*.
func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c == '_':
		case c >= '0' && c <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}
