// StreamSync - Live Stream Overlay Notification Pipeline
// Copyright 2026 git-blame-dev
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/git-blame-dev/stream-sync-sub008

package notification

import (
	"math"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// MaxValueLength is the hard cap on any sanitized value.
const MaxValueLength = 1000

// maxReduceDepth bounds object probing so adversarial nesting terminates.
const maxReduceDepth = 3

var (
	// bracePattern matches a single non-nested template fragment; repeated
	// application strips nested fragments inside out.
	bracePattern = regexp.MustCompile(`\{[^{}]*\}`)

	// schemePattern strips script and URL-scheme injection fragments.
	schemePattern = regexp.MustCompile(`(?i)(javascript:|vbscript:|data:text/html|<\s*/?\s*script[^>]*>|on\w+\s*=)`)

	// sqlPattern strips adjacent SQL keyword pairs. Single keywords are
	// legitimate chat ("select your fighter"); pairs are not.
	sqlPattern = regexp.MustCompile(`(?i)\b(select|insert|update|delete|drop|union|alter)\s+(from|into|table|set|select|where|join)\b`)

	// traversalPattern strips path traversal sequences.
	traversalPattern = regexp.MustCompile(`\.\.[/\\]`)

	// protoPattern strips reflection and prototype-pollution property names.
	protoPattern = regexp.MustCompile(`(?i)(__proto__|\bconstructor\b|\bprototype\b)`)
)

// probeKeys is the ordered property list consulted when reducing an object
// to a single informative string.
var probeKeys = []string{"name", "username", "value", "text", "title"}

// SanitizeString strips injection-prone fragments from a string and caps
// its length. The function is idempotent: sanitizing a sanitized string is
// a no-op, which keeps interpolation stable.
func SanitizeString(s string) string {
	s = stripToFixpoint(s)

	if len(s) > MaxValueLength {
		s = s[:MaxValueLength]
		// Avoid splitting a multi-byte rune at the cap.
		for len(s) > 0 && !utf8.ValidString(s) {
			s = s[:len(s)-1]
		}
		// Truncation can expose a new word-boundary match at the cut.
		s = stripToFixpoint(s)
	}
	return strings.TrimSpace(s)
}

// stripToFixpoint applies every strip pattern until the string stops
// changing. A single pass is not enough: removing one fragment can
// juxtapose the remainder into another match ("java<script>script:").
func stripToFixpoint(s string) string {
	for {
		stripped := bracePattern.ReplaceAllString(s, "")
		stripped = schemePattern.ReplaceAllString(stripped, "")
		stripped = sqlPattern.ReplaceAllString(stripped, "")
		stripped = traversalPattern.ReplaceAllString(stripped, "")
		stripped = protoPattern.ReplaceAllString(stripped, "")
		if stripped == s {
			return s
		}
		s = stripped
	}
}

// SanitizeValue reduces an arbitrary value to a safe primitive string.
// Strings are sanitized, non-finite numbers become empty, objects are
// probed for a fixed key list to a bounded depth with cycle detection, and
// arrays collapse to their first element plus a count. The result never
// contains template placeholders or the literal "[object Object]".
func SanitizeValue(v any) string {
	return reduceValue(v, 0, make(map[uintptr]bool))
}

func reduceValue(v any, depth int, visited map[uintptr]bool) string {
	if v == nil || depth > maxReduceDepth {
		return ""
	}

	switch val := v.(type) {
	case string:
		return SanitizeString(val)
	case bool:
		return strconv.FormatBool(val)
	case int:
		return strconv.Itoa(val)
	case int32:
		return strconv.FormatInt(int64(val), 10)
	case int64:
		return strconv.FormatInt(val, 10)
	case float32:
		return reduceFloat(float64(val))
	case float64:
		return reduceFloat(val)
	case time.Time:
		return val.UTC().Format(time.RFC3339)
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return ""
		}
		if rv.Kind() == reflect.Pointer {
			addr := rv.Pointer()
			if visited[addr] {
				return ""
			}
			visited[addr] = true
		}
		return reduceValue(rv.Elem().Interface(), depth, visited)

	case reflect.Map:
		addr := rv.Pointer()
		if visited[addr] {
			return ""
		}
		visited[addr] = true
		return reduceMap(rv, depth, visited)

	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice {
			addr := rv.Pointer()
			if visited[addr] {
				return ""
			}
			visited[addr] = true
		}
		return reduceSequence(rv, depth, visited)

	case reflect.Struct:
		return reduceStruct(rv, depth, visited)
	}

	return ""
}

func reduceFloat(f float64) string {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return ""
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// reduceMap probes the fixed key list in order. Only the map's own string
// keys are consulted; nothing is copied from elsewhere.
func reduceMap(rv reflect.Value, depth int, visited map[uintptr]bool) string {
	if rv.Type().Key().Kind() != reflect.String {
		return ""
	}
	for _, key := range probeKeys {
		mv := rv.MapIndex(reflect.ValueOf(key))
		if !mv.IsValid() {
			continue
		}
		if s := reduceValue(mv.Interface(), depth+1, visited); s != "" {
			return s
		}
	}
	return ""
}

// reduceSequence collapses a slice or array to its first reducible element
// plus "and N more".
func reduceSequence(rv reflect.Value, depth int, visited map[uintptr]bool) string {
	n := rv.Len()
	if n == 0 {
		return ""
	}
	first := reduceValue(rv.Index(0).Interface(), depth+1, visited)
	if first == "" {
		return ""
	}
	if n == 1 {
		return first
	}
	return first + " and " + strconv.Itoa(n-1) + " more"
}

// reduceStruct probes exported fields whose names match the probe list
// case-insensitively.
func reduceStruct(rv reflect.Value, depth int, visited map[uintptr]bool) string {
	rt := rv.Type()
	for _, key := range probeKeys {
		for i := 0; i < rt.NumField(); i++ {
			field := rt.Field(i)
			if !field.IsExported() || !strings.EqualFold(field.Name, key) {
				continue
			}
			if s := reduceValue(rv.Field(i).Interface(), depth+1, visited); s != "" {
				return s
			}
		}
	}
	return ""
}
