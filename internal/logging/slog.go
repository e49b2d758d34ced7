// StreamSync - Live Stream Overlay Notification Pipeline
// Copyright 2026 git-blame-dev
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/git-blame-dev/stream-sync-sub008

package logging

import (
	"context"
	"log/slog"

	"github.com/rs/zerolog"
)

// Slog returns an *slog.Logger that forwards records to the global
// zerolog logger. Libraries that require slog (the supervisor's event
// hook) plug in here so all output shares one sink.
func Slog() *slog.Logger {
	return slog.New(slogBridge{})
}

type slogBridge struct {
	attrs []slog.Attr
}

func (b slogBridge) Enabled(_ context.Context, level slog.Level) bool {
	return slogToZerolog(level) >= zerolog.GlobalLevel()
}

func (b slogBridge) Handle(_ context.Context, rec slog.Record) error {
	logger := Logger()
	ev := logger.WithLevel(slogToZerolog(rec.Level))
	for _, attr := range b.attrs {
		ev = ev.Str(attr.Key, attr.Value.String())
	}
	rec.Attrs(func(attr slog.Attr) bool {
		ev = ev.Str(attr.Key, attr.Value.String())
		return true
	})
	ev.Msg(rec.Message)
	return nil
}

func (b slogBridge) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(b.attrs)+len(attrs))
	merged = append(merged, b.attrs...)
	merged = append(merged, attrs...)
	return slogBridge{attrs: merged}
}

func (b slogBridge) WithGroup(name string) slog.Handler {
	// Groups are flattened; the prefix keeps keys distinguishable.
	prefixed := make([]slog.Attr, len(b.attrs))
	copy(prefixed, b.attrs)
	return slogBridge{attrs: append(prefixed, slog.String("group", name))}
}

func slogToZerolog(level slog.Level) zerolog.Level {
	switch {
	case level >= slog.LevelError:
		return zerolog.ErrorLevel
	case level >= slog.LevelWarn:
		return zerolog.WarnLevel
	case level >= slog.LevelInfo:
		return zerolog.InfoLevel
	default:
		return zerolog.DebugLevel
	}
}
