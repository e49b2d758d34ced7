// StreamSync - Live Stream Overlay Notification Pipeline
// Copyright 2026 git-blame-dev
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/git-blame-dev/stream-sync-sub008

package logging

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/rs/zerolog"
)

func TestInit_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "warn", Output: &buf})
	defer Init(DefaultConfig())

	Info().Msg("filtered out")
	Warn().Msg("kept")

	out := buf.String()
	if strings.Contains(out, "filtered out") {
		t.Errorf("info message should be filtered at warn level: %s", out)
	}
	if !strings.Contains(out, "kept") {
		t.Errorf("warn message missing from output: %s", out)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"trace", zerolog.TraceLevel},
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"fatal", zerolog.FatalLevel},
		{"panic", zerolog.PanicLevel},
		{"disabled", zerolog.Disabled},
		{"bogus", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
		{"ERROR", zerolog.ErrorLevel},
	}

	for _, tt := range tests {
		if got := parseLevel(tt.in); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewTestLogger_CapturesOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := NewTestLogger(&buf)

	logger.Info().Str("platform", "tiktok").Msg("adapter started")

	out := buf.String()
	if !strings.Contains(out, "adapter started") {
		t.Errorf("expected message in output, got %s", out)
	}
	if !strings.Contains(out, `"platform":"tiktok"`) {
		t.Errorf("expected structured field in output, got %s", out)
	}
}

func TestSlog_ForwardsToGlobalLogger(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "info", Output: &buf})
	defer Init(DefaultConfig())

	logger := Slog().With("layer", "pipeline")
	logger.Info("service started", "service", "event-router")

	out := buf.String()
	if !strings.Contains(out, "service started") {
		t.Errorf("expected message in output, got %s", out)
	}
	if !strings.Contains(out, `"layer":"pipeline"`) {
		t.Errorf("expected bound attr in output, got %s", out)
	}
	if !strings.Contains(out, `"service":"event-router"`) {
		t.Errorf("expected record attr in output, got %s", out)
	}
}

func TestWatermillAdapter_Fields(t *testing.T) {
	var buf bytes.Buffer
	adapter := NewWatermillAdapter(NewTestLogger(&buf))

	adapter.Info("handler registered", watermill.LogFields{"topic": "platform.events"})

	out := buf.String()
	if !strings.Contains(out, "handler registered") {
		t.Errorf("expected message in output, got %s", out)
	}
	if !strings.Contains(out, "platform.events") {
		t.Errorf("expected topic field in output, got %s", out)
	}
}

func TestWatermillAdapter_With(t *testing.T) {
	var buf bytes.Buffer
	adapter := NewWatermillAdapter(NewTestLogger(&buf))

	child := adapter.With(watermill.LogFields{"component": "router"})
	child.Error("handler failed", errors.New("boom"), nil)

	out := buf.String()
	if !strings.Contains(out, `"component":"router"`) {
		t.Errorf("expected inherited field in output, got %s", out)
	}
	if !strings.Contains(out, "boom") {
		t.Errorf("expected error in output, got %s", out)
	}
}
