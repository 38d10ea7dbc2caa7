package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/akdenizcse/akdeniz-chatbot-go/internal/ctxutil"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse JSON log %q: %v", buf.String(), err)
	}
	return entry
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"WARNING", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			if got := ParseLevel(tt.in); got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestLogger_JSONFormat(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := NewWithWriter("info", &buf)
	log.Warn("menu missing")

	entry := decodeLine(t, &buf)
	for _, field := range []string{"timestamp", "level", "message"} {
		if _, ok := entry[field]; !ok {
			t.Errorf("JSON log missing required field %q", field)
		}
	}
	if entry["level"] != "warning" {
		t.Errorf("level = %v, want warning", entry["level"])
	}
	if entry["message"] != "menu missing" {
		t.Errorf("message = %v", entry["message"])
	}
}

func TestLogger_LevelFiltering(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := NewWithWriter("warn", &buf)
	log.Info("dropped")
	if buf.Len() != 0 {
		t.Errorf("info record written at warn level: %s", buf.String())
	}
}

func TestLogger_Fields(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := NewWithWriter("info", &buf)
	log.WithModule("resolver").
		WithRequestID("req-123").
		WithError(errors.New("database is locked")).
		WithFields(map[string]any{"intent": "dining"}).
		WithField("date", "2025-10-20").
		Info("lookup failed")

	entry := decodeLine(t, &buf)
	want := map[string]string{
		"module":     "resolver",
		"request_id": "req-123",
		"error":      "database is locked",
		"intent":     "dining",
		"date":       "2025-10-20",
	}
	for k, v := range want {
		if entry[k] != v {
			t.Errorf("%s = %v, want %q", k, entry[k], v)
		}
	}
}

func TestLogger_ContextValues(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := NewWithWriter("info", &buf)

	ctx := ctxutil.WithUserID(context.Background(), "u-1")
	ctx = ctxutil.WithChatID(ctx, "c-1")
	ctx = ctxutil.WithRequestID(ctx, "r-1")
	ctx = ctxutil.WithIsGroup(ctx, true)
	log.InfoContext(ctx, "answered")

	entry := decodeLine(t, &buf)
	if entry["user_id"] != "u-1" || entry["chat_id"] != "c-1" || entry["request_id"] != "r-1" {
		t.Errorf("tracing values missing: %v", entry)
	}
	if entry["is_group"] != true {
		t.Errorf("is_group = %v, want true", entry["is_group"])
	}
}

func TestLogger_ShutdownWithoutRemote(t *testing.T) {
	t.Parallel()

	log := NewWithWriter("info", &bytes.Buffer{})
	if err := log.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() = %v, want nil", err)
	}
}
