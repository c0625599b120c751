package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestNewLevels(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "warn", "json")
	log.Info("hidden")
	log.Warn("shown", "view", "v1")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info should be filtered at warn level")
	}
	if !strings.Contains(out, `"view":"v1"`) {
		t.Fatalf("expected json attrs, got %s", out)
	}
}

func TestNewTextFormat(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "debug", "text")
	if !log.Enabled(context.Background(), slog.LevelDebug) {
		t.Fatalf("expected debug enabled")
	}
	log.Debug("drop", "operation", "page")
	if !strings.Contains(buf.String(), "operation=page") {
		t.Fatalf("expected text attrs, got %s", buf.String())
	}
}

func TestSetupReplacesDefault(t *testing.T) {
	old := slog.Default()
	defer slog.SetDefault(old)

	Setup("error", "json")
	if slog.Default().Enabled(context.Background(), slog.LevelWarn) {
		t.Fatalf("expected warn disabled at error level")
	}
}
