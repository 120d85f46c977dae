package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestNewJSONLoggerToTagsService(t *testing.T) {
	var buf bytes.Buffer
	logger := NewJSONLoggerTo(&buf, "api", "info")
	logger.Info("pronto", "port", "8080")

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if record["service"] != "api" {
		t.Fatalf("service = %v, want api", record["service"])
	}
	if record["msg"] != "pronto" {
		t.Fatalf("msg = %v", record["msg"])
	}
}

func TestNewJSONLoggerToRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewJSONLoggerTo(&buf, "api", "warn")
	logger.Info("descartada")
	if buf.Len() != 0 {
		t.Fatalf("info line should be dropped at warn level, got %q", buf.String())
	}
	logger.Warn("mantida")
	if buf.Len() == 0 {
		t.Fatal("warn line should be written")
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for raw, want := range cases {
		if got := parseLevel(raw); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", raw, got, want)
		}
	}
}
