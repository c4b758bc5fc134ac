package main

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		raw     string
		want    slog.Level
		wantErr bool
	}{
		{raw: "", want: slog.LevelInfo},
		{raw: "debug", want: slog.LevelDebug},
		{raw: " INFO ", want: slog.LevelInfo},
		{raw: "warn", want: slog.LevelWarn},
		{raw: "Warning", want: slog.LevelWarn},
		{raw: "error", want: slog.LevelError},
		{raw: "-4", wantErr: true},
		{raw: "verbose", wantErr: true},
	}

	for _, tt := range tests {
		got, err := parseLogLevel(tt.raw)
		if tt.wantErr {
			if err == nil {
				t.Fatalf("parse %q: expected error", tt.raw)
			}
			continue
		}
		if err != nil {
			t.Fatalf("parse %q: %v", tt.raw, err)
		}
		if got != tt.want {
			t.Fatalf("parse %q: expected %v, got %v", tt.raw, tt.want, got)
		}
	}
}

func TestResolveLogLevelPrecedence(t *testing.T) {
	tests := []struct {
		name                  string
		flag, env, configured string
		level                 slog.Level
		origin                string
	}{
		{"flag wins", "debug", "error", "warn", slog.LevelDebug, "--log-level"},
		{"flag wins over bad env", "debug", "verbose", "info", slog.LevelDebug, "--log-level"},
		{"env over config", "", "warn", "debug", slog.LevelWarn, logLevelEnvKey},
		{"config", "", "", "error", slog.LevelError, "log_level"},
		{"default", " ", "", "", slog.LevelInfo, "default"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			choice, err := resolveLogLevel(tt.flag, tt.env, tt.configured)
			if err != nil {
				t.Fatalf("resolve: %v", err)
			}
			if choice.level != tt.level || choice.origin != tt.origin {
				t.Fatalf("expected %v from %s, got %v from %s", tt.level, tt.origin, choice.level, choice.origin)
			}
			if choice.warning != "" {
				t.Fatalf("unexpected warning %q", choice.warning)
			}
		})
	}
}

func TestResolveLogLevelInvalidValues(t *testing.T) {
	if _, err := resolveLogLevel("verbose", "", "info"); err == nil || !strings.Contains(err.Error(), "--log-level") {
		t.Fatalf("expected flag error, got %v", err)
	}

	choice, err := resolveLogLevel("", "verbose", "debug")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if choice.level != slog.LevelInfo || !strings.Contains(choice.warning, "HOARD_LOG_LEVEL") {
		t.Fatalf("expected env fallback warning, got %+v", choice)
	}

	choice, err = resolveLogLevel("", "", "loud")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !strings.Contains(choice.warning, `invalid log_level="loud"; defaulting to info`) {
		t.Fatalf("expected config warning, got %q", choice.warning)
	}
}

func TestNewLoggerStructuredOutput(t *testing.T) {
	var buf bytes.Buffer
	newLogger(&buf, slog.LevelInfo, true).With("cmd", "ingest").Info("uploaded", "id", "abc")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected a JSON log line, got %q: %v", buf.String(), err)
	}
	if entry["cmd"] != "ingest" || entry["id"] != "abc" {
		t.Fatalf("unexpected entry %v", entry)
	}
	if _, ok := entry["source"]; ok {
		t.Fatal("source location is only added at debug level")
	}

	buf.Reset()
	newLogger(&buf, slog.LevelWarn, false).Info("dropped")
	if buf.Len() != 0 {
		t.Fatalf("expected info to be filtered at warn, got %q", buf.String())
	}
}

func TestCommandName(t *testing.T) {
	for path, want := range map[string]string{
		"hoard":            "hoard",
		"hoard ingest":     "ingest",
		"hoard config set": "config set",
	} {
		if got := commandName(path); got != want {
			t.Fatalf("commandName(%q) = %q, want %q", path, got, want)
		}
	}
}
