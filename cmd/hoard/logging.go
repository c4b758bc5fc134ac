package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"hoard/internal/config"
)

const logLevelEnvKey = "HOARD_LOG_LEVEL"

var logLevels = map[string]slog.Level{
	"debug":   slog.LevelDebug,
	"info":    slog.LevelInfo,
	"warn":    slog.LevelWarn,
	"warning": slog.LevelWarn,
	"error":   slog.LevelError,
}

// logChoice is the effective level and where it came from.
type logChoice struct {
	level   slog.Level
	origin  string
	warning string
}

// resolveLogLevel applies --log-level > HOARD_LOG_LEVEL > log_level > info.
// A bad flag is an error; a bad env or config value falls back with a warning.
func resolveLogLevel(flagLevel, envLevel, configLevel string) (logChoice, error) {
	sources := []struct{ origin, raw string }{
		{"--log-level", flagLevel},
		{logLevelEnvKey, envLevel},
		{"log_level", configLevel},
	}
	for _, src := range sources {
		if strings.TrimSpace(src.raw) == "" {
			continue
		}
		level, err := parseLogLevel(src.raw)
		if err == nil {
			return logChoice{level: level, origin: src.origin}, nil
		}
		if src.origin == "--log-level" {
			return logChoice{}, fmt.Errorf("invalid --log-level %q (want debug, info, warn or error)", src.raw)
		}
		return logChoice{
			level:   slog.LevelInfo,
			origin:  "default",
			warning: fmt.Sprintf("warning: invalid %s=%q; defaulting to %s", src.origin, src.raw, config.DefaultLogLevel),
		}, nil
	}
	return logChoice{level: slog.LevelInfo, origin: "default"}, nil
}

func parseLogLevel(raw string) (slog.Level, error) {
	value := strings.ToLower(strings.TrimSpace(raw))
	if value == "" {
		return slog.LevelInfo, nil
	}
	level, ok := logLevels[value]
	if !ok {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q", raw)
	}
	return level, nil
}

// installLogger makes the command's logger the process default. Structured
// output modes log JSON so stderr stays machine readable next to stdout.
func installLogger(command string, choice logChoice, structured bool) *slog.Logger {
	logger := newLogger(os.Stderr, choice.level, structured).With("cmd", command)
	slog.SetDefault(logger)
	return logger
}

func newLogger(w io.Writer, level slog.Level, structured bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level, AddSource: level <= slog.LevelDebug}
	if structured {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// commandName drops the root name from a cobra command path.
func commandName(path string) string {
	_, rest, found := strings.Cut(path, " ")
	if !found {
		return path
	}
	return rest
}
