package config

import (
	"fmt"
	"log/slog"
	"strings"
)

const (
	SinkMalgo = "malgo"
	SinkNull  = "null"
)

// NormalizeSink maps raw, aliases included, to SinkMalgo or SinkNull. Empty
// selects SinkMalgo.
func NormalizeSink(raw string) (string, error) {
	sink := strings.ToLower(strings.TrimSpace(raw))
	if sink == "" {
		sink = SinkMalgo
	}
	switch sink {
	case SinkMalgo, SinkNull:
		return sink, nil
	case "device", "speaker":
		return SinkMalgo, nil
	case "none", "silent":
		return SinkNull, nil
	default:
		return "", fmt.Errorf("invalid sink %q (expected %s|%s)", raw, SinkMalgo, SinkNull)
	}
}

// ParseLogLevel converts a case-insensitive level string to slog.Level.
// An empty string returns slog.LevelInfo. Unknown strings return an error.
func ParseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q (want debug|info|warn|error)", s)
	}
}
