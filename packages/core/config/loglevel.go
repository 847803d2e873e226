package config

import (
	"fmt"
	"log/slog"
	"strings"
)

// LevelCritical sits above error; slog has no level of its own for it.
const LevelCritical = slog.LevelError + 4

// ParseLogLevel maps a level name to its slog level. An empty name is info.
func ParseLogLevel(name string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	case "critical":
		return LevelCritical, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", name)
	}
}
