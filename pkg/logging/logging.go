// Package logging configures the process-wide slog logger.
//
// Services log JSON to stderr with the service name and version attached to
// every record. The CLI logs text to stderr so that collected facts written
// to stdout stay machine readable.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// EnvLogLevel selects the level for structured loggers.
const EnvLogLevel = "LOG_LEVEL"

// ParseLevel converts a level name to a slog.Level. Unknown names yield
// info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewStructuredLogger returns a JSON logger tagged with module and version.
func NewStructuredLogger(w io.Writer, module, version string, level slog.Level) *slog.Logger {
	h := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	})
	return slog.New(h).With("module", module, "version", version)
}

// NewCLILogger returns a text logger for interactive use.
func NewCLILogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// SetDefaultStructuredLogger installs a JSON logger on stderr as the
// default, with the level taken from LOG_LEVEL.
func SetDefaultStructuredLogger(module, version string) {
	slog.SetDefault(NewStructuredLogger(os.Stderr, module, version, ParseLevel(os.Getenv(EnvLogLevel))))
}

// SetDefaultCLILogger installs a text logger on stderr as the default.
func SetDefaultCLILogger(level slog.Level) {
	slog.SetDefault(NewCLILogger(os.Stderr, level))
}

// SetDefaultLogger picks the CLI or structured logger.
func SetDefaultLogger(module, version string, debug, jsonOutput bool) {
	level := ParseLevel(os.Getenv(EnvLogLevel))
	if debug {
		level = slog.LevelDebug
	}
	if jsonOutput {
		slog.SetDefault(NewStructuredLogger(os.Stderr, module, version, level))
		return
	}
	SetDefaultCLILogger(level)
}
