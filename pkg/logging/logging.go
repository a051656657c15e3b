// Package logging installs a tint handler as the default slog logger.
//
//	logging.Setup()                         // level from LOG_LEVEL
//	logging.SetupWithLevel(slog.LevelDebug) // explicit level
//
// LOG_LEVEL accepts debug, info, warn and error; anything else means info.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

// Setup configures colored logging on stderr at the LOG_LEVEL level.
func Setup() *slog.Logger {
	return SetupWithLevel(ParseLevel(os.Getenv("LOG_LEVEL")))
}

// SetupWithLevel configures colored logging on stderr at the given level.
func SetupWithLevel(level slog.Level) *slog.Logger {
	logger := New(os.Stderr, level)
	slog.SetDefault(logger)
	return logger
}

// New returns a tint logger writing to w. Color is disabled unless w is the
// process stderr.
func New(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
		AddSource:  level <= slog.LevelDebug,
		NoColor:    w != os.Stderr,
	}))
}

// ParseLevel maps a level name to a slog level.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
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
