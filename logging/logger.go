package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

const (
	LevelKey  = "LOG_LEVEL"
	FormatKey = "LOG_FORMAT"
)

// Level is the current log level of Default. To change the level at runtime, for example to DEBUG, call Level.Set(slog.LevelDebug)
// Defaults to slog.LevelInfo
var Level = new(slog.LevelVar)

// Default is a *slog.Logger writing to stdout with a level set by environment variable LOG_LEVEL.
// The handler is JSON unless LOG_FORMAT is set to "text", which reads better in a CI job log.
var Default *slog.Logger

func init() {
	configureLogging(os.Stdout)
}

// configureLogging separated out from init() for testing with environment variables
func configureLogging(w io.Writer) {
	if envLogLevel, levelIsSet := os.LookupEnv(LevelKey); levelIsSet {
		if len(envLogLevel) == 0 {
			slog.Warn("LOG_LEVEL is set, but is empty")
		} else {
			var level slog.Level
			if err := level.UnmarshalText([]byte(envLogLevel)); err != nil {
				slog.Error("error unmarshalling LOG_LEVEL value",
					slog.String(LevelKey, envLogLevel),
					slog.Any("error", err))
				level = slog.LevelInfo
			}
			Level.Set(level)
		}
	}
	Default = New(w, os.Getenv(FormatKey))
	slog.SetDefault(Default)
	Default.Debug("default log level set", slog.String("logging.Level", Level.String()))
}

// New returns a logger writing to w at the shared Level. format "text" selects slog.TextHandler,
// anything else slog.JSONHandler.
func New(w io.Writer, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: Level}
	if strings.EqualFold(format, "text") {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}
