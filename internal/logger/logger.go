package logger

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// New builds the process logger. Output is JSON on stderr with a "severity"
// level field so Cloud Logging can parse it; ENV=development switches to the
// console writer and LOG_LEVEL overrides the default info level.
func New() zerolog.Logger {
	return NewWithWriter(os.Stderr, os.Getenv("ENV"), os.Getenv("LOG_LEVEL"))
}

func NewWithWriter(w io.Writer, env, level string) zerolog.Logger {
	zerolog.LevelFieldName = "severity"
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	if env == "development" {
		w = zerolog.ConsoleWriter{Out: w}
	}
	logger := zerolog.New(w).With().Timestamp().Logger()

	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
		if env == "development" {
			lvl = zerolog.DebugLevel
		}
	}
	return logger.Level(lvl)
}
