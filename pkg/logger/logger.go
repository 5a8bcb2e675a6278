// Package logger builds the zerolog loggers shared by the binaries.
package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New returns a JSON logger on stdout, or a console logger when pretty is set.
func New(level string, pretty bool) zerolog.Logger {
	var output io.Writer = os.Stdout
	if pretty {
		output = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}

	return NewWithWriter(output, level)
}

// NewWithWriter returns a timestamped logger writing to output at the named level.
func NewWithWriter(output io.Writer, level string) zerolog.Logger {
	log := zerolog.New(output).With().Timestamp().Logger()

	switch level {
	case "debug":
		return log.Level(zerolog.DebugLevel)
	case "warn":
		return log.Level(zerolog.WarnLevel)
	case "error":
		return log.Level(zerolog.ErrorLevel)
	default:
		return log.Level(zerolog.InfoLevel)
	}
}
