// Package logging configures the process-wide zerolog logger.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Setup installs the global logger writing to stderr. level is a zerolog
// level name ("debug", "info", "warn", ...). format "console" selects the
// human-readable writer; anything else emits JSON lines.
func Setup(level, format string) (zerolog.Logger, error) {
	return setup(os.Stderr, level, format)
}

func setup(w io.Writer, level, format string) (zerolog.Logger, error) {
	lvl := zerolog.InfoLevel
	if s := strings.TrimSpace(level); s != "" {
		var err error
		if lvl, err = zerolog.ParseLevel(strings.ToLower(s)); err != nil {
			return zerolog.Logger{}, fmt.Errorf("log level %q: %w", level, err)
		}
	}

	switch strings.ToLower(strings.TrimSpace(format)) {
	case "console":
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	case "", "json":
	default:
		return zerolog.Logger{}, fmt.Errorf("unknown log format %q; want console or json", format)
	}

	zerolog.TimeFieldFormat = time.RFC3339Nano
	logger := zerolog.New(w).Level(lvl).With().Timestamp().Logger()
	log.Logger = logger
	zerolog.DefaultContextLogger = &log.Logger
	return logger, nil
}
