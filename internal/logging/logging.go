// Package logging wires zerolog up as the process-wide structured logger.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the global logger. Packages that emit more than a handful of
// lines should derive a component logger via With instead of using it raw.
var Logger zerolog.Logger

// Level aliases zerolog's level type so callers don't import zerolog directly.
type Level = zerolog.Level

const (
	DebugLevel = zerolog.DebugLevel
	InfoLevel  = zerolog.InfoLevel
	WarnLevel  = zerolog.WarnLevel
	ErrorLevel = zerolog.ErrorLevel
)

// Config controls the global logger.
type Config struct {
	Level Level
	// Output defaults to os.Stderr.
	Output io.Writer
	// Pretty switches to the human-readable console writer. The CLI turns
	// this on when stderr is a terminal.
	Pretty bool
}

// Init replaces the global logger. Safe to call more than once; the last
// call wins.
func Init(cfg Config) {
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}
	zerolog.TimeFieldFormat = time.RFC3339

	out := cfg.Output
	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: cfg.Output, TimeFormat: time.TimeOnly}
	}
	Logger = zerolog.New(out).Level(cfg.Level).With().Timestamp().Logger()
}

// With returns a child logger tagged with a component name.
func With(component string) zerolog.Logger {
	return Logger.With().Str("component", component).Logger()
}

// ParseLevel maps a level string to a Level, defaulting to info for
// anything it does not recognize.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug", "trace":
		return DebugLevel
	case "info", "":
		return InfoLevel
	case "warn", "warning":
		return WarnLevel
	case "error":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

func Debug() *zerolog.Event { return Logger.Debug() }
func Info() *zerolog.Event  { return Logger.Info() }
func Warn() *zerolog.Event  { return Logger.Warn() }
func Error() *zerolog.Event { return Logger.Error() }

func init() {
	Init(Config{Level: InfoLevel})
}
