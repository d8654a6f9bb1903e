// Package corelog provides structured logging for the store, built on zerolog.
package corelog

import (
	"io"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the global logger instance, configured via Init.
var Logger zerolog.Logger

// Level names a logging severity threshold.
type Level string

const (
	DebugLevel Level = "debug"
	InfoLevel  Level = "info"
	WarnLevel  Level = "warn"
	ErrorLevel Level = "error"
)

// Config configures the global logger.
type Config struct {
	Level      Level
	JSONOutput bool
	Output     io.Writer
}

// Init initializes the global logger. Safe to call more than once; the
// most recent call wins.
func Init(cfg Config) {
	var level zerolog.Level
	switch cfg.Level {
	case DebugLevel:
		level = zerolog.DebugLevel
	case InfoLevel:
		level = zerolog.InfoLevel
	case WarnLevel:
		level = zerolog.WarnLevel
	case ErrorLevel:
		level = zerolog.ErrorLevel
	default:
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}

	if cfg.JSONOutput {
		Logger = zerolog.New(output).With().Timestamp().Logger()
	} else {
		Logger = zerolog.New(zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: time.RFC3339,
		}).With().Timestamp().Logger()
	}
}

func init() {
	// A usable default so packages that log before Init (e.g. in tests)
	// don't panic on a zero-value Logger.
	Init(Config{Level: InfoLevel, JSONOutput: true})
}

// WithComponent creates a child logger tagged with a component name, e.g.
// "committer" or "gc".
func WithComponent(component string) zerolog.Logger {
	return Logger.With().Str("component", component).Logger()
}

// WithHash creates a child logger tagged with a resource hash, truncated to
// its first 16 characters for readability.
func WithHash(component string, hash string) zerolog.Logger {
	short := hash
	if len(short) > 16 {
		short = short[:16]
	}
	return Logger.With().Str("component", component).Str("hash", short).Logger()
}

// WithKey creates a child logger tagged with a key/value key. Keys are not
// secrets but may be binary, so they're rendered as a quoted Go string.
func WithKey(component string, key []byte) zerolog.Logger {
	return Logger.With().Str("component", component).Str("key", strconv.Quote(string(key))).Logger()
}
