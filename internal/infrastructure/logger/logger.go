package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Config holds logger configuration.
type Config struct {
	Level  string // trace, debug, info, warn, error
	Format string // json, console
	// Output defaults to stdout.
	Output  io.Writer
	Service string
	// Host is attached to every entry so lines from the server and the
	// worker can be told apart. Defaults to os.Hostname.
	Host string
}

// New creates a new zerolog logger based on config. Durations are written
// in milliseconds.
func New(cfg Config) zerolog.Logger {
	var output io.Writer = os.Stdout
	if cfg.Output != nil {
		output = cfg.Output
	}

	if cfg.Format == "console" {
		output = zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: time.RFC3339,
			NoColor:    cfg.Output != nil,
		}
	}

	ctx := zerolog.New(output).
		Level(parseLevel(cfg.Level)).
		With().
		Timestamp().
		Caller()
	if cfg.Service != "" {
		ctx = ctx.Str("service", cfg.Service)
	}
	host := cfg.Host
	if host == "" {
		host, _ = os.Hostname()
	}
	if host != "" {
		ctx = ctx.Str("host", host)
	}

	return ctx.Logger()
}

// parseLevel accepts zerolog level names in any case. Empty or unknown
// values fall back to info.
func parseLevel(level string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}
