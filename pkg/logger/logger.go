// Package logger configures structured logging for the discipline core.
// All components log through *slog.Logger; this package owns handler
// setup so every entry point formats logs the same way.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Options configures the logger.
type Options struct {
	// Output is where log entries are written. Defaults to stdout.
	Output io.Writer

	// Level is the minimum level, parsed from strings like "debug".
	Level slog.Level

	// Format is "json" or "text". Defaults to json.
	Format string

	// Service is added to every entry.
	Service string
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	return Options{
		Output:  os.Stdout,
		Level:   slog.LevelInfo,
		Format:  "json",
		Service: "discipline-core",
	}
}

// ParseLevel parses a string into a slog.Level. Unknown strings fall
// back to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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

// New creates a configured *slog.Logger.
func New(opts Options) *slog.Logger {
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	handlerOpts := &slog.HandlerOptions{Level: opts.Level}

	var handler slog.Handler
	switch strings.ToLower(opts.Format) {
	case "text":
		handler = slog.NewTextHandler(opts.Output, handlerOpts)
	default:
		handler = slog.NewJSONHandler(opts.Output, handlerOpts)
	}

	log := slog.New(handler)
	if opts.Service != "" {
		log = log.With(slog.String("service", opts.Service))
	}
	return log
}

// Default creates a logger with default options.
func Default() *slog.Logger {
	return New(DefaultOptions())
}
