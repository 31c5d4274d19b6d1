// Package logging builds the slog logger handed to the table and segment
// layers by the shmt command.
//
// Output is discarded unless a destination is configured. A log file receives
// JSON records appended across runs; otherwise records go to stderr as text.
package logging

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// ErrUnknownLevel is returned by [ParseLevel] for names it does not know.
var ErrUnknownLevel = errors.New("unknown log level")

// Discard is a logger that drops every record.
var Discard = slog.New(slog.DiscardHandler)

// Options configures [New].
type Options struct {
	Level  slog.Level // Minimum level. The zero value is info.
	File   string     // JSON log file, appended to. Takes precedence over Stderr.
	Stderr io.Writer  // Text output when File is empty. Nil discards.
}

// ParseLevel maps "debug", "info", "warn" and "error" to slog levels.
// The empty string is warn.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "", "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownLevel, s)
	}
}

// New returns a logger for opts and a func that releases the log file.
// The close func is never nil.
func New(opts Options) (*slog.Logger, func() error, error) {
	noop := func() error { return nil }
	handlerOpts := &slog.HandlerOptions{Level: opts.Level}

	if opts.File == "" {
		if opts.Stderr == nil {
			return Discard, noop, nil
		}

		return slog.New(slog.NewTextHandler(opts.Stderr, handlerOpts)), noop, nil
	}

	err := os.MkdirAll(filepath.Dir(opts.File), 0o750)
	if err != nil {
		return nil, noop, fmt.Errorf("creating log dir: %w", err)
	}

	f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, noop, fmt.Errorf("opening log file: %w", err)
	}

	return slog.New(slog.NewJSONHandler(f, handlerOpts)), f.Close, nil
}
