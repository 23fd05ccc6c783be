// Package logging builds the application's zerolog logger. The terminal
// belongs to the UI, so logs normally go to a file.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"equilibrium/internal/config"
)

// Stderr is the log file name that selects console output on stderr.
const Stderr = "-"

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// New returns a logger for cfg and the closer of its destination. File
// output is JSON; stderr output uses the console writer.
func New(cfg config.LoggingConfig) (zerolog.Logger, io.Closer, error) {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return zerolog.Nop(), nopCloser{}, err
	}
	zerolog.TimeFieldFormat = time.RFC3339

	var (
		out    io.Writer
		closer io.Closer = nopCloser{}
	)
	switch cfg.File {
	case "", Stderr:
		out = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}
	default:
		if dir := filepath.Dir(cfg.File); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return zerolog.Nop(), nopCloser{}, err
			}
		}
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return zerolog.Nop(), nopCloser{}, fmt.Errorf("open log file: %w", err)
		}
		out, closer = f, f
	}
	return NewWithWriter(out, level), closer, nil
}

// NewWithWriter returns a timestamped logger writing to w at level.
func NewWithWriter(w io.Writer, level zerolog.Level) zerolog.Logger {
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

// parseLevel accepts zerolog level names case-insensitively, plus "warning".
// An empty level means info.
func parseLevel(level string) (zerolog.Level, error) {
	switch s := strings.ToLower(strings.TrimSpace(level)); s {
	case "":
		return zerolog.InfoLevel, nil
	case "warning":
		return zerolog.WarnLevel, nil
	default:
		l, err := zerolog.ParseLevel(s)
		if err != nil {
			return zerolog.InfoLevel, fmt.Errorf("log level %q: %w", level, err)
		}
		return l, nil
	}
}
