// Package logging builds the process logger on log/slog.
//
// The level lives in a slog.LevelVar so a reloaded configuration can change
// it without rebuilding loggers that components already hold.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Config selects the log level and output format.
type Config struct {
	Level  string // debug, info, warn, error
	Format string // text or json
}

// Service owns the root handler and its adjustable level.
type Service struct {
	level  *slog.LevelVar
	format string
	logger *slog.Logger
}

// New creates a logger writing to stderr.
func New(cfg Config) *Service {
	return NewWithWriter(cfg, os.Stderr)
}

// NewWithWriter creates a logger writing to w.
func NewWithWriter(cfg Config, w io.Writer) *Service {
	lv := new(slog.LevelVar)
	lv.Set(ParseLevel(cfg.Level, slog.LevelInfo))

	opts := &slog.HandlerOptions{Level: lv}
	format := strings.ToLower(cfg.Format)
	var h slog.Handler
	if format == "json" {
		h = slog.NewJSONHandler(w, opts)
	} else {
		format = "text"
		h = slog.NewTextHandler(w, opts)
	}

	return &Service{level: lv, format: format, logger: slog.New(h)}
}

// Logger returns the root logger.
func (s *Service) Logger() *slog.Logger {
	return s.logger
}

// Level returns the current level.
func (s *Service) Level() slog.Level {
	return s.level.Level()
}

// Apply updates the level from cfg. It reports whether the format differs
// from the running one, which only takes effect after a restart.
func (s *Service) Apply(cfg Config) (restartNeeded bool) {
	next := ParseLevel(cfg.Level, s.level.Level())
	if next != s.level.Level() {
		s.logger.Info("log level changed", "from", s.level.Level().String(), "to", next.String())
		s.level.Set(next)
	}
	format := strings.ToLower(cfg.Format)
	if format == "" {
		format = "text"
	}
	return format != s.format
}

// ParseLevel maps a level name to a slog.Level, returning def for unknown names.
func ParseLevel(s string, def slog.Level) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return def
	}
}
