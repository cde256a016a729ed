// Package logging provides the logger interface used across script-db.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"github.com/RUTUPARNk/script-db/internal/config"
)

// Logger takes a message followed by alternating key/value pairs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// SlogLogger adapts *slog.Logger to Logger.
type SlogLogger struct {
	l *slog.Logger
}

func (s SlogLogger) Debug(msg string, args ...any) { s.l.Debug(msg, args...) }
func (s SlogLogger) Info(msg string, args ...any)  { s.l.Info(msg, args...) }
func (s SlogLogger) Warn(msg string, args ...any)  { s.l.Warn(msg, args...) }
func (s SlogLogger) Error(msg string, args ...any) { s.l.Error(msg, args...) }

// With returns a logger that adds args to every record.
func (s SlogLogger) With(args ...any) SlogLogger {
	return SlogLogger{l: s.l.With(args...)}
}

// New builds a logger writing to w according to cfg.
func New(cfg config.LoggingConfig, w io.Writer) (SlogLogger, error) {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return SlogLogger{}, err
	}
	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "json":
		h = slog.NewJSONHandler(w, opts)
	case "text":
		h = slog.NewTextHandler(w, opts)
	case "", "auto":
		if isTerminal(w) {
			h = slog.NewTextHandler(w, opts)
		} else {
			h = slog.NewJSONHandler(w, opts)
		}
	default:
		return SlogLogger{}, fmt.Errorf("unknown log format %q", cfg.Format)
	}
	return SlogLogger{l: slog.New(h)}, nil
}

// Nop discards everything.
func Nop() SlogLogger {
	return SlogLogger{l: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("unknown log level %q", s)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
