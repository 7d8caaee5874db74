// Package logging provides the structured loggers used across the gather
// pipeline.
package logging

import (
	"io"
	"log/slog"
	"os"
)

// Logger is a structured logger scoped to one pipeline component.
type Logger struct {
	*slog.Logger
}

// New creates a component logger writing JSON to stderr.
func New(component string, level slog.Level) *Logger {
	return NewWithWriter(os.Stderr, component, level)
}

// NewWithWriter creates a component logger writing JSON to w. Tests pass a
// buffer.
func NewWithWriter(w io.Writer, component string, level slog.Level) *Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	return &Logger{Logger: slog.New(handler).With(slog.String("component", component))}
}

// WithRun returns a logger carrying the run id.
func (l *Logger) WithRun(runID string) *Logger {
	return &Logger{Logger: l.Logger.With(slog.String("run_id", runID))}
}

// WithNavigation returns a logger carrying the navigation id.
func (l *Logger) WithNavigation(navigationID string) *Logger {
	return &Logger{Logger: l.Logger.With(slog.String("navigation_id", navigationID))}
}

// Discard returns a logger that drops everything. Used by tests and as the
// fallback when no logger is injected.
func Discard() *Logger {
	return &Logger{Logger: slog.New(slog.NewJSONHandler(io.Discard, nil))}
}
