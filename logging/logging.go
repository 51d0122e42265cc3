package logging

import (
	"context"
	"log/slog"
	"os"
)

// LevelTrace sits below slog.LevelDebug. The protocol layers emit
// per-message and per-frame records at this level; enabling it on a
// busy compositor produces several records per frame.
const LevelTrace = slog.Level(-8)

// New returns a structured slog.Logger with the given level.
func New(level slog.Leveler) *slog.Logger {
	h := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	return slog.New(h)
}

// Trace logs msg at LevelTrace.
func Trace(l *slog.Logger, msg string, args ...any) {
	if l == nil {
		return
	}
	l.Log(context.Background(), LevelTrace, msg, args...)
}

// Discard returns a logger that drops everything. Used by tests and as
// a nil-safe default for optional collaborator loggers.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(discardWriter{}, &slog.HandlerOptions{Level: slog.Level(127)}))
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }
