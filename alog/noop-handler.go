package alog

import (
	"context"
	"log/slog"
)

// NewNoop returns a logger that discards everything.
// Ideal as dependency in tests that don't assert on log output.
func NewNoop() *slog.Logger {
	return slog.New(noopHandler{})
}

type noopHandler struct{}

var _ slog.Handler = (*noopHandler)(nil)

func (noopHandler) Enabled(context.Context, slog.Level) bool { return false }
func (noopHandler) Handle(context.Context, slog.Record) error { return nil }
func (n noopHandler) WithAttrs([]slog.Attr) slog.Handler { return n }
func (n noopHandler) WithGroup(string) slog.Handler { return n }
