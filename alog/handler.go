package alog

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
)

// LoggerOpt allows to initialise a logger with custom options.
type LoggerOpt func(logger *statisHandler)

// WithHandler adds a slog.Handler to be logged to.
// You can set as many as you want.
func WithHandler(h slog.Handler) LoggerOpt {
	return func(l *statisHandler) {
		l.handlers = append(l.handlers, h)
	}
}

// WithLevel initialises the logger with a starting level.
// To change the level at runtime use Unwrap(logger).SetLevel(LevelInfo).
func WithLevel(level slog.Level) LoggerOpt {
	return func(l *statisHandler) {
		l.level.Set(level)
	}
}

// New returns a logger.
//
// If no options are given it creates a default handler, logging JSON to Stderr.
// Otherwise, use WithHandler to set your own handlers.
func New(opts ...LoggerOpt) *slog.Logger {
	return slog.New(newStatisHandler(opts...))
}

// NewDevelopment returns a logger writing human-readable lines to w.
// If w is nil, os.Stderr is used.
func NewDevelopment(w io.Writer, level slog.Level) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}

	return New(
		WithLevel(level),
		WithHandler(slog.NewTextHandler(w, getDebugHandlerOptions())),
	)
}

func newStatisHandler(opts ...LoggerOpt) *statisHandler {
	logger := &statisHandler{
		handlers: []slog.Handler{},
		level:    &slog.LevelVar{},
	}
	logger.level.Set(slog.LevelInfo)

	for _, opt := range opts {
		opt(logger)
	}

	if len(logger.handlers) == 0 {
		logger.handlers = []slog.Handler{slog.NewJSONHandler(os.Stderr, getDefaultHandlerOptions())}
	}

	return logger
}

// statisHandler fans a record out to multiple handlers.
// The level of the individual handlers is ignored, level is used for all of them.
type statisHandler struct {
	level    *slog.LevelVar
	handlers []slog.Handler
}

var _ slog.Handler = (*statisHandler)(nil)

func (l *statisHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= l.level.Level()
}

func (l *statisHandler) Handle(ctx context.Context, record slog.Record) error {
	if attrs := FromContext(ctx); len(attrs) > 0 {
		record.AddAttrs(attrs...)
	}

	var retErr error

	for _, h := range l.handlers {
		err := h.Handle(ctx, record.Clone())
		retErr = errors.Join(retErr, err)
	}

	return retErr
}

func (l *statisHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	handlers := make([]slog.Handler, len(l.handlers))

	for i, h := range l.handlers {
		handlers[i] = h.WithAttrs(attrs)
	}

	return &statisHandler{handlers: handlers, level: l.level}
}

func (l *statisHandler) WithGroup(name string) slog.Handler {
	handlers := make([]slog.Handler, len(l.handlers))

	for i, h := range l.handlers {
		handlers[i] = h.WithGroup(name)
	}

	return &statisHandler{handlers: handlers, level: l.level}
}

// SetLevel changes the level for all handlers set with WithHandler().
// Even the ones "copied" via any WithX method.
func (l *statisHandler) SetLevel(level slog.Level) {
	l.level.Set(level)
}

// Level returns the log level of the handler.
func (l *statisHandler) Level() slog.Level {
	return l.level.Level()
}

// LevelController offers control over the logger at run time.
// Unwrap a logger to get access to these features.
type LevelController interface {
	SetLevel(level slog.Level)
	Level() slog.Level
}

// Unwrap unwraps the given logger and returns a LevelController.
// In case the logger was not created by this package, it returns nil.
func Unwrap(logger Logger) LevelController { //nolint:ireturn // interface required to return a TestLogger and statisHandler
	if l, ok := logger.(*TestLogger); ok {
		return l
	}

	sl, ok := logger.(*slog.Logger)
	if !ok {
		return nil
	}

	if l, ok := sl.Handler().(*statisHandler); ok {
		return l
	}

	return nil
}

func getDefaultHandlerOptions() *slog.HandlerOptions {
	return &slog.HandlerOptions{
		AddSource:   true,
		Level:       LevelDebug, // filtering happens in statisHandler
		ReplaceAttr: MapLogLevelsToName,
	}
}

// getDebugHandlerOptions is to keep the log output more readable, by removing not essential keys.
func getDebugHandlerOptions() *slog.HandlerOptions {
	opt := getDefaultHandlerOptions()
	opt.AddSource = false

	return opt
}
