package alog

import (
	"context"
	"log/slog"
)

// Logger interface is a subset of slog.Logger, with the aim to
// encourage the use of the methods offering context.Context,
// so that attributes added via AddAttr end up in every line.
type Logger interface {
	Log(ctx context.Context, level slog.Level, msg string, args ...any)
	LogAttrs(ctx context.Context, level slog.Level, msg string, attrs ...slog.Attr)
	DebugContext(ctx context.Context, msg string, args ...any)
	InfoContext(ctx context.Context, msg string, args ...any)
	WarnContext(ctx context.Context, msg string, args ...any)
	ErrorContext(ctx context.Context, msg string, args ...any)
	With(args ...any) *slog.Logger
	WithGroup(name string) *slog.Logger
}

var _ Logger = (*slog.Logger)(nil)

const (
	// LevelInfo is used to see what is going on inside statis-mix.
	LevelInfo = slog.Level(-8)

	// LevelDebug is used by statis-mix developers, if you really want to know what is going on.
	LevelDebug = slog.Level(-12)
)

// MapLogLevelsToName replaces the default name of a custom log level with a speaking name.
func MapLogLevelsToName(_ []string, attr slog.Attr) slog.Attr {
	if attr.Key == slog.LevelKey {
		level, _ := attr.Value.Any().(slog.Level)

		levelLabel, exists := getLevelNames()[level]
		if !exists {
			levelLabel = level.String()
		}

		attr.Value = slog.StringValue(levelLabel)
	}

	return attr
}

func getLevelNames() map[slog.Leveler]string {
	return map[slog.Leveler]string{
		LevelInfo:  "STATIS:INFO",
		LevelDebug: "STATIS:DEBUG",
	}
}

type ctxKey struct{}

// AddAttr adds a single attribute to ctx.
// All attributes in the context are added to each line logged with a *Context method.
func AddAttr(ctx context.Context, attr slog.Attr) context.Context {
	return AddAttrs(ctx, attr)
}

// AddAttrs adds multiple attributes to ctx.
func AddAttrs(ctx context.Context, newAttrs ...slog.Attr) context.Context {
	attrs, _ := ctx.Value(ctxKey{}).([]slog.Attr)

	all := make([]slog.Attr, 0, len(attrs)+len(newAttrs))
	all = append(all, attrs...)
	all = append(all, newAttrs...)

	return context.WithValue(ctx, ctxKey{}, all)
}

// FromContext returns all attributes added to ctx.
func FromContext(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}

	attrs, _ := ctx.Value(ctxKey{}).([]slog.Attr)

	return attrs
}
