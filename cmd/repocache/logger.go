package main

import (
	"context"
	"log/slog"

	"github.com/bool64/ctxd"
)

// levelImportant is between info and warn.
const levelImportant = slog.LevelInfo + 2

var _ ctxd.Logger = slogLogger{}

// slogLogger writes ctxd messages to slog.
type slogLogger struct {
	l *slog.Logger
}

func (s slogLogger) Debug(ctx context.Context, msg string, keysAndValues ...interface{}) {
	s.l.DebugContext(ctx, msg, keysAndValues...)
}

func (s slogLogger) Info(ctx context.Context, msg string, keysAndValues ...interface{}) {
	s.l.InfoContext(ctx, msg, keysAndValues...)
}

func (s slogLogger) Important(ctx context.Context, msg string, keysAndValues ...interface{}) {
	s.l.Log(ctx, levelImportant, msg, keysAndValues...)
}

func (s slogLogger) Warn(ctx context.Context, msg string, keysAndValues ...interface{}) {
	s.l.WarnContext(ctx, msg, keysAndValues...)
}

func (s slogLogger) Error(ctx context.Context, msg string, keysAndValues ...interface{}) {
	s.l.ErrorContext(ctx, msg, keysAndValues...)
}
