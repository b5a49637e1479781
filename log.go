package tmplkit

import (
	"context"
	"log/slog"
)

type ctxKey struct{}

var slogCtxKey = ctxKey{}

// logger returns the logger carried by ctx, or one that discards everything.
func logger(ctx context.Context) *slog.Logger {
	if l, ok := LoggerFrom(ctx); ok {
		return l
	}
	return slog.New(noopHandler{})
}

// LoggingContext returns a copy of ctx carrying l. Load picks it up when no
// WithLogger option is given.
func LoggingContext(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, slogCtxKey, l)
}

type noopHandler struct{}

func (noopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (noopHandler) Handle(context.Context, slog.Record) error { return nil }
func (n noopHandler) WithAttrs([]slog.Attr) slog.Handler      { return n }
func (n noopHandler) WithGroup(string) slog.Handler           { return n }

// LoggerFrom returns the logger stored by LoggingContext, if any.
func LoggerFrom(ctx context.Context) (*slog.Logger, bool) {
	l, ok := ctx.Value(slogCtxKey).(*slog.Logger)
	return l, ok && l != nil
}
