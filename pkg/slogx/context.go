package slogx

import (
	"context"
	"log/slog"
)

type ctxKey struct{}

func WithContext(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

func FromContext(ctx context.Context) *slog.Logger {
	l, ok := ctx.Value(ctxKey{}).(*slog.Logger)
	if !ok {
		return slog.Default()
	}
	return l
}

// FromContextOr returns the context logger, or fallback when ctx has none.
func FromContextOr(ctx context.Context, fallback *slog.Logger) *slog.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok {
		return l
	}
	return fallback
}

// WithFlowID tags the context logger with the id of an interactive flow
// (login, OTP, web sign-in) so every record of that flow can be grouped.
func WithFlowID(ctx context.Context, flowID string) context.Context {
	l := FromContext(ctx)
	return WithContext(ctx, l.With("flow_id", flowID))
}
