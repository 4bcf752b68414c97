package logger

import (
	"context"
	"log/slog"
	"os"
)

// New builds the process-wide JSON logger. Local and dev environments log at
// debug so per-record dispatch decisions are visible; everything else stays
// at info.
func New(appEnv string) *slog.Logger {
	level := slog.LevelInfo
	switch appEnv {
	case "local", "dev":
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}

type ctxKey struct{}

// With attaches a request- or pass-scoped logger to ctx.
func With(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// From returns the logger attached by With, or slog.Default(). The engine and
// reconciler call this at the top of every pass.
func From(ctx context.Context) *slog.Logger {
	l, ok := ctx.Value(ctxKey{}).(*slog.Logger)
	if !ok || l == nil {
		return slog.Default()
	}
	return l
}
