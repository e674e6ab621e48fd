// Package logging defines the structured-logging interface used across
// petmarket, with slog and zap implementations.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"go.uber.org/zap"
)

// Logger is a context-aware, structured logger.
//
// The variadic args are interpreted as key–value pairs, e.g.:
//
//	log.Info(ctx, "signup accepted", "email", email)
type Logger interface {
	Debug(ctx context.Context, msg string, args ...any)
	Info(ctx context.Context, msg string, args ...any)
	Warn(ctx context.Context, msg string, args ...any)
	Error(ctx context.Context, msg string, args ...any)

	// With returns a child logger that always includes the given key–value pairs.
	With(args ...any) Logger
}

// Backend names accepted by New.
const (
	BackendSlog = "slog"
	BackendZap  = "zap"
)

// New builds a Logger for the named backend writing JSON to w. Development
// mode lowers the level to debug.
func New(backend string, w io.Writer, development bool) (Logger, error) {
	switch backend {
	case "", BackendSlog:
		level := slog.LevelInfo
		if development {
			level = slog.LevelDebug
		}
		return NewSlogLogger(slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))), nil
	case BackendZap:
		return NewZapLoggerTo(w, development), nil
	default:
		return nil, fmt.Errorf("unknown logger backend %q", backend)
	}
}

// Nop discards everything.
func Nop() Logger {
	return NewZapLogger(zap.NewNop())
}
