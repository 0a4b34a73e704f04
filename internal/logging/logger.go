// Package logging wraps zerolog. Events created from a context carry the active
// span's traceId and spanId.
package logging

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

// logger stays a disabled zero value until Init runs, which keeps tests quiet.
var logger zerolog.Logger

func Init(isDevelopment bool) {
	InitWithWriter(isDevelopment, os.Stdout)
}

// InitWithWriter sends console output at debug level in development and JSON at
// info level otherwise.
func InitWithWriter(isDevelopment bool, out io.Writer) {
	zerolog.TimeFieldFormat = time.RFC3339

	level := zerolog.InfoLevel
	if isDevelopment {
		level = zerolog.DebugLevel
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	ctx := zerolog.New(out).Level(level).With().Timestamp().Str("service", "living")
	if isDevelopment {
		ctx = ctx.Caller()
	}
	logger = ctx.Logger()
}

func Logger() *zerolog.Logger {
	return &logger
}

// Component returns a child logger tagged with the subsystem name.
func Component(name string) zerolog.Logger {
	return logger.With().Str("component", name).Logger()
}

func WithContext(ctx context.Context) zerolog.Logger {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return logger
	}
	return logger.With().
		Str("traceId", sc.TraceID().String()).
		Str("spanId", sc.SpanID().String()).
		Logger()
}

func event(ctx context.Context, level zerolog.Level) *zerolog.Event {
	l := WithContext(ctx)
	return l.WithLevel(level)
}

func Debug(ctx context.Context) *zerolog.Event { return event(ctx, zerolog.DebugLevel) }
func Info(ctx context.Context) *zerolog.Event  { return event(ctx, zerolog.InfoLevel) }
func Warn(ctx context.Context) *zerolog.Event  { return event(ctx, zerolog.WarnLevel) }
func Error(ctx context.Context) *zerolog.Event { return event(ctx, zerolog.ErrorLevel) }
