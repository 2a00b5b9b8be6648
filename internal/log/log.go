// Package log wraps zap with a context-aware facade in the same shape as
// the teacher's internal/log package: package-level Debug/Info/Warn/Error
// functions that accept a context.Context, plus Field constructors and a
// hook mechanism for injecting request-scoped fields.
package log

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Field is a re-export of zap.Field so callers never import zap directly.
type Field = zap.Field

func String(key, value string) Field  { return zap.String(key, value) }
func Int(key string, value int) Field { return zap.Int(key, value) }
func Uint64(key string, value uint64) Field {
	return zap.Uint64(key, value)
}
func Bool(key string, value bool) Field { return zap.Bool(key, value) }
func Any(key string, value any) Field   { return zap.Any(key, value) }

// Cause attaches an error under the conventional "error" key.
func Cause(err error) Field { return zap.Error(err) }

// Hook can append extra fields to every log call made with a context,
// e.g. to inject a trace ID. Mirrors tracing.TraceFieldsHooks in the teacher.
type Hook interface {
	Apply(ctx context.Context, msg string) []Field
}

// HookFunc adapts a function to the Hook interface.
type HookFunc func(ctx context.Context, msg string) []Field

func (f HookFunc) Apply(ctx context.Context, msg string) []Field { return f(ctx, msg) }

var (
	mu    sync.RWMutex
	base  = zap.NewNop()
	hooks []Hook
)

// Configure installs the process logger. Call once at startup; safe to
// call again in tests to swap in an observer core.
func Configure(logger *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()

	base = logger
}

// AddHook registers a hook that contributes extra fields to every call.
func AddHook(h Hook) {
	mu.Lock()
	defer mu.Unlock()

	hooks = append(hooks, h)
}

func logger() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()

	return base
}

func withHooks(ctx context.Context, msg string, fields []Field) []Field {
	mu.RLock()
	hs := hooks
	mu.RUnlock()

	for _, h := range hs {
		fields = append(fields, h.Apply(ctx, msg)...)
	}

	return fields
}

func Debug(ctx context.Context, msg string, fields ...Field) {
	logger().Debug(msg, withHooks(ctx, msg, fields)...)
}

func Info(ctx context.Context, msg string, fields ...Field) {
	logger().Info(msg, withHooks(ctx, msg, fields)...)
}

func Warn(ctx context.Context, msg string, fields ...Field) {
	logger().Warn(msg, withHooks(ctx, msg, fields)...)
}

func Error(ctx context.Context, msg string, fields ...Field) {
	logger().Error(msg, withHooks(ctx, msg, fields)...)
}
