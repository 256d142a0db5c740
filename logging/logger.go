// Package logging carries a structured logger on the context so handlers,
// stores and background workers can log with request scoped fields.
package logging

import "context"

type ctxkey struct {
	logger Logger
}

// Logger is the structured logging surface used throughout gatehouse. It is
// modelled on zap's sugared logger, fields are alternating keys and values.
type Logger interface {
	Debugw(msg string, keysAndValues ...interface{})
	Infow(msg string, keysAndValues ...interface{})
	Warnw(msg string, keysAndValues ...interface{})
	Errorw(msg string, keysAndValues ...interface{})

	// Named creates a child logger with the given name.
	Named(name string) Logger

	// With creates a child logger and attaches structured context to it.
	With(field string, value interface{}) Logger
}

// With attaches a logger to the context.
//
// This can be used to create logging scopes like so:
//
//	ctx := With(ctx, FromContext(ctx).Named("sweeper"))
func With(ctx context.Context, logger Logger) context.Context {
	return context.WithValue(ctx, ctxkey{}, &ctxkey{logger: logger})
}

// FromContext returns a scoped logger. If no logger has been attached a no-op
// logger is returned, so callers never need to nil check.
func FromContext(ctx context.Context) Logger {
	if c, ok := ctx.Value(ctxkey{}).(*ctxkey); ok {
		return c.logger
	}
	return nopLogger
}

// EnsureLogger returns a context that has a logger attached, adding a
// development logger if one is not already present.
func EnsureLogger(ctx context.Context) context.Context {
	if _, ok := ctx.Value(ctxkey{}).(*ctxkey); ok {
		return ctx
	}
	return With(ctx, NewDevLogger())
}

// Track a field across the lifetime of the context. Tracked values persist
// back up the call-chain to the request logging middleware, so the final
// request line carries them. Open a new scope with With before tracking inside
// loops.
func Track(ctx context.Context, field string, value interface{}) {
	if c, ok := ctx.Value(ctxkey{}).(*ctxkey); ok {
		c.logger = c.logger.With(field, value)
	}
}

func Debugw(ctx context.Context, msg string, fields ...interface{}) {
	FromContext(ctx).Debugw(msg, fields...)
}

func Infow(ctx context.Context, msg string, fields ...interface{}) {
	FromContext(ctx).Infow(msg, fields...)
}

func Warnw(ctx context.Context, msg string, fields ...interface{}) {
	FromContext(ctx).Warnw(msg, fields...)
}

func Errorw(ctx context.Context, msg string, fields ...interface{}) {
	FromContext(ctx).Errorw(msg, fields...)
}
