package logging

import (
	"go.uber.org/zap"
)

var nopLogger Logger = NewZapLogger(zap.NewNop())

// NewDevLogger returns a zap logger that prints dev friendly output.
func NewDevLogger() Logger {
	l, _ := zap.NewDevelopment(zap.AddCallerSkip(2))
	return NewZapLogger(l)
}

// NewProdLogger returns a zap logger that outputs JSON.
func NewProdLogger() Logger {
	l, _ := zap.NewProduction(zap.AddCallerSkip(2))
	return NewZapLogger(l)
}

// NewLogger returns the logger for log.format, "prod" or "json" for
// structured output and anything else for the development logger.
func NewLogger(format string) Logger {
	switch format {
	case "prod", "json":
		return NewProdLogger()
	default:
		return NewDevLogger()
	}
}

// NewZapLogger adapts an existing zap logger, useful when tests want to
// observe output with zaptest/observer.
func NewZapLogger(l *zap.Logger) *ZapLogger {
	return &ZapLogger{z: l.Sugar()}
}

// NewNopLogger returns a logger that discards everything.
func NewNopLogger() Logger {
	return nopLogger
}

// ZapLogger adapts a zap SugaredLogger to Logger.
type ZapLogger struct {
	z *zap.SugaredLogger
}

// Sync flushes any buffered log entries.
func (z *ZapLogger) Sync() error {
	return z.z.Sync()
}

func (z *ZapLogger) Debugw(msg string, keysAndValues ...interface{}) {
	z.z.Debugw(msg, keysAndValues...)
}

func (z *ZapLogger) Infow(msg string, keysAndValues ...interface{}) {
	z.z.Infow(msg, keysAndValues...)
}

func (z *ZapLogger) Warnw(msg string, keysAndValues ...interface{}) {
	z.z.Warnw(msg, keysAndValues...)
}

func (z *ZapLogger) Errorw(msg string, keysAndValues ...interface{}) {
	z.z.Errorw(msg, keysAndValues...)
}

func (z *ZapLogger) Named(name string) Logger {
	return &ZapLogger{z: z.z.Named(name)}
}

func (z *ZapLogger) With(field string, value interface{}) Logger {
	return &ZapLogger{z: z.z.With(field, value)}
}
