// Package logging provides structured logging for the application, backed by zap.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level controls the minimum severity that gets emitted
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// Field is a single structured log attribute
type Field struct {
	Key   string
	Value interface{}
}

// WithField creates a single log field
func WithField(key string, value interface{}) Field {
	return Field{Key: key, Value: value}
}

// WithFields expands a map into log fields
func WithFields(fields map[string]interface{}) []Field {
	out := make([]Field, 0, len(fields))
	for k, v := range fields {
		out = append(out, Field{Key: k, Value: v})
	}
	return out
}

// Logger wraps a zap logger behind the application's logging API
type Logger struct {
	zl *zap.Logger
}

// New creates a logger writing JSON to stderr at the given level
func New(level Level) *Logger {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapLevel(level))
	cfg.DisableStacktrace = true
	zl, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		// Fall back to a no-op logger rather than failing startup
		zl = zap.NewNop()
	}
	return &Logger{zl: zl}
}

func zapLevel(level Level) zapcore.Level {
	switch level {
	case LevelDebug:
		return zapcore.DebugLevel
	case LevelWarn:
		return zapcore.WarnLevel
	case LevelError:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func (l *Logger) Debug(msg string, fields ...interface{}) {
	l.zl.Debug(msg, zapFields(fields)...)
}

func (l *Logger) Info(msg string, fields ...interface{}) {
	l.zl.Info(msg, zapFields(fields)...)
}

func (l *Logger) Warn(msg string, fields ...interface{}) {
	l.zl.Warn(msg, zapFields(fields)...)
}

func (l *Logger) Error(msg string, fields ...interface{}) {
	l.zl.Error(msg, zapFields(fields)...)
}

// Sync flushes any buffered log entries
func (l *Logger) Sync() {
	_ = l.zl.Sync()
}

// zapFields accepts Field values and []Field slices in any mix
func zapFields(args []interface{}) []zap.Field {
	out := make([]zap.Field, 0, len(args))
	for _, arg := range args {
		switch v := arg.(type) {
		case Field:
			out = append(out, zap.Any(v.Key, v.Value))
		case []Field:
			for _, f := range v {
				out = append(out, zap.Any(f.Key, f.Value))
			}
		}
	}
	return out
}
