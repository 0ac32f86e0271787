package utils

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the structured logger for the application
type Logger struct {
	zl *zap.Logger
}

// NewLogger creates a JSON logger writing at the given level
func NewLogger(level string) (*Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.EncoderConfig.TimeKey = "time"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	zl, err := cfg.Build()
	if err != nil {
		return nil, err
	}

	return &Logger{zl: zl}, nil
}

// NewLoggerFromZap wraps an existing zap logger
func NewLoggerFromZap(zl *zap.Logger) *Logger {
	return &Logger{zl: zl}
}

// NopLogger returns a logger that discards everything
func NopLogger() *Logger {
	return &Logger{zl: zap.NewNop()}
}

func (l *Logger) must() *zap.Logger {
	if l == nil || l.zl == nil {
		return zap.NewNop()
	}
	return l.zl
}

// Debug logs a debug message
func (l *Logger) Debug(msg string, fields ...zap.Field) {
	l.must().Debug(msg, fields...)
}

// Info logs an informational message
func (l *Logger) Info(msg string, fields ...zap.Field) {
	l.must().Info(msg, fields...)
}

// Warn logs a warning message
func (l *Logger) Warn(msg string, fields ...zap.Field) {
	l.must().Warn(msg, fields...)
}

// Error logs an error message
func (l *Logger) Error(msg string, fields ...zap.Field) {
	l.must().Error(msg, fields...)
}

// With returns a child logger carrying the given fields
func (l *Logger) With(fields ...zap.Field) *Logger {
	return &Logger{zl: l.must().With(fields...)}
}

// Sync flushes buffered log entries
func (l *Logger) Sync() error {
	return l.must().Sync()
}
