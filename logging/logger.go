package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps zap.Logger and redacts sensitive fields (see
// IsSensitiveField) before they reach any sink.
//
//	logger, err := NewLogger(cfg.DevMode, cfg.LogFile)
//	if err != nil {
//	    return err
//	}
//	defer logger.Sync()
//
//	logger.Info("camera connected", zap.String("transport", "usb"))
type Logger struct {
	zap *zap.Logger

	isDevelopment bool
	logFilePath   string
}

// NewLogger creates a Logger at debug level in development and info level
// otherwise.
func NewLogger(isDevelopment bool, logFilePath string) (*Logger, error) {
	level := zapcore.InfoLevel
	if isDevelopment {
		level = zapcore.DebugLevel
	}
	return NewLoggerWithLevel(level, isDevelopment, logFilePath)
}

// NewLoggerWithLevel creates a Logger writing to stderr and to a rotating
// JSON file at logFilePath.
func NewLoggerWithLevel(level zapcore.Level, isDevelopment bool, logFilePath string) (*Logger, error) {
	core, err := NewMultiCore(level, logFilePath, isDevelopment)
	if err != nil {
		return nil, fmt.Errorf("failed to create log core: %w", err)
	}
	l := NewLoggerWithCore(core)
	l.isDevelopment, l.logFilePath = isDevelopment, logFilePath
	return l, nil
}

// NewLoggerWithCore wraps an existing core, for tests and embedding.
func NewLoggerWithCore(core zapcore.Core) *Logger {
	// Skip this wrapper so callers are reported, not logger.go.
	return &Logger{zap: zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))}
}

// Sync flushes buffered entries. A nil Logger is a no-op.
func (l *Logger) Sync() error {
	if l == nil || l.zap == nil {
		return nil
	}
	return l.zap.Sync()
}

func (l *Logger) Debug(msg string, fields ...zap.Field) {
	l.zap.Debug(msg, redactFields(fields)...)
}

func (l *Logger) Info(msg string, fields ...zap.Field) {
	l.zap.Info(msg, redactFields(fields)...)
}

func (l *Logger) Warn(msg string, fields ...zap.Field) {
	l.zap.Warn(msg, redactFields(fields)...)
}

func (l *Logger) Error(msg string, fields ...zap.Field) {
	l.zap.Error(msg, redactFields(fields)...)
}

// With returns a child logger whose entries all carry fields.
func (l *Logger) With(fields ...zap.Field) *Logger {
	child := *l
	child.zap = l.zap.With(redactFields(fields)...)
	return &child
}

// Named adds a sub-logger name, e.g. "capture".
func (l *Logger) Named(name string) *Logger {
	child := *l
	child.zap = l.zap.Named(name)
	return &child
}

// Zap returns the underlying zap.Logger, without the wrapper's caller skip,
// for packages that take a *zap.Logger (irimager, liveview, shutdown).
// Entries logged through it bypass redaction.
func (l *Logger) Zap() *zap.Logger {
	return l.zap.WithOptions(zap.AddCallerSkip(-1))
}

func (l *Logger) IsDevelopment() bool {
	return l.isDevelopment
}

// LogFilePath returns the rotating log file path, empty for NewLoggerWithCore.
func (l *Logger) LogFilePath() string {
	return l.logFilePath
}

func redactFields(fields []zap.Field) []zap.Field {
	if len(fields) == 0 {
		return fields
	}
	out := make([]zap.Field, len(fields))
	for i, f := range fields {
		out[i] = redactField(f)
	}
	return out
}

func redactField(f zap.Field) zap.Field {
	switch {
	case IsSensitiveField(f.Key):
		return zap.String(f.Key, RedactedPlaceholder)
	case f.Type == zapcore.StringType && ContainsSensitiveData(f.String):
		return zap.String(f.Key, RedactField(f.Key, f.String))
	}
	return f
}
