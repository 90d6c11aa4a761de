package logging

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap/zapcore"
)

// NewMultiCore creates a zapcore.Core that tees output to stderr and to a
// rotating log file (see NewFileWriter). Stdout is left to command output.
//
// The file always uses JSON encoding. The console uses colored,
// human-readable lines when isDev is true and JSON otherwise.
//
// The parent directory of filePath is created if missing.
func NewMultiCore(level zapcore.Level, filePath string, isDev bool) (zapcore.Core, error) {
	if dir := filepath.Dir(filePath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
	}
	return NewMultiCoreWithWriters(level, zapcore.Lock(os.Stderr), NewFileWriter(filePath), isDev), nil
}

// NewMultiCoreWithWriters creates a zapcore.Core that tees output to the
// provided writers, useful for tests.
//
//	var buf bytes.Buffer
//	core := NewMultiCoreWithWriters(zapcore.DebugLevel, os.Stderr, zapcore.AddSync(&buf), true)
func NewMultiCoreWithWriters(level zapcore.Level, consoleWriter, fileWriter zapcore.WriteSyncer, isDev bool) zapcore.Core {
	fileCore := zapcore.NewCore(
		zapcore.NewJSONEncoder(NewEncoderConfig()),
		fileWriter,
		level,
	)

	var consoleEncoder zapcore.Encoder
	if isDev {
		consoleEncoder = zapcore.NewConsoleEncoder(NewConsoleEncoderConfig())
	} else {
		consoleEncoder = zapcore.NewJSONEncoder(NewEncoderConfig())
	}

	consoleCore := zapcore.NewCore(
		consoleEncoder,
		consoleWriter,
		level,
	)

	return zapcore.NewTee(consoleCore, fileCore)
}
