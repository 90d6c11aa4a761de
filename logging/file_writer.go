package logging

import (
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Rotation defaults for the application log.
const (
	DefaultMaxSizeMB  = 100
	DefaultMaxBackups = 5
	DefaultMaxAgeDays = 30
	DefaultCompress   = true
)

// FileWriterConfig controls log file rotation. Zero numeric fields take the
// defaults above.
type FileWriterConfig struct {
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
	// LocalTime names backups with local rather than UTC timestamps.
	LocalTime bool
}

// DefaultFileWriterConfig returns a FileWriterConfig with default values.
func DefaultFileWriterConfig() FileWriterConfig {
	return FileWriterConfig{
		MaxSizeMB:  DefaultMaxSizeMB,
		MaxBackups: DefaultMaxBackups,
		MaxAgeDays: DefaultMaxAgeDays,
		Compress:   DefaultCompress,
	}
}

// NewFileWriter creates a rotating zapcore.WriteSyncer with the default
// configuration.
func NewFileWriter(path string) zapcore.WriteSyncer {
	return NewFileWriterWithConfig(path, DefaultFileWriterConfig())
}

// NewFileWriterWithConfig creates a rotating zapcore.WriteSyncer backed by
// lumberjack.
func NewFileWriterWithConfig(path string, config FileWriterConfig) zapcore.WriteSyncer {
	cfg := applyFileWriterDefaults(config)

	return zapcore.AddSync(&lumberjack.Logger{
		Filename:   path,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
		LocalTime:  cfg.LocalTime,
	})
}

// applyFileWriterDefaults fills in zero numeric values. Compress cannot be
// defaulted this way since false is meaningful; use DefaultFileWriterConfig.
func applyFileWriterDefaults(config FileWriterConfig) FileWriterConfig {
	if config.MaxSizeMB == 0 {
		config.MaxSizeMB = DefaultMaxSizeMB
	}
	if config.MaxBackups == 0 {
		config.MaxBackups = DefaultMaxBackups
	}
	if config.MaxAgeDays == 0 {
		config.MaxAgeDays = DefaultMaxAgeDays
	}
	return config
}
