package logging

import (
	"strings"

	"go.uber.org/zap/zapcore"
)

// levelNames are the IRIMAGER_LOG_LEVEL values accepted. "warning" is kept
// as an alias because the SDK's own log uses it.
var levelNames = map[string]zapcore.Level{
	"debug":   zapcore.DebugLevel,
	"info":    zapcore.InfoLevel,
	"warn":    zapcore.WarnLevel,
	"warning": zapcore.WarnLevel,
	"error":   zapcore.ErrorLevel,
	"fatal":   zapcore.FatalLevel,
}

// ParseLevel parses a level name case-insensitively. ok is false for
// anything not in the accepted set, including zap's panic levels.
func ParseLevel(s string) (level zapcore.Level, ok bool) {
	level, ok = levelNames[strings.ToLower(strings.TrimSpace(s))]
	return level, ok
}

// ParseLogLevelString is ParseLevel with a fallback:
//
//	level := ParseLogLevelString(cfg.LogLevel, zapcore.InfoLevel)
func ParseLogLevelString(s string, defaultLevel zapcore.Level) zapcore.Level {
	if level, ok := ParseLevel(s); ok {
		return level
	}
	return defaultLevel
}
