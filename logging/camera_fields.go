package logging

import (
	"errors"

	"go.uber.org/zap"

	"go_irimager/irimager"
)

// FrameFields wraps frame metrics in a single "frame" object field.
//
//	logger.Info("frame captured", logging.FrameFields(m))
func FrameFields(m FrameMetrics) zap.Field {
	return zap.Object("frame", m)
}

// NativeErrorFields describes err for logging. For an *irimager.Error it
// adds the native operation, the raw status code and its severity.
func NativeErrorFields(err error) []zap.Field {
	fields := []zap.Field{zap.Error(err)}

	var nerr *irimager.Error
	if !errors.As(err, &nerr) {
		return fields
	}

	severity := "error"
	switch {
	case nerr.Fatal():
		severity = "fatal"
	case irimager.IsRecoverable(nerr):
		severity = "recoverable"
	}
	return append(fields,
		zap.String("native_op", nerr.Op),
		zap.Int32("native_code", int32(nerr.Code)),
		zap.String("severity", severity),
	)
}

// SessionFields identifies a capture session and how the camera is reached.
func SessionFields(sessionID, transport string) []zap.Field {
	return []zap.Field{
		zap.String("session_id", sessionID),
		zap.String("transport", transport),
	}
}
