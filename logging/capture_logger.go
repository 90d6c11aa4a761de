package logging

import (
	"time"

	"go.uber.org/zap"

	"go_irimager/irimager"
)

// CaptureLogger logs the lifecycle of a capture session: frames, retries
// and native failures, with the session id attached to every entry.
//
//	cl := NewCaptureLogger(logger).WithSession(id, "usb")
//	timer := cl.StartFrame(seq)
//	thermal, palette, err := cam.ReadThermalAndPalette(ts, ps)
//	cl.EndFrame(timer, thermal, palette)
type CaptureLogger struct {
	logger *Logger
}

// NewCaptureLogger creates a CaptureLogger wrapping the given Logger.
func NewCaptureLogger(logger *Logger) *CaptureLogger {
	return &CaptureLogger{logger: logger.Named("capture")}
}

// WithSession returns a CaptureLogger that tags entries with the session.
func (cl *CaptureLogger) WithSession(sessionID, transport string) *CaptureLogger {
	return &CaptureLogger{logger: cl.logger.With(SessionFields(sessionID, transport)...)}
}

// FrameTimer tracks one frame from the first read attempt.
type FrameTimer struct {
	Seq       int64
	StartTime time.Time
	Attempts  int
}

// StartFrame begins timing frame seq.
func (cl *CaptureLogger) StartFrame(seq int64) *FrameTimer {
	return &FrameTimer{Seq: seq, StartTime: time.Now()}
}

// EndFrame logs the completed frame at debug level and returns its metrics.
func (cl *CaptureLogger) EndFrame(timer *FrameTimer, thermal *irimager.ThermalFrame, palette *irimager.PaletteFrame) FrameMetrics {
	attempts := max(timer.Attempts, 1)
	m := NewFrameMetrics(timer.Seq, thermal, palette, attempts, time.Since(timer.StartTime))
	cl.logger.Debug("frame captured", FrameFields(m))
	return m
}

// LogRetry records a recoverable read failure that will be retried.
func (cl *CaptureLogger) LogRetry(timer *FrameTimer, err error, backoff time.Duration) {
	fields := append(NativeErrorFields(err),
		zap.Int64("seq", timer.Seq),
		zap.Int("attempt", timer.Attempts),
		zap.Duration("backoff", backoff),
	)
	cl.logger.Warn("frame read failed, retrying", fields...)
}

// LogNativeError records a native failure that ends the current operation.
func (cl *CaptureLogger) LogNativeError(msg string, err error) {
	cl.logger.Error(msg, NativeErrorFields(err)...)
}

// Info logs an info message with session context.
func (cl *CaptureLogger) Info(msg string, fields ...zap.Field) {
	cl.logger.Info(msg, fields...)
}

// Warn logs a warning message with session context.
func (cl *CaptureLogger) Warn(msg string, fields ...zap.Field) {
	cl.logger.Warn(msg, fields...)
}

// Logger returns the wrapped Logger.
func (cl *CaptureLogger) Logger() *Logger {
	return cl.logger
}
