package liveview

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// LoggingMiddleware logs every request with method, path, status and
// duration. Paths in skipPaths are served without logging.
type LoggingMiddleware struct {
	logger    *zap.Logger
	skipPaths map[string]bool
}

// NewLoggingMiddleware creates a LoggingMiddleware.
func NewLoggingMiddleware(logger *zap.Logger, skipPaths ...string) *LoggingMiddleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	skip := make(map[string]bool, len(skipPaths))
	for _, p := range skipPaths {
		skip[p] = true
	}
	return &LoggingMiddleware{logger: logger, skipPaths: skip}
}

// Handler wraps next with request logging.
func (m *LoggingMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.skipPaths[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		wrapped := &responseWriterWrapper{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next.ServeHTTP(wrapped, r)

		fields := []zap.Field{
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", wrapped.statusCode),
			zap.Duration("duration", time.Since(start)),
			zap.String("remote", clientIP(r)),
			zap.Int64("bytes", wrapped.bytesWritten),
		}
		switch {
		case wrapped.statusCode >= 500:
			m.logger.Error("http request", fields...)
		case wrapped.statusCode >= 400:
			m.logger.Warn("http request", fields...)
		default:
			m.logger.Debug("http request", fields...)
		}
	})
}

// responseWriterWrapper captures the status code and response size. It
// forwards Hijack so WebSocket upgrades work through the middleware.
type responseWriterWrapper struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int64
	wroteHeader  bool
}

func (w *responseWriterWrapper) WriteHeader(statusCode int) {
	if !w.wroteHeader {
		w.statusCode = statusCode
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *responseWriterWrapper) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytesWritten += int64(n)
	return n, err
}

func (w *responseWriterWrapper) Flush() {
	if flusher, ok := w.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func (w *responseWriterWrapper) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	// A hijacked upgrade reports 101 Switching Protocols.
	w.statusCode = http.StatusSwitchingProtocols
	w.wroteHeader = true
	return hijacker.Hijack()
}

func (w *responseWriterWrapper) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// clientIP returns the first X-Forwarded-For entry, X-Real-IP, or the
// host part of RemoteAddr.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
