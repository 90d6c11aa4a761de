package liveview

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLoggingMiddleware_LevelsByStatus(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	mw := NewLoggingMiddleware(zap.New(core), "/healthz")

	handler := mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/missing":
			http.NotFound(w, r)
		case "/broken":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			w.Write([]byte("ok"))
		}
	}))

	tests := []struct {
		path  string
		level zapcore.Level
	}{
		{"/", zapcore.DebugLevel},
		{"/missing", zapcore.WarnLevel},
		{"/broken", zapcore.ErrorLevel},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, tt.path, nil))

			entries := logs.TakeAll()
			if len(entries) != 1 {
				t.Fatalf("got %d log entries, want 1", len(entries))
			}
			if entries[0].Level != tt.level {
				t.Errorf("level = %v, want %v", entries[0].Level, tt.level)
			}
			if got := entries[0].ContextMap()["path"]; got != tt.path {
				t.Errorf("path field = %v, want %s", got, tt.path)
			}
		})
	}
}

func TestLoggingMiddleware_SkipPaths(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	mw := NewLoggingMiddleware(zap.New(core), "/healthz")

	handler := mw.Handler(okHandler())
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if logs.Len() != 0 {
		t.Errorf("skipped path produced %d log entries", logs.Len())
	}
}

func TestResponseWriterWrapper_Bytes(t *testing.T) {
	rec := httptest.NewRecorder()
	w := &responseWriterWrapper{ResponseWriter: rec, statusCode: http.StatusOK}

	w.Write([]byte("hello"))
	w.WriteHeader(http.StatusTeapot)

	if w.statusCode != http.StatusOK {
		t.Errorf("statusCode = %d, want the implicit 200", w.statusCode)
	}
	if w.bytesWritten != 5 {
		t.Errorf("bytesWritten = %d, want 5", w.bytesWritten)
	}
	if w.Unwrap() != rec {
		t.Error("Unwrap() did not return the underlying writer")
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"forwarded list", map[string]string{"X-Forwarded-For": "198.51.100.1, 10.0.0.1"}, "10.0.0.2:1", "198.51.100.1"},
		{"real ip", map[string]string{"X-Real-IP": "198.51.100.2"}, "10.0.0.2:1", "198.51.100.2"},
		{"remote addr", nil, "192.0.2.5:4242", "192.0.2.5"},
		{"remote without port", nil, "pipe", "pipe"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			if got := clientIP(req); got != tt.want {
				t.Errorf("clientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}
