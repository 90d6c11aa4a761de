package liveview

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"net"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"go_irimager/capture"
	"go_irimager/irimager"
	"go_irimager/liveview/static"
	"go_irimager/metrics"
)

// StatusSource reports the state of the capture loop. *capture.Recorder
// implements it.
type StatusSource interface {
	Stats() capture.RunStats
}

// StatusSourceFunc adapts a function to StatusSource.
type StatusSourceFunc func() capture.RunStats

// Stats calls f.
func (f StatusSourceFunc) Stats() capture.RunStats {
	return f()
}

// MetricsSource reports recorded camera operations. *metrics.Store
// implements it.
type MetricsSource interface {
	Summary() metrics.Summary
	Recent(limit int) []metrics.OperationRecord
}

// LifecycleSource reports the shutdown state of the capture run.
type LifecycleSource interface {
	IsShuttingDown() bool
	ActiveOperations() int64
}

// Health is the body of GET /healthz.
type Health struct {
	Status           string `json:"status"`
	ActiveOperations int64  `json:"active_operations"`
}

// MetricsResponse is the body of GET /api/metrics.
type MetricsResponse struct {
	Summary metrics.Summary           `json:"summary"`
	Recent  []metrics.OperationRecord `json:"recent"`
}

const (
	defaultMetricsLimit = 20
	maxMetricsLimit     = 200
)

// ServerConfig holds configuration for the live view server.
type ServerConfig struct {
	Addr string
	// PasswordHash is a bcrypt hash; empty disables authentication.
	PasswordHash    string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	// AuthCleanupInterval is how often expired failed-login records are
	// pruned while serving.
	AuthCleanupInterval time.Duration
	// ImageScale upscales images served to browsers.
	ImageScale   int
	LogSkipPaths []string
}

// DefaultServerConfig returns the default configuration.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:                "localhost:8080",
		ReadTimeout:         15 * time.Second,
		WriteTimeout:        15 * time.Second,
		IdleTimeout:         120 * time.Second,
		ShutdownTimeout:     10 * time.Second,
		AuthCleanupInterval: 5 * time.Minute,
		ImageScale:          4,
		LogSkipPaths:        []string{"/healthz", "/api/status"},
	}
}

// Status is the body of GET /api/status.
type Status struct {
	SessionID   string          `json:"session_id"`
	StartedAt   *time.Time      `json:"started_at,omitempty"`
	Frames      int64           `json:"frames"`
	Retries     int64           `json:"retries"`
	LastFrameAt *time.Time      `json:"last_frame_at,omitempty"`
	Latest      *irimager.Stats `json:"latest,omitempty"`
	Clients     int             `json:"clients"`
}

// Server serves the live view.
type Server struct {
	httpServer  *http.Server
	mux         *http.ServeMux
	config      ServerConfig
	logger      *zap.Logger
	source      StatusSource
	metrics     MetricsSource
	lifecycle   LifecycleSource
	auth        *BasicAuth
	loggingMw   *LoggingMiddleware
	broadcaster *Broadcaster
}

// NewServer creates a live view server. source may be nil, in which case
// /api/status reports only the client count.
func NewServer(config ServerConfig, source StatusSource, logger *zap.Logger) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	def := DefaultServerConfig()
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = def.ShutdownTimeout
	}
	if config.AuthCleanupInterval <= 0 {
		config.AuthCleanupInterval = def.AuthCleanupInterval
	}
	if config.ImageScale < 1 {
		config.ImageScale = 1
	}

	auth, err := NewBasicAuth(config.PasswordHash, nil, logger)
	if err != nil {
		return nil, fmt.Errorf("live view password hash: %w", err)
	}

	bcfg := DefaultBroadcasterConfig()
	bcfg.ImageScale = config.ImageScale

	s := &Server{
		mux:         http.NewServeMux(),
		config:      config,
		logger:      logger,
		source:      source,
		auth:        auth,
		loggingMw:   NewLoggingMiddleware(logger.Named("http"), config.LogSkipPaths...),
		broadcaster: NewBroadcaster(bcfg, logger),
	}
	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         config.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}

	logger.Info("live view server created",
		zap.String("addr", config.Addr),
		zap.Bool("auth_enabled", auth.Enabled()),
	)
	return s, nil
}

func (s *Server) setupRoutes() {
	// Health stays open for service managers.
	s.mux.HandleFunc("GET /healthz", s.handleHealth)

	s.mux.Handle("GET /ws", s.auth.Middleware(http.HandlerFunc(s.broadcaster.HandleConnection)))
	s.mux.Handle("GET /snapshot.png", s.auth.Middleware(http.HandlerFunc(s.handleSnapshot)))
	s.mux.Handle("GET /api/status", s.auth.Middleware(http.HandlerFunc(s.handleStatus)))
	s.mux.Handle("GET /api/metrics", s.auth.Middleware(http.HandlerFunc(s.handleMetrics)))
	s.mux.Handle("GET /{$}", s.auth.Middleware(http.HandlerFunc(s.handleIndex)))
}

// Handler returns the root handler with request logging.
func (s *Server) Handler() http.Handler {
	return s.loggingMw.Handler(s.mux)
}

// SetLifecycle makes /healthz report 503 once shutdown has begun. Call it
// before Start.
func (s *Server) SetLifecycle(l LifecycleSource) {
	s.lifecycle = l
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	h := Health{Status: "ok"}
	code := http.StatusOK
	if s.lifecycle != nil {
		h.ActiveOperations = s.lifecycle.ActiveOperations()
		if s.lifecycle.IsShuttingDown() {
			h.Status = "shutting_down"
			code = http.StatusServiceUnavailable
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(h); err != nil {
		s.logger.Debug("failed to write health", zap.Error(err))
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	data, err := static.ReadFile("index.html")
	if err != nil {
		http.Error(w, "page not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Write(data)
}

// handleSnapshot serves the latest frame as PNG. ?kind=thermal returns the
// contrast-stretched thermal image instead of the palette image.
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	latest := s.broadcaster.Latest()
	if latest == nil {
		http.Error(w, "no frame captured yet", http.StatusServiceUnavailable)
		return
	}

	var img image.Image
	switch kind := r.URL.Query().Get("kind"); kind {
	case "", "palette":
		if latest.Palette == nil {
			http.Error(w, "no palette frame", http.StatusNotFound)
			return
		}
		img = latest.Palette.RGBA()
	case "thermal":
		if latest.Thermal == nil {
			http.Error(w, "no thermal frame", http.StatusNotFound)
			return
		}
		img = latest.Thermal.Gray16()
	default:
		http.Error(w, fmt.Sprintf("unknown kind %q", kind), http.StatusBadRequest)
		return
	}

	data, err := capture.PNGBytes(irimager.Scale(img, s.config.ImageScale))
	if err != nil {
		s.logger.Error("failed to encode snapshot", zap.Error(err))
		http.Error(w, "encode failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(data)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.Status()); err != nil {
		s.logger.Debug("failed to write status", zap.Error(err))
	}
}

// SetMetrics enables GET /api/metrics. Call it before Start.
func (s *Server) SetMetrics(m MetricsSource) {
	s.metrics = m
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if s.metrics == nil {
		http.NotFound(w, r)
		return
	}

	limit := defaultMetricsLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			http.Error(w, "limit must be a non-negative integer", http.StatusBadRequest)
			return
		}
		limit = min(n, maxMetricsLimit)
	}

	w.Header().Set("Content-Type", "application/json")
	resp := MetricsResponse{
		Summary: s.metrics.Summary(),
		Recent:  s.metrics.Recent(limit),
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Debug("failed to write metrics", zap.Error(err))
	}
}

// Status returns the current capture and client status.
func (s *Server) Status() Status {
	st := Status{Clients: s.broadcaster.ClientCount()}
	if s.source == nil {
		return st
	}

	run := s.source.Stats()
	st.SessionID = run.SessionID
	st.Frames = run.Frames
	st.Retries = run.Retries
	if !run.StartedAt.IsZero() {
		st.StartedAt = &run.StartedAt
	}
	if !run.LastFrameAt.IsZero() {
		st.LastFrameAt = &run.LastFrameAt
		st.Latest = &run.Latest
	}
	return st
}

// Start runs the broadcaster and listens on the configured address until
// Shutdown is called.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return fmt.Errorf("live view listen: %w", err)
	}
	return s.Serve(ctx, ln)
}

// Serve is like Start but accepts connections on ln. Expired rate limit
// records are pruned until ctx is done.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	go s.broadcaster.Start(ctx)
	s.auth.limiter.StartCleanupTicker(ctx, s.config.AuthCleanupInterval)

	s.logger.Info("live view server starting", zap.String("addr", ln.Addr().String()))

	err := s.httpServer.Serve(ln)
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("live view server error: %w", err)
	}
	return nil
}

// Shutdown disconnects WebSocket clients and stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down live view server")

	// Hijacked WebSocket connections are not tracked by http.Server.
	s.broadcaster.Close()

	shutdownCtx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("live view shutdown: %w", err)
	}

	s.logger.Info("live view server stopped")
	return nil
}

// Broadcaster returns the frame publisher to hand to the capture recorder.
func (s *Server) Broadcaster() *Broadcaster {
	return s.broadcaster
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}
