package shutdown

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"go_irimager/core"
)

// Manager coordinates graceful shutdown of a capture run. It owns a context
// cancelled on SIGINT/SIGTERM (or Trigger), tracks in-flight operations and
// runs the registered cleanup functions in priority order.
//
//	manager := shutdown.NewManager(logger)
//	manager.Register("camera", shutdown.PriorityCamera, shutdown.TerminateCamera(logger, cam))
//	manager.Start()
//
//	go recorder.Run(manager.Context())
//	manager.Wait()
//	manager.Shutdown()
type Manager struct {
	logger   *zap.Logger
	timeout  time.Duration
	mu       sync.Mutex
	started  bool
	shutdown bool

	ctx    context.Context
	cancel context.CancelFunc

	tracker  *OperationTracker
	registry *ShutdownRegistry
	signals  *SignalCounter

	sigChan chan os.Signal
	// exit is replaced in tests.
	exit func(code int)
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithTimeout sets the shutdown timeout duration. Default is 30 seconds.
func WithTimeout(timeout time.Duration) ManagerOption {
	return func(m *Manager) {
		m.timeout = timeout
	}
}

// WithParent derives the managed context from parent, so cancelling parent
// starts the shutdown too. Used when a service host owns the lifecycle.
func WithParent(parent context.Context) ManagerOption {
	return func(m *Manager) {
		m.cancel()
		m.ctx, m.cancel = context.WithCancel(parent)
	}
}

// NewManager creates a new Manager. A second signal forces exit with
// core.ExitCodeSIGINT.
func NewManager(logger *zap.Logger, opts ...ManagerOption) *Manager {
	ctx, cancel := context.WithCancel(context.Background())

	m := &Manager{
		logger:   logger,
		timeout:  30 * time.Second,
		ctx:      ctx,
		cancel:   cancel,
		tracker:  NewOperationTracker(),
		registry: NewShutdownRegistry(),
		sigChan:  make(chan os.Signal, 1),
		exit:     os.Exit,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.signals = NewSignalCounter(2, func() {
		m.logger.Warn("Received second signal, forcing immediate shutdown")
		m.exit(core.ExitCodeSIGINT)
	})

	return m
}

// Context returns the managed context that will be cancelled during shutdown.
func (m *Manager) Context() context.Context {
	return m.ctx
}

// Register adds a cleanup function to be called during shutdown. See the
// Priority constants for the order used by a capture run.
func (m *Manager) Register(name string, priority int, fn core.ShutdownFunc) {
	m.registry.Register(name, priority, fn)
	m.logger.Debug("Registered shutdown handler",
		zap.String("name", name),
		zap.Int("priority", priority),
	)
}

// Start begins signal handling for SIGINT and SIGTERM. Safe to call more
// than once.
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started {
		return
	}
	m.started = true

	signal.Notify(m.sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		for sig := range m.sigChan {
			if m.signals.Increment() == 1 {
				m.logger.Info("Received shutdown signal, stopping capture",
					zap.String("signal", sig.String()),
				)
				m.cancel()
			}
		}
	}()
}

// Trigger cancels the managed context as if a signal had arrived.
func (m *Manager) Trigger() {
	m.cancel()
}

// Shutdown stops accepting operations, waits for in-flight ones within the
// timeout, then runs the cleanup functions with whatever time remains (at
// least one second). It is idempotent.
func (m *Manager) Shutdown() error {
	m.mu.Lock()
	if m.shutdown {
		m.mu.Unlock()
		return nil
	}
	m.shutdown = true
	started := m.started
	m.mu.Unlock()

	m.cancel()
	if started {
		signal.Stop(m.sigChan)
		close(m.sigChan)
	}

	startTime := time.Now()
	m.logger.Info("Initiating graceful shutdown",
		zap.Duration("timeout", m.timeout),
		zap.Int("registered_handlers", m.registry.Count()),
	)

	m.tracker.Close()
	if active := m.tracker.ActiveCount(); active > 0 {
		m.logger.Info("Waiting for in-flight operations", zap.Int64("active_count", active))
	}
	if err := m.tracker.Wait(m.timeout); err != nil {
		m.logger.Warn("Timeout waiting for in-flight operations",
			zap.Duration("waited", time.Since(startTime)),
			zap.Int64("remaining_ops", m.tracker.ActiveCount()),
		)
	}

	remaining := max(m.timeout-time.Since(startTime), time.Second)
	ctx, cancel := context.WithTimeout(context.Background(), remaining)
	defer cancel()

	m.logger.Debug("Executing cleanup functions", zap.Strings("handlers", m.registry.Names()))
	errs := m.registry.Shutdown(ctx)
	for _, err := range errs {
		m.logger.Error("Cleanup function failed", zap.Error(err))
	}

	duration := time.Since(startTime)
	if len(errs) > 0 {
		return fmt.Errorf("shutdown had %d errors: %w", len(errs), errors.Join(errs...))
	}

	m.logger.Info("Graceful shutdown completed", zap.Duration("duration", duration))
	return nil
}

// Wait blocks until the managed context is cancelled.
func (m *Manager) Wait() {
	<-m.ctx.Done()
}

// WrapOperation runs fn as a tracked in-flight operation. It returns
// ErrTrackerClosed without running fn once shutdown has begun, and the
// context error if ctx or the managed context is already done.
func (m *Manager) WrapOperation(ctx context.Context, name string, fn func(context.Context) error) error {
	if !m.tracker.Start() {
		m.logger.Debug("Operation rejected, shutting down", zap.String("operation", name))
		return ErrTrackerClosed
	}
	defer m.tracker.Done()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-m.ctx.Done():
		return context.Canceled
	default:
	}

	return fn(ctx)
}

// ActiveOperations returns the count of currently in-flight operations.
func (m *Manager) ActiveOperations() int64 {
	return m.tracker.ActiveCount()
}

// IsShuttingDown returns true if shutdown has been initiated.
func (m *Manager) IsShuttingDown() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.shutdown || m.tracker.IsClosed()
}

// RegisteredHandlers returns the handler names in execution order.
func (m *Manager) RegisteredHandlers() []string {
	return m.registry.Names()
}
