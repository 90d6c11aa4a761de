package db

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultChannelCapacity is the default buffer size for queued frame rows.
// At one frame per second this is well over a minute of backlog.
const DefaultChannelCapacity = 100

// DefaultDrainTimeout bounds how long Close waits for queued writes.
const DefaultDrainTimeout = 30 * time.Second

// WriteOperation is one queued write.
type WriteOperation struct {
	Data      any
	Timestamp time.Time
}

// WriteHandler performs one queued write.
type WriteHandler func(op WriteOperation) error

// AsyncWriter runs writes on a background goroutine so a slow disk never
// stalls frame acquisition. A full queue drops the write instead of
// blocking; Repository falls back to a synchronous insert in that case.
type AsyncWriter struct {
	writeChan chan WriteOperation
	handler   WriteHandler
	onError   func(WriteOperation, error)
	drain     time.Duration

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.RWMutex
	started bool
	closed  bool

	written atomic.Int64
	failed  atomic.Int64
	dropped atomic.Int64
}

// AsyncWriterConfig holds configuration for the async writer.
type AsyncWriterConfig struct {
	ChannelCapacity int
	DrainTimeout    time.Duration
	// OnError is called from the writer goroutine for each failed write.
	OnError func(op WriteOperation, err error)
}

// AsyncWriterStats is a snapshot of writer counters.
type AsyncWriterStats struct {
	Written int64
	Failed  int64
	Dropped int64
	Pending int
}

// DefaultAsyncWriterConfig returns the default configuration.
func DefaultAsyncWriterConfig() AsyncWriterConfig {
	return AsyncWriterConfig{
		ChannelCapacity: DefaultChannelCapacity,
		DrainTimeout:    DefaultDrainTimeout,
	}
}

// NewAsyncWriter creates a writer with the default configuration.
func NewAsyncWriter(handler WriteHandler) *AsyncWriter {
	return NewAsyncWriterWithConfig(handler, DefaultAsyncWriterConfig())
}

// NewAsyncWriterWithConfig creates a writer. Call Start before writing.
func NewAsyncWriterWithConfig(handler WriteHandler, config AsyncWriterConfig) *AsyncWriter {
	if config.ChannelCapacity <= 0 {
		config.ChannelCapacity = DefaultChannelCapacity
	}
	if config.DrainTimeout <= 0 {
		config.DrainTimeout = DefaultDrainTimeout
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &AsyncWriter{
		writeChan: make(chan WriteOperation, config.ChannelCapacity),
		handler:   handler,
		onError:   config.OnError,
		drain:     config.DrainTimeout,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start launches the background goroutine. Extra calls are no-ops.
func (w *AsyncWriter) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.started || w.closed {
		return
	}
	w.started = true
	w.wg.Add(1)
	go w.processWrites()
}

func (w *AsyncWriter) processWrites() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			w.drainChannel()
			return
		case op := <-w.writeChan:
			w.handle(op)
		}
	}
}

func (w *AsyncWriter) handle(op WriteOperation) {
	if err := w.handler(op); err != nil {
		w.failed.Add(1)
		if w.onError != nil {
			w.onError(op, err)
		}
		return
	}
	w.written.Add(1)
}

// drainChannel handles whatever is still queued.
func (w *AsyncWriter) drainChannel() {
	for {
		select {
		case op := <-w.writeChan:
			w.handle(op)
		default:
			return
		}
	}
}

// Write queues data without blocking. It returns false when the queue is
// full or the writer is closed.
func (w *AsyncWriter) Write(data any) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.closed {
		return false
	}
	select {
	case w.writeChan <- WriteOperation{Data: data, Timestamp: time.Now()}:
		return true
	default:
		w.dropped.Add(1)
		return false
	}
}

// Pending returns the number of queued writes.
func (w *AsyncWriter) Pending() int {
	return len(w.writeChan)
}

// Stats returns the writer counters.
func (w *AsyncWriter) Stats() AsyncWriterStats {
	return AsyncWriterStats{
		Written: w.written.Load(),
		Failed:  w.failed.Load(),
		Dropped: w.dropped.Load(),
		Pending: w.Pending(),
	}
}

// IsStarted reports whether the background goroutine is running.
func (w *AsyncWriter) IsStarted() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.started && !w.closed
}

// Close rejects new writes, then drains the queue within the configured
// drain timeout. It returns false if the drain timed out. Writes queued on
// a writer that was never started are handled synchronously here.
func (w *AsyncWriter) Close() bool {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return true
	}
	w.closed = true
	started := w.started
	w.mu.Unlock()

	w.cancel()
	if !started {
		w.drainChannel()
		return true
	}

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(w.drain)
	defer timer.Stop()

	select {
	case <-done:
		return true
	case <-timer.C:
		return false
	}
}
