// Package shutdown coordinates an orderly stop of a capture run: in-flight
// frame reads finish, then the recorder, live view, camera session, daemon
// and capture store are released in priority order.
package shutdown

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// ErrTrackerClosed is returned when trying to start an operation on a closed tracker.
var ErrTrackerClosed = errors.New("operation tracker is closed")

// ErrWaitTimeout is returned when Wait times out before all operations complete.
var ErrWaitTimeout = errors.New("wait timeout: operations did not complete in time")

// OperationTracker counts in-flight operations, such as a native frame read
// and its snapshot write, so shutdown can wait for them before the camera
// session is terminated underneath.
type OperationTracker struct {
	wg     sync.WaitGroup
	mu     sync.Mutex
	active atomic.Int64
	closed bool
}

// NewOperationTracker creates a new OperationTracker ready to track operations.
func NewOperationTracker() *OperationTracker {
	return &OperationTracker{}
}

// Start begins tracking an operation. It returns false once the tracker is
// closed; otherwise the caller must call Done exactly once.
func (t *OperationTracker) Start() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return false
	}
	t.wg.Add(1)
	t.active.Add(1)
	return true
}

// Done marks an operation as complete.
func (t *OperationTracker) Done() {
	t.active.Add(-1)
	t.wg.Done()
}

// Wait blocks until all tracked operations complete or the timeout is reached.
func (t *OperationTracker) Wait(timeout time.Duration) error {
	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-done:
		return nil
	case <-timer.C:
		return ErrWaitTimeout
	}
}

// Close prevents new operations from starting. Operations already in
// progress continue until they call Done.
func (t *OperationTracker) Close() {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
}

// ActiveCount returns the current number of active operations.
func (t *OperationTracker) ActiveCount() int64 {
	return t.active.Load()
}

// IsClosed returns true if the tracker has been closed.
func (t *OperationTracker) IsClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}
