package shutdown

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"go_irimager/core"
)

// Priorities used by the capture run. Lower values run first.
const (
	PriorityRecorder  = 10
	PriorityLiveView  = 15
	PriorityCamera    = 20
	PriorityDaemon    = 25
	PriorityStore     = 30
	PriorityTempFiles = 40
	PriorityLogger    = 90
)

type shutdownEntry struct {
	name     string
	fn       core.ShutdownFunc
	priority int
}

// ShutdownRegistry is an ordered set of named cleanup functions. Entries
// with equal priority run in registration order.
type ShutdownRegistry struct {
	mu      sync.Mutex
	entries []shutdownEntry
	closed  bool
}

// NewShutdownRegistry creates a new ShutdownRegistry ready to accept registrations.
func NewShutdownRegistry() *ShutdownRegistry {
	return &ShutdownRegistry{}
}

// Register adds a cleanup function. Registration after Shutdown is a no-op.
func (r *ShutdownRegistry) Register(name string, priority int, fn core.ShutdownFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}
	r.entries = append(r.entries, shutdownEntry{name: name, fn: fn, priority: priority})
}

// sorted returns a priority-ordered copy of the entries. Caller holds r.mu.
func (r *ShutdownRegistry) sorted() []shutdownEntry {
	out := slices.Clone(r.entries)
	slices.SortStableFunc(out, func(a, b shutdownEntry) int {
		return a.priority - b.priority
	})
	return out
}

// Shutdown runs every registered function in priority order, even after
// failures, and returns the errors each wrapped with its handler name. Only
// the first call does anything.
func (r *ShutdownRegistry) Shutdown(ctx context.Context) []error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	entries := r.sorted()
	r.mu.Unlock()

	var errs []error
	for _, entry := range entries {
		if err := entry.fn(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", entry.name, err))
		}
	}
	return errs
}

// Names returns the registered names in execution order.
func (r *ShutdownRegistry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries := r.sorted()
	names := make([]string, len(entries))
	for i, entry := range entries {
		names[i] = entry.name
	}
	return names
}

// Count returns the number of registered shutdown functions.
func (r *ShutdownRegistry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// IsClosed returns true if Shutdown has been called.
func (r *ShutdownRegistry) IsClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}
