package metrics

import "sync"

// Ring is a thread-safe, fixed-size FIFO that overwrites its oldest entry
// when full.
type Ring[T any] struct {
	mu   sync.RWMutex
	data []T
	head int // next write
	size int
}

// NewRing creates a Ring holding up to capacity items. Capacities below 1
// are raised to 1.
func NewRing[T any](capacity int) *Ring[T] {
	return &Ring[T]{data: make([]T, max(capacity, 1))}
}

// Push appends item, dropping the oldest entry if the ring is full.
func (r *Ring[T]) Push(item T) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.data[r.head] = item
	r.head = (r.head + 1) % len(r.data)
	if r.size < len(r.data) {
		r.size++
	}
}

// Last returns up to n of the most recent items, oldest first.
func (r *Ring[T]) Last(n int) []T {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n = min(n, r.size)
	if n <= 0 {
		return []T{}
	}
	out := make([]T, n)
	start := r.head - n + len(r.data)
	for i := range out {
		out[i] = r.data[(start+i)%len(r.data)]
	}
	return out
}

// Len returns the number of items held.
func (r *Ring[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.size
}

// Cap returns the ring capacity.
func (r *Ring[T]) Cap() int {
	return len(r.data)
}
