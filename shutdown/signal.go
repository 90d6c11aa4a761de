package shutdown

import "sync"

// SignalCounter counts shutdown signals and calls onForce once the count
// reaches forceAfter: the first Ctrl+C stops gracefully, the second exits.
type SignalCounter struct {
	mu         sync.Mutex
	count      int
	forceAfter int
	onForce    func()
}

// NewSignalCounter creates a new SignalCounter. onForce may be nil.
func NewSignalCounter(forceAfter int, onForce func()) *SignalCounter {
	return &SignalCounter{
		forceAfter: forceAfter,
		onForce:    onForce,
	}
}

// Increment increases the signal count by one and returns the new count.
// onForce runs under the lock and should exit the process or return quickly.
func (s *SignalCounter) Increment() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.count++
	if s.count >= s.forceAfter && s.onForce != nil {
		s.onForce()
	}
	return s.count
}

// Count returns the current signal count.
func (s *SignalCounter) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}
