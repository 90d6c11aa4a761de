package liveview

import (
	"context"
	"sync"
	"time"
)

// attemptRecord counts failed attempts until ResetAt.
type attemptRecord struct {
	Count   int
	ResetAt time.Time
}

func (a attemptRecord) expired(now time.Time) bool {
	return !now.Before(a.ResetAt)
}

// RateLimiter blocks clients after repeated failed authentication.
//
// Each failed attempt within the window increments the counter. Once
// maxAttempts is reached the client is blocked for the block duration.
// A successful login resets the counter.
type RateLimiter struct {
	mu          sync.RWMutex
	attempts    map[string]attemptRecord
	maxAttempts int
	window      time.Duration
	block       time.Duration
	now         func() time.Time
}

// NewRateLimiter creates a RateLimiter.
func NewRateLimiter(maxAttempts int, window, block time.Duration) *RateLimiter {
	return &RateLimiter{
		attempts:    make(map[string]attemptRecord),
		maxAttempts: maxAttempts,
		window:      window,
		block:       block,
		now:         time.Now,
	}
}

// Allow reports whether ip may attempt authentication and, when blocked,
// how long until the block ends.
func (r *RateLimiter) Allow(ip string) (bool, time.Duration) {
	r.mu.RLock()
	record, exists := r.attempts[ip]
	r.mu.RUnlock()

	now := r.now()
	if !exists || record.expired(now) {
		return true, 0
	}
	if record.Count >= r.maxAttempts {
		return false, record.ResetAt.Sub(now)
	}
	return true, 0
}

// RecordAttempt records one failed attempt for ip.
func (r *RateLimiter) RecordAttempt(ip string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	record, exists := r.attempts[ip]
	if !exists || record.expired(now) {
		r.attempts[ip] = attemptRecord{Count: 1, ResetAt: now.Add(r.window)}
		return
	}

	record.Count++
	// Hitting the limit extends the window to the block duration.
	if record.Count == r.maxAttempts {
		record.ResetAt = now.Add(r.block)
	}
	r.attempts[ip] = record
}

// Reset clears the record for ip.
func (r *RateLimiter) Reset(ip string) {
	r.mu.Lock()
	delete(r.attempts, ip)
	r.mu.Unlock()
}

// Cleanup removes expired records and returns how many were removed.
func (r *RateLimiter) Cleanup() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	removed := 0
	for ip, record := range r.attempts {
		if record.expired(now) {
			delete(r.attempts, ip)
			removed++
		}
	}
	return removed
}

// StartCleanupTicker runs Cleanup every interval until ctx is done.
func (r *RateLimiter) StartCleanupTicker(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.Cleanup()
			}
		}
	}()
}

// Count returns the number of tracked clients.
func (r *RateLimiter) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.attempts)
}

// AttemptCount returns the failed attempts recorded for ip in the current
// window.
func (r *RateLimiter) AttemptCount(ip string) int {
	r.mu.RLock()
	record, exists := r.attempts[ip]
	r.mu.RUnlock()

	if !exists || record.expired(r.now()) {
		return 0
	}
	return record.Count
}
