package pubhost

import (
	"sync"
	"time"
)

// LoginLimiter rate-limits failed sign-in attempts per key (client IP).
type LoginLimiter struct {
	mu       sync.Mutex
	attempts map[string][]time.Time
	max      int
	window   time.Duration
	done     chan struct{}
	stopOnce sync.Once
}

// NewLoginLimiter creates a LoginLimiter that allows max failures per window.
// Call Stop to release the cleanup goroutine.
func NewLoginLimiter(max int, window time.Duration) *LoginLimiter {
	l := &LoginLimiter{
		attempts: make(map[string][]time.Time),
		max:      max,
		window:   window,
		done:     make(chan struct{}),
	}
	go l.cleanup()
	return l
}

// Stop ends the background cleanup. It is safe to call more than once.
func (l *LoginLimiter) Stop() {
	l.stopOnce.Do(func() { close(l.done) })
}

func (l *LoginLimiter) cleanup() {
	ticker := time.NewTicker(l.window)
	defer ticker.Stop()
	for {
		select {
		case <-l.done:
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-l.window)
			l.mu.Lock()
			for key := range l.attempts {
				l.prune(key, cutoff)
			}
			l.mu.Unlock()
		}
	}
}

// prune drops attempts older than cutoff. Caller holds l.mu.
func (l *LoginLimiter) prune(key string, cutoff time.Time) int {
	hits := l.attempts[key]
	kept := hits[:0]
	for _, t := range hits {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	if len(kept) == 0 {
		delete(l.attempts, key)
		return 0
	}
	l.attempts[key] = kept
	return len(kept)
}

// Check returns true if key has not exceeded the limit.
// It does not record an attempt; call Record on failure.
func (l *LoginLimiter) Check(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.prune(key, time.Now().Add(-l.window)) < l.max
}

// Record registers a failed attempt for key.
func (l *LoginLimiter) Record(key string) {
	l.mu.Lock()
	l.attempts[key] = append(l.attempts[key], time.Now())
	l.mu.Unlock()
}

// Reset forgets the failures of key, used after a successful sign-in.
func (l *LoginLimiter) Reset(key string) {
	l.mu.Lock()
	delete(l.attempts, key)
	l.mu.Unlock()
}
