package analytics

import (
	"sync"
	"time"
)

// rateLimiter is a per-key sliding-window limiter. With max 1 it works as a
// de-duplication window for repeat views.
type rateLimiter struct {
	mu       sync.Mutex
	hits     map[string][]time.Time
	max      int
	window   time.Duration
	done     chan struct{}
	stopOnce sync.Once
}

func newRateLimiter(max int, window time.Duration) *rateLimiter {
	rl := &rateLimiter{
		hits:   make(map[string][]time.Time),
		max:    max,
		window: window,
		done:   make(chan struct{}),
	}
	go rl.cleanup()
	return rl
}

// allow checks if key has not exceeded the limit and records the request.
func (rl *rateLimiter) allow(key string) bool {
	now := time.Now()
	cutoff := now.Add(-rl.window)

	rl.mu.Lock()
	defer rl.mu.Unlock()

	kept := rl.prune(key, cutoff)
	if len(kept) >= rl.max {
		return false
	}
	rl.hits[key] = append(kept, now)
	return true
}

// release undoes the most recent hit recorded for key.
func (rl *rateLimiter) release(key string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	hits := rl.hits[key]
	if len(hits) <= 1 {
		delete(rl.hits, key)
		return
	}
	rl.hits[key] = hits[:len(hits)-1]
}

// prune drops hits older than cutoff and returns the rest. Caller holds rl.mu.
func (rl *rateLimiter) prune(key string, cutoff time.Time) []time.Time {
	hits := rl.hits[key]
	kept := hits[:0]
	for _, t := range hits {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	if len(kept) == 0 {
		delete(rl.hits, key)
		return nil
	}
	rl.hits[key] = kept
	return kept
}

func (rl *rateLimiter) cleanup() {
	ticker := time.NewTicker(rl.window)
	defer ticker.Stop()
	for {
		select {
		case <-rl.done:
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-rl.window)
			rl.mu.Lock()
			for key := range rl.hits {
				rl.prune(key, cutoff)
			}
			rl.mu.Unlock()
		}
	}
}

// stop ends the cleanup goroutine. It is safe to call more than once.
func (rl *rateLimiter) stop() {
	rl.stopOnce.Do(func() { close(rl.done) })
}
