package server

import (
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// PlayerRateLimiter applies a per-player token bucket to incoming
// messages. Entries for idle players are cleaned up periodically to
// avoid unbounded growth.
type PlayerRateLimiter struct {
	limiters sync.Map // player id -> *playerLimiterEntry
	rps      float64
	burst    int
	stopChan chan struct{}
	stopOnce sync.Once

	rejectedCount uint64 // atomic
}

type playerLimiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewPlayerRateLimiter creates a limiter allowing rps messages per
// second per player with a 2x burst.
func NewPlayerRateLimiter(rps float64) *PlayerRateLimiter {
	rl := &PlayerRateLimiter{
		rps:      rps,
		burst:    int(rps * 2),
		stopChan: make(chan struct{}),
	}
	go rl.cleanupLoop()
	return rl
}

// Allow checks whether a message from the player fits the budget.
func (rl *PlayerRateLimiter) Allow(playerID string) bool {
	now := time.Now()

	var entry *playerLimiterEntry
	if v, ok := rl.limiters.Load(playerID); ok {
		entry = v.(*playerLimiterEntry)
	} else {
		fresh := &playerLimiterEntry{
			limiter: rate.NewLimiter(rate.Limit(rl.rps), rl.burst),
		}
		actual, _ := rl.limiters.LoadOrStore(playerID, fresh)
		entry = actual.(*playerLimiterEntry)
	}
	entry.lastSeen = now

	if entry.limiter.Allow() {
		return true
	}
	atomic.AddUint64(&rl.rejectedCount, 1)
	return false
}

// Rejected returns the total messages dropped by the limiter.
func (rl *PlayerRateLimiter) Rejected() uint64 {
	return atomic.LoadUint64(&rl.rejectedCount)
}

// Stop terminates the cleanup goroutine.
func (rl *PlayerRateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopChan) })
}

func (rl *PlayerRateLimiter) cleanupLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stopChan:
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-10 * time.Minute)
			rl.limiters.Range(func(key, value interface{}) bool {
				if value.(*playerLimiterEntry).lastSeen.Before(cutoff) {
					rl.limiters.Delete(key)
				}
				return true
			})
		}
	}
}

// ViolationWindow counts protocol violations per player over a sliding
// window. Crossing the threshold closes the connection with the
// policy-violation code.
type ViolationWindow struct {
	mu        sync.Mutex
	times     []time.Time
	window    time.Duration
	threshold int
}

// NewViolationWindow creates a window tripping at threshold violations
// inside window.
func NewViolationWindow(threshold int, window time.Duration) *ViolationWindow {
	return &ViolationWindow{
		window:    window,
		threshold: threshold,
	}
}

// Add records one violation and reports whether the threshold has been
// reached within the window.
func (v *ViolationWindow) Add() bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-v.window)

	// Drop expired entries in place.
	kept := v.times[:0]
	for _, t := range v.times {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	v.times = append(kept, now)

	return len(v.times) >= v.threshold
}

// Count returns the violations currently inside the window.
func (v *ViolationWindow) Count() int {
	v.mu.Lock()
	defer v.mu.Unlock()

	cutoff := time.Now().Add(-v.window)
	n := 0
	for _, t := range v.times {
		if t.After(cutoff) {
			n++
		}
	}
	return n
}
