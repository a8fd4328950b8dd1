package ratelimit

import (
	"sync"
	"time"
)

type windowEntry struct {
	count   int
	resetAt time.Time
}

// MemoryLimiter is a fixed-window counter map local to one process. State is
// lost on restart and is not shared across instances; multi-instance
// deployments need a shared backing store instead.
type MemoryLimiter struct {
	mu      sync.Mutex
	entries map[string]*windowEntry

	// now is swappable for tests
	now func() time.Time

	// purge bookkeeping
	lastPurge     time.Time
	purgeInterval time.Duration
}

// NewMemoryLimiter creates an in-memory fixed-window limiter.
func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{
		entries:       make(map[string]*windowEntry),
		now:           time.Now,
		purgeInterval: 5 * time.Minute,
	}
}

// Admit checks and records one request for key. If the window has elapsed
// the counter resets; at the limit the request is denied without
// incrementing, so a denied burst does not extend the lockout.
func (l *MemoryLimiter) Admit(key string, limit int, window time.Duration) Result {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.purgeLocked(now)

	entry, ok := l.entries[key]
	if !ok || !now.Before(entry.resetAt) {
		entry = &windowEntry{count: 0, resetAt: now.Add(window)}
		l.entries[key] = entry
	}

	if entry.count >= limit {
		return Result{
			Allowed:   false,
			Limit:     limit,
			Remaining: 0,
			ResetAt:   entry.resetAt,
		}
	}

	entry.count++
	return Result{
		Allowed:   true,
		Limit:     limit,
		Remaining: limit - entry.count,
		ResetAt:   entry.resetAt,
	}
}

// purgeLocked drops entries whose window has already passed, to bound memory.
// Runs at most once per purgeInterval; caller holds the mutex.
func (l *MemoryLimiter) purgeLocked(now time.Time) {
	if now.Sub(l.lastPurge) < l.purgeInterval {
		return
	}
	l.lastPurge = now

	for key, entry := range l.entries {
		if !now.Before(entry.resetAt) {
			delete(l.entries, key)
		}
	}
}

// Len reports the number of tracked keys. Exposed for tests.
func (l *MemoryLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
