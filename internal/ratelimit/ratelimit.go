package ratelimit

import (
	"time"
)

// Result reports the outcome of an admission check.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// Limiter is the admission-control abstraction injected into middleware and
// services. The in-process implementation lives in this package; a
// multi-instance deployment would back this with a shared counter store.
type Limiter interface {
	Admit(key string, limit int, window time.Duration) Result
}

// Budget names a rate limit for one operation class.
type Budget struct {
	Name   string
	Limit  int
	Window time.Duration
}

// Relaxed returns a copy of the budget with its limit multiplied. Used
// outside production so automated tests are not throttled; the multiplier
// is a configuration switch, not a security control.
func (b Budget) Relaxed(multiplier int) Budget {
	if multiplier <= 1 {
		return b
	}
	return Budget{Name: b.Name, Limit: b.Limit * multiplier, Window: b.Window}
}
