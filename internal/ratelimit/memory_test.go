package ratelimit

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// newTestLimiter returns a limiter with a controllable clock.
func newTestLimiter(start time.Time) (*MemoryLimiter, *time.Time) {
	now := start
	l := NewMemoryLimiter()
	l.now = func() time.Time { return now }
	return l, &now
}

func TestMemoryLimiter_AdmitWithinBudget(t *testing.T) {
	l, _ := newTestLimiter(time.Now())

	for i := 0; i < 5; i++ {
		res := l.Admit("203.0.113.9", 5, 15*time.Minute)
		assert.True(t, res.Allowed)
		assert.Equal(t, 5, res.Limit)
		assert.Equal(t, 4-i, res.Remaining)
	}
}

func TestMemoryLimiter_DeniesOverBudget(t *testing.T) {
	l, _ := newTestLimiter(time.Now())

	for i := 0; i < 5; i++ {
		l.Admit("203.0.113.9", 5, 15*time.Minute)
	}

	res := l.Admit("203.0.113.9", 5, 15*time.Minute)
	assert.False(t, res.Allowed)
	assert.Equal(t, 0, res.Remaining)
}

func TestMemoryLimiter_DeniedRequestsDoNotExtendWindow(t *testing.T) {
	l, now := newTestLimiter(time.Now())

	for i := 0; i < 8; i++ {
		l.Admit("k", 5, 15*time.Minute)
	}

	// Denied requests must not push the reset time further out.
	*now = now.Add(15*time.Minute + time.Second)
	res := l.Admit("k", 5, 15*time.Minute)
	assert.True(t, res.Allowed)
	assert.Equal(t, 4, res.Remaining)
}

func TestMemoryLimiter_WindowResets(t *testing.T) {
	l, now := newTestLimiter(time.Now())

	for i := 0; i < 5; i++ {
		l.Admit("k", 5, 15*time.Minute)
	}
	assert.False(t, l.Admit("k", 5, 15*time.Minute).Allowed)

	*now = now.Add(15*time.Minute + time.Second)
	res := l.Admit("k", 5, 15*time.Minute)
	assert.True(t, res.Allowed)
	assert.Equal(t, 4, res.Remaining)
}

func TestMemoryLimiter_KeysAreIndependent(t *testing.T) {
	l, _ := newTestLimiter(time.Now())

	for i := 0; i < 5; i++ {
		l.Admit("a", 5, 15*time.Minute)
	}

	assert.False(t, l.Admit("a", 5, 15*time.Minute).Allowed)
	assert.True(t, l.Admit("b", 5, 15*time.Minute).Allowed)
}

func TestMemoryLimiter_PurgesExpiredEntries(t *testing.T) {
	start := time.Now()
	l, now := newTestLimiter(start)

	for i := 0; i < 50; i++ {
		l.Admit(fmt.Sprintf("key-%d", i), 5, time.Minute)
	}
	assert.Equal(t, 50, l.Len())

	// Advance past both the windows and the purge interval.
	*now = start.Add(10 * time.Minute)
	l.Admit("fresh", 5, time.Minute)

	assert.Equal(t, 1, l.Len())
}

func TestMemoryLimiter_ResetAtStableWithinWindow(t *testing.T) {
	start := time.Now()
	l, now := newTestLimiter(start)

	first := l.Admit("k", 5, 15*time.Minute)
	*now = start.Add(5 * time.Minute)
	second := l.Admit("k", 5, 15*time.Minute)

	assert.Equal(t, first.ResetAt, second.ResetAt)
}

func TestMemoryLimiter_ConcurrentAdmit(t *testing.T) {
	l := NewMemoryLimiter()

	var wg sync.WaitGroup
	allowed := make(chan bool, 100)

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			allowed <- l.Admit("shared", 10, time.Minute).Allowed
		}()
	}
	wg.Wait()
	close(allowed)

	count := 0
	for ok := range allowed {
		if ok {
			count++
		}
	}
	assert.Equal(t, 10, count)
}

func TestBudget_Relaxed(t *testing.T) {
	b := Budget{Name: "otp", Limit: 5, Window: 15 * time.Minute}

	assert.Equal(t, 5, b.Relaxed(0).Limit)
	assert.Equal(t, 5, b.Relaxed(1).Limit)
	assert.Equal(t, 50, b.Relaxed(10).Limit)
	assert.Equal(t, b.Window, b.Relaxed(10).Window)
}
