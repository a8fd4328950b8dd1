package auth

import (
	"crypto/rand"
	"encoding/binary"
	"time"
)

// TimingDelay applies a small randomized delay on credential failures so
// that "user not found" and "password incorrect" take similar time.
type TimingDelay struct {
	baseDelay   time.Duration
	randomRange time.Duration
}

// NewTimingDelay creates a new TimingDelay instance
func NewTimingDelay(base, randomRange time.Duration) *TimingDelay {
	return &TimingDelay{
		baseDelay:   base,
		randomRange: randomRange,
	}
}

// cryptoRandIntn returns a secure random number between 0 and max (exclusive)
// Uses crypto/rand instead of math/rand for security-sensitive operations
func cryptoRandIntn(max int64) (int64, error) {
	if max <= 0 {
		return 0, nil
	}

	randomBytes := make([]byte, 8)
	_, err := rand.Read(randomBytes)
	if err != nil {
		return 0, err
	}

	randomValue := binary.BigEndian.Uint64(randomBytes)
	return int64(randomValue % uint64(max)), nil
}

// WaitFrom sleeps until at least baseDelay + jitter has elapsed since
// startTime. No-op on success so legitimate logins stay fast.
func (td *TimingDelay) WaitFrom(startTime time.Time, success bool) {
	if success {
		return
	}

	targetDelay := td.baseDelay
	if td.randomRange > 0 {
		jitter, err := cryptoRandIntn(int64(td.randomRange))
		if err == nil {
			targetDelay += time.Duration(jitter)
		}
	}

	elapsed := time.Since(startTime)
	if elapsed < targetDelay {
		time.Sleep(targetDelay - elapsed)
	}
}
