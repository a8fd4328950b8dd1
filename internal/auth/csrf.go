package auth

import (
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"
)

// Tokens are minted at sign-in and must outlive the session cookie that
// carries them, so the TTL matches the session length.
const csrfTokenTTL = 30 * 24 * time.Hour

type csrfEntry struct {
	userID    string
	expiresAt time.Time
}

// CSRFTokenManager mints and checks the per-user tokens that accompany
// cookie-authenticated state-changing requests.
type CSRFTokenManager struct {
	mu     sync.RWMutex
	tokens map[string]csrfEntry
	ttl    time.Duration
	stop   chan struct{}
}

func NewCSRFTokenManager() *CSRFTokenManager {
	m := &CSRFTokenManager{
		tokens: make(map[string]csrfEntry),
		ttl:    csrfTokenTTL,
		stop:   make(chan struct{}),
	}
	go m.reap()
	return m
}

// Stop halts the background reaper.
func (m *CSRFTokenManager) Stop() {
	close(m.stop)
}

// GenerateToken mints a token bound to the given user.
func (m *CSRFTokenManager) GenerateToken(userID string) (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	token := hex.EncodeToString(raw)

	m.mu.Lock()
	m.tokens[token] = csrfEntry{userID: userID, expiresAt: time.Now().Add(m.ttl)}
	m.mu.Unlock()

	return token, nil
}

// ValidateToken reports whether token is live and bound to userID.
func (m *CSRFTokenManager) ValidateToken(token, userID string) bool {
	m.mu.RLock()
	entry, ok := m.tokens[token]
	m.mu.RUnlock()

	if !ok || entry.userID != userID {
		return false
	}
	if time.Now().After(entry.expiresAt) {
		m.mu.Lock()
		delete(m.tokens, token)
		m.mu.Unlock()
		return false
	}
	return true
}

// reap drops expired tokens hourly until Stop is called.
func (m *CSRFTokenManager) reap() {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			now := time.Now()
			m.mu.Lock()
			for token, entry := range m.tokens {
				if now.After(entry.expiresAt) {
					delete(m.tokens, token)
				}
			}
			m.mu.Unlock()
		}
	}
}
