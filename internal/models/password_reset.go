package models

import (
	"time"
)

// PasswordResetToken is the opaque artifact handed to a client after it has
// verified a password_reset OTP. Single use.
type PasswordResetToken struct {
	ID        string     `json:"id"`
	Email     string     `json:"email"`
	Token     string     `json:"-"` // Never expose the token
	ExpiresAt time.Time  `json:"expires_at"`
	Used      bool       `json:"used"`
	UsedAt    *time.Time `json:"used_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// IsExpired checks if the token has expired.
func (t *PasswordResetToken) IsExpired() bool {
	return !time.Now().Before(t.ExpiresAt)
}
