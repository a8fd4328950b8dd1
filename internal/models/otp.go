package models

import (
	"time"
)

// OTPPurpose identifies what a one-time code proves when consumed.
type OTPPurpose string

const (
	OTPPurposeVerification  OTPPurpose = "verification"
	OTPPurposePasswordReset OTPPurpose = "password_reset"
	OTPPurposeLogin         OTPPurpose = "login"
)

// Valid reports whether p is one of the known purposes.
func (p OTPPurpose) Valid() bool {
	switch p {
	case OTPPurposeVerification, OTPPurposePasswordReset, OTPPurposeLogin:
		return true
	}
	return false
}

// OTPCode is one row in the OTP ledger. Codes are fixed-width 6-digit strings
// (leading zeros preserved) and are never deleted; consumed rows stay behind
// as an audit trail.
type OTPCode struct {
	ID        string     `json:"id"`
	Email     string     `json:"email"`
	Code      string     `json:"-"` // Never expose the code
	Purpose   OTPPurpose `json:"purpose"`
	ExpiresAt time.Time  `json:"expires_at"`
	Used      bool       `json:"used"`
	UsedAt    *time.Time `json:"used_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// IsExpired checks if the code has expired.
func (c *OTPCode) IsExpired() bool {
	return !time.Now().Before(c.ExpiresAt)
}

// IsConsumable checks if the code can still be consumed (unused and unexpired).
func (c *OTPCode) IsConsumable() bool {
	return !c.Used && !c.IsExpired()
}
