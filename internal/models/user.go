package models

import (
	"time"
)

type User struct {
	ID            string
	Email         string
	PasswordHash  string // NULL for OAuth-only or OTP-only users
	Name          string
	AvatarURL     string
	EmailVerified bool
	IsAdmin       bool
	VerifiedAt    *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// HasPassword reports whether this account has a local password set.
func (u *User) HasPassword() bool {
	return u.PasswordHash != ""
}
