package models

import (
	"github.com/golang-jwt/jwt/v5"
)

// SessionClaims is the signed session payload. The admin flag is read fresh
// from the credential store at issuance time, not copied from a stale
// identity object.
type SessionClaims struct {
	Type    string `json:"type"`
	UserID  string `json:"user_id"`
	IsAdmin bool   `json:"is_admin"`
	jwt.RegisteredClaims
}

// Identity is the authenticated principal an authorize call produces.
type Identity struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url,omitempty"`
}
