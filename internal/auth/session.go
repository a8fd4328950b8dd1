package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/brinebarrel/storefront-api/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AdminFlagFetcher retrieves the current admin flag for a user. The session
// issuer reads it fresh at issuance time rather than trusting whatever the
// caller's identity object carries.
type AdminFlagFetcher interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
}

// SessionManager mints and validates signed session tokens.
type SessionManager struct {
	secret   string
	maxAge   time.Duration
	userRepo AdminFlagFetcher
}

// NewSessionManager creates a new SessionManager. maxAge is the fixed session
// validity (30 days by default); there is no sliding expiration.
func NewSessionManager(secret string, maxAge time.Duration, userRepo AdminFlagFetcher) *SessionManager {
	return &SessionManager{
		secret:   secret,
		maxAge:   maxAge,
		userRepo: userRepo,
	}
}

// MaxAge returns the configured session validity.
func (sm *SessionManager) MaxAge() time.Duration {
	return sm.maxAge
}

// Issue mints a session token for the given user. The admin flag is looked
// up from the credential store at this moment.
func (sm *SessionManager) Issue(ctx context.Context, userID string) (string, error) {
	user, err := sm.userRepo.GetByID(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("failed to load user for session issuance: %w", err)
	}

	now := time.Now()
	claims := &models.SessionClaims{
		Type:    "session",
		UserID:  user.ID,
		IsAdmin: user.IsAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(sm.maxAge)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	tokenString, err := token.SignedString([]byte(sm.secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}

	return tokenString, nil
}

// Validate verifies a session token and returns its claims.
func (sm *SessionManager) Validate(tokenString string) (*models.SessionClaims, error) {
	claims := &models.SessionClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(sm.secret), nil
	})

	if err != nil {
		return nil, fmt.Errorf("failed to parse session token: %w", err)
	}

	if !token.Valid {
		return nil, models.ErrUnauthorized
	}

	if claims.Type != "session" {
		return nil, fmt.Errorf("invalid token: unexpected type %q", claims.Type)
	}

	return claims, nil
}
