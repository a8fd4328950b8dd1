package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/brinebarrel/storefront-api/internal/auth"
	"github.com/brinebarrel/storefront-api/internal/models"
	pkgauth "github.com/brinebarrel/storefront-api/pkg/auth"
	"github.com/brinebarrel/storefront-api/pkg/logger"
)

// Secret is the credential presented at login. Exactly two variants exist:
// PasswordSecret and OTPSecret. The closed interface keeps callers from
// smuggling in an untyped string.
type Secret interface {
	isSecret()
}

// PasswordSecret is a plaintext password to compare against the stored hash
type PasswordSecret string

func (PasswordSecret) isSecret() {}

// OTPSecret is a six-digit login code to consume from the ledger
type OTPSecret string

func (OTPSecret) isSecret() {}

// OTPEngine issues and verifies one-time codes
type OTPEngine interface {
	Issue(ctx context.Context, email string, purpose models.OTPPurpose) (*models.OTPCode, error)
	Verify(ctx context.Context, email, code string, purpose models.OTPPurpose) (*VerifyResult, error)
}

// AuthService handles registration, credential authentication and password
// reset.
type AuthService struct {
	userRepo   UserRepository
	resetRepo  PasswordResetRepository
	otpEngine  OTPEngine
	timing     *auth.TimingDelay
	audit      *logger.AuditLogger
	logger     *slog.Logger
	adminEmail string
}

// NewAuthService creates a new AuthService. adminEmail designates the single
// bootstrap admin account; it is compared case-insensitively.
func NewAuthService(
	userRepo UserRepository,
	resetRepo PasswordResetRepository,
	otpEngine OTPEngine,
	timing *auth.TimingDelay,
	audit *logger.AuditLogger,
	log *slog.Logger,
	adminEmail string,
) *AuthService {
	return &AuthService{
		userRepo:   userRepo,
		resetRepo:  resetRepo,
		otpEngine:  otpEngine,
		timing:     timing,
		audit:      audit,
		logger:     log,
		adminEmail: strings.ToLower(adminEmail),
	}
}

func (s *AuthService) isAdminAddress(email string) bool {
	return s.adminEmail != "" && strings.ToLower(email) == s.adminEmail
}

// Register creates an unverified account and issues a verification code.
// The database unique index is authoritative on duplicates; the advisory
// lookup just gives a friendlier fast path.
func (s *AuthService) Register(ctx context.Context, name, email, password string) (*models.User, error) {
	if !emailPattern.MatchString(email) {
		return nil, fmt.Errorf("%w: invalid email address", models.ErrBadRequest)
	}
	if err := pkgauth.ValidatePassword(password); err != nil {
		return nil, fmt.Errorf("%w: %s", models.ErrBadRequest, err.Error())
	}

	// Advisory check; the unique index catches the race
	if _, err := s.userRepo.GetByEmail(ctx, email); err == nil {
		return nil, models.ErrConflict
	} else if !errors.Is(err, models.ErrNotFound) {
		s.logger.Error("failed to check for existing user",
			slog.String("email", logger.SanitizedEmail(email)),
			slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	passwordHash, err := pkgauth.HashPassword(password)
	if err != nil {
		s.logger.Error("failed to hash password", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	user := &models.User{
		Email:         email,
		PasswordHash:  passwordHash,
		Name:          name,
		EmailVerified: false,
		IsAdmin:       s.isAdminAddress(email),
	}

	created, err := s.userRepo.Create(ctx, user)
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			return nil, models.ErrConflict
		}
		s.logger.Error("failed to create user",
			slog.String("email", logger.SanitizedEmail(email)),
			slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	// Verification code dispatch is best-effort; the account exists either
	// way and the user can request a resend
	if _, err := s.otpEngine.Issue(ctx, created.Email, models.OTPPurposeVerification); err != nil {
		s.logger.Error("failed to issue verification code after registration",
			slog.String("user_id", created.ID),
			slog.Any("error", err))
	}

	s.audit.LogAuthAttempt(logger.AuditEvent{
		EventType: "register",
		UserID:    created.ID,
		Email:     created.Email,
		Success:   true,
	})

	return created, nil
}

// Authorize authenticates an email against a credential. Unverified accounts
// get the distinct ErrEmailNotVerified; everything else that fails collapses
// into ErrInvalidCredentials so existence cannot be probed.
func (s *AuthService) Authorize(ctx context.Context, email string, secret Secret) (*models.User, error) {
	start := time.Now()

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.failAuth(start, email, "user not found")
			return nil, models.ErrInvalidCredentials
		}
		s.logger.Error("failed to look up user for login",
			slog.String("email", logger.SanitizedEmail(email)),
			slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if !user.EmailVerified {
		s.failAuth(start, email, "email not verified")
		return nil, models.ErrEmailNotVerified
	}

	switch sec := secret.(type) {
	case PasswordSecret:
		if !user.HasPassword() {
			s.failAuth(start, email, "no password set")
			return nil, models.ErrInvalidCredentials
		}
		if err := pkgauth.ComparePassword(user.PasswordHash, string(sec)); err != nil {
			s.failAuth(start, email, "password mismatch")
			return nil, models.ErrInvalidCredentials
		}

	case OTPSecret:
		if _, err := s.otpEngine.Verify(ctx, email, string(sec), models.OTPPurposeLogin); err != nil {
			if errors.Is(err, models.ErrInvalidOTP) || errors.Is(err, models.ErrBadRequest) {
				s.failAuth(start, email, "login code rejected")
				return nil, models.ErrInvalidCredentials
			}
			return nil, models.ErrInternalServer
		}

	default:
		return nil, models.ErrInternalServer
	}

	s.audit.LogAuthAttempt(logger.AuditEvent{
		EventType: "login",
		UserID:    user.ID,
		Email:     user.Email,
		Success:   true,
	})

	return user, nil
}

// failAuth records the failed attempt and evens out response timing
func (s *AuthService) failAuth(start time.Time, email, reason string) {
	s.audit.LogAuthAttempt(logger.AuditEvent{
		EventType:     "login",
		Email:         email,
		Success:       false,
		FailureReason: reason,
	})
	s.timing.WaitFrom(start, false)
}

// ResetPassword consumes a reset token and sets the new password. The token
// consume is atomic; a second submit of the same token fails.
func (s *AuthService) ResetPassword(ctx context.Context, token, password string) error {
	if token == "" {
		return fmt.Errorf("%w: missing reset token", models.ErrBadRequest)
	}
	if err := pkgauth.ValidatePassword(password); err != nil {
		return fmt.Errorf("%w: %s", models.ErrBadRequest, err.Error())
	}

	resetToken, err := s.resetRepo.Consume(ctx, token)
	if err != nil {
		if errors.Is(err, models.ErrUnauthorized) {
			return fmt.Errorf("%w: invalid or expired reset token", models.ErrBadRequest)
		}
		s.logger.Error("failed to consume reset token", slog.Any("error", err))
		return models.ErrInternalServer
	}

	passwordHash, err := pkgauth.HashPassword(password)
	if err != nil {
		s.logger.Error("failed to hash password", slog.Any("error", err))
		return models.ErrInternalServer
	}

	if err := s.userRepo.UpdatePassword(ctx, resetToken.Email, passwordHash); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return fmt.Errorf("%w: invalid or expired reset token", models.ErrBadRequest)
		}
		s.logger.Error("failed to update password",
			slog.String("email", logger.SanitizedEmail(resetToken.Email)),
			slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.audit.LogAuthAttempt(logger.AuditEvent{
		EventType: "password_reset",
		Email:     resetToken.Email,
		Success:   true,
	})

	return nil
}

// ResolveFederated maps a verified provider identity onto a local account.
// First visit creates a verified record; later visits upgrade an unverified
// password account to verified.
func (s *AuthService) ResolveFederated(ctx context.Context, identity *models.Identity) (*models.User, error) {
	user, err := s.userRepo.GetByEmail(ctx, identity.Email)
	if err == nil {
		if !user.EmailVerified {
			if err := s.userRepo.MarkEmailVerified(ctx, user.Email); err != nil {
				s.logger.Error("failed to verify user via federated sign-in",
					slog.String("user_id", user.ID),
					slog.Any("error", err))
				return nil, models.ErrInternalServer
			}
			user.EmailVerified = true
		}
		return user, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		s.logger.Error("failed to look up federated user",
			slog.String("email", logger.SanitizedEmail(identity.Email)),
			slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	created, err := s.userRepo.Create(ctx, &models.User{
		Email:         identity.Email,
		Name:          identity.Name,
		AvatarURL:     identity.AvatarURL,
		EmailVerified: true,
		IsAdmin:       s.isAdminAddress(identity.Email),
	})
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			// Lost a create race; the other request made the account
			return s.userRepo.GetByEmail(ctx, identity.Email)
		}
		s.logger.Error("failed to create federated user",
			slog.String("email", logger.SanitizedEmail(identity.Email)),
			slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.audit.LogAuthAttempt(logger.AuditEvent{
		EventType: "federated_signup",
		UserID:    created.ID,
		Email:     created.Email,
		Success:   true,
	})

	return created, nil
}
