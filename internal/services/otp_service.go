package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"regexp"
	"time"

	"github.com/brinebarrel/storefront-api/internal/models"
	"github.com/brinebarrel/storefront-api/pkg/logger"
)

// OTPRepository defines the interface for one-time code ledger operations
type OTPRepository interface {
	Create(ctx context.Context, email, code string, purpose models.OTPPurpose, expiresAt time.Time) (*models.OTPCode, error)
	Consume(ctx context.Context, email, code string, purpose models.OTPPurpose) (*models.OTPCode, error)
}

// PasswordResetRepository defines the interface for reset-token operations
type PasswordResetRepository interface {
	Create(ctx context.Context, email, token string, expiresAt time.Time) (*models.PasswordResetToken, error)
	Consume(ctx context.Context, token string) (*models.PasswordResetToken, error)
	CleanupExpired(ctx context.Context) (int64, error)
}

// UserRepository defines the interface for credential store operations
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	List(ctx context.Context, limit, offset int) ([]*models.User, error)
	Create(ctx context.Context, user *models.User) (*models.User, error)
	MarkEmailVerified(ctx context.Context, email string) error
	UpdatePassword(ctx context.Context, email, passwordHash string) error
}

var (
	emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	otpPattern   = regexp.MustCompile(`^[0-9]{6}$`)
)

// VerifyResult describes the outcome of a successful code verification.
// ResetToken is set only for password_reset codes.
type VerifyResult struct {
	Purpose    models.OTPPurpose
	Email      string
	ResetToken string
	ExpiresAt  time.Time
}

// OTPService issues one-time codes and verifies them, running the
// purpose-specific follow-up on success.
type OTPService struct {
	otpRepo          OTPRepository
	resetRepo        PasswordResetRepository
	userRepo         UserRepository
	emailSender      EmailSender
	audit            *logger.AuditLogger
	logger           *slog.Logger
	otpExpiry        time.Duration
	resetTokenExpiry time.Duration
}

// NewOTPService creates a new OTPService
func NewOTPService(
	otpRepo OTPRepository,
	resetRepo PasswordResetRepository,
	userRepo UserRepository,
	emailSender EmailSender,
	audit *logger.AuditLogger,
	log *slog.Logger,
	otpExpiry time.Duration,
	resetTokenExpiry time.Duration,
) *OTPService {
	return &OTPService{
		otpRepo:          otpRepo,
		resetRepo:        resetRepo,
		userRepo:         userRepo,
		emailSender:      emailSender,
		audit:            audit,
		logger:           log,
		otpExpiry:        otpExpiry,
		resetTokenExpiry: resetTokenExpiry,
	}
}

// generateCode returns a uniform random fixed-width 6-digit code
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", fmt.Errorf("failed to generate code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// Issue creates a one-time code for the given address and purpose and
// dispatches it by email. The code is persisted first; a send failure is
// logged but does not fail the operation — the caller already got a valid
// code on record and a resend stays possible.
func (s *OTPService) Issue(ctx context.Context, email string, purpose models.OTPPurpose) (*models.OTPCode, error) {
	if !emailPattern.MatchString(email) {
		return nil, fmt.Errorf("%w: invalid email address", models.ErrBadRequest)
	}
	if !purpose.Valid() {
		return nil, fmt.Errorf("%w: invalid otp type", models.ErrBadRequest)
	}

	code, err := generateCode()
	if err != nil {
		s.logger.Error("failed to generate otp code", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	expiresAt := time.Now().Add(s.otpExpiry)

	otp, err := s.otpRepo.Create(ctx, email, code, purpose, expiresAt)
	if err != nil {
		s.logger.Error("failed to persist otp code",
			slog.String("email", logger.SanitizedEmail(email)),
			slog.String("purpose", string(purpose)),
			slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if err := s.emailSender.SendOTPEmail(ctx, email, code, purpose, expiresAt); err != nil {
		// Best-effort dispatch: the code is already on the ledger
		s.logger.Error("otp email dispatch failed",
			slog.String("email", logger.SanitizedEmail(email)),
			slog.String("purpose", string(purpose)),
			slog.Any("error", err))
	}

	s.audit.LogOTPEvent(logger.AuditEvent{
		EventType: "otp_issued",
		Email:     email,
		Success:   true,
	})

	return otp, nil
}

// Verify checks a submitted code and consumes it atomically, then runs the
// purpose-specific follow-up. Concurrent submissions of the same code cannot
// both succeed; the loser sees ErrInvalidOTP.
func (s *OTPService) Verify(ctx context.Context, email, code string, purpose models.OTPPurpose) (*VerifyResult, error) {
	if !emailPattern.MatchString(email) {
		return nil, fmt.Errorf("%w: invalid email address", models.ErrBadRequest)
	}
	if !purpose.Valid() {
		return nil, fmt.Errorf("%w: invalid otp type", models.ErrBadRequest)
	}
	if !otpPattern.MatchString(code) {
		s.auditVerify(email, false, "malformed code")
		return nil, models.ErrInvalidOTP
	}

	otp, err := s.otpRepo.Consume(ctx, email, code, purpose)
	if err != nil {
		if errors.Is(err, models.ErrInvalidOTP) {
			s.auditVerify(email, false, "no consumable code")
			return nil, models.ErrInvalidOTP
		}
		s.logger.Error("failed to consume otp code",
			slog.String("email", logger.SanitizedEmail(email)),
			slog.String("purpose", string(purpose)),
			slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	result := &VerifyResult{
		Purpose: purpose,
		Email:   otp.Email,
	}

	switch purpose {
	case models.OTPPurposeVerification:
		if err := s.userRepo.MarkEmailVerified(ctx, otp.Email); err != nil && !errors.Is(err, models.ErrNotFound) {
			s.logger.Error("failed to mark email verified",
				slog.String("email", logger.SanitizedEmail(otp.Email)),
				slog.Any("error", err))
			return nil, models.ErrInternalServer
		}

	case models.OTPPurposePasswordReset:
		token, err := generateResetToken()
		if err != nil {
			s.logger.Error("failed to generate reset token", slog.Any("error", err))
			return nil, models.ErrInternalServer
		}
		expiresAt := time.Now().Add(s.resetTokenExpiry)
		if _, err := s.resetRepo.Create(ctx, otp.Email, token, expiresAt); err != nil {
			s.logger.Error("failed to persist reset token",
				slog.String("email", logger.SanitizedEmail(otp.Email)),
				slog.Any("error", err))
			return nil, models.ErrInternalServer
		}
		result.ResetToken = token
		result.ExpiresAt = expiresAt

	case models.OTPPurposeLogin:
		// Verified assertion only; the authenticator handles the rest
	}

	s.auditVerify(email, true, "")

	return result, nil
}

func (s *OTPService) auditVerify(email string, success bool, reason string) {
	s.audit.LogOTPEvent(logger.AuditEvent{
		EventType:     "otp_verified",
		Email:         email,
		Success:       success,
		FailureReason: reason,
	})
}

// generateResetToken returns 32 random bytes hex-encoded (64 chars)
func generateResetToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
