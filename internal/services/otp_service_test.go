package services

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brinebarrel/storefront-api/internal/models"
)

func newTestOTPService(otpRepo *MockOTPRepository, resetRepo *MockPasswordResetRepository, userRepo *MockUserRepository, sender *MockEmailSender) *OTPService {
	return NewOTPService(
		otpRepo, resetRepo, userRepo, sender,
		testAuditLogger(), testLogger(),
		10*time.Minute, time.Hour,
	)
}

func TestOTPService_Issue(t *testing.T) {
	t.Run("persists then sends a six digit code", func(t *testing.T) {
		var storedCode string
		otpRepo := &MockOTPRepository{
			CreateFunc: func(ctx context.Context, email, code string, purpose models.OTPPurpose, expiresAt time.Time) (*models.OTPCode, error) {
				storedCode = code
				return &models.OTPCode{ID: "otp_1", Email: email, Code: code, Purpose: purpose, ExpiresAt: expiresAt}, nil
			},
		}
		sender := &MockEmailSender{}
		svc := newTestOTPService(otpRepo, &MockPasswordResetRepository{}, &MockUserRepository{}, sender)

		otp, err := svc.Issue(context.Background(), "shopper@example.com", models.OTPPurposeVerification)
		require.NoError(t, err)

		assert.Regexp(t, regexp.MustCompile(`^[0-9]{6}$`), storedCode)
		assert.Equal(t, storedCode, otp.Code)
		require.Len(t, sender.Sent, 1)
		assert.Equal(t, storedCode, sender.Sent[0].Code)
		assert.Equal(t, models.OTPPurposeVerification, sender.Sent[0].Purpose)
	})

	t.Run("send failure does not fail the operation", func(t *testing.T) {
		sender := &MockEmailSender{
			SendOTPEmailFunc: func(ctx context.Context, email, code string, purpose models.OTPPurpose, expiresAt time.Time) error {
				return errors.New("ses unavailable")
			},
		}
		svc := newTestOTPService(&MockOTPRepository{
			CreateFunc: func(ctx context.Context, email, code string, purpose models.OTPPurpose, expiresAt time.Time) (*models.OTPCode, error) {
				return &models.OTPCode{ID: "otp_1", Email: email, Code: code, Purpose: purpose}, nil
			},
		}, &MockPasswordResetRepository{}, &MockUserRepository{}, sender)

		_, err := svc.Issue(context.Background(), "shopper@example.com", models.OTPPurposeLogin)
		assert.NoError(t, err)
	})

	t.Run("persistence failure fails the operation", func(t *testing.T) {
		svc := newTestOTPService(&MockOTPRepository{
			CreateFunc: func(ctx context.Context, email, code string, purpose models.OTPPurpose, expiresAt time.Time) (*models.OTPCode, error) {
				return nil, errors.New("connection refused")
			},
		}, &MockPasswordResetRepository{}, &MockUserRepository{}, &MockEmailSender{})

		_, err := svc.Issue(context.Background(), "shopper@example.com", models.OTPPurposeVerification)
		assert.ErrorIs(t, err, models.ErrInternalServer)
	})

	t.Run("rejects malformed email", func(t *testing.T) {
		svc := newTestOTPService(&MockOTPRepository{}, &MockPasswordResetRepository{}, &MockUserRepository{}, &MockEmailSender{})

		_, err := svc.Issue(context.Background(), "not-an-email", models.OTPPurposeVerification)
		assert.ErrorIs(t, err, models.ErrBadRequest)
	})

	t.Run("rejects unknown purpose", func(t *testing.T) {
		svc := newTestOTPService(&MockOTPRepository{}, &MockPasswordResetRepository{}, &MockUserRepository{}, &MockEmailSender{})

		_, err := svc.Issue(context.Background(), "shopper@example.com", models.OTPPurpose("mfa"))
		assert.ErrorIs(t, err, models.ErrBadRequest)
	})
}

func TestOTPService_Verify(t *testing.T) {
	t.Run("verification purpose marks the user verified", func(t *testing.T) {
		var verifiedEmail string
		otpRepo := &MockOTPRepository{
			ConsumeFunc: func(ctx context.Context, email, code string, purpose models.OTPPurpose) (*models.OTPCode, error) {
				return &models.OTPCode{ID: "otp_1", Email: email, Code: code, Purpose: purpose, Used: true}, nil
			},
		}
		userRepo := &MockUserRepository{
			MarkEmailVerifiedFunc: func(ctx context.Context, email string) error {
				verifiedEmail = email
				return nil
			},
		}
		svc := newTestOTPService(otpRepo, &MockPasswordResetRepository{}, userRepo, &MockEmailSender{})

		result, err := svc.Verify(context.Background(), "shopper@example.com", "123456", models.OTPPurposeVerification)
		require.NoError(t, err)

		assert.Equal(t, "shopper@example.com", verifiedEmail)
		assert.Empty(t, result.ResetToken)
	})

	t.Run("password reset purpose mints a reset token", func(t *testing.T) {
		var persistedToken string
		otpRepo := &MockOTPRepository{
			ConsumeFunc: func(ctx context.Context, email, code string, purpose models.OTPPurpose) (*models.OTPCode, error) {
				return &models.OTPCode{ID: "otp_1", Email: email, Code: code, Purpose: purpose, Used: true}, nil
			},
		}
		resetRepo := &MockPasswordResetRepository{
			CreateFunc: func(ctx context.Context, email, token string, expiresAt time.Time) (*models.PasswordResetToken, error) {
				persistedToken = token
				return &models.PasswordResetToken{ID: "reset_1", Email: email, Token: token, ExpiresAt: expiresAt}, nil
			},
		}
		svc := newTestOTPService(otpRepo, resetRepo, &MockUserRepository{}, &MockEmailSender{})

		result, err := svc.Verify(context.Background(), "shopper@example.com", "123456", models.OTPPurposePasswordReset)
		require.NoError(t, err)

		assert.Len(t, result.ResetToken, 64)
		assert.Equal(t, persistedToken, result.ResetToken)
		assert.WithinDuration(t, time.Now().Add(time.Hour), result.ExpiresAt, time.Minute)
	})

	t.Run("login purpose has no side effects", func(t *testing.T) {
		markCalled := false
		otpRepo := &MockOTPRepository{
			ConsumeFunc: func(ctx context.Context, email, code string, purpose models.OTPPurpose) (*models.OTPCode, error) {
				assert.Equal(t, models.OTPPurposeLogin, purpose)
				return &models.OTPCode{ID: "otp_1", Email: email, Code: code, Purpose: purpose, Used: true}, nil
			},
		}
		userRepo := &MockUserRepository{
			MarkEmailVerifiedFunc: func(ctx context.Context, email string) error {
				markCalled = true
				return nil
			},
		}
		svc := newTestOTPService(otpRepo, &MockPasswordResetRepository{}, userRepo, &MockEmailSender{})

		result, err := svc.Verify(context.Background(), "shopper@example.com", "654321", models.OTPPurposeLogin)
		require.NoError(t, err)

		assert.False(t, markCalled)
		assert.Empty(t, result.ResetToken)
	})

	t.Run("malformed code never reaches the ledger", func(t *testing.T) {
		consumeCalled := false
		otpRepo := &MockOTPRepository{
			ConsumeFunc: func(ctx context.Context, email, code string, purpose models.OTPPurpose) (*models.OTPCode, error) {
				consumeCalled = true
				return nil, models.ErrInvalidOTP
			},
		}
		svc := newTestOTPService(otpRepo, &MockPasswordResetRepository{}, &MockUserRepository{}, &MockEmailSender{})

		for _, code := range []string{"", "12345", "1234567", "12345a", "12 456"} {
			_, err := svc.Verify(context.Background(), "shopper@example.com", code, models.OTPPurposeVerification)
			assert.ErrorIs(t, err, models.ErrInvalidOTP)
		}
		assert.False(t, consumeCalled)
	})

	t.Run("unknown or spent code", func(t *testing.T) {
		svc := newTestOTPService(&MockOTPRepository{
			ConsumeFunc: func(ctx context.Context, email, code string, purpose models.OTPPurpose) (*models.OTPCode, error) {
				return nil, models.ErrInvalidOTP
			},
		}, &MockPasswordResetRepository{}, &MockUserRepository{}, &MockEmailSender{})

		_, err := svc.Verify(context.Background(), "shopper@example.com", "123456", models.OTPPurposeVerification)
		assert.ErrorIs(t, err, models.ErrInvalidOTP)
	})
}

func TestGenerateCode_FixedWidth(t *testing.T) {
	pattern := regexp.MustCompile(`^[0-9]{6}$`)
	for i := 0; i < 200; i++ {
		code, err := generateCode()
		require.NoError(t, err)
		assert.Regexp(t, pattern, code)
	}
}
