package services

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/brinebarrel/storefront-api/internal/models"
	"github.com/brinebarrel/storefront-api/pkg/logger"
)

// MockUserRepository implements UserRepository for testing
type MockUserRepository struct {
	GetByIDFunc           func(ctx context.Context, id string) (*models.User, error)
	GetByEmailFunc        func(ctx context.Context, email string) (*models.User, error)
	ListFunc              func(ctx context.Context, limit, offset int) ([]*models.User, error)
	CreateFunc            func(ctx context.Context, user *models.User) (*models.User, error)
	MarkEmailVerifiedFunc func(ctx context.Context, email string) error
	UpdatePasswordFunc    func(ctx context.Context, email, passwordHash string) error
}

func (m *MockUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.GetByEmailFunc != nil {
		return m.GetByEmailFunc(ctx, email)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) List(ctx context.Context, limit, offset int) ([]*models.User, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, limit, offset)
	}
	return []*models.User{}, nil
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, user)
	}
	return nil, models.ErrInternalServer
}

func (m *MockUserRepository) MarkEmailVerified(ctx context.Context, email string) error {
	if m.MarkEmailVerifiedFunc != nil {
		return m.MarkEmailVerifiedFunc(ctx, email)
	}
	return nil
}

func (m *MockUserRepository) UpdatePassword(ctx context.Context, email, passwordHash string) error {
	if m.UpdatePasswordFunc != nil {
		return m.UpdatePasswordFunc(ctx, email, passwordHash)
	}
	return nil
}

// MockOTPRepository implements OTPRepository for testing
type MockOTPRepository struct {
	CreateFunc  func(ctx context.Context, email, code string, purpose models.OTPPurpose, expiresAt time.Time) (*models.OTPCode, error)
	ConsumeFunc func(ctx context.Context, email, code string, purpose models.OTPPurpose) (*models.OTPCode, error)
}

func (m *MockOTPRepository) Create(ctx context.Context, email, code string, purpose models.OTPPurpose, expiresAt time.Time) (*models.OTPCode, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, email, code, purpose, expiresAt)
	}
	return &models.OTPCode{ID: "otp_123", Email: email, Code: code, Purpose: purpose, ExpiresAt: expiresAt}, nil
}

func (m *MockOTPRepository) Consume(ctx context.Context, email, code string, purpose models.OTPPurpose) (*models.OTPCode, error) {
	if m.ConsumeFunc != nil {
		return m.ConsumeFunc(ctx, email, code, purpose)
	}
	return nil, models.ErrInvalidOTP
}

// MockPasswordResetRepository implements PasswordResetRepository for testing
type MockPasswordResetRepository struct {
	CreateFunc         func(ctx context.Context, email, token string, expiresAt time.Time) (*models.PasswordResetToken, error)
	ConsumeFunc        func(ctx context.Context, token string) (*models.PasswordResetToken, error)
	CleanupExpiredFunc func(ctx context.Context) (int64, error)
}

func (m *MockPasswordResetRepository) Create(ctx context.Context, email, token string, expiresAt time.Time) (*models.PasswordResetToken, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, email, token, expiresAt)
	}
	return &models.PasswordResetToken{ID: "reset_123", Email: email, Token: token, ExpiresAt: expiresAt}, nil
}

func (m *MockPasswordResetRepository) Consume(ctx context.Context, token string) (*models.PasswordResetToken, error) {
	if m.ConsumeFunc != nil {
		return m.ConsumeFunc(ctx, token)
	}
	return nil, models.ErrUnauthorized
}

func (m *MockPasswordResetRepository) CleanupExpired(ctx context.Context) (int64, error) {
	if m.CleanupExpiredFunc != nil {
		return m.CleanupExpiredFunc(ctx)
	}
	return 0, nil
}

// MockEmailSender implements EmailSender for testing
type MockEmailSender struct {
	SendOTPEmailFunc func(ctx context.Context, email, code string, purpose models.OTPPurpose, expiresAt time.Time) error
	Sent             []SentEmail
}

// SentEmail records a dispatched message for assertions
type SentEmail struct {
	Email   string
	Code    string
	Purpose models.OTPPurpose
}

func (m *MockEmailSender) SendOTPEmail(ctx context.Context, email, code string, purpose models.OTPPurpose, expiresAt time.Time) error {
	m.Sent = append(m.Sent, SentEmail{Email: email, Code: code, Purpose: purpose})
	if m.SendOTPEmailFunc != nil {
		return m.SendOTPEmailFunc(ctx, email, code, purpose, expiresAt)
	}
	return nil
}

// MockOTPEngine implements OTPEngine for testing
type MockOTPEngine struct {
	IssueFunc  func(ctx context.Context, email string, purpose models.OTPPurpose) (*models.OTPCode, error)
	VerifyFunc func(ctx context.Context, email, code string, purpose models.OTPPurpose) (*VerifyResult, error)
}

func (m *MockOTPEngine) Issue(ctx context.Context, email string, purpose models.OTPPurpose) (*models.OTPCode, error) {
	if m.IssueFunc != nil {
		return m.IssueFunc(ctx, email, purpose)
	}
	return &models.OTPCode{ID: "otp_123", Email: email, Purpose: purpose}, nil
}

func (m *MockOTPEngine) Verify(ctx context.Context, email, code string, purpose models.OTPPurpose) (*VerifyResult, error) {
	if m.VerifyFunc != nil {
		return m.VerifyFunc(ctx, email, code, purpose)
	}
	return &VerifyResult{Purpose: purpose, Email: email}, nil
}

// testLogger returns a logger that discards output
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testAuditLogger returns an audit logger backed by the discard logger
func testAuditLogger() *logger.AuditLogger {
	return logger.NewAuditLogger(testLogger())
}
