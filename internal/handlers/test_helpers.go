package handlers

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/brinebarrel/storefront-api/internal/auth"
	"github.com/brinebarrel/storefront-api/internal/models"
	"github.com/brinebarrel/storefront-api/internal/services"
)

// MockAuthService implements AuthServiceInterface for testing
type MockAuthService struct {
	RegisterFunc         func(ctx context.Context, name, email, password string) (*models.User, error)
	AuthorizeFunc        func(ctx context.Context, email string, secret services.Secret) (*models.User, error)
	ResetPasswordFunc    func(ctx context.Context, token, password string) error
	ResolveFederatedFunc func(ctx context.Context, identity *models.Identity) (*models.User, error)
}

func (m *MockAuthService) Register(ctx context.Context, name, email, password string) (*models.User, error) {
	if m.RegisterFunc != nil {
		return m.RegisterFunc(ctx, name, email, password)
	}
	return nil, models.ErrInternalServer
}

func (m *MockAuthService) Authorize(ctx context.Context, email string, secret services.Secret) (*models.User, error) {
	if m.AuthorizeFunc != nil {
		return m.AuthorizeFunc(ctx, email, secret)
	}
	return nil, models.ErrInvalidCredentials
}

func (m *MockAuthService) ResetPassword(ctx context.Context, token, password string) error {
	if m.ResetPasswordFunc != nil {
		return m.ResetPasswordFunc(ctx, token, password)
	}
	return models.ErrBadRequest
}

func (m *MockAuthService) ResolveFederated(ctx context.Context, identity *models.Identity) (*models.User, error) {
	if m.ResolveFederatedFunc != nil {
		return m.ResolveFederatedFunc(ctx, identity)
	}
	return nil, models.ErrInternalServer
}

// MockOTPService implements OTPServiceInterface for testing
type MockOTPService struct {
	IssueFunc  func(ctx context.Context, email string, purpose models.OTPPurpose) (*models.OTPCode, error)
	VerifyFunc func(ctx context.Context, email, code string, purpose models.OTPPurpose) (*services.VerifyResult, error)
}

func (m *MockOTPService) Issue(ctx context.Context, email string, purpose models.OTPPurpose) (*models.OTPCode, error) {
	if m.IssueFunc != nil {
		return m.IssueFunc(ctx, email, purpose)
	}
	return &models.OTPCode{ID: "otp_123", Email: email, Purpose: purpose, ExpiresAt: time.Now().Add(10 * time.Minute)}, nil
}

func (m *MockOTPService) Verify(ctx context.Context, email, code string, purpose models.OTPPurpose) (*services.VerifyResult, error) {
	if m.VerifyFunc != nil {
		return m.VerifyFunc(ctx, email, code, purpose)
	}
	return nil, models.ErrInvalidOTP
}

// MockSessionIssuer implements SessionIssuer for testing
type MockSessionIssuer struct {
	IssueFunc func(ctx context.Context, userID string) (string, error)
}

func (m *MockSessionIssuer) Issue(ctx context.Context, userID string) (string, error) {
	if m.IssueFunc != nil {
		return m.IssueFunc(ctx, userID)
	}
	return "session-token-" + userID, nil
}

func (m *MockSessionIssuer) MaxAge() time.Duration {
	return 30 * 24 * time.Hour
}

// MockUserReader implements UserReader for testing
type MockUserReader struct {
	GetByIDFunc func(ctx context.Context, id string) (*models.User, error)
	ListFunc    func(ctx context.Context, limit, offset int) ([]*models.User, error)
}

func (m *MockUserReader) GetByID(ctx context.Context, id string) (*models.User, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserReader) List(ctx context.Context, limit, offset int) ([]*models.User, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, limit, offset)
	}
	return []*models.User{}, nil
}

// MockFederatedFlow implements FederatedFlow for testing
type MockFederatedFlow struct {
	BeginFunc    func(w http.ResponseWriter) (string, error)
	CompleteFunc func(w http.ResponseWriter, r *http.Request) (*models.Identity, error)
}

func (m *MockFederatedFlow) Begin(w http.ResponseWriter) (string, error) {
	if m.BeginFunc != nil {
		return m.BeginFunc(w)
	}
	return "https://accounts.google.com/o/oauth2/auth?state=abc", nil
}

func (m *MockFederatedFlow) Complete(w http.ResponseWriter, r *http.Request) (*models.Identity, error) {
	if m.CompleteFunc != nil {
		return m.CompleteFunc(w, r)
	}
	return nil, models.ErrBadRequest
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestAuthHandler wires an AuthHandler with mocks and dev cookie config
func newTestAuthHandler(authService AuthServiceInterface, otpService OTPServiceInterface, oauth FederatedFlow) *AuthHandler {
	return NewAuthHandler(
		authService,
		otpService,
		&MockSessionIssuer{},
		auth.NewCSRFTokenManager(),
		oauth,
		auth.CookieConfig{SameSite: "lax"},
		"/account",
		testLogger(),
	)
}
