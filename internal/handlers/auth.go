package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/brinebarrel/storefront-api/internal/auth"
	"github.com/brinebarrel/storefront-api/internal/models"
	"github.com/brinebarrel/storefront-api/internal/services"
	pkghttp "github.com/brinebarrel/storefront-api/pkg/http"
)

// AuthServiceInterface defines the interface for auth business logic
type AuthServiceInterface interface {
	Register(ctx context.Context, name, email, password string) (*models.User, error)
	Authorize(ctx context.Context, email string, secret services.Secret) (*models.User, error)
	ResetPassword(ctx context.Context, token, password string) error
	ResolveFederated(ctx context.Context, identity *models.Identity) (*models.User, error)
}

// OTPServiceInterface defines the interface for one-time code operations
type OTPServiceInterface interface {
	Issue(ctx context.Context, email string, purpose models.OTPPurpose) (*models.OTPCode, error)
	Verify(ctx context.Context, email, code string, purpose models.OTPPurpose) (*services.VerifyResult, error)
}

// SessionIssuer mints signed session tokens
type SessionIssuer interface {
	Issue(ctx context.Context, userID string) (string, error)
	MaxAge() time.Duration
}

// FederatedFlow runs the provider side of federated sign-in
type FederatedFlow interface {
	Begin(w http.ResponseWriter) (string, error)
	Complete(w http.ResponseWriter, r *http.Request) (*models.Identity, error)
}

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	authService   AuthServiceInterface
	otpService    OTPServiceInterface
	sessions      SessionIssuer
	csrfManager   *auth.CSRFTokenManager
	oauth         FederatedFlow
	cookieConfig  auth.CookieConfig
	afterLoginURL string
	logger        *slog.Logger
}

// NewAuthHandler creates a new AuthHandler. oauth may be nil when federated
// sign-in is not configured.
func NewAuthHandler(
	authService AuthServiceInterface,
	otpService OTPServiceInterface,
	sessions SessionIssuer,
	csrfManager *auth.CSRFTokenManager,
	oauth FederatedFlow,
	cookieConfig auth.CookieConfig,
	afterLoginURL string,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		authService:   authService,
		otpService:    otpService,
		sessions:      sessions,
		csrfManager:   csrfManager,
		oauth:         oauth,
		cookieConfig:  cookieConfig,
		afterLoginURL: afterLoginURL,
		logger:        logger,
	}
}

// Request DTOs

// RegisterRequest represents the request body for registration
type RegisterRequest struct {
	Name     string `json:"name" validate:"required,min=1,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// SendOTPRequest represents the request body for requesting a code
type SendOTPRequest struct {
	Email string `json:"email" validate:"required,email"`
	Type  string `json:"type" validate:"required,oneof=verification password_reset login"`
}

// VerifyOTPRequest represents the request body for submitting a code
type VerifyOTPRequest struct {
	Email string `json:"email" validate:"required,email"`
	OTP   string `json:"otp" validate:"required"`
	Type  string `json:"type" validate:"required,oneof=verification password_reset login"`
}

// VerifyEmailRequest is the dedicated email-verification alias
type VerifyEmailRequest struct {
	Email string `json:"email" validate:"required,email"`
	OTP   string `json:"otp" validate:"required"`
}

// ResetPasswordRequest represents the request body for completing a reset
type ResetPasswordRequest struct {
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// LoginRequest represents the request body for login. Exactly one of
// password or otp must be set.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password"`
	OTP      string `json:"otp"`
}

// UserResponse is the public projection of an account
type UserResponse struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	Name          string    `json:"name"`
	AvatarURL     string    `json:"avatar_url,omitempty"`
	EmailVerified bool      `json:"email_verified"`
	IsAdmin       bool      `json:"is_admin"`
	CreatedAt     time.Time `json:"created_at"`
}

func toUserResponse(user *models.User) *UserResponse {
	return &UserResponse{
		ID:            user.ID,
		Email:         user.Email,
		Name:          user.Name,
		AvatarURL:     user.AvatarURL,
		EmailVerified: user.EmailVerified,
		IsAdmin:       user.IsAdmin,
		CreatedAt:     user.CreatedAt,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// badRequestMessage strips the sentinel prefix so the wrapped detail reads
// cleanly on the wire
func badRequestMessage(err error) string {
	msg := strings.TrimPrefix(err.Error(), models.ErrBadRequest.Error()+": ")
	if msg == "" || msg == models.ErrBadRequest.Error() {
		return "Invalid request"
	}
	return msg
}

// Register handles account creation
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	req.Email = normalizeEmail(req.Email)

	user, err := h.authService.Register(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrBadRequest):
			pkghttp.WriteBadRequest(w, badRequestMessage(err))
		case errors.Is(err, models.ErrConflict):
			pkghttp.WriteConflict(w, "An account with this email already exists")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusCreated, map[string]any{
		"message":  "Account created. Check your email for a verification code.",
		"user":     toUserResponse(user),
		"redirect": "/verify-email",
	})
}

// SendOTP issues a one-time code for the requested purpose
func (h *AuthHandler) SendOTP(w http.ResponseWriter, r *http.Request) {
	var req SendOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	req.Email = normalizeEmail(req.Email)

	otp, err := h.otpService.Issue(r.Context(), req.Email, models.OTPPurpose(req.Type))
	if err != nil {
		if errors.Is(err, models.ErrBadRequest) {
			pkghttp.WriteBadRequest(w, badRequestMessage(err))
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]any{
		"message":    "A code has been sent to your email address",
		"expires_at": otp.ExpiresAt,
	})
}

// VerifyOTP consumes a submitted code and returns the type-specific result
func (h *AuthHandler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req VerifyOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	h.verifyOTP(w, r, normalizeEmail(req.Email), req.OTP, models.OTPPurpose(req.Type))
}

// VerifyEmail is the dedicated alias for verification codes
func (h *AuthHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req VerifyEmailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	h.verifyOTP(w, r, normalizeEmail(req.Email), req.OTP, models.OTPPurposeVerification)
}

func (h *AuthHandler) verifyOTP(w http.ResponseWriter, r *http.Request, email, code string, purpose models.OTPPurpose) {
	result, err := h.otpService.Verify(r.Context(), email, code, purpose)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrInvalidOTP):
			pkghttp.WriteBadRequest(w, "Invalid or expired OTP")
		case errors.Is(err, models.ErrBadRequest):
			pkghttp.WriteBadRequest(w, badRequestMessage(err))
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	switch result.Purpose {
	case models.OTPPurposeVerification:
		pkghttp.WriteJSON(w, http.StatusOK, map[string]any{
			"message":  "Email verified. You can now sign in.",
			"verified": true,
		})
	case models.OTPPurposePasswordReset:
		pkghttp.WriteJSON(w, http.StatusOK, map[string]any{
			"message":     "Code verified. Use the reset token to set a new password.",
			"reset_token": result.ResetToken,
			"expires_at":  result.ExpiresAt,
		})
	default:
		pkghttp.WriteJSON(w, http.StatusOK, map[string]any{
			"message":        "Code verified",
			"verified":       true,
			"login_verified": true,
		})
	}
}

// ResetPassword completes a reset using a previously minted token
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	if err := h.authService.ResetPassword(r.Context(), req.Token, req.Password); err != nil {
		if errors.Is(err, models.ErrBadRequest) {
			pkghttp.WriteBadRequest(w, badRequestMessage(err))
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]any{
		"message": "Password updated. You can now sign in.",
	})
}

// Login authenticates with either a password or a login code and starts a
// session
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	var secret services.Secret
	switch {
	case req.Password != "" && req.OTP != "":
		pkghttp.WriteBadRequest(w, "Provide either a password or a code, not both")
		return
	case req.Password != "":
		secret = services.PasswordSecret(req.Password)
	case req.OTP != "":
		secret = services.OTPSecret(req.OTP)
	default:
		pkghttp.WriteBadRequest(w, "Password or code is required")
		return
	}

	req.Email = normalizeEmail(req.Email)

	user, err := h.authService.Authorize(r.Context(), req.Email, secret)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrEmailNotVerified):
			pkghttp.WriteUnauthorized(w, "Please verify your email address before signing in")
		case errors.Is(err, models.ErrInvalidCredentials):
			pkghttp.WriteUnauthorized(w, "Invalid email or password")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	if err := h.startSession(w, r, user); err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]any{
		"message": "Signed in",
		"user":    toUserResponse(user),
	})
}

// startSession mints the session token and sets the session and CSRF cookies
func (h *AuthHandler) startSession(w http.ResponseWriter, r *http.Request, user *models.User) error {
	token, err := h.sessions.Issue(r.Context(), user.ID)
	if err != nil {
		h.logger.Error("failed to issue session",
			slog.String("user_id", user.ID),
			slog.Any("error", err))
		return err
	}

	auth.SetSessionCookie(w, token, h.sessions.MaxAge(), h.cookieConfig)

	csrfToken, err := h.csrfManager.GenerateToken(user.ID)
	if err != nil {
		h.logger.Error("failed to generate csrf token",
			slog.String("user_id", user.ID),
			slog.Any("error", err))
		return err
	}
	auth.SetCSRFTokenCookie(w, csrfToken, h.sessions.MaxAge(), h.cookieConfig)

	return nil
}

// Logout clears the session cookie. Stateless sessions cannot be revoked
// server-side; the cookie removal ends the browser session.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	auth.ClearSessionCookie(w, h.cookieConfig)
	w.WriteHeader(http.StatusNoContent)
}

// GoogleLogin starts the federated sign-in flow
func (h *AuthHandler) GoogleLogin(w http.ResponseWriter, r *http.Request) {
	if h.oauth == nil {
		pkghttp.WriteError(w, http.StatusServiceUnavailable, "Federated sign-in is not configured")
		return
	}

	url, err := h.oauth.Begin(w)
	if err != nil {
		h.logger.Error("failed to start oauth flow", slog.Any("error", err))
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	http.Redirect(w, r, url, http.StatusFound)
}

// GoogleCallback completes federated sign-in and starts a session
func (h *AuthHandler) GoogleCallback(w http.ResponseWriter, r *http.Request) {
	if h.oauth == nil {
		pkghttp.WriteError(w, http.StatusServiceUnavailable, "Federated sign-in is not configured")
		return
	}

	identity, err := h.oauth.Complete(w, r)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrOAuthUnverifiedEmail):
			pkghttp.WriteForbidden(w, "Your Google account email is not verified")
		default:
			h.logger.Warn("oauth callback rejected", slog.Any("error", err))
			pkghttp.WriteBadRequest(w, "Sign-in could not be completed")
		}
		return
	}

	user, err := h.authService.ResolveFederated(r.Context(), identity)
	if err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	if err := h.startSession(w, r, user); err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	http.Redirect(w, r, h.afterLoginURL, http.StatusSeeOther)
}
