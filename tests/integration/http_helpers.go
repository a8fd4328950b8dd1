package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/brinebarrel/storefront-api/internal/auth"
	"github.com/brinebarrel/storefront-api/internal/handlers"
	middlewareCustom "github.com/brinebarrel/storefront-api/internal/middleware"
	"github.com/brinebarrel/storefront-api/internal/models"
	"github.com/brinebarrel/storefront-api/internal/ratelimit"
	"github.com/brinebarrel/storefront-api/internal/repositories"
	"github.com/brinebarrel/storefront-api/internal/routes"
	"github.com/brinebarrel/storefront-api/internal/services"
	pkglogger "github.com/brinebarrel/storefront-api/pkg/logger"
)

// SentEmail captures one dispatched code
type SentEmail struct {
	Email     string
	Code      string
	Purpose   models.OTPPurpose
	ExpiresAt time.Time
}

// CapturingEmailSender records codes instead of dispatching them
type CapturingEmailSender struct {
	mu   sync.Mutex
	Sent []SentEmail
}

func (c *CapturingEmailSender) SendOTPEmail(ctx context.Context, email, code string, purpose models.OTPPurpose, expiresAt time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Sent = append(c.Sent, SentEmail{Email: email, Code: code, Purpose: purpose, ExpiresAt: expiresAt})
	return nil
}

// LastCodeFor returns the most recent code sent to an address for a purpose
func (c *CapturingEmailSender) LastCodeFor(email string, purpose models.OTPPurpose) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.Sent) - 1; i >= 0; i-- {
		if c.Sent[i].Email == email && c.Sent[i].Purpose == purpose {
			return c.Sent[i].Code
		}
	}
	return ""
}

// Reset drops recorded emails between tests
func (c *CapturingEmailSender) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Sent = nil
}

// TestServer runs the full HTTP stack against a real database with
// email capture in place of SES.
type TestServer struct {
	Server *httptest.Server
	DB     *TestDB
	Email  *CapturingEmailSender

	csrfManager *auth.CSRFTokenManager
}

// NewTestServer wires repositories, services, handlers, and routes the
// same way cmd/api does, with generous rate budgets so tests don't trip
// them by accident.
func NewTestServer(db *TestDB) *TestServer {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	userRepo := repositories.NewUserRepository(db.DB)
	otpRepo := repositories.NewOTPRepository(db.DB)
	resetRepo := repositories.NewPasswordResetRepository(db.DB)

	auditLogger := pkglogger.NewAuditLogger(logger)
	emailSender := &CapturingEmailSender{}

	otpService := services.NewOTPService(
		otpRepo, resetRepo, userRepo, emailSender,
		auditLogger, logger,
		10*time.Minute, time.Hour,
	)

	// Zero timing delay keeps failure-path tests fast
	timingDelay := auth.NewTimingDelay(0, 0)

	authService := services.NewAuthService(
		userRepo, resetRepo, otpService,
		timingDelay, auditLogger, logger,
		"owner@brinebarrel.com",
	)

	sessionManager := auth.NewSessionManager(
		"test-secret-32-characters-long-for-testing",
		30*24*time.Hour,
		userRepo,
	)
	csrfManager := auth.NewCSRFTokenManager()

	cookieConfig := auth.CookieConfig{SameSite: "lax"}

	authHandler := handlers.NewAuthHandler(
		authService, otpService, sessionManager, csrfManager,
		nil, cookieConfig, "/account", logger,
	)
	userHandler := handlers.NewUserHandler(userRepo)

	limiter := ratelimit.NewMemoryLimiter()
	budgets := routes.Budgets{
		Register: ratelimit.Budget{Name: "register", Limit: 1000, Window: time.Hour},
		OTP:      ratelimit.Budget{Name: "otp", Limit: 1000, Window: time.Hour},
		Read:     ratelimit.Budget{Name: "read", Limit: 1000, Window: time.Hour},
		Write:    ratelimit.Budget{Name: "write", Limit: 1000, Window: time.Hour},
	}

	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: "test"}))
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(60 * time.Second))

	routes.RegisterRoutes(r, authHandler, userHandler, sessionManager, csrfManager, limiter, budgets, logger)

	server := httptest.NewServer(r)

	return &TestServer{
		Server:      server,
		DB:          db,
		Email:       emailSender,
		csrfManager: csrfManager,
	}
}

// Close shuts down the test server
func (ts *TestServer) Close() {
	if ts.Server != nil {
		ts.Server.Close()
	}
	if ts.csrfManager != nil {
		ts.csrfManager.Stop()
	}
}

// Request makes a JSON request against the test server. Extra headers
// and cookies ride along when provided.
func (ts *TestServer) Request(method, path string, body interface{}, headers map[string]string, cookies []*http.Cookie) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequest(method, ts.Server.URL+path, bodyReader)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}

	return http.DefaultClient.Do(req)
}

// Post is Request without headers or cookies
func (ts *TestServer) Post(path string, body interface{}) (*http.Response, error) {
	return ts.Request(http.MethodPost, path, body, nil, nil)
}

// Login authenticates with a password and returns the session and CSRF
// cookies from the response.
func (ts *TestServer) Login(email, password string) ([]*http.Cookie, error) {
	resp, err := ts.Post("/api/auth/login", map[string]string{
		"email":    email,
		"password": password,
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("login failed with status %d: %s", resp.StatusCode, raw)
	}
	return resp.Cookies(), nil
}

// ParseJSONResponse decodes a response body into target and closes it
func ParseJSONResponse(resp *http.Response, target interface{}) error {
	defer resp.Body.Close()
	return json.NewDecoder(resp.Body).Decode(target)
}

// CookieNamed finds a cookie by name, or nil
func CookieNamed(cookies []*http.Cookie, name string) *http.Cookie {
	for _, c := range cookies {
		if c.Name == name {
			return c
		}
	}
	return nil
}
