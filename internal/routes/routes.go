package routes

import (
	"log/slog"

	"github.com/go-chi/chi/v5"

	"github.com/brinebarrel/storefront-api/internal/auth"
	"github.com/brinebarrel/storefront-api/internal/handlers"
	"github.com/brinebarrel/storefront-api/internal/middleware"
	"github.com/brinebarrel/storefront-api/internal/ratelimit"
)

// Budgets holds the named rate-limit budgets applied per route group
type Budgets struct {
	Register ratelimit.Budget
	OTP      ratelimit.Budget
	Read     ratelimit.Budget
	Write    ratelimit.Budget
}

// RegisterRoutes registers all application routes
func RegisterRoutes(
	router chi.Router,
	authHandler *handlers.AuthHandler,
	userHandler *handlers.UserHandler,
	sessionManager *auth.SessionManager,
	csrfManager *auth.CSRFTokenManager,
	limiter ratelimit.Limiter,
	budgets Budgets,
	logger *slog.Logger,
) {
	// Public auth routes
	router.With(middleware.RateLimit(limiter, budgets.Register)).
		Post("/api/auth/register", authHandler.Register)

	router.Group(func(r chi.Router) {
		r.Use(middleware.RateLimit(limiter, budgets.OTP))
		r.Post("/api/auth/otp/send", authHandler.SendOTP)
		r.Post("/api/auth/otp/verify", authHandler.VerifyOTP)
		r.Post("/api/auth/verify-email", authHandler.VerifyEmail)
	})

	router.Group(func(r chi.Router) {
		r.Use(middleware.RateLimit(limiter, budgets.Write))
		r.Post("/api/auth/login", authHandler.Login)
		r.Post("/api/auth/logout", authHandler.Logout)
		r.Post("/api/auth/reset-password", authHandler.ResetPassword)
	})

	// Federated sign-in (browser redirects, read budget)
	router.Group(func(r chi.Router) {
		r.Use(middleware.RateLimit(limiter, budgets.Read))
		r.Get("/api/auth/oauth/google", authHandler.GoogleLogin)
		r.Get("/api/auth/oauth/google/callback", authHandler.GoogleCallback)
	})

	// Session-protected routes
	router.Group(func(r chi.Router) {
		r.Use(auth.RequireSession(sessionManager))
		r.Use(middleware.CSRFProtection(csrfManager, logger))

		r.With(middleware.RateLimit(limiter, budgets.Read)).
			Get("/api/me", userHandler.Me)

		// Admin-only routes
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAdmin)
			r.With(middleware.RateLimit(limiter, budgets.Read)).
				Get("/api/admin/customers", userHandler.ListCustomers)
		})
	})
}
