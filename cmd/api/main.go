package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/brinebarrel/storefront-api/internal/auth"
	"github.com/brinebarrel/storefront-api/internal/background"
	"github.com/brinebarrel/storefront-api/internal/config"
	"github.com/brinebarrel/storefront-api/internal/database"
	"github.com/brinebarrel/storefront-api/internal/handlers"
	middlewareCustom "github.com/brinebarrel/storefront-api/internal/middleware"
	"github.com/brinebarrel/storefront-api/internal/ratelimit"
	"github.com/brinebarrel/storefront-api/internal/repositories"
	"github.com/brinebarrel/storefront-api/internal/routes"
	"github.com/brinebarrel/storefront-api/internal/services"
	pkglogger "github.com/brinebarrel/storefront-api/pkg/logger"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("configuration loaded", slog.String("env", cfg.Server.Env))

	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		logger.Error("failed to run migrations", slog.Any("error", err))
		os.Exit(1)
	}

	// Repositories
	userRepo := repositories.NewUserRepository(db)
	otpRepo := repositories.NewOTPRepository(db)
	resetRepo := repositories.NewPasswordResetRepository(db)

	auditLogger := pkglogger.NewAuditLogger(logger)

	// Email dispatch via SES
	emailService, err := services.NewAWSSESEmailService(
		cfg.Email.AWSRegion,
		cfg.Email.FromAddress,
		cfg.Email.BrandName,
		cfg.Email.SupportURL,
		logger,
	)
	if err != nil {
		logger.Error("failed to initialize email service", slog.Any("error", err))
		os.Exit(1)
	}

	// Core services
	otpService := services.NewOTPService(
		otpRepo, resetRepo, userRepo, emailService,
		auditLogger, logger,
		cfg.Auth.OTPExpiry, cfg.Auth.ResetTokenExpiry,
	)

	timingDelay := auth.NewTimingDelay(100*time.Millisecond, 150*time.Millisecond)

	authService := services.NewAuthService(
		userRepo, resetRepo, otpService,
		timingDelay, auditLogger, logger,
		cfg.Auth.AdminEmail,
	)

	sessionManager := auth.NewSessionManager(cfg.Auth.SessionSecret, cfg.Auth.SessionMaxAge, userRepo)
	csrfManager := auth.NewCSRFTokenManager()

	cookieConfig := auth.CookieConfig{
		Domain:   cfg.Auth.CookieDomain,
		Secure:   cfg.Server.Env == "production",
		SameSite: "lax",
	}

	// Federated sign-in is optional; skip when Google is not configured
	var oauthFlow handlers.FederatedFlow
	if cfg.OAuth.GoogleClientID != "" {
		googleOAuth, err := auth.NewGoogleOAuth(
			context.Background(),
			cfg.OAuth.GoogleClientID,
			cfg.OAuth.GoogleClientSecret,
			cfg.OAuth.GoogleRedirectURL,
			cookieConfig.Secure,
		)
		if err != nil {
			logger.Error("failed to initialize google sign-in", slog.Any("error", err))
			os.Exit(1)
		}
		oauthFlow = googleOAuth
	} else {
		logger.Info("google sign-in not configured, federated routes disabled")
	}

	// Handlers
	authHandler := handlers.NewAuthHandler(
		authService, otpService, sessionManager, csrfManager,
		oauthFlow, cookieConfig, cfg.OAuth.AfterLoginURL, logger,
	)
	userHandler := handlers.NewUserHandler(userRepo)

	// Rate limiting: named budgets over the shared limiter plus a global cap
	limiter := ratelimit.NewMemoryLimiter()
	multiplier := cfg.RateLimit.TestMultiplier
	budgets := routes.Budgets{
		Register: ratelimit.Budget{Name: "register", Limit: cfg.RateLimit.RegisterLimit, Window: cfg.RateLimit.RegisterWindow}.Relaxed(multiplier),
		OTP:      ratelimit.Budget{Name: "otp", Limit: cfg.RateLimit.OTPLimit, Window: cfg.RateLimit.OTPWindow}.Relaxed(multiplier),
		Read:     ratelimit.Budget{Name: "read", Limit: cfg.RateLimit.ReadLimit, Window: cfg.RateLimit.ReadWindow}.Relaxed(multiplier),
		Write:    ratelimit.Budget{Name: "write", Limit: cfg.RateLimit.WriteLimit, Window: cfg.RateLimit.WriteWindow}.Relaxed(multiplier),
	}

	// Background cleanup of stale reset tokens
	cleanupManager := background.NewCleanupManager(resetRepo, logger, cfg.Auth.CleanupInterval)

	// CORS
	corsConfig := middlewareCustom.DefaultCORSConfig(cfg.Server.AllowedOrigins)

	// Router
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middlewareCustom.CORS(corsConfig))
	router.Use(middlewareCustom.SecureLogger(logger))
	router.Use(middlewareCustom.GlobalRateLimit(cfg.RateLimit.GlobalPerMinute))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	routes.RegisterRoutes(router, authHandler, userHandler, sessionManager, csrfManager, limiter, budgets, logger)

	// Health check with database
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := db.HealthCheck(ctx); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unhealthy","database":"down"}`))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy","database":"up"}`))
	})

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()

	go cleanupManager.Start(cleanupCtx)

	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	cleanupCancel()
	cleanupManager.Stop()
	csrfManager.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server stopped gracefully")
}
