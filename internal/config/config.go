package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Database  DatabaseConfig
	Server    ServerConfig
	Auth      AuthConfig
	Email     EmailConfig
	OAuth     OAuthConfig
	RateLimit RateLimitConfig
}

type DatabaseConfig struct {
	Host              string
	Port              int
	User              string
	Password          string
	Name              string
	SSLMode           string
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
}

type ServerConfig struct {
	Port           string
	Env            string
	LogLevel       string
	AllowedOrigins []string
}

type AuthConfig struct {
	SessionSecret    string
	SessionMaxAge    time.Duration // 30 days
	OTPExpiry        time.Duration // 10 minutes
	ResetTokenExpiry time.Duration // 1 hour
	AdminEmail       string        // registering with this address grants the admin flag
	CookieDomain     string
	CleanupInterval  time.Duration
}

type EmailConfig struct {
	AWSRegion   string
	FromAddress string
	BrandName   string
	SupportURL  string
}

type OAuthConfig struct {
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string
	AfterLoginURL      string
}

// RateLimitConfig holds the named request budgets. TestMultiplier relaxes
// every budget outside production so automated tests are not throttled; it
// must never be set in production deployments.
type RateLimitConfig struct {
	RegisterLimit   int
	RegisterWindow  time.Duration
	OTPLimit        int
	OTPWindow       time.Duration
	ReadLimit       int
	ReadWindow      time.Duration
	WriteLimit      int
	WriteWindow     time.Duration
	GlobalPerMinute int
	TestMultiplier  int
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	sessionSecret := getEnv("SESSION_SECRET", "")
	if sessionSecret == "" {
		return nil, fmt.Errorf("SESSION_SECRET is required")
	}

	env := getEnv("ENV", "development")

	cfg := &Config{
		Database: DatabaseConfig{
			Host:              getEnv("DB_HOST", "localhost"),
			Port:              getEnvAsInt("DB_PORT", 5432),
			User:              getEnv("DB_USER", "postgres"),
			Password:          getEnv("DB_PASSWORD", ""),
			Name:              getEnv("DB_NAME", "storefront"),
			SSLMode:           getEnv("DB_SSLMODE", "disable"),
			MaxConns:          int32(getEnvAsInt("DB_MAX_CONNS", 25)),
			MinConns:          int32(getEnvAsInt("DB_MIN_CONNS", 5)),
			MaxConnLifetime:   getEnvAsDuration("DB_MAX_CONN_LIFETIME", 5*time.Minute),
			MaxConnIdleTime:   getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 1*time.Minute),
			HealthCheckPeriod: getEnvAsDuration("DB_HEALTH_CHECK_PERIOD", 1*time.Minute),
		},
		Server: ServerConfig{
			Port:           getEnv("PORT", "8080"),
			Env:            env,
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			AllowedOrigins: parseAllowedOrigins(env),
		},
		Auth: AuthConfig{
			SessionSecret:    sessionSecret,
			SessionMaxAge:    getEnvAsDuration("SESSION_MAX_AGE", 30*24*time.Hour),
			OTPExpiry:        getEnvAsDuration("OTP_EXPIRY", 10*time.Minute),
			ResetTokenExpiry: getEnvAsDuration("RESET_TOKEN_EXPIRY", 1*time.Hour),
			AdminEmail:       strings.ToLower(getEnv("ADMIN_EMAIL", "")),
			CookieDomain:     getEnv("COOKIE_DOMAIN", ""),
			CleanupInterval:  getEnvAsDuration("CLEANUP_INTERVAL", 1*time.Hour),
		},
		Email: EmailConfig{
			AWSRegion:   getEnv("AWS_REGION", "us-east-1"),
			FromAddress: getEnv("EMAIL_FROM", "no-reply@brinebarrel.com"),
			BrandName:   getEnv("EMAIL_BRAND_NAME", "Brine & Barrel"),
			SupportURL:  getEnv("EMAIL_SUPPORT_URL", "https://brinebarrel.com/support"),
		},
		OAuth: OAuthConfig{
			GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
			GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
			GoogleRedirectURL:  getEnv("GOOGLE_REDIRECT_URL", ""),
			AfterLoginURL:      getEnv("OAUTH_AFTER_LOGIN_URL", "/account"),
		},
		RateLimit: RateLimitConfig{
			RegisterLimit:   getEnvAsInt("RATE_LIMIT_REGISTER", 10),
			RegisterWindow:  getEnvAsDuration("RATE_LIMIT_REGISTER_WINDOW", 1*time.Hour),
			OTPLimit:        getEnvAsInt("RATE_LIMIT_OTP", 5),
			OTPWindow:       getEnvAsDuration("RATE_LIMIT_OTP_WINDOW", 15*time.Minute),
			ReadLimit:       getEnvAsInt("RATE_LIMIT_READ", 100),
			ReadWindow:      getEnvAsDuration("RATE_LIMIT_READ_WINDOW", 15*time.Minute),
			WriteLimit:      getEnvAsInt("RATE_LIMIT_WRITE", 20),
			WriteWindow:     getEnvAsDuration("RATE_LIMIT_WRITE_WINDOW", 15*time.Minute),
			GlobalPerMinute: getEnvAsInt("RATE_LIMIT_GLOBAL_PER_MINUTE", 300),
			TestMultiplier:  rateLimitTestMultiplier(env),
		},
	}

	if cfg.Database.Password == "" {
		return nil, fmt.Errorf("DB_PASSWORD is required")
	}

	if err := validateSessionSecret(sessionSecret, env); err != nil {
		return nil, err
	}

	if env == "production" && cfg.RateLimit.TestMultiplier > 1 {
		return nil, fmt.Errorf("RATE_LIMIT_TEST_MULTIPLIER must not be set in production")
	}

	return cfg, nil
}

// rateLimitTestMultiplier reads the relaxation factor. Only honored outside
// production; Load rejects a multiplier in production.
func rateLimitTestMultiplier(env string) int {
	if env == "production" {
		if os.Getenv("RATE_LIMIT_TEST_MULTIPLIER") != "" {
			return getEnvAsInt("RATE_LIMIT_TEST_MULTIPLIER", 1)
		}
		return 1
	}
	return getEnvAsInt("RATE_LIMIT_TEST_MULTIPLIER", 1)
}

// validateSessionSecret enforces minimum security standards for the signing secret
func validateSessionSecret(secret, env string) error {
	minLength := 16 // Development minimum
	if env == "production" {
		minLength = 32 // Production requires stronger secret (256 bits)
	}

	if len(secret) < minLength {
		return fmt.Errorf("SESSION_SECRET must be at least %d characters in %s environment (got %d)",
			minLength, env, len(secret))
	}

	weakSecrets := []string{
		"secret", "test", "password", "12345", "changeme",
		"admin", "root", "default", "example",
	}

	secretLower := strings.ToLower(secret)
	for _, weak := range weakSecrets {
		if secretLower == weak {
			return fmt.Errorf("SESSION_SECRET cannot be a common weak value")
		}
	}

	return nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultVal
}

func parseAllowedOrigins(env string) []string {
	if env == "production" {
		originsStr := getEnv("ALLOWED_ORIGINS", "")
		if originsStr == "" {
			return []string{} // Default to no origins in production
		}
		origins := strings.Split(originsStr, ",")
		for i, origin := range origins {
			origins[i] = strings.TrimSpace(origin)
		}
		return origins
	}

	// Development: allow localhost variants
	return []string{
		"http://localhost:3000",
		"http://localhost:8080",
		"http://localhost:5173",
		"http://127.0.0.1:3000",
		"http://127.0.0.1:8080",
		"http://127.0.0.1:5173",
	}
}
