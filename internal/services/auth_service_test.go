package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brinebarrel/storefront-api/internal/auth"
	"github.com/brinebarrel/storefront-api/internal/models"
	pkgauth "github.com/brinebarrel/storefront-api/pkg/auth"
)

func newTestAuthService(userRepo *MockUserRepository, resetRepo *MockPasswordResetRepository, engine *MockOTPEngine, adminEmail string) *AuthService {
	return NewAuthService(
		userRepo, resetRepo, engine,
		auth.NewTimingDelay(0, 0),
		testAuditLogger(), testLogger(),
		adminEmail,
	)
}

func TestAuthService_Register(t *testing.T) {
	t.Run("creates unverified account and issues verification code", func(t *testing.T) {
		var created *models.User
		var issuedPurpose models.OTPPurpose
		userRepo := &MockUserRepository{
			CreateFunc: func(ctx context.Context, user *models.User) (*models.User, error) {
				user.ID = "user_1"
				created = user
				return user, nil
			},
		}
		engine := &MockOTPEngine{
			IssueFunc: func(ctx context.Context, email string, purpose models.OTPPurpose) (*models.OTPCode, error) {
				issuedPurpose = purpose
				return &models.OTPCode{ID: "otp_1", Email: email, Purpose: purpose}, nil
			},
		}
		svc := newTestAuthService(userRepo, &MockPasswordResetRepository{}, engine, "")

		user, err := svc.Register(context.Background(), "Dill Pickleson", "shopper@example.com", "Brine4life")
		require.NoError(t, err)

		assert.False(t, created.EmailVerified)
		assert.False(t, created.IsAdmin)
		assert.Equal(t, models.OTPPurposeVerification, issuedPurpose)
		// Stored hash is bcrypt, never the plaintext
		assert.NotEqual(t, "Brine4life", user.PasswordHash)
		assert.NoError(t, pkgauth.ComparePassword(user.PasswordHash, "Brine4life"))
	})

	t.Run("admin address gets the admin flag", func(t *testing.T) {
		userRepo := &MockUserRepository{
			CreateFunc: func(ctx context.Context, user *models.User) (*models.User, error) {
				user.ID = "user_1"
				return user, nil
			},
		}
		svc := newTestAuthService(userRepo, &MockPasswordResetRepository{}, &MockOTPEngine{}, "owner@brinebarrel.com")

		user, err := svc.Register(context.Background(), "Owner", "Owner@BrineBarrel.com", "Brine4life")
		require.NoError(t, err)
		assert.True(t, user.IsAdmin)
	})

	t.Run("duplicate email via advisory check", func(t *testing.T) {
		userRepo := &MockUserRepository{
			GetByEmailFunc: func(ctx context.Context, email string) (*models.User, error) {
				return &models.User{ID: "user_1", Email: email}, nil
			},
		}
		svc := newTestAuthService(userRepo, &MockPasswordResetRepository{}, &MockOTPEngine{}, "")

		_, err := svc.Register(context.Background(), "Dup", "shopper@example.com", "Brine4life")
		assert.ErrorIs(t, err, models.ErrConflict)
	})

	t.Run("duplicate email via unique index race", func(t *testing.T) {
		userRepo := &MockUserRepository{
			CreateFunc: func(ctx context.Context, user *models.User) (*models.User, error) {
				return nil, models.ErrConflict
			},
		}
		svc := newTestAuthService(userRepo, &MockPasswordResetRepository{}, &MockOTPEngine{}, "")

		_, err := svc.Register(context.Background(), "Racer", "shopper@example.com", "Brine4life")
		assert.ErrorIs(t, err, models.ErrConflict)
	})

	t.Run("weak passwords rejected", func(t *testing.T) {
		svc := newTestAuthService(&MockUserRepository{}, &MockPasswordResetRepository{}, &MockOTPEngine{}, "")

		for _, password := range []string{"short1A", "nouppercase1", "NOLOWERCASE1", "NoDigitsHere"} {
			_, err := svc.Register(context.Background(), "Weak", "shopper@example.com", password)
			assert.ErrorIs(t, err, models.ErrBadRequest, "password %q should be rejected", password)
		}
	})

	t.Run("verification code failure does not fail registration", func(t *testing.T) {
		userRepo := &MockUserRepository{
			CreateFunc: func(ctx context.Context, user *models.User) (*models.User, error) {
				user.ID = "user_1"
				return user, nil
			},
		}
		engine := &MockOTPEngine{
			IssueFunc: func(ctx context.Context, email string, purpose models.OTPPurpose) (*models.OTPCode, error) {
				return nil, models.ErrInternalServer
			},
		}
		svc := newTestAuthService(userRepo, &MockPasswordResetRepository{}, engine, "")

		_, err := svc.Register(context.Background(), "Dill", "shopper@example.com", "Brine4life")
		assert.NoError(t, err)
	})
}

func verifiedUserWithPassword(t *testing.T, password string) *models.User {
	t.Helper()
	hash, err := pkgauth.HashPassword(password)
	require.NoError(t, err)
	return &models.User{
		ID:            "user_1",
		Email:         "shopper@example.com",
		PasswordHash:  hash,
		EmailVerified: true,
	}
}

func TestAuthService_Authorize(t *testing.T) {
	t.Run("password success", func(t *testing.T) {
		stored := verifiedUserWithPassword(t, "Brine4life")
		userRepo := &MockUserRepository{
			GetByEmailFunc: func(ctx context.Context, email string) (*models.User, error) {
				return stored, nil
			},
		}
		svc := newTestAuthService(userRepo, &MockPasswordResetRepository{}, &MockOTPEngine{}, "")

		user, err := svc.Authorize(context.Background(), "shopper@example.com", PasswordSecret("Brine4life"))
		require.NoError(t, err)
		assert.Equal(t, "user_1", user.ID)
	})

	t.Run("wrong password", func(t *testing.T) {
		stored := verifiedUserWithPassword(t, "Brine4life")
		userRepo := &MockUserRepository{
			GetByEmailFunc: func(ctx context.Context, email string) (*models.User, error) {
				return stored, nil
			},
		}
		svc := newTestAuthService(userRepo, &MockPasswordResetRepository{}, &MockOTPEngine{}, "")

		_, err := svc.Authorize(context.Background(), "shopper@example.com", PasswordSecret("WrongPass1"))
		assert.ErrorIs(t, err, models.ErrInvalidCredentials)
	})

	t.Run("unknown user indistinct from wrong password", func(t *testing.T) {
		svc := newTestAuthService(&MockUserRepository{}, &MockPasswordResetRepository{}, &MockOTPEngine{}, "")

		_, err := svc.Authorize(context.Background(), "ghost@example.com", PasswordSecret("Brine4life"))
		assert.ErrorIs(t, err, models.ErrInvalidCredentials)
	})

	t.Run("unverified account gets the distinct error", func(t *testing.T) {
		stored := verifiedUserWithPassword(t, "Brine4life")
		stored.EmailVerified = false
		userRepo := &MockUserRepository{
			GetByEmailFunc: func(ctx context.Context, email string) (*models.User, error) {
				return stored, nil
			},
		}
		svc := newTestAuthService(userRepo, &MockPasswordResetRepository{}, &MockOTPEngine{}, "")

		_, err := svc.Authorize(context.Background(), "shopper@example.com", PasswordSecret("Brine4life"))
		assert.ErrorIs(t, err, models.ErrEmailNotVerified)
	})

	t.Run("federated account without password rejects password login", func(t *testing.T) {
		userRepo := &MockUserRepository{
			GetByEmailFunc: func(ctx context.Context, email string) (*models.User, error) {
				return &models.User{ID: "user_1", Email: email, EmailVerified: true}, nil
			},
		}
		svc := newTestAuthService(userRepo, &MockPasswordResetRepository{}, &MockOTPEngine{}, "")

		_, err := svc.Authorize(context.Background(), "shopper@example.com", PasswordSecret("Brine4life"))
		assert.ErrorIs(t, err, models.ErrInvalidCredentials)
	})

	t.Run("otp secret consumes a login code", func(t *testing.T) {
		stored := verifiedUserWithPassword(t, "Brine4life")
		userRepo := &MockUserRepository{
			GetByEmailFunc: func(ctx context.Context, email string) (*models.User, error) {
				return stored, nil
			},
		}
		var verifiedPurpose models.OTPPurpose
		engine := &MockOTPEngine{
			VerifyFunc: func(ctx context.Context, email, code string, purpose models.OTPPurpose) (*VerifyResult, error) {
				verifiedPurpose = purpose
				return &VerifyResult{Purpose: purpose, Email: email}, nil
			},
		}
		svc := newTestAuthService(userRepo, &MockPasswordResetRepository{}, engine, "")

		user, err := svc.Authorize(context.Background(), "shopper@example.com", OTPSecret("123456"))
		require.NoError(t, err)
		assert.Equal(t, "user_1", user.ID)
		assert.Equal(t, models.OTPPurposeLogin, verifiedPurpose)
	})

	t.Run("rejected login code collapses to invalid credentials", func(t *testing.T) {
		stored := verifiedUserWithPassword(t, "Brine4life")
		userRepo := &MockUserRepository{
			GetByEmailFunc: func(ctx context.Context, email string) (*models.User, error) {
				return stored, nil
			},
		}
		engine := &MockOTPEngine{
			VerifyFunc: func(ctx context.Context, email, code string, purpose models.OTPPurpose) (*VerifyResult, error) {
				return nil, models.ErrInvalidOTP
			},
		}
		svc := newTestAuthService(userRepo, &MockPasswordResetRepository{}, engine, "")

		_, err := svc.Authorize(context.Background(), "shopper@example.com", OTPSecret("000000"))
		assert.ErrorIs(t, err, models.ErrInvalidCredentials)
	})
}

func TestAuthService_ResetPassword(t *testing.T) {
	t.Run("valid token updates the password", func(t *testing.T) {
		var updatedEmail, updatedHash string
		resetRepo := &MockPasswordResetRepository{
			ConsumeFunc: func(ctx context.Context, token string) (*models.PasswordResetToken, error) {
				return &models.PasswordResetToken{ID: "reset_1", Email: "shopper@example.com", Token: token, Used: true}, nil
			},
		}
		userRepo := &MockUserRepository{
			UpdatePasswordFunc: func(ctx context.Context, email, passwordHash string) error {
				updatedEmail = email
				updatedHash = passwordHash
				return nil
			},
		}
		svc := newTestAuthService(userRepo, resetRepo, &MockOTPEngine{}, "")

		err := svc.ResetPassword(context.Background(), "sometoken", "NewBrine42")
		require.NoError(t, err)

		assert.Equal(t, "shopper@example.com", updatedEmail)
		assert.NoError(t, pkgauth.ComparePassword(updatedHash, "NewBrine42"))
	})

	t.Run("spent or unknown token", func(t *testing.T) {
		svc := newTestAuthService(&MockUserRepository{}, &MockPasswordResetRepository{}, &MockOTPEngine{}, "")

		err := svc.ResetPassword(context.Background(), "spent", "NewBrine42")
		assert.ErrorIs(t, err, models.ErrBadRequest)
	})

	t.Run("weak replacement password rejected before consuming", func(t *testing.T) {
		consumeCalled := false
		resetRepo := &MockPasswordResetRepository{
			ConsumeFunc: func(ctx context.Context, token string) (*models.PasswordResetToken, error) {
				consumeCalled = true
				return nil, models.ErrUnauthorized
			},
		}
		svc := newTestAuthService(&MockUserRepository{}, resetRepo, &MockOTPEngine{}, "")

		err := svc.ResetPassword(context.Background(), "sometoken", "weak")
		assert.ErrorIs(t, err, models.ErrBadRequest)
		assert.False(t, consumeCalled)
	})
}

func TestAuthService_ResolveFederated(t *testing.T) {
	identity := &models.Identity{
		ID:        "google-sub-1",
		Email:     "shopper@example.com",
		Name:      "Dill Pickleson",
		AvatarURL: "https://example.com/avatar.png",
	}

	t.Run("first visit creates a verified account", func(t *testing.T) {
		var created *models.User
		userRepo := &MockUserRepository{
			CreateFunc: func(ctx context.Context, user *models.User) (*models.User, error) {
				user.ID = "user_1"
				created = user
				return user, nil
			},
		}
		svc := newTestAuthService(userRepo, &MockPasswordResetRepository{}, &MockOTPEngine{}, "")

		user, err := svc.ResolveFederated(context.Background(), identity)
		require.NoError(t, err)

		assert.True(t, created.EmailVerified)
		assert.False(t, created.HasPassword())
		assert.Equal(t, "Dill Pickleson", user.Name)
	})

	t.Run("later visit upgrades an unverified account", func(t *testing.T) {
		var markedEmail string
		userRepo := &MockUserRepository{
			GetByEmailFunc: func(ctx context.Context, email string) (*models.User, error) {
				return &models.User{ID: "user_1", Email: email, EmailVerified: false}, nil
			},
			MarkEmailVerifiedFunc: func(ctx context.Context, email string) error {
				markedEmail = email
				return nil
			},
		}
		svc := newTestAuthService(userRepo, &MockPasswordResetRepository{}, &MockOTPEngine{}, "")

		user, err := svc.ResolveFederated(context.Background(), identity)
		require.NoError(t, err)

		assert.Equal(t, "shopper@example.com", markedEmail)
		assert.True(t, user.EmailVerified)
	})

	t.Run("create race falls back to the winner's account", func(t *testing.T) {
		lookups := 0
		userRepo := &MockUserRepository{
			GetByEmailFunc: func(ctx context.Context, email string) (*models.User, error) {
				lookups++
				if lookups == 1 {
					return nil, models.ErrNotFound
				}
				return &models.User{ID: "user_1", Email: email, EmailVerified: true}, nil
			},
			CreateFunc: func(ctx context.Context, user *models.User) (*models.User, error) {
				return nil, models.ErrConflict
			},
		}
		svc := newTestAuthService(userRepo, &MockPasswordResetRepository{}, &MockOTPEngine{}, "")

		user, err := svc.ResolveFederated(context.Background(), identity)
		require.NoError(t, err)
		assert.Equal(t, "user_1", user.ID)
	})
}

// Timing delay should not block successful logins
func TestAuthService_AuthorizeSuccessIsNotDelayed(t *testing.T) {
	stored := verifiedUserWithPassword(t, "Brine4life")
	userRepo := &MockUserRepository{
		GetByEmailFunc: func(ctx context.Context, email string) (*models.User, error) {
			return stored, nil
		},
	}
	svc := NewAuthService(
		userRepo, &MockPasswordResetRepository{}, &MockOTPEngine{},
		auth.NewTimingDelay(5*time.Second, 0),
		testAuditLogger(), testLogger(), "",
	)

	done := make(chan error, 1)
	go func() {
		_, err := svc.Authorize(context.Background(), "shopper@example.com", PasswordSecret("Brine4life"))
		done <- err
	}()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("successful login was delayed")
	}
}

func TestSecretVariants(t *testing.T) {
	var s Secret = PasswordSecret("x")
	_, isPassword := s.(PasswordSecret)
	assert.True(t, isPassword)

	s = OTPSecret("123456")
	_, isOTP := s.(OTPSecret)
	assert.True(t, isOTP)
	assert.False(t, errors.Is(models.ErrInvalidCredentials, models.ErrInvalidOTP))
}
