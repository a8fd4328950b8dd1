package integration

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/brinebarrel/storefront-api/internal/database"
	"github.com/brinebarrel/storefront-api/internal/models"
	"github.com/brinebarrel/storefront-api/pkg/auth"
)

// TestDB manages a PostgreSQL testcontainer and its connection pool
type TestDB struct {
	Container  testcontainers.Container
	ConnString string
	Pool       *pgxpool.Pool
	DB         *database.DB
}

// SetupTestDatabase starts a PostgreSQL container, runs migrations, and
// returns a ready-to-use TestDB.
func SetupTestDatabase(ctx context.Context) (*TestDB, error) {
	container, err := postgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:16-alpine"),
		postgres.WithDatabase("storefront"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start postgres container: %w", err)
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		container.Terminate(ctx)
		return nil, fmt.Errorf("failed to get connection string: %w", err)
	}

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		container.Terminate(ctx)
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		container.Terminate(ctx)
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	db := database.NewFromPool(pool, quiet)

	if err := db.Migrate(); err != nil {
		pool.Close()
		container.Terminate(ctx)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &TestDB{
		Container:  container,
		ConnString: connStr,
		Pool:       pool,
		DB:         db,
	}, nil
}

// Teardown closes the pool and stops the container
func (db *TestDB) Teardown(ctx context.Context) error {
	if db.Pool != nil {
		db.Pool.Close()
	}
	if db.Container != nil {
		return db.Container.Terminate(ctx)
	}
	return nil
}

// CleanupTables truncates all tables for test isolation
func (db *TestDB) CleanupTables(ctx context.Context) error {
	tables := []string{
		"password_reset_tokens",
		"otp_codes",
		"users",
	}

	for _, table := range tables {
		if _, err := db.Pool.Exec(ctx, fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table)); err != nil {
			return fmt.Errorf("failed to truncate table %s: %w", table, err)
		}
	}

	return nil
}

// SeedUser inserts a user with a bcrypt-hashed password
func SeedUser(ctx context.Context, pool *pgxpool.Pool, email, password string, verified bool) (*models.User, error) {
	hashedPassword, err := auth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	query := `
		INSERT INTO users (email, password_hash, name, email_verified, verified_at)
		VALUES (LOWER($1), $2, $3, $4, CASE WHEN $4 THEN NOW() ELSE NULL END)
		RETURNING id, email, password_hash, name, email_verified, is_admin, created_at, updated_at
	`

	var user models.User
	err = pool.QueryRow(ctx, query, email, hashedPassword, "Test User", verified).Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.Name,
		&user.EmailVerified,
		&user.IsAdmin,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}

	return &user, nil
}

// PromoteToAdmin flips the admin flag on an existing account
func PromoteToAdmin(ctx context.Context, pool *pgxpool.Pool, email string) error {
	tag, err := pool.Exec(ctx,
		`UPDATE users SET is_admin = TRUE, updated_at = NOW() WHERE LOWER(email) = LOWER($1)`, email)
	if err != nil {
		return fmt.Errorf("failed to promote user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("no user with email %s", email)
	}
	return nil
}

// LatestOTPCode reads the most recent unconsumed code for an address
// straight off the ledger. Used to cross-check what the email capture saw.
func LatestOTPCode(ctx context.Context, pool *pgxpool.Pool, email, purpose string) (string, error) {
	var code string
	err := pool.QueryRow(ctx, `
		SELECT code FROM otp_codes
		WHERE LOWER(email) = LOWER($1) AND purpose = $2 AND used = FALSE
		ORDER BY created_at DESC
		LIMIT 1
	`, email, purpose).Scan(&code)
	if err != nil {
		return "", fmt.Errorf("failed to read latest code: %w", err)
	}
	return code, nil
}

// ExpireOTPCodes backdates every pending code for an address so expiry
// paths can be exercised without waiting.
func ExpireOTPCodes(ctx context.Context, pool *pgxpool.Pool, email string) error {
	_, err := pool.Exec(ctx, `
		UPDATE otp_codes SET expires_at = NOW() - INTERVAL '1 minute'
		WHERE LOWER(email) = LOWER($1) AND used = FALSE
	`, email)
	if err != nil {
		return fmt.Errorf("failed to expire codes: %w", err)
	}
	return nil
}
