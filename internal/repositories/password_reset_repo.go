package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/brinebarrel/storefront-api/internal/database"
	"github.com/brinebarrel/storefront-api/internal/models"
	"github.com/jackc/pgx/v5/pgxpool"
)

const resetTokenColumns = `id, email, token, expires_at, used, used_at, created_at`

// PasswordResetRepository handles password reset token data access
type PasswordResetRepository struct {
	pool *pgxpool.Pool
}

func NewPasswordResetRepository(db *database.DB) *PasswordResetRepository {
	return &PasswordResetRepository{pool: db.Pool}
}

func scanResetTokenRow(scanner rowScanner) (*models.PasswordResetToken, error) {
	var t models.PasswordResetToken
	var usedAt *time.Time

	err := scanner.Scan(
		&t.ID, &t.Email, &t.Token, &t.ExpiresAt, &t.Used, &usedAt, &t.CreatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	t.UsedAt = usedAt
	return &t, nil
}

// Create stores a new reset token for an email.
func (r *PasswordResetRepository) Create(ctx context.Context, email, token string, expiresAt time.Time) (*models.PasswordResetToken, error) {
	query := `
		INSERT INTO password_reset_tokens (email, token, expires_at)
		VALUES (LOWER($1), $2, $3)
		RETURNING ` + resetTokenColumns

	created, err := scanResetTokenRow(r.pool.QueryRow(ctx, query, email, token, expiresAt))
	if err != nil {
		return nil, fmt.Errorf("failed to create password reset token: %w", err)
	}

	return created, nil
}

// Consume marks an unused, unexpired token as used and returns it. The used
// flag flips in the same conditional UPDATE that matches the token, so the
// token is single-use even under concurrent requests.
func (r *PasswordResetRepository) Consume(ctx context.Context, token string) (*models.PasswordResetToken, error) {
	query := `
		UPDATE password_reset_tokens
		SET used = TRUE, used_at = NOW()
		WHERE token = $1 AND used = FALSE AND expires_at > NOW()
		RETURNING ` + resetTokenColumns

	consumed, err := scanResetTokenRow(r.pool.QueryRow(ctx, query, token))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrUnauthorized
		}
		return nil, err
	}

	return consumed, nil
}

// CleanupExpired deletes expired tokens older than the retention threshold.
func (r *PasswordResetRepository) CleanupExpired(ctx context.Context) (int64, error) {
	query := `
		DELETE FROM password_reset_tokens
		WHERE expires_at < NOW() - INTERVAL '7 days'
	`

	result, err := r.pool.Exec(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup expired reset tokens: %w", err)
	}

	return result.RowsAffected(), nil
}
