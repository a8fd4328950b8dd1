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

const otpColumns = `id, email, code, purpose, expires_at, used, used_at, created_at`

// OTPRepository handles OTP ledger data access. Rows are append-and-consume
// only; nothing is ever deleted.
type OTPRepository struct {
	pool *pgxpool.Pool
}

func NewOTPRepository(db *database.DB) *OTPRepository {
	return &OTPRepository{pool: db.Pool}
}

// scanOTPRow handles nullable fields and populates an OTPCode model from a database row
func scanOTPRow(scanner rowScanner) (*models.OTPCode, error) {
	var otp models.OTPCode
	var usedAt *time.Time

	err := scanner.Scan(
		&otp.ID, &otp.Email, &otp.Code, &otp.Purpose,
		&otp.ExpiresAt, &otp.Used, &usedAt, &otp.CreatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	otp.UsedAt = usedAt
	return &otp, nil
}

// Create appends a new code to the ledger. Outstanding codes for the same
// email and purpose are left untouched.
func (r *OTPRepository) Create(ctx context.Context, email, code string, purpose models.OTPPurpose, expiresAt time.Time) (*models.OTPCode, error) {
	query := `
		INSERT INTO otp_codes (email, code, purpose, expires_at)
		VALUES (LOWER($1), $2, $3, $4)
		RETURNING ` + otpColumns

	otp, err := scanOTPRow(r.pool.QueryRow(ctx, query, email, code, purpose, expiresAt))
	if err != nil {
		return nil, fmt.Errorf("failed to create OTP code: %w", err)
	}

	return otp, nil
}

// Consume marks the most recently created matching, unconsumed, unexpired
// code as used and returns it. The used flag is flipped in the same
// conditional UPDATE that selects the row, so two concurrent attempts with
// the same code cannot both succeed; the loser sees ErrInvalidOTP.
func (r *OTPRepository) Consume(ctx context.Context, email, code string, purpose models.OTPPurpose) (*models.OTPCode, error) {
	query := `
		UPDATE otp_codes
		SET used = TRUE, used_at = NOW()
		WHERE id = (
			SELECT id FROM otp_codes
			WHERE LOWER(email) = LOWER($1) AND code = $2 AND purpose = $3
			  AND used = FALSE AND expires_at > NOW()
			ORDER BY created_at DESC
			LIMIT 1
		)
		AND used = FALSE
		RETURNING ` + otpColumns

	otp, err := scanOTPRow(r.pool.QueryRow(ctx, query, email, code, purpose))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrInvalidOTP
		}
		return nil, err
	}

	return otp, nil
}

// GetLatest returns the most recently created code for an email and purpose,
// consumed or not. Used by tests and the admin audit view.
func (r *OTPRepository) GetLatest(ctx context.Context, email string, purpose models.OTPPurpose) (*models.OTPCode, error) {
	query := `
		SELECT ` + otpColumns + `
		FROM otp_codes
		WHERE LOWER(email) = LOWER($1) AND purpose = $2
		ORDER BY created_at DESC
		LIMIT 1
	`

	otp, err := scanOTPRow(r.pool.QueryRow(ctx, query, email, purpose))
	if err != nil {
		return nil, err
	}

	return otp, nil
}

// CountRecent returns how many codes were issued for an email and purpose
// since the given time.
func (r *OTPRepository) CountRecent(ctx context.Context, email string, purpose models.OTPPurpose, since time.Time) (int, error) {
	query := `
		SELECT COUNT(*) FROM otp_codes
		WHERE LOWER(email) = LOWER($1) AND purpose = $2 AND created_at > $3
	`

	var count int
	if err := r.pool.QueryRow(ctx, query, email, purpose, since).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count recent OTP codes: %w", err)
	}

	return count, nil
}
