package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmorozov-pr/identity-service/internal/domain"
	"github.com/dmorozov-pr/identity-service/pkg/database"
	"github.com/google/uuid"
)

// otpRepository implements OTPRepository interface
type otpRepository struct {
	db *database.Postgres
}

// NewOTPRepository creates a new OTP repository
func NewOTPRepository(db *database.Postgres) OTPRepository {
	return &otpRepository{db: db}
}

// Create creates a new one-time code row
func (r *otpRepository) Create(ctx context.Context, otp *domain.OTPCredential) error {
	query := `
		INSERT INTO otp_credentials (id, user_id, phone, code, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	if otp.ID == "" {
		otp.ID = uuid.New().String()
	}
	if otp.CreatedAt.IsZero() {
		otp.CreatedAt = time.Now()
	}

	_, err := r.db.DB.ExecContext(ctx, query,
		otp.ID,
		otp.UserID,
		otp.Phone,
		otp.Code,
		otp.ExpiresAt,
		otp.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create otp: %w", err)
	}

	return nil
}

// CountIssuedSince counts codes issued to a phone after the cutoff
func (r *otpRepository) CountIssuedSince(ctx context.Context, phone string, since time.Time) (int, error) {
	query := `SELECT COUNT(*) FROM otp_credentials WHERE phone = $1 AND created_at > $2`

	var count int
	if err := r.db.DB.QueryRowContext(ctx, query, phone, since).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count issued codes: %w", err)
	}

	return count, nil
}

// InvalidateUnusedByPhone retires every outstanding unused code for a phone
func (r *otpRepository) InvalidateUnusedByPhone(ctx context.Context, phone string) error {
	query := `UPDATE otp_credentials SET used = TRUE, used_at = now() WHERE phone = $1 AND used = FALSE`

	if _, err := r.db.DB.ExecContext(ctx, query, phone); err != nil {
		return fmt.Errorf("failed to invalidate codes: %w", err)
	}

	return nil
}

// Consume marks the newest matching live code as used in one guarded UPDATE,
// so concurrent validations of the same code succeed at most once.
func (r *otpRepository) Consume(ctx context.Context, phone, code string) (*domain.OTPCredential, error) {
	query := `
		UPDATE otp_credentials
		SET used = TRUE, used_at = now()
		WHERE id = (
			SELECT id FROM otp_credentials
			WHERE phone = $1 AND code = $2 AND used = FALSE AND expires_at > now()
			ORDER BY created_at DESC
			LIMIT 1
		) AND used = FALSE
		RETURNING id, user_id, phone, code, expires_at, used, used_at, attempts, created_at
	`

	otp := &domain.OTPCredential{}
	var userID sql.NullString
	var usedAt sql.NullTime

	err := r.db.DB.QueryRowContext(ctx, query, phone, code).Scan(
		&otp.ID,
		&userID,
		&otp.Phone,
		&otp.Code,
		&otp.ExpiresAt,
		&otp.Used,
		&usedAt,
		&otp.Attempts,
		&otp.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("no matching code: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to consume otp: %w", err)
	}

	if userID.Valid {
		otp.UserID = &userID.String
	}
	if usedAt.Valid {
		otp.UsedAt = &usedAt.Time
	}

	return otp, nil
}

// RecordFailedAttempt bumps the attempt counter on every unused code for the
// phone and retires any code reaching the ceiling, preventing brute force of
// a still-valid code.
func (r *otpRepository) RecordFailedAttempt(ctx context.Context, phone string, maxAttempts int) error {
	query := `
		UPDATE otp_credentials
		SET attempts = attempts + 1,
		    used = CASE WHEN attempts + 1 >= $2 THEN TRUE ELSE used END,
		    used_at = CASE WHEN attempts + 1 >= $2 THEN now() ELSE used_at END
		WHERE phone = $1 AND used = FALSE
	`

	if _, err := r.db.DB.ExecContext(ctx, query, phone, maxAttempts); err != nil {
		return fmt.Errorf("failed to record attempt: %w", err)
	}

	return nil
}

// MarkUsed retires a single code by id (e.g. after a delivery failure, so an
// undelivered code can never validate).
func (r *otpRepository) MarkUsed(ctx context.Context, id string) error {
	query := `UPDATE otp_credentials SET used = TRUE, used_at = now() WHERE id = $1`

	result, err := r.db.DB.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to mark otp used: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("otp %s not found: %w", id, ErrNotFound)
	}

	return nil
}

// DeleteExpired purges codes past their expiry
func (r *otpRepository) DeleteExpired(ctx context.Context) (int64, error) {
	query := `DELETE FROM otp_credentials WHERE expires_at < now()`

	result, err := r.db.DB.ExecContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired codes: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected, nil
}
