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
	"github.com/lib/pq"
)

// passwordResetRepository implements PasswordResetRepository interface
type passwordResetRepository struct {
	db *database.Postgres
}

// NewPasswordResetRepository creates a new password reset repository
func NewPasswordResetRepository(db *database.Postgres) PasswordResetRepository {
	return &passwordResetRepository{db: db}
}

const resetColumns = `id, user_id, token, expires_at, used, used_at, ip_address, user_agent, created_at`

// Create creates a new reset token row
func (r *passwordResetRepository) Create(ctx context.Context, token *domain.PasswordResetToken) error {
	query := `
		INSERT INTO password_reset_tokens (id, user_id, token, expires_at, ip_address, user_agent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	if token.ID == "" {
		token.ID = uuid.New().String()
	}
	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now()
	}

	_, err := r.db.DB.ExecContext(ctx, query,
		token.ID,
		token.UserID,
		token.Token,
		token.ExpiresAt,
		token.IPAddress,
		token.UserAgent,
		token.CreatedAt,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok {
			if pqErr.Code == "23505" { // unique_violation
				return fmt.Errorf("reset token collision: %w", ErrDuplicateToken)
			}
		}
		return fmt.Errorf("failed to create reset token: %w", err)
	}

	return nil
}

// GetByToken retrieves a reset token by exact token match
func (r *passwordResetRepository) GetByToken(ctx context.Context, token string) (*domain.PasswordResetToken, error) {
	query := fmt.Sprintf(`SELECT %s FROM password_reset_tokens WHERE token = $1`, resetColumns)
	return r.scanOne(r.db.DB.QueryRowContext(ctx, query, token))
}

// GetLatestUnusedByUserID retrieves the newest outstanding token for a user,
// used for the 5-minute request cooldown.
func (r *passwordResetRepository) GetLatestUnusedByUserID(ctx context.Context, userID string) (*domain.PasswordResetToken, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM password_reset_tokens
		WHERE user_id = $1 AND used = FALSE
		ORDER BY created_at DESC
		LIMIT 1
	`, resetColumns)
	return r.scanOne(r.db.DB.QueryRowContext(ctx, query, userID))
}

func (r *passwordResetRepository) scanOne(row *sql.Row) (*domain.PasswordResetToken, error) {
	token := &domain.PasswordResetToken{}
	var usedAt sql.NullTime
	var ipAddress, userAgent sql.NullString

	err := row.Scan(
		&token.ID,
		&token.UserID,
		&token.Token,
		&token.ExpiresAt,
		&token.Used,
		&usedAt,
		&ipAddress,
		&userAgent,
		&token.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("reset token not found: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get reset token: %w", err)
	}

	if usedAt.Valid {
		token.UsedAt = &usedAt.Time
	}
	if ipAddress.Valid {
		token.IPAddress = &ipAddress.String
	}
	if userAgent.Valid {
		token.UserAgent = &userAgent.String
	}

	return token, nil
}

// InvalidateUnusedByUserID retires every outstanding token for a user except
// the one identified by exceptID (pass "" to retire all). The exception is
// bound as a nullable uuid so the comparison stays uuid-typed; an untyped
// empty-string guard would fail Postgres operator resolution.
func (r *passwordResetRepository) InvalidateUnusedByUserID(ctx context.Context, userID, exceptID string) error {
	query := `
		UPDATE password_reset_tokens
		SET used = TRUE, used_at = now()
		WHERE user_id = $1 AND used = FALSE AND ($2::uuid IS NULL OR id <> $2::uuid)
	`

	var except sql.NullString
	if exceptID != "" {
		except = sql.NullString{String: exceptID, Valid: true}
	}

	if _, err := r.db.DB.ExecContext(ctx, query, userID, except); err != nil {
		return fmt.Errorf("failed to invalidate reset tokens: %w", err)
	}

	return nil
}

// Consume marks the token used; loses to a concurrent reset with
// ErrAlreadyConsumed.
func (r *passwordResetRepository) Consume(ctx context.Context, id string) error {
	query := `UPDATE password_reset_tokens SET used = TRUE, used_at = now() WHERE id = $1 AND used = FALSE`

	result, err := r.db.DB.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to consume reset token: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("reset token %s: %w", id, ErrAlreadyConsumed)
	}

	return nil
}

// DeleteRetired purges tokens expired or used longer ago than the retention
// window.
func (r *passwordResetRepository) DeleteRetired(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention)

	query := `
		DELETE FROM password_reset_tokens
		WHERE expires_at < $1 OR (used = TRUE AND used_at < $1)
	`

	result, err := r.db.DB.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete retired reset tokens: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected, nil
}
