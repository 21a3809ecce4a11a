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

// emailVerificationRepository implements EmailVerificationRepository interface
type emailVerificationRepository struct {
	db *database.Postgres
}

// NewEmailVerificationRepository creates a new email verification repository
func NewEmailVerificationRepository(db *database.Postgres) EmailVerificationRepository {
	return &emailVerificationRepository{db: db}
}

const verificationColumns = `id, user_id, token, email, expires_at, used, used_at, created_at`

// Create creates a new verification token row
func (r *emailVerificationRepository) Create(ctx context.Context, token *domain.EmailVerificationToken) error {
	query := `
		INSERT INTO email_verification_tokens (id, user_id, token, email, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
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
		token.Email,
		token.ExpiresAt,
		token.CreatedAt,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok {
			if pqErr.Code == "23505" { // unique_violation
				return fmt.Errorf("verification token collision: %w", ErrDuplicateToken)
			}
		}
		return fmt.Errorf("failed to create verification token: %w", err)
	}

	return nil
}

// GetByToken retrieves a verification token by exact token match
func (r *emailVerificationRepository) GetByToken(ctx context.Context, token string) (*domain.EmailVerificationToken, error) {
	query := fmt.Sprintf(`SELECT %s FROM email_verification_tokens WHERE token = $1`, verificationColumns)
	return r.scanOne(r.db.DB.QueryRowContext(ctx, query, token))
}

// GetLatestByUserID retrieves the most recently issued token for a user
func (r *emailVerificationRepository) GetLatestByUserID(ctx context.Context, userID string) (*domain.EmailVerificationToken, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM email_verification_tokens
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`, verificationColumns)
	return r.scanOne(r.db.DB.QueryRowContext(ctx, query, userID))
}

func (r *emailVerificationRepository) scanOne(row *sql.Row) (*domain.EmailVerificationToken, error) {
	token := &domain.EmailVerificationToken{}
	var usedAt sql.NullTime

	err := row.Scan(
		&token.ID,
		&token.UserID,
		&token.Token,
		&token.Email,
		&token.ExpiresAt,
		&token.Used,
		&usedAt,
		&token.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("verification token not found: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get verification token: %w", err)
	}

	if usedAt.Valid {
		token.UsedAt = &usedAt.Time
	}

	return token, nil
}

// InvalidateUnusedByUserID retires every outstanding unused token for a user
func (r *emailVerificationRepository) InvalidateUnusedByUserID(ctx context.Context, userID string) error {
	query := `UPDATE email_verification_tokens SET used = TRUE, used_at = now() WHERE user_id = $1 AND used = FALSE`

	if _, err := r.db.DB.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("failed to invalidate verification tokens: %w", err)
	}

	return nil
}

// Consume marks the token used; loses to a concurrent verify with
// ErrAlreadyConsumed.
func (r *emailVerificationRepository) Consume(ctx context.Context, id string) error {
	query := `UPDATE email_verification_tokens SET used = TRUE, used_at = now() WHERE id = $1 AND used = FALSE`

	result, err := r.db.DB.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to consume verification token: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("verification token %s: %w", id, ErrAlreadyConsumed)
	}

	return nil
}

// DeleteExpired purges tokens expired or older than the retention window,
// regardless of used state.
func (r *emailVerificationRepository) DeleteExpired(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention)

	query := `DELETE FROM email_verification_tokens WHERE expires_at < now() OR created_at < $1`

	result, err := r.db.DB.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired verification tokens: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected, nil
}
