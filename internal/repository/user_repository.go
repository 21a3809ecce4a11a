package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmorozov-pr/identity-service/internal/domain"
	"github.com/dmorozov-pr/identity-service/pkg/database"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

// userRepository implements UserRepository interface
type userRepository struct {
	db *database.Postgres
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *database.Postgres) UserRepository {
	return &userRepository{db: db}
}

const userColumns = `id, email, phone, password_hash, is_active, is_email_verified, is_phone_verified, external_id, created_at, updated_at, last_login_at`

// Create creates a new user in the database
func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	query := `
		INSERT INTO users (id, email, phone, password_hash, is_active, is_email_verified, is_phone_verified, external_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	if user.ID == "" {
		user.ID = uuid.New().String()
	}

	now := time.Now()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	if user.UpdatedAt.IsZero() {
		user.UpdatedAt = now
	}

	_, err := r.db.DB.ExecContext(ctx, query,
		user.ID,
		user.Email,
		user.Phone,
		user.PasswordHash,
		user.IsActive,
		user.IsEmailVerified,
		user.IsPhoneVerified,
		user.ExternalID,
		user.CreatedAt,
		user.UpdatedAt,
	)

	if err != nil {
		return mapUserConstraintError(err)
	}

	return nil
}

// GetByEmail retrieves a user by email
func (r *userRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE email = $1`, userColumns)
	return r.scanOne(ctx, query, email)
}

// GetByPhone retrieves a user by phone number
func (r *userRepository) GetByPhone(ctx context.Context, phone string) (*domain.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE phone = $1`, userColumns)
	return r.scanOne(ctx, query, phone)
}

// GetByID retrieves a user by ID
func (r *userRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE id = $1`, userColumns)
	return r.scanOne(ctx, query, id)
}

func (r *userRepository) scanOne(ctx context.Context, query string, arg interface{}) (*domain.User, error) {
	user := &domain.User{}
	var email, phone, passwordHash, externalID sql.NullString
	var lastLoginAt sql.NullTime

	err := r.db.DB.QueryRowContext(ctx, query, arg).Scan(
		&user.ID,
		&email,
		&phone,
		&passwordHash,
		&user.IsActive,
		&user.IsEmailVerified,
		&user.IsPhoneVerified,
		&externalID,
		&user.CreatedAt,
		&user.UpdatedAt,
		&lastLoginAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user not found: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if email.Valid {
		user.Email = &email.String
	}
	if phone.Valid {
		user.Phone = &phone.String
	}
	if passwordHash.Valid {
		user.PasswordHash = &passwordHash.String
	}
	if externalID.Valid {
		user.ExternalID = &externalID.String
	}
	if lastLoginAt.Valid {
		user.LastLoginAt = &lastLoginAt.Time
	}

	return user, nil
}

// Update updates an existing user
func (r *userRepository) Update(ctx context.Context, user *domain.User) error {
	query := `
		UPDATE users
		SET email = $2, phone = $3, password_hash = $4, is_active = $5,
		    is_email_verified = $6, is_phone_verified = $7, external_id = $8, updated_at = now()
		WHERE id = $1
	`

	result, err := r.db.DB.ExecContext(ctx, query,
		user.ID,
		user.Email,
		user.Phone,
		user.PasswordHash,
		user.IsActive,
		user.IsEmailVerified,
		user.IsPhoneVerified,
		user.ExternalID,
	)

	if err != nil {
		return mapUserConstraintError(err)
	}

	return requireRowsAffected(result, user.ID)
}

// UpdateLastLogin updates the last login timestamp for a user
func (r *userRepository) UpdateLastLogin(ctx context.Context, userID string) error {
	query := `UPDATE users SET last_login_at = $1 WHERE id = $2`

	result, err := r.db.DB.ExecContext(ctx, query, time.Now(), userID)
	if err != nil {
		return fmt.Errorf("failed to update last login: %w", err)
	}

	return requireRowsAffected(result, userID)
}

// UpdatePassword replaces the stored password hash
func (r *userRepository) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	query := `UPDATE users SET password_hash = $2, updated_at = now() WHERE id = $1`

	result, err := r.db.DB.ExecContext(ctx, query, userID, passwordHash)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	return requireRowsAffected(result, userID)
}

// SetEmailVerified marks the user's email as verified
func (r *userRepository) SetEmailVerified(ctx context.Context, userID string) error {
	query := `UPDATE users SET is_email_verified = TRUE, updated_at = now() WHERE id = $1`

	result, err := r.db.DB.ExecContext(ctx, query, userID)
	if err != nil {
		return fmt.Errorf("failed to set email verified: %w", err)
	}

	return requireRowsAffected(result, userID)
}

// SetPhoneVerified marks the user's phone as verified
func (r *userRepository) SetPhoneVerified(ctx context.Context, userID string) error {
	query := `UPDATE users SET is_phone_verified = TRUE, updated_at = now() WHERE id = $1`

	result, err := r.db.DB.ExecContext(ctx, query, userID)
	if err != nil {
		return fmt.Errorf("failed to set phone verified: %w", err)
	}

	return requireRowsAffected(result, userID)
}

func requireRowsAffected(result sql.Result, userID string) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("user with id %s not found: %w", userID, ErrNotFound)
	}

	return nil
}

func mapUserConstraintError(err error) error {
	if pqErr, ok := err.(*pq.Error); ok {
		if pqErr.Code == "23505" { // unique_violation
			if strings.Contains(pqErr.Constraint, "phone") {
				return fmt.Errorf("phone already registered: %w", ErrDuplicatePhone)
			}
			return fmt.Errorf("email already registered: %w", ErrDuplicateEmail)
		}
	}
	return fmt.Errorf("failed to write user: %w", err)
}
