package repository

import (
	"context"
	"time"

	"github.com/dmorozov-pr/identity-service/internal/domain"
)

// UserRepository defines methods for user operations
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByPhone(ctx context.Context, phone string) (*domain.User, error)
	GetByID(ctx context.Context, id string) (*domain.User, error)
	Update(ctx context.Context, user *domain.User) error
	UpdateLastLogin(ctx context.Context, userID string) error
	UpdatePassword(ctx context.Context, userID, passwordHash string) error
	SetEmailVerified(ctx context.Context, userID string) error
	SetPhoneVerified(ctx context.Context, userID string) error
}

// RefreshTokenRepository defines methods for the rotating refresh token
// store. Rotate and Revoke are compare-and-set transitions: they succeed for
// exactly one caller per token.
type RefreshTokenRepository interface {
	Create(ctx context.Context, token *domain.RefreshToken) error
	GetByTokenHash(ctx context.Context, tokenHash string) (*domain.RefreshToken, error)
	GetActiveByUserID(ctx context.Context, userID string) ([]*domain.RefreshToken, error)
	// Rotate revokes the token and records its successor's id; returns
	// ErrAlreadyConsumed if the token was already revoked or expired.
	Rotate(ctx context.Context, tokenID, successorID string) error
	Revoke(ctx context.Context, tokenID string, replacedBy *string) error
	RevokeAllByUserID(ctx context.Context, userID string) (int64, error)
	// DeleteRetired purges tokens whose expiry or revocation is older than
	// the retention window.
	DeleteRetired(ctx context.Context, retention time.Duration) (int64, error)
}

// OTPRepository defines methods for one-time-code storage.
type OTPRepository interface {
	Create(ctx context.Context, otp *domain.OTPCredential) error
	// CountIssuedSince counts codes issued to the phone after the cutoff,
	// regardless of used state (sliding-window send limit).
	CountIssuedSince(ctx context.Context, phone string, since time.Time) (int, error)
	InvalidateUnusedByPhone(ctx context.Context, phone string) error
	// Consume atomically marks the newest matching unused, unexpired code
	// as used and returns it; ErrNotFound when nothing matches.
	Consume(ctx context.Context, phone, code string) (*domain.OTPCredential, error)
	// RecordFailedAttempt increments the attempt counter on every unused
	// code for the phone and retires codes reaching the attempt ceiling.
	RecordFailedAttempt(ctx context.Context, phone string, maxAttempts int) error
	MarkUsed(ctx context.Context, id string) error
	DeleteExpired(ctx context.Context) (int64, error)
}

// EmailVerificationRepository defines methods for email verification tokens.
type EmailVerificationRepository interface {
	Create(ctx context.Context, token *domain.EmailVerificationToken) error
	GetByToken(ctx context.Context, token string) (*domain.EmailVerificationToken, error)
	GetLatestByUserID(ctx context.Context, userID string) (*domain.EmailVerificationToken, error)
	InvalidateUnusedByUserID(ctx context.Context, userID string) error
	// Consume atomically marks the token used; ErrAlreadyConsumed if a
	// concurrent verify won.
	Consume(ctx context.Context, id string) error
	DeleteExpired(ctx context.Context, retention time.Duration) (int64, error)
}

// PasswordResetRepository defines methods for password reset tokens.
type PasswordResetRepository interface {
	Create(ctx context.Context, token *domain.PasswordResetToken) error
	GetByToken(ctx context.Context, token string) (*domain.PasswordResetToken, error)
	GetLatestUnusedByUserID(ctx context.Context, userID string) (*domain.PasswordResetToken, error)
	// InvalidateUnusedByUserID marks every unused token for the user as
	// used, except the one identified by exceptID when non-empty.
	InvalidateUnusedByUserID(ctx context.Context, userID, exceptID string) error
	Consume(ctx context.Context, id string) error
	DeleteRetired(ctx context.Context, retention time.Duration) (int64, error)
}

// RoleRepository defines methods for the append-only role ledger. Rows are
// never deleted; a partial unique index on (user_id) where revoked_at is
// null serializes concurrent assigns.
type RoleRepository interface {
	Insert(ctx context.Context, assignment *domain.RoleAssignment) error
	GetActiveByUserID(ctx context.Context, userID string) (*domain.RoleAssignment, error)
	RevokeActive(ctx context.Context, userID string, role domain.Role, revokedBy, notes *string) (bool, error)
	RevokeAllActive(ctx context.Context, userID string, revokedBy, notes *string) (int64, error)
	HistoryByUserID(ctx context.Context, userID string) ([]*domain.RoleAssignment, error)
	ActiveUserIDsByRole(ctx context.Context, role domain.Role) ([]string, error)
	CountActiveByRole(ctx context.Context) (map[domain.Role]int, error)
}
