package service

import (
	"context"
	"time"

	"github.com/dmorozov-pr/identity-service/internal/domain"
	"github.com/dmorozov-pr/identity-service/internal/dto"
)

// ClientMeta carries per-request client details recorded on the sessions a
// login mints. Both fields are optional.
type ClientMeta struct {
	DeviceInfo *string
	IP         *string
}

// AuthService defines the authentication entry points that mint sessions
// after a successful engine-level authentication.
type AuthService interface {
	Register(ctx context.Context, req *dto.RegisterRequest, meta *ClientMeta) (*AuthResult, error)
	Login(ctx context.Context, req *dto.LoginRequest, meta *ClientMeta) (*AuthResult, error)
	LoginWithOTP(ctx context.Context, phone, code string, meta *ClientMeta) (*AuthResult, error)
	GetUser(ctx context.Context, userID string) (*dto.UserResponse, error)
	ValidateToken(ctx context.Context, token string) (*domain.TokenClaims, error)
}

// TokenService is the access/refresh token engine.
type TokenService interface {
	Issue(ctx context.Context, user *domain.User, deviceInfo, ip *string) (*domain.TokenPair, error)
	ValidateAccess(token string) (*domain.TokenClaims, error)
	Refresh(ctx context.Context, refreshToken string, deviceInfo, ip *string) (*domain.TokenPair, error)
	Revoke(ctx context.Context, refreshToken string) error
	RevokeAll(ctx context.Context, userID string) (int64, error)
	ValidateRefresh(ctx context.Context, refreshToken string) (*domain.RefreshToken, error)
	CleanupRetired(ctx context.Context) (int64, error)
}

// OTPSendResult reports the outcome of a send operation.
type OTPSendResult struct {
	Success   bool
	Message   string
	ExpiresAt time.Time
}

// OTPService is the one-time-code engine.
type OTPService interface {
	Send(ctx context.Context, phone string) (*OTPSendResult, error)
	Validate(ctx context.Context, phone, code string) (bool, error)
	CanSend(ctx context.Context, phone string) (bool, error)
	RemainingSends(ctx context.Context, phone string) (int, error)
	CleanupExpired(ctx context.Context) (int64, error)
}

// EmailVerificationService is the email-verification engine.
type EmailVerificationService interface {
	GenerateToken(ctx context.Context, userID, email string) (string, error)
	Verify(ctx context.Context, token string) (bool, error)
	Resend(ctx context.Context, email string) (bool, error)
	CleanupExpired(ctx context.Context) (int64, error)
}

// PasswordResetService is the password-reset engine.
type PasswordResetService interface {
	RequestReset(ctx context.Context, email string, ip, userAgent *string) (bool, error)
	ValidateToken(ctx context.Context, token string) (bool, error)
	ResetPassword(ctx context.Context, token, newPassword string) (bool, error)
	CleanupRetired(ctx context.Context) (int64, error)
}

// RoleService is the role assignment ledger.
type RoleService interface {
	Assign(ctx context.Context, userID string, role domain.Role, assignedBy, notes *string) error
	Revoke(ctx context.Context, userID string, role domain.Role, revokedBy, notes *string) error
	RevokeAll(ctx context.Context, userID string, revokedBy, notes *string) error
	CurrentRole(ctx context.Context, userID string) (domain.Role, bool, error)
	History(ctx context.Context, userID string) ([]*domain.RoleAssignment, error)
	UsersWithRole(ctx context.Context, role domain.Role) ([]string, error)
	HasPermission(ctx context.Context, userID, permission string) (bool, error)
	CanAssign(ctx context.Context, actingUserID string, target domain.Role) (bool, error)
	Statistics(ctx context.Context) (map[domain.Role]int, error)
}
