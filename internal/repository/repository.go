package repository

import (
	"github.com/dmorozov-pr/identity-service/pkg/database"
)

// Repositories holds all repository interfaces
type Repositories struct {
	User          UserRepository
	RefreshToken  RefreshTokenRepository
	OTP           OTPRepository
	Verification  EmailVerificationRepository
	PasswordReset PasswordResetRepository
	Role          RoleRepository
}

// NewRepositories creates all repositories
func NewRepositories(db *database.Postgres) *Repositories {
	return &Repositories{
		User:          NewUserRepository(db),
		RefreshToken:  NewRefreshTokenRepository(db),
		OTP:           NewOTPRepository(db),
		Verification:  NewEmailVerificationRepository(db),
		PasswordReset: NewPasswordResetRepository(db),
		Role:          NewRoleRepository(db),
	}
}
