package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmorozov-pr/identity-service/internal/config"
	"github.com/dmorozov-pr/identity-service/internal/delivery"
	"github.com/dmorozov-pr/identity-service/internal/domain"
	"github.com/dmorozov-pr/identity-service/internal/repository"
	"github.com/dmorozov-pr/identity-service/internal/utils"
	"go.uber.org/zap"
)

// passwordResetService implements PasswordResetService: single-use reset
// tokens whose consumption force-invalidates every active session.
type passwordResetService struct {
	resetRepo    repository.PasswordResetRepository
	userRepo     repository.UserRepository
	tokenService TokenService
	mailer       delivery.Mailer
	cfg          config.ResetConfig
	bcryptCost   int
	baseURL      string
	logger       *zap.Logger
}

// NewPasswordResetService creates the password-reset engine.
func NewPasswordResetService(
	resetRepo repository.PasswordResetRepository,
	userRepo repository.UserRepository,
	tokenService TokenService,
	mailer delivery.Mailer,
	cfg config.ResetConfig,
	bcryptCost int,
	baseURL string,
	logger *zap.Logger,
) PasswordResetService {
	return &passwordResetService{
		resetRepo:    resetRepo,
		userRepo:     userRepo,
		tokenService: tokenService,
		mailer:       mailer,
		cfg:          cfg,
		bcryptCost:   bcryptCost,
		baseURL:      baseURL,
		logger:       logger,
	}
}

// RequestReset always reports true unless a hard error occurs, so a caller
// cannot distinguish "no such user" from "email sent". Unknown or inactive
// users and requests inside the cooldown window are silent no-ops.
func (s *passwordResetService) RequestReset(ctx context.Context, email string, ip, userAgent *string) (bool, error) {
	email = utils.SanitizeEmail(email)
	if !utils.ValidateEmail(email) {
		return false, fmt.Errorf("%w: invalid email", ErrValidation)
	}

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return true, nil
		}
		return false, fmt.Errorf("failed to look up user: %w", err)
	}

	if !user.IsActive {
		return true, nil
	}

	if latest, err := s.resetRepo.GetLatestUnusedByUserID(ctx, user.ID); err == nil {
		if time.Since(latest.CreatedAt) < s.cfg.RequestCooldown.Duration {
			return true, nil
		}
	}

	if err := s.resetRepo.InvalidateUnusedByUserID(ctx, user.ID, ""); err != nil {
		return false, fmt.Errorf("failed to invalidate prior tokens: %w", err)
	}

	tokenStr, err := utils.GenerateOpaqueToken(utils.VerificationTokenBytes)
	if err != nil {
		return false, fmt.Errorf("failed to generate token: %w", err)
	}

	token := &domain.PasswordResetToken{
		UserID:    user.ID,
		Token:     tokenStr,
		ExpiresAt: time.Now().Add(s.cfg.TokenExpiry.Duration),
		IPAddress: ip,
		UserAgent: userAgent,
	}

	if err := s.resetRepo.Create(ctx, token); err != nil {
		return false, fmt.Errorf("failed to persist token: %w", err)
	}

	link := fmt.Sprintf("%s/reset-password?token=%s", s.baseURL, tokenStr)
	if err := s.mailer.SendEmail(ctx, delivery.EmailMessage{
		To:       email,
		Subject:  "Password reset",
		TextBody: fmt.Sprintf("Follow this link to reset your password: %s\nThe link expires in 24 hours. If you did not request a reset, ignore this email.", link),
	}); err != nil {
		s.logger.Error("reset email failed",
			zap.String("user_id", user.ID),
			zap.Error(err),
		)
	}

	return true, nil
}

// ValidateToken is a read-only validity check used to pre-validate before
// showing a reset form.
func (s *passwordResetService) ValidateToken(ctx context.Context, tokenStr string) (bool, error) {
	token, err := s.resetRepo.GetByToken(ctx, tokenStr)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to look up token: %w", err)
	}

	return token.IsValid(), nil
}

// ResetPassword consumes the token, stores the new password hash,
// invalidates every other outstanding reset token for the user, and revokes
// all active refresh tokens. The old password may be compromised, so every
// session dies.
func (s *passwordResetService) ResetPassword(ctx context.Context, tokenStr, newPassword string) (bool, error) {
	if !utils.ValidatePassword(newPassword) {
		return false, fmt.Errorf("%w: password must be at least 8 characters and contain a letter and a digit", ErrValidation)
	}

	token, err := s.resetRepo.GetByToken(ctx, tokenStr)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to look up token: %w", err)
	}

	if !token.IsValid() {
		return false, nil
	}

	if err := s.resetRepo.Consume(ctx, token.ID); err != nil {
		if errors.Is(err, repository.ErrAlreadyConsumed) {
			return false, nil
		}
		return false, fmt.Errorf("failed to consume token: %w", err)
	}

	hash, err := utils.HashPassword(newPassword, s.bcryptCost)
	if err != nil {
		return false, fmt.Errorf("failed to hash password: %w", err)
	}

	if err := s.userRepo.UpdatePassword(ctx, token.UserID, hash); err != nil {
		return false, fmt.Errorf("failed to store password: %w", err)
	}

	if err := s.resetRepo.InvalidateUnusedByUserID(ctx, token.UserID, token.ID); err != nil {
		s.logger.Error("failed to invalidate sibling reset tokens",
			zap.String("user_id", token.UserID),
			zap.Error(err),
		)
	}

	revoked, err := s.tokenService.RevokeAll(ctx, token.UserID)
	if err != nil {
		s.logger.Error("failed to revoke sessions after reset",
			zap.String("user_id", token.UserID),
			zap.Error(err),
		)
	} else {
		s.logger.Info("password reset completed",
			zap.String("user_id", token.UserID),
			zap.Int64("sessions_revoked", revoked),
		)
	}

	return true, nil
}

// CleanupRetired purges tokens expired or used longer ago than the
// retention window.
func (s *passwordResetService) CleanupRetired(ctx context.Context) (int64, error) {
	return s.resetRepo.DeleteRetired(ctx, s.cfg.Retention.Duration)
}
