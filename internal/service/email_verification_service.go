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

// emailVerificationService implements EmailVerificationService: single-use
// email verification tokens with supersession on reissue.
type emailVerificationService struct {
	verifyRepo repository.EmailVerificationRepository
	userRepo   repository.UserRepository
	mailer     delivery.Mailer
	cfg        config.VerificationConfig
	baseURL    string
	logger     *zap.Logger
}

// NewEmailVerificationService creates the email-verification engine.
func NewEmailVerificationService(
	verifyRepo repository.EmailVerificationRepository,
	userRepo repository.UserRepository,
	mailer delivery.Mailer,
	cfg config.VerificationConfig,
	baseURL string,
	logger *zap.Logger,
) EmailVerificationService {
	return &emailVerificationService{
		verifyRepo: verifyRepo,
		userRepo:   userRepo,
		mailer:     mailer,
		cfg:        cfg,
		baseURL:    baseURL,
		logger:     logger,
	}
}

// GenerateToken invalidates prior unused tokens for the user and issues a
// fresh one. The returned string is the secret itself: random and
// single-use, so no separate hashing is required.
func (s *emailVerificationService) GenerateToken(ctx context.Context, userID, email string) (string, error) {
	if err := s.verifyRepo.InvalidateUnusedByUserID(ctx, userID); err != nil {
		return "", fmt.Errorf("failed to invalidate prior tokens: %w", err)
	}

	tokenStr, err := utils.GenerateOpaqueToken(utils.VerificationTokenBytes)
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}

	token := &domain.EmailVerificationToken{
		UserID:    userID,
		Token:     tokenStr,
		Email:     utils.SanitizeEmail(email),
		ExpiresAt: time.Now().Add(s.cfg.TokenExpiry.Duration),
	}

	if err := s.verifyRepo.Create(ctx, token); err != nil {
		return "", fmt.Errorf("failed to persist token: %w", err)
	}

	return tokenStr, nil
}

// Verify consumes the token and marks the owning user's email verified.
// The welcome notification is best-effort; its failure does not roll back
// the verification.
func (s *emailVerificationService) Verify(ctx context.Context, tokenStr string) (bool, error) {
	token, err := s.verifyRepo.GetByToken(ctx, tokenStr)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to look up token: %w", err)
	}

	if !token.IsValid() {
		return false, nil
	}

	// Flag first, token second. SetEmailVerified is idempotent, so a
	// failure here leaves the token live for a retry; the reverse order
	// would burn the token with the user still unverified.
	if err := s.userRepo.SetEmailVerified(ctx, token.UserID); err != nil {
		return false, fmt.Errorf("failed to mark email verified: %w", err)
	}

	if err := s.verifyRepo.Consume(ctx, token.ID); err != nil {
		if errors.Is(err, repository.ErrAlreadyConsumed) {
			return false, nil
		}
		return false, fmt.Errorf("failed to consume token: %w", err)
	}

	if err := s.mailer.SendEmail(ctx, delivery.EmailMessage{
		To:       token.Email,
		Subject:  "Welcome!",
		TextBody: "Your email address has been verified. Welcome aboard!",
	}); err != nil {
		s.logger.Warn("welcome email failed",
			zap.String("user_id", token.UserID),
			zap.Error(err),
		)
	}

	return true, nil
}

// Resend issues a fresh verification email, rejecting unknown or already
// verified users and enforcing the anti-spam cooldown.
func (s *emailVerificationService) Resend(ctx context.Context, email string) (bool, error) {
	email = utils.SanitizeEmail(email)

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to look up user: %w", err)
	}

	if user.IsEmailVerified || !user.IsActive {
		return false, nil
	}

	if latest, err := s.verifyRepo.GetLatestByUserID(ctx, user.ID); err == nil {
		if time.Since(latest.CreatedAt) < s.cfg.ResendCooldown.Duration {
			return false, nil
		}
	}

	tokenStr, err := s.GenerateToken(ctx, user.ID, email)
	if err != nil {
		return false, err
	}

	if err := s.sendVerificationEmail(ctx, email, tokenStr); err != nil {
		s.logger.Error("verification email failed",
			zap.String("user_id", user.ID),
			zap.Error(err),
		)
		return false, nil
	}

	return true, nil
}

// SendVerificationEmail delivers the verification link for a fresh token.
func (s *emailVerificationService) sendVerificationEmail(ctx context.Context, email, token string) error {
	link := fmt.Sprintf("%s/api/v1/auth/verify-email?token=%s", s.baseURL, token)
	return s.mailer.SendEmail(ctx, delivery.EmailMessage{
		To:       email,
		Subject:  "Verify your email address",
		TextBody: fmt.Sprintf("Follow this link to verify your email address: %s\nThe link expires in 24 hours.", link),
	})
}

// CleanupExpired purges tokens expired or older than the audit retention
// window, regardless of used state.
func (s *emailVerificationService) CleanupExpired(ctx context.Context) (int64, error) {
	return s.verifyRepo.DeleteExpired(ctx, s.cfg.Retention.Duration)
}
