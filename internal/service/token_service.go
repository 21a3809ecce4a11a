package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/dmorozov-pr/identity-service/internal/domain"
	"github.com/dmorozov-pr/identity-service/internal/repository"
	"github.com/dmorozov-pr/identity-service/internal/utils"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Retired tokens are kept for audit this long after expiry or revocation.
const refreshTokenRetention = 30 * 24 * time.Hour

// tokenService implements TokenService: signed stateless access tokens plus
// opaque rotating refresh tokens with replay detection.
type tokenService struct {
	tokenRepo          repository.RefreshTokenRepository
	userRepo           repository.UserRepository
	jwtManager         *utils.JWTManager
	refreshTokenExpiry time.Duration
	logger             *zap.Logger
}

// NewTokenService creates the access/refresh token engine.
func NewTokenService(
	tokenRepo repository.RefreshTokenRepository,
	userRepo repository.UserRepository,
	jwtManager *utils.JWTManager,
	refreshTokenExpiry time.Duration,
	logger *zap.Logger,
) TokenService {
	return &tokenService{
		tokenRepo:          tokenRepo,
		userRepo:           userRepo,
		jwtManager:         jwtManager,
		refreshTokenExpiry: refreshTokenExpiry,
		logger:             logger,
	}
}

// Issue mints a signed access token and a fresh opaque refresh token for
// the user. Device info and IP are recorded for audit only.
func (s *tokenService) Issue(ctx context.Context, user *domain.User, deviceInfo, ip *string) (*domain.TokenPair, error) {
	accessToken, accessExpiry, err := s.jwtManager.GenerateAccessToken(user)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	refreshToken, err := utils.GenerateOpaqueToken(utils.RefreshTokenBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	refreshExpiry := time.Now().Add(s.refreshTokenExpiry)
	entity := &domain.RefreshToken{
		UserID:     user.ID,
		TokenHash:  hashToken(refreshToken),
		ExpiresAt:  refreshExpiry,
		DeviceInfo: deviceInfo,
		IPAddress:  ip,
	}

	if err := s.tokenRepo.Create(ctx, entity); err != nil {
		return nil, fmt.Errorf("failed to save refresh token: %w", err)
	}

	return &domain.TokenPair{
		AccessToken:      accessToken,
		RefreshToken:     refreshToken,
		TokenType:        "Bearer",
		AccessExpiresAt:  accessExpiry,
		RefreshExpiresAt: refreshExpiry,
	}, nil
}

// ValidateAccess verifies the access token statelessly; no database
// round-trip.
func (s *tokenService) ValidateAccess(token string) (*domain.TokenClaims, error) {
	claims, err := s.jwtManager.ValidateAccessToken(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return claims, nil
}

// Refresh exchanges a live refresh token for a new pair, rotating the
// presented token. The rotation is claimed with a compare-and-set at the
// storage layer, so two concurrent refreshes of the same token yield
// exactly one success.
func (s *tokenService) Refresh(ctx context.Context, refreshToken string, deviceInfo, ip *string) (*domain.TokenPair, error) {
	dbToken, err := s.tokenRepo.GetByTokenHash(ctx, hashToken(refreshToken))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("failed to look up refresh token: %w", err)
	}

	if dbToken.Revoked {
		if dbToken.WasRotated() {
			// A rotated token presented again is a possible theft signal.
			s.logger.Warn("rotated refresh token replayed",
				zap.String("token_id", dbToken.ID),
				zap.String("user_id", dbToken.UserID),
				zap.Stringp("replaced_by", dbToken.ReplacedBy),
			)
		}
		return nil, ErrInvalidToken
	}

	if dbToken.IsExpired() {
		return nil, ErrInvalidToken
	}

	user, err := s.userRepo.GetByID(ctx, dbToken.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if !user.IsActive {
		return nil, ErrUserInactive
	}

	// Claim the old token before the successor exists. If the claim loses
	// to a concurrent refresh, reject without minting anything. If the
	// insert below fails after a successful claim, the old token stays
	// revoked: fail closed, never fail open.
	successorID := uuid.New().String()
	if err := s.tokenRepo.Rotate(ctx, dbToken.ID, successorID); err != nil {
		if errors.Is(err, repository.ErrAlreadyConsumed) {
			s.logger.Warn("lost refresh race",
				zap.String("token_id", dbToken.ID),
				zap.String("user_id", dbToken.UserID),
			)
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("failed to rotate refresh token: %w", err)
	}

	accessToken, accessExpiry, err := s.jwtManager.GenerateAccessToken(user)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	newRefreshToken, err := utils.GenerateOpaqueToken(utils.RefreshTokenBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	refreshExpiry := time.Now().Add(s.refreshTokenExpiry)
	successor := &domain.RefreshToken{
		ID:         successorID,
		UserID:     user.ID,
		TokenHash:  hashToken(newRefreshToken),
		ExpiresAt:  refreshExpiry,
		DeviceInfo: deviceInfo,
		IPAddress:  ip,
	}

	if err := s.tokenRepo.Create(ctx, successor); err != nil {
		return nil, fmt.Errorf("failed to save rotated refresh token: %w", err)
	}

	return &domain.TokenPair{
		AccessToken:      accessToken,
		RefreshToken:     newRefreshToken,
		TokenType:        "Bearer",
		AccessExpiresAt:  accessExpiry,
		RefreshExpiresAt: refreshExpiry,
	}, nil
}

// Revoke revokes a single refresh token (logout). Revoking an already
// revoked token is treated as success.
func (s *tokenService) Revoke(ctx context.Context, refreshToken string) error {
	dbToken, err := s.tokenRepo.GetByTokenHash(ctx, hashToken(refreshToken))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrInvalidToken
		}
		return fmt.Errorf("failed to look up refresh token: %w", err)
	}

	if err := s.tokenRepo.Revoke(ctx, dbToken.ID, nil); err != nil {
		if errors.Is(err, repository.ErrAlreadyConsumed) {
			return nil
		}
		return fmt.Errorf("failed to revoke refresh token: %w", err)
	}

	return nil
}

// RevokeAll revokes every active refresh token for the user and returns the
// count for observability.
func (s *tokenService) RevokeAll(ctx context.Context, userID string) (int64, error) {
	count, err := s.tokenRepo.RevokeAllByUserID(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to revoke user tokens: %w", err)
	}

	if count > 0 {
		s.logger.Info("revoked all sessions",
			zap.String("user_id", userID),
			zap.Int64("revoked", count),
		)
	}

	return count, nil
}

// ValidateRefresh is a pure lookup+liveness check without rotation.
func (s *tokenService) ValidateRefresh(ctx context.Context, refreshToken string) (*domain.RefreshToken, error) {
	dbToken, err := s.tokenRepo.GetByTokenHash(ctx, hashToken(refreshToken))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("failed to look up refresh token: %w", err)
	}

	if !dbToken.IsActive() {
		return nil, ErrInvalidToken
	}

	return dbToken, nil
}

// CleanupRetired purges tokens past the audit retention window.
func (s *tokenService) CleanupRetired(ctx context.Context) (int64, error) {
	return s.tokenRepo.DeleteRetired(ctx, refreshTokenRetention)
}

// hashToken hashes a token with SHA-256 for storage; the plaintext never
// reaches the database.
func hashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}
