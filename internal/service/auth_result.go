package service

import (
	"context"
	"fmt"
	"time"

	"github.com/dmorozov-pr/identity-service/internal/domain"
	"github.com/dmorozov-pr/identity-service/internal/dto"
)

// AuthResult carries the client-facing auth response together with the
// refresh token, which handlers deliver separately from the JSON body.
type AuthResult struct {
	AuthResponse *dto.AuthResponse
	RefreshToken string
	// RefreshExpiresIn is the refresh token lifetime in seconds.
	RefreshExpiresIn int
}

// buildAuthResult mints a session for an authenticated user and shapes it
// for the transport layer.
func (s *authService) buildAuthResult(ctx context.Context, user *domain.User, deviceInfo, ip *string) (*AuthResult, error) {
	pair, err := s.tokenService.Issue(ctx, user, deviceInfo, ip)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token pair: %w", err)
	}

	return &AuthResult{
		AuthResponse: &dto.AuthResponse{
			AccessToken: pair.AccessToken,
			TokenType:   pair.TokenType,
			ExpiresIn:   int(time.Until(pair.AccessExpiresAt).Seconds()),
			User: dto.UserInfo{
				ID:              user.ID,
				Email:           user.EmailOrEmpty(),
				Phone:           user.PhoneOrEmpty(),
				IsEmailVerified: user.IsEmailVerified,
				IsPhoneVerified: user.IsPhoneVerified,
			},
		},
		RefreshToken:     pair.RefreshToken,
		RefreshExpiresIn: int(time.Until(pair.RefreshExpiresAt).Seconds()),
	}, nil
}
