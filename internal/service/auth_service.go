package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmorozov-pr/identity-service/internal/domain"
	"github.com/dmorozov-pr/identity-service/internal/dto"
	"github.com/dmorozov-pr/identity-service/internal/identity"
	"github.com/dmorozov-pr/identity-service/internal/repository"
	"github.com/dmorozov-pr/identity-service/internal/utils"
	"go.uber.org/zap"
)

// authService implements AuthService. It authenticates against one of the
// credential engines and hands the user to the token engine for a session.
type authService struct {
	userRepo            repository.UserRepository
	tokenService        TokenService
	otpService          OTPService
	verificationService EmailVerificationService
	roleService         RoleService
	blacklist           *TokenBlacklistService
	idp                 identity.ExternalIdentityProvider
	bcryptCost          int
	logger              *zap.Logger
}

// NewAuthService creates a new auth service.
func NewAuthService(
	userRepo repository.UserRepository,
	tokenService TokenService,
	otpService OTPService,
	verificationService EmailVerificationService,
	roleService RoleService,
	blacklist *TokenBlacklistService,
	idp identity.ExternalIdentityProvider,
	bcryptCost int,
	logger *zap.Logger,
) AuthService {
	return &authService{
		userRepo:            userRepo,
		tokenService:        tokenService,
		otpService:          otpService,
		verificationService: verificationService,
		roleService:         roleService,
		blacklist:           blacklist,
		idp:                 idp,
		bcryptCost:          bcryptCost,
		logger:              logger,
	}
}

// Register creates an email/password account and logs it in. A verification
// email goes out best-effort; the account stays usable while unverified.
func (s *authService) Register(ctx context.Context, req *dto.RegisterRequest, meta *ClientMeta) (*AuthResult, error) {
	email := utils.SanitizeEmail(req.Email)

	if !utils.ValidateEmail(email) {
		return nil, fmt.Errorf("%w: invalid email format", ErrValidation)
	}
	if !utils.ValidatePassword(req.Password) {
		return nil, fmt.Errorf("%w: password must be at least 8 characters and contain a letter and a digit", ErrValidation)
	}

	if _, err := s.userRepo.GetByEmail(ctx, email); err == nil {
		return nil, ErrUserExists
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to check user existence: %w", err)
	}

	passwordHash, err := utils.HashPassword(req.Password, s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &domain.User{
		Email:        &email,
		PasswordHash: &passwordHash,
		IsActive:     true,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.syncExternalUser(ctx, user)

	if _, err := s.verificationService.Resend(ctx, email); err != nil {
		s.logger.Error("initial verification email failed",
			zap.String("user_id", user.ID),
			zap.Error(err),
		)
	}

	return s.login(ctx, user, meta)
}

// Login authenticates an email/password pair.
func (s *authService) Login(ctx context.Context, req *dto.LoginRequest, meta *ClientMeta) (*AuthResult, error) {
	email := utils.SanitizeEmail(req.Email)

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if user.PasswordHash == nil || !utils.CheckPasswordHash(req.Password, *user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, ErrUserInactive
	}

	return s.login(ctx, user, meta)
}

// LoginWithOTP authenticates a phone with a one-time code, creating a
// phone-only account on first login.
func (s *authService) LoginWithOTP(ctx context.Context, phone, code string, meta *ClientMeta) (*AuthResult, error) {
	phone = utils.SanitizePhone(phone)

	ok, err := s.otpService.Validate(ctx, phone, code)
	if err != nil {
		return nil, fmt.Errorf("failed to validate code: %w", err)
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}

	user, err := s.userRepo.GetByPhone(ctx, phone)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		user = &domain.User{
			Phone:           &phone,
			IsActive:        true,
			IsPhoneVerified: true,
		}
		if err := s.userRepo.Create(ctx, user); err != nil {
			if errors.Is(err, repository.ErrDuplicatePhone) {
				// Concurrent first login won the insert.
				user, err = s.userRepo.GetByPhone(ctx, phone)
				if err != nil {
					return nil, fmt.Errorf("failed to get user: %w", err)
				}
			} else {
				return nil, fmt.Errorf("failed to create user: %w", err)
			}
		} else {
			s.syncExternalUser(ctx, user)
		}
	case err != nil:
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if !user.IsActive {
		return nil, ErrUserInactive
	}

	if !user.IsPhoneVerified {
		if err := s.userRepo.SetPhoneVerified(ctx, user.ID); err != nil {
			return nil, fmt.Errorf("failed to mark phone verified: %w", err)
		}
		user.IsPhoneVerified = true
	}

	return s.login(ctx, user, meta)
}

// GetUser returns the user's profile including the current role, if any.
func (s *authService) GetUser(ctx context.Context, userID string) (*dto.UserResponse, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	resp := &dto.UserResponse{
		ID:              user.ID,
		Email:           user.EmailOrEmpty(),
		Phone:           user.PhoneOrEmpty(),
		CreatedAt:       user.CreatedAt.Format(time.RFC3339),
		UpdatedAt:       user.UpdatedAt.Format(time.RFC3339),
		IsEmailVerified: user.IsEmailVerified,
		IsPhoneVerified: user.IsPhoneVerified,
	}
	if user.LastLoginAt != nil {
		lastLogin := user.LastLoginAt.Format(time.RFC3339)
		resp.LastLoginAt = &lastLogin
	}

	if role, ok, err := s.roleService.CurrentRole(ctx, userID); err == nil && ok {
		resp.Role = string(role)
	}

	return resp, nil
}

// ValidateToken validates an access token and rejects blacklisted ones.
func (s *authService) ValidateToken(ctx context.Context, token string) (*domain.TokenClaims, error) {
	blacklisted, err := s.blacklist.IsBlacklisted(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("failed to check token blacklist: %w", err)
	}
	if blacklisted {
		return nil, ErrInvalidToken
	}

	return s.tokenService.ValidateAccess(token)
}

func (s *authService) login(ctx context.Context, user *domain.User, meta *ClientMeta) (*AuthResult, error) {
	if err := s.userRepo.UpdateLastLogin(ctx, user.ID); err != nil {
		s.logger.Warn("failed to update last login",
			zap.String("user_id", user.ID),
			zap.Error(err),
		)
	}

	var deviceInfo, ip *string
	if meta != nil {
		deviceInfo, ip = meta.DeviceInfo, meta.IP
	}

	return s.buildAuthResult(ctx, user, deviceInfo, ip)
}

// syncExternalUser mirrors a freshly created user into the external identity
// provider, best-effort, storing the returned external id.
func (s *authService) syncExternalUser(ctx context.Context, user *domain.User) {
	externalID, err := s.idp.CreateUser(ctx, user)
	if err != nil {
		s.logger.Warn("external user sync failed",
			zap.String("user_id", user.ID),
			zap.Error(err),
		)
		return
	}
	if externalID == "" {
		return
	}

	user.ExternalID = &externalID
	if err := s.userRepo.Update(ctx, user); err != nil {
		s.logger.Warn("failed to store external id",
			zap.String("user_id", user.ID),
			zap.Error(err),
		)
	}
}
