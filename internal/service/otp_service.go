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

// otpService implements OTPService: short-lived numeric codes bound to a
// phone number, attempt-limited and send-rate-limited.
type otpService struct {
	otpRepo  repository.OTPRepository
	userRepo repository.UserRepository
	sms      delivery.SMSSender
	cfg      config.OTPConfig
	logger   *zap.Logger
}

// NewOTPService creates the OTP engine.
func NewOTPService(
	otpRepo repository.OTPRepository,
	userRepo repository.UserRepository,
	sms delivery.SMSSender,
	cfg config.OTPConfig,
	logger *zap.Logger,
) OTPService {
	return &otpService{
		otpRepo:  otpRepo,
		userRepo: userRepo,
		sms:      sms,
		cfg:      cfg,
		logger:   logger,
	}
}

// Send issues a fresh code to the phone, superseding prior unused codes.
// The send limit is a sliding count window over issued codes. If delivery
// fails the fresh code is retired immediately so an undelivered code can
// never validate.
func (s *otpService) Send(ctx context.Context, phone string) (*OTPSendResult, error) {
	phone = utils.SanitizePhone(phone)
	if !utils.ValidatePhone(phone) {
		return nil, fmt.Errorf("%w: invalid phone number", ErrValidation)
	}

	allowed, err := s.CanSend(ctx, phone)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return &OTPSendResult{
			Success: false,
			Message: "too many codes requested, try again later",
		}, ErrRateLimited
	}

	if err := s.otpRepo.InvalidateUnusedByPhone(ctx, phone); err != nil {
		return nil, fmt.Errorf("failed to invalidate prior codes: %w", err)
	}

	code, err := utils.GenerateOTPCode()
	if err != nil {
		return nil, fmt.Errorf("failed to generate code: %w", err)
	}

	otp := &domain.OTPCredential{
		Phone:     phone,
		Code:      code,
		ExpiresAt: time.Now().Add(s.cfg.CodeExpiry.Duration),
	}

	// Bind the code to an existing user when the phone is known.
	if user, err := s.userRepo.GetByPhone(ctx, phone); err == nil {
		otp.UserID = &user.ID
	}

	if err := s.otpRepo.Create(ctx, otp); err != nil {
		return nil, fmt.Errorf("failed to persist code: %w", err)
	}

	if err := s.sms.SendSMS(ctx, phone, fmt.Sprintf("Your verification code is %s", code)); err != nil {
		s.logger.Error("otp delivery failed",
			zap.String("phone", phone),
			zap.String("otp_id", otp.ID),
			zap.Error(err),
		)
		if markErr := s.otpRepo.MarkUsed(ctx, otp.ID); markErr != nil {
			s.logger.Error("failed to retire undelivered code",
				zap.String("otp_id", otp.ID),
				zap.Error(markErr),
			)
		}
		return &OTPSendResult{
			Success: false,
			Message: "failed to deliver code",
		}, nil
	}

	return &OTPSendResult{
		Success:   true,
		Message:   "code sent",
		ExpiresAt: otp.ExpiresAt,
	}, nil
}

// Validate consumes the newest live code matching phone+code. A wrong code
// charges an attempt against every outstanding code for the phone and
// retires codes reaching the attempt ceiling, so a still-valid code cannot
// be brute forced.
func (s *otpService) Validate(ctx context.Context, phone, code string) (bool, error) {
	phone = utils.SanitizePhone(phone)

	otp, err := s.otpRepo.Consume(ctx, phone, code)
	if err == nil {
		s.logger.Info("otp validated", zap.String("phone", phone), zap.String("otp_id", otp.ID))
		return true, nil
	}

	if !errors.Is(err, repository.ErrNotFound) {
		return false, fmt.Errorf("failed to consume code: %w", err)
	}

	if err := s.otpRepo.RecordFailedAttempt(ctx, phone, s.cfg.MaxAttempts); err != nil {
		s.logger.Error("failed to record otp attempt",
			zap.String("phone", phone),
			zap.Error(err),
		)
	}

	return false, nil
}

// CanSend reports whether the phone is under the sliding-window send limit.
func (s *otpService) CanSend(ctx context.Context, phone string) (bool, error) {
	remaining, err := s.RemainingSends(ctx, phone)
	if err != nil {
		return false, err
	}
	return remaining > 0, nil
}

// RemainingSends returns how many codes may still be issued to the phone
// within the current window.
func (s *otpService) RemainingSends(ctx context.Context, phone string) (int, error) {
	phone = utils.SanitizePhone(phone)
	since := time.Now().Add(-s.cfg.SendWindow.Duration)

	issued, err := s.otpRepo.CountIssuedSince(ctx, phone, since)
	if err != nil {
		return 0, fmt.Errorf("failed to count issued codes: %w", err)
	}

	remaining := s.cfg.SendLimit - issued
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

// CleanupExpired purges codes past their expiry.
func (s *otpService) CleanupExpired(ctx context.Context) (int64, error) {
	return s.otpRepo.DeleteExpired(ctx)
}
