package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/dmorozov-pr/identity-service/internal/dto"
	"github.com/dmorozov-pr/identity-service/internal/service"
	"github.com/gin-gonic/gin"
)

const refreshCookieName = "refresh_token"
const refreshCookiePath = "/api/v1/auth"

// AuthHandler handles authentication requests
type AuthHandler struct {
	authService         service.AuthService
	tokenService        service.TokenService
	otpService          service.OTPService
	verificationService service.EmailVerificationService
	resetService        service.PasswordResetService
	blacklist           *service.TokenBlacklistService
	accessTokenExpiry   time.Duration
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(
	authService service.AuthService,
	tokenService service.TokenService,
	otpService service.OTPService,
	verificationService service.EmailVerificationService,
	resetService service.PasswordResetService,
	blacklist *service.TokenBlacklistService,
	accessTokenExpiry time.Duration,
) *AuthHandler {
	return &AuthHandler{
		authService:         authService,
		tokenService:        tokenService,
		otpService:          otpService,
		verificationService: verificationService,
		resetService:        resetService,
		blacklist:           blacklist,
		accessTokenExpiry:   accessTokenExpiry,
	}
}

// clientMeta captures the requesting client's details for session audit.
func clientMeta(c *gin.Context) *service.ClientMeta {
	meta := &service.ClientMeta{}
	if ua := c.Request.UserAgent(); ua != "" {
		meta.DeviceInfo = &ua
	}
	if ip := c.ClientIP(); ip != "" {
		meta.IP = &ip
	}
	return meta
}

func (h *AuthHandler) setRefreshCookie(c *gin.Context, token string, maxAge int) {
	c.SetCookie(refreshCookieName, token, maxAge, refreshCookiePath, "", true, true)
}

// refreshTokenFrom reads the refresh token from the body, falling back to
// the refresh cookie.
func refreshTokenFrom(c *gin.Context) string {
	var req dto.RefreshRequest
	if err := c.ShouldBindJSON(&req); err == nil && req.RefreshToken != "" {
		return req.RefreshToken
	}
	if token, err := c.Cookie(refreshCookieName); err == nil {
		return token
	}
	return ""
}

// Register handles user registration
// @Summary Register a new user
// @Tags auth
// @Accept json
// @Produce json
// @Param request body dto.RegisterRequest true "Registration request"
// @Success 201 {object} dto.AuthResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse
// @Router /auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req dto.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "Validation failed",
			Message: err.Error(),
		})
		return
	}

	result, err := h.authService.Register(c.Request.Context(), &req, clientMeta(c))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUserExists):
			c.JSON(http.StatusConflict, dto.ErrorResponse{
				Error:   "Conflict",
				Message: err.Error(),
			})
		case errors.Is(err, service.ErrValidation):
			c.JSON(http.StatusBadRequest, dto.ErrorResponse{
				Error:   "Validation failed",
				Message: err.Error(),
			})
		default:
			internalError(c, err)
		}
		return
	}

	h.setRefreshCookie(c, result.RefreshToken, result.RefreshExpiresIn)
	c.JSON(http.StatusCreated, result.AuthResponse)
}

// Login handles email/password login
// @Summary Login with email and password
// @Tags auth
// @Accept json
// @Produce json
// @Param request body dto.LoginRequest true "Login request"
// @Success 200 {object} dto.AuthResponse
// @Failure 401 {object} dto.ErrorResponse
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "Validation failed",
			Message: err.Error(),
		})
		return
	}

	result, err := h.authService.Login(c.Request.Context(), &req, clientMeta(c))
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) || errors.Is(err, service.ErrUserInactive) {
			c.JSON(http.StatusUnauthorized, dto.ErrorResponse{
				Error:   "Unauthorized",
				Message: "Invalid email or password",
			})
			return
		}
		internalError(c, err)
		return
	}

	h.setRefreshCookie(c, result.RefreshToken, result.RefreshExpiresIn)
	c.JSON(http.StatusOK, result.AuthResponse)
}

// SendOTP handles one-time code delivery
// @Summary Send a one-time login code
// @Tags auth
// @Accept json
// @Produce json
// @Param request body dto.SendOTPRequest true "Send request"
// @Success 200 {object} dto.OTPSendResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 429 {object} dto.ErrorResponse
// @Router /auth/send-otp [post]
func (h *AuthHandler) SendOTP(c *gin.Context) {
	var req dto.SendOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "Validation failed",
			Message: err.Error(),
		})
		return
	}

	result, err := h.otpService.Send(c.Request.Context(), req.PhoneNumber)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrRateLimited):
			c.JSON(http.StatusTooManyRequests, dto.ErrorResponse{
				Error:   "Too Many Requests",
				Message: result.Message,
			})
		case errors.Is(err, service.ErrValidation):
			c.JSON(http.StatusBadRequest, dto.ErrorResponse{
				Error:   "Validation failed",
				Message: err.Error(),
			})
		default:
			internalError(c, err)
		}
		return
	}

	resp := dto.OTPSendResponse{
		Success: result.Success,
		Message: result.Message,
	}
	if result.Success {
		resp.ExpiresAt = result.ExpiresAt.Format(time.RFC3339)
	}
	c.JSON(http.StatusOK, resp)
}

// VerifyOTP handles one-time code login
// @Summary Login with a one-time code
// @Tags auth
// @Accept json
// @Produce json
// @Param request body dto.VerifyOTPRequest true "Verification request"
// @Success 200 {object} dto.AuthResponse
// @Failure 401 {object} dto.ErrorResponse
// @Router /auth/verify-otp [post]
func (h *AuthHandler) VerifyOTP(c *gin.Context) {
	var req dto.VerifyOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "Validation failed",
			Message: err.Error(),
		})
		return
	}

	result, err := h.authService.LoginWithOTP(c.Request.Context(), req.PhoneNumber, req.OTPCode, clientMeta(c))
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) || errors.Is(err, service.ErrUserInactive) {
			c.JSON(http.StatusUnauthorized, dto.ErrorResponse{
				Error:   "Unauthorized",
				Message: "Invalid or expired code",
			})
			return
		}
		internalError(c, err)
		return
	}

	h.setRefreshCookie(c, result.RefreshToken, result.RefreshExpiresIn)
	c.JSON(http.StatusOK, result.AuthResponse)
}

// Refresh handles token rotation
// @Summary Rotate a refresh token
// @Tags auth
// @Produce json
// @Success 200 {object} dto.TokenResponse
// @Failure 401 {object} dto.ErrorResponse
// @Router /auth/refresh [post]
func (h *AuthHandler) Refresh(c *gin.Context) {
	refreshToken := refreshTokenFrom(c)
	if refreshToken == "" {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "Bad request",
			Message: "Refresh token is required",
		})
		return
	}

	meta := clientMeta(c)
	pair, err := h.tokenService.Refresh(c.Request.Context(), refreshToken, meta.DeviceInfo, meta.IP)
	if err != nil {
		if errors.Is(err, service.ErrInvalidToken) {
			c.JSON(http.StatusUnauthorized, dto.ErrorResponse{
				Error:   "Unauthorized",
				Message: "Invalid or expired refresh token",
			})
			return
		}
		internalError(c, err)
		return
	}

	h.setRefreshCookie(c, pair.RefreshToken, int(time.Until(pair.RefreshExpiresAt).Seconds()))
	c.JSON(http.StatusOK, dto.TokenResponse{
		AccessToken: pair.AccessToken,
		TokenType:   pair.TokenType,
		ExpiresIn:   int(time.Until(pair.AccessExpiresAt).Seconds()),
	})
}

// Revoke handles single-session logout
// @Summary Revoke a refresh token
// @Tags auth
// @Security BearerAuth
// @Produce json
// @Success 200 {object} dto.SuccessResponse
// @Router /auth/revoke [post]
func (h *AuthHandler) Revoke(c *gin.Context) {
	refreshToken := refreshTokenFrom(c)
	if refreshToken == "" {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "Bad request",
			Message: "Refresh token is required",
		})
		return
	}

	if err := h.tokenService.Revoke(c.Request.Context(), refreshToken); err != nil {
		if errors.Is(err, service.ErrInvalidToken) {
			c.JSON(http.StatusUnauthorized, dto.ErrorResponse{
				Error:   "Unauthorized",
				Message: "Invalid refresh token",
			})
			return
		}
		internalError(c, err)
		return
	}

	h.blacklistCurrentAccessToken(c)
	h.setRefreshCookie(c, "", -1)
	c.JSON(http.StatusOK, dto.SuccessResponse{
		Message: "Logged out successfully",
	})
}

// RevokeAll handles global logout
// @Summary Revoke every session of the current user
// @Tags auth
// @Security BearerAuth
// @Produce json
// @Success 200 {object} dto.RevokedResponse
// @Failure 401 {object} dto.ErrorResponse
// @Router /auth/revoke-all [post]
func (h *AuthHandler) RevokeAll(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	revoked, err := h.tokenService.RevokeAll(c.Request.Context(), userID)
	if err != nil {
		internalError(c, err)
		return
	}

	h.blacklistCurrentAccessToken(c)
	h.setRefreshCookie(c, "", -1)
	c.JSON(http.StatusOK, dto.RevokedResponse{
		Message: "All sessions revoked",
		Revoked: revoked,
	})
}

// VerifyEmail handles verification link clicks
// @Summary Verify an email address
// @Tags auth
// @Produce json
// @Param token query string true "Verification token"
// @Success 200 {object} dto.SuccessResponse
// @Failure 400 {object} dto.ErrorResponse
// @Router /auth/verify-email [get]
func (h *AuthHandler) VerifyEmail(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "Bad request",
			Message: "Verification token is required",
		})
		return
	}

	ok, err := h.verificationService.Verify(c.Request.Context(), token)
	if err != nil {
		internalError(c, err)
		return
	}
	if !ok {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "Bad request",
			Message: "Invalid or expired verification token",
		})
		return
	}

	c.JSON(http.StatusOK, dto.SuccessResponse{
		Message: "Email verified successfully",
	})
}

// ResendVerification handles verification email resends. The response never
// reveals whether the address is registered.
// @Summary Resend the verification email
// @Tags auth
// @Accept json
// @Produce json
// @Param request body dto.ResendVerificationRequest true "Resend request"
// @Success 200 {object} dto.SuccessResponse
// @Router /auth/resend-verification [post]
func (h *AuthHandler) ResendVerification(c *gin.Context) {
	var req dto.ResendVerificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "Validation failed",
			Message: err.Error(),
		})
		return
	}

	if _, err := h.verificationService.Resend(c.Request.Context(), req.Email); err != nil {
		internalError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.SuccessResponse{
		Message: "If the address is registered and unverified, a new verification email has been sent",
	})
}

// ForgotPassword handles password reset requests. The response never
// reveals whether the address is registered.
// @Summary Request a password reset email
// @Tags auth
// @Accept json
// @Produce json
// @Param request body dto.ForgotPasswordRequest true "Reset request"
// @Success 200 {object} dto.SuccessResponse
// @Router /auth/forgot-password [post]
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req dto.ForgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "Validation failed",
			Message: err.Error(),
		})
		return
	}

	meta := clientMeta(c)
	if _, err := h.resetService.RequestReset(c.Request.Context(), req.Email, meta.IP, meta.DeviceInfo); err != nil {
		if errors.Is(err, service.ErrValidation) {
			c.JSON(http.StatusBadRequest, dto.ErrorResponse{
				Error:   "Validation failed",
				Message: err.Error(),
			})
			return
		}
		internalError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.SuccessResponse{
		Message: "If the address is registered, a password reset email has been sent",
	})
}

// ValidateResetToken lets clients pre-check a reset link before showing the
// new-password form.
// @Summary Validate a password reset token
// @Tags auth
// @Produce json
// @Param token query string true "Reset token"
// @Success 200 {object} dto.SuccessResponse
// @Failure 400 {object} dto.ErrorResponse
// @Router /auth/reset-password/validate [get]
func (h *AuthHandler) ValidateResetToken(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "Bad request",
			Message: "Reset token is required",
		})
		return
	}

	ok, err := h.resetService.ValidateToken(c.Request.Context(), token)
	if err != nil {
		internalError(c, err)
		return
	}
	if !ok {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "Bad request",
			Message: "Invalid or expired reset token",
		})
		return
	}

	c.JSON(http.StatusOK, dto.SuccessResponse{
		Message: "Reset token is valid",
	})
}

// ResetPassword handles password reset confirmations
// @Summary Reset the password with a reset token
// @Tags auth
// @Accept json
// @Produce json
// @Param request body dto.ResetPasswordRequest true "Reset confirmation"
// @Success 200 {object} dto.SuccessResponse
// @Failure 400 {object} dto.ErrorResponse
// @Router /auth/reset-password [post]
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req dto.ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "Validation failed",
			Message: err.Error(),
		})
		return
	}

	ok, err := h.resetService.ResetPassword(c.Request.Context(), req.Token, req.NewPassword)
	if err != nil {
		if errors.Is(err, service.ErrValidation) {
			c.JSON(http.StatusBadRequest, dto.ErrorResponse{
				Error:   "Validation failed",
				Message: err.Error(),
			})
			return
		}
		internalError(c, err)
		return
	}
	if !ok {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "Bad request",
			Message: "Invalid or expired reset token",
		})
		return
	}

	c.JSON(http.StatusOK, dto.SuccessResponse{
		Message: "Password has been reset",
	})
}

// GetMe handles getting the current user's profile
// @Summary Get current user profile
// @Tags auth
// @Security BearerAuth
// @Produce json
// @Success 200 {object} dto.UserResponse
// @Failure 401 {object} dto.ErrorResponse
// @Router /auth/me [get]
func (h *AuthHandler) GetMe(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	user, err := h.authService.GetUser(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, service.ErrInvalidToken) {
			c.JSON(http.StatusUnauthorized, dto.ErrorResponse{
				Error:   "Unauthorized",
				Message: "Unknown user",
			})
			return
		}
		internalError(c, err)
		return
	}

	c.JSON(http.StatusOK, user)
}

// blacklistCurrentAccessToken retires the bearer token that authorized the
// request. Best-effort: the refresh token is already revoked either way.
func (h *AuthHandler) blacklistCurrentAccessToken(c *gin.Context) {
	token := bearerToken(c)
	if token == "" {
		return
	}
	_ = h.blacklist.Add(c.Request.Context(), token, h.accessTokenExpiry)
}

// internalError answers a downstream failure with a fixed generic body.
// The cause is attached to the gin context so the logging middleware can
// record it; it never reaches the wire.
func internalError(c *gin.Context, err error) {
	_ = c.Error(err)
	c.JSON(http.StatusInternalServerError, dto.ErrorResponse{
		Error:   "Internal server error",
		Message: "Something went wrong",
	})
}
