package dto

// RegisterRequest represents an email registration request
type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

// LoginRequest represents an email login request
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// SendOTPRequest represents a request to send a one-time code
type SendOTPRequest struct {
	PhoneNumber string `json:"phone_number" binding:"required"`
}

// VerifyOTPRequest represents a one-time code login request
type VerifyOTPRequest struct {
	PhoneNumber string `json:"phone_number" binding:"required"`
	OTPCode     string `json:"otp_code" binding:"required,len=6"`
}

// RefreshRequest represents a token refresh request. The token may come
// from the body or from the refresh cookie.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// RevokeRequest represents a single-token revocation request
type RevokeRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// ResendVerificationRequest represents a verification email resend request
type ResendVerificationRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// ForgotPasswordRequest represents a password reset request
type ForgotPasswordRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// ResetPasswordRequest represents a password reset confirmation
type ResetPasswordRequest struct {
	Token       string `json:"token" binding:"required"`
	NewPassword string `json:"new_password" binding:"required,min=8"`
}

// AssignRoleRequest represents a role grant request
type AssignRoleRequest struct {
	UserID string `json:"user_id" binding:"required"`
	Role   string `json:"role" binding:"required"`
	Notes  string `json:"notes"`
}

// RevokeRoleRequest represents a role revocation request
type RevokeRoleRequest struct {
	UserID string `json:"user_id" binding:"required"`
	Role   string `json:"role" binding:"required"`
	Notes  string `json:"notes"`
}

// AuthResponse represents an authentication response
type AuthResponse struct {
	AccessToken string   `json:"access_token"`
	TokenType   string   `json:"token_type"`
	ExpiresIn   int      `json:"expires_in"`
	User        UserInfo `json:"user"`
}

// UserInfo represents user information in auth responses
type UserInfo struct {
	ID              string `json:"id"`
	Email           string `json:"email,omitempty"`
	Phone           string `json:"phone,omitempty"`
	IsEmailVerified bool   `json:"is_email_verified"`
	IsPhoneVerified bool   `json:"is_phone_verified"`
}

// UserResponse represents a full user profile response
type UserResponse struct {
	ID              string  `json:"id"`
	Email           string  `json:"email,omitempty"`
	Phone           string  `json:"phone,omitempty"`
	CreatedAt       string  `json:"created_at"`
	UpdatedAt       string  `json:"updated_at"`
	LastLoginAt     *string `json:"last_login_at"`
	IsEmailVerified bool    `json:"is_email_verified"`
	IsPhoneVerified bool    `json:"is_phone_verified"`
	Role            string  `json:"role,omitempty"`
}

// TokenResponse represents a refreshed access token
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// OTPSendResponse represents the outcome of a send-otp request
type OTPSendResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	ExpiresAt string `json:"expires_at,omitempty"`
}

// SuccessResponse represents a success response
type SuccessResponse struct {
	Message string `json:"message"`
}

// RevokedResponse reports how many sessions were revoked
type RevokedResponse struct {
	Message string `json:"message"`
	Revoked int64  `json:"revoked"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string      `json:"error"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// RoleAssignmentResponse represents one ledger entry
type RoleAssignmentResponse struct {
	ID         int64   `json:"id"`
	UserID     string  `json:"user_id"`
	Role       string  `json:"role"`
	AssignedAt string  `json:"assigned_at"`
	AssignedBy *string `json:"assigned_by"`
	RevokedAt  *string `json:"revoked_at"`
	RevokedBy  *string `json:"revoked_by"`
	Notes      *string `json:"notes"`
}

// RoleStatisticsResponse maps each role to its active holder count
type RoleStatisticsResponse struct {
	Statistics map[string]int `json:"statistics"`
}
