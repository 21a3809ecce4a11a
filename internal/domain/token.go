package domain

import "time"

// TokenClaims are the verified claims of an access token.
type TokenClaims struct {
	UserID          string `json:"user_id"`
	Email           string `json:"email"`
	Phone           string `json:"phone"`
	IsEmailVerified bool   `json:"is_email_verified"`
	IsPhoneVerified bool   `json:"is_phone_verified"`
	TokenID         string `json:"jti"`
	Exp             int64  `json:"exp"`
	Iat             int64  `json:"iat"`
}

// TokenPair is a freshly issued access/refresh pair.
type TokenPair struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	TokenType        string    `json:"token_type"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

// IsExpired checks if the token is expired
func (tc TokenClaims) IsExpired() bool {
	return time.Now().Unix() > tc.Exp
}

// RefreshToken is the stored rotating session credential. The plaintext
// token never hits the database; only its SHA-256 hash is persisted.
// ReplacedBy links a rotated token to its successor row, so replay of a
// rotated token is distinguishable from a never-issued one.
type RefreshToken struct {
	ID         string     `json:"id" db:"id"`
	UserID     string     `json:"user_id" db:"user_id"`
	TokenHash  string     `json:"-" db:"token_hash"`
	ExpiresAt  time.Time  `json:"expires_at" db:"expires_at"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
	Revoked    bool       `json:"revoked" db:"revoked"`
	RevokedAt  *time.Time `json:"revoked_at" db:"revoked_at"`
	ReplacedBy *string    `json:"replaced_by" db:"replaced_by"`
	DeviceInfo *string    `json:"device_info" db:"device_info"`
	IPAddress  *string    `json:"ip_address" db:"ip_address"`
}

// IsExpired reports whether the token's lifetime has elapsed. Expiry is a
// derived predicate, never a stored state transition.
func (t *RefreshToken) IsExpired() bool {
	return !time.Now().Before(t.ExpiresAt)
}

// IsActive reports whether the token may still be exchanged.
func (t *RefreshToken) IsActive() bool {
	return !t.Revoked && !t.IsExpired()
}

// WasRotated reports whether the token was consumed by a refresh; a rotated
// token presented again is a theft signal.
func (t *RefreshToken) WasRotated() bool {
	return t.Revoked && t.ReplacedBy != nil
}
