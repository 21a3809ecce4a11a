package domain

import "time"

// EmailVerificationToken is a single-use token proving ownership of an
// email address. Issuing a new token for a user supersedes all prior
// unused ones.
type EmailVerificationToken struct {
	ID        string     `json:"id" db:"id"`
	UserID    string     `json:"user_id" db:"user_id"`
	Token     string     `json:"-" db:"token"`
	Email     string     `json:"email" db:"email"`
	ExpiresAt time.Time  `json:"expires_at" db:"expires_at"`
	Used      bool       `json:"used" db:"used"`
	UsedAt    *time.Time `json:"used_at" db:"used_at"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
}

// IsExpired reports whether the token's 24-hour window has elapsed.
func (t *EmailVerificationToken) IsExpired() bool {
	return !time.Now().Before(t.ExpiresAt)
}

// IsValid reports whether the token can still be consumed.
func (t *EmailVerificationToken) IsValid() bool {
	return !t.Used && !t.IsExpired()
}

// PasswordResetToken is a single-use token authorizing a password change.
// Requester IP and user agent are recorded for audit only.
type PasswordResetToken struct {
	ID        string     `json:"id" db:"id"`
	UserID    string     `json:"user_id" db:"user_id"`
	Token     string     `json:"-" db:"token"`
	ExpiresAt time.Time  `json:"expires_at" db:"expires_at"`
	Used      bool       `json:"used" db:"used"`
	UsedAt    *time.Time `json:"used_at" db:"used_at"`
	IPAddress *string    `json:"ip_address" db:"ip_address"`
	UserAgent *string    `json:"user_agent" db:"user_agent"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
}

// IsExpired reports whether the token's 24-hour window has elapsed.
func (t *PasswordResetToken) IsExpired() bool {
	return !time.Now().Before(t.ExpiresAt)
}

// IsValid reports whether the token can still be consumed.
func (t *PasswordResetToken) IsValid() bool {
	return !t.Used && !t.IsExpired()
}
