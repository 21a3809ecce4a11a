package domain

import "time"

// OTPCredential is one issued one-time code bound to a phone number.
// At most one unused, unexpired code is current per phone; issuing a new
// code invalidates prior unused ones.
type OTPCredential struct {
	ID        string     `json:"id" db:"id"`
	UserID    *string    `json:"user_id" db:"user_id"`
	Phone     string     `json:"phone" db:"phone"`
	Code      string     `json:"-" db:"code"`
	ExpiresAt time.Time  `json:"expires_at" db:"expires_at"`
	Used      bool       `json:"used" db:"used"`
	UsedAt    *time.Time `json:"used_at" db:"used_at"`
	Attempts  int        `json:"attempts" db:"attempts"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
}

// IsExpired reports whether the code's 5-minute window has elapsed.
func (o *OTPCredential) IsExpired() bool {
	return !time.Now().Before(o.ExpiresAt)
}

// IsValid reports whether the code can still be consumed.
func (o *OTPCredential) IsValid(maxAttempts int) bool {
	return !o.Used && !o.IsExpired() && o.Attempts < maxAttempts
}
