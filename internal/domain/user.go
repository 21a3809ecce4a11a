package domain

import "time"

// User is the identity anchor. Email and phone are each optional but at
// least one must be present; both are globally unique when set. Phone-only
// users carry no password hash.
type User struct {
	ID              string     `json:"id" db:"id"`
	Email           *string    `json:"email" db:"email"`
	Phone           *string    `json:"phone" db:"phone"`
	PasswordHash    *string    `json:"-" db:"password_hash"`
	IsActive        bool       `json:"is_active" db:"is_active"`
	IsEmailVerified bool       `json:"is_email_verified" db:"is_email_verified"`
	IsPhoneVerified bool       `json:"is_phone_verified" db:"is_phone_verified"`
	ExternalID      *string    `json:"-" db:"external_id"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at" db:"updated_at"`
	LastLoginAt     *time.Time `json:"last_login_at" db:"last_login_at"`
}

// EmailOrEmpty returns the email or "" for phone-only users.
func (u *User) EmailOrEmpty() string {
	if u.Email == nil {
		return ""
	}
	return *u.Email
}

// PhoneOrEmpty returns the phone number or "" for email-only users.
func (u *User) PhoneOrEmpty() string {
	if u.Phone == nil {
		return ""
	}
	return *u.Phone
}
