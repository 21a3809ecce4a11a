package repository

import "errors"

// Common repository errors
var (
	// ErrNotFound is returned when a record is not found
	ErrNotFound = errors.New("record not found")

	// ErrDuplicateEmail is returned when trying to create a user with an existing email
	ErrDuplicateEmail = errors.New("user with this email already exists")

	// ErrDuplicatePhone is returned when trying to create a user with an existing phone number
	ErrDuplicatePhone = errors.New("user with this phone already exists")

	// ErrDuplicateToken is returned when trying to create a token with an existing value
	ErrDuplicateToken = errors.New("token already exists")

	// ErrAlreadyConsumed is returned when a compare-and-set transition loses
	// to a concurrent consumer (token already rotated or code already used)
	ErrAlreadyConsumed = errors.New("credential already consumed")

	// ErrActiveRoleExists is returned when a user already holds an active
	// role assignment
	ErrActiveRoleExists = errors.New("user already has an active role")
)
