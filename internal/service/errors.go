package service

import "errors"

// Caller-facing failure outcomes. Not-found, expired, used and
// attempts-exhausted credentials all collapse into the same generic error;
// only internal logs distinguish the cause.
var (
	// ErrInvalidCredentials covers every failed authentication attempt
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrInvalidToken covers not-found, expired, used and revoked tokens
	ErrInvalidToken = errors.New("invalid or expired token")

	// ErrRateLimited signals a try-again-later outcome, distinct from
	// invalid-credential outcomes
	ErrRateLimited = errors.New("rate limit exceeded, try again later")

	// ErrUserExists is returned on duplicate registration
	ErrUserExists = errors.New("user already exists")

	// ErrUserInactive is returned for deactivated accounts
	ErrUserInactive = errors.New("user account is inactive")

	// ErrRoleConflict is returned when a user already holds an active role
	ErrRoleConflict = errors.New("user already has an active role")

	// ErrNoActiveRole is returned when revoking a role the user does not hold
	ErrNoActiveRole = errors.New("no active assignment of this role")

	// ErrNotPermitted is returned when the acting role cannot grant the target role
	ErrNotPermitted = errors.New("acting role is not entitled to grant this role")

	// ErrValidation is returned for malformed input rejected before storage
	ErrValidation = errors.New("validation failed")
)
