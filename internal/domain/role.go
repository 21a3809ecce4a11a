package domain

import "time"

// Role is a closed enumeration. A user holds zero or one active role.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleSupport Role = "support"
	RoleMember  Role = "member"
)

// AllRoles lists every role in the namespace, used for zero-filled
// statistics and validation.
var AllRoles = []Role{RoleAdmin, RoleManager, RoleSupport, RoleMember}

// IsValid reports whether r belongs to the closed role set.
func (r Role) IsValid() bool {
	for _, role := range AllRoles {
		if r == role {
			return true
		}
	}
	return false
}

// rolePermissions is the static role -> permission-set table. Permissions
// are computed from the current role, never stored.
var rolePermissions = map[Role][]string{
	RoleAdmin: {
		"users:read", "users:write", "users:delete",
		"roles:read", "roles:assign", "roles:revoke",
		"tokens:revoke", "audit:read",
	},
	RoleManager: {
		"users:read", "users:write",
		"roles:read", "roles:assign",
		"audit:read",
	},
	RoleSupport: {
		"users:read", "audit:read",
	},
	RoleMember: {
		"profile:read", "profile:write",
	},
}

// grantableRoles is the static role -> grantable-roles table. Admin can
// grant anything in the namespace; manager only the narrower roles.
var grantableRoles = map[Role][]Role{
	RoleAdmin:   {RoleAdmin, RoleManager, RoleSupport, RoleMember},
	RoleManager: {RoleSupport, RoleMember},
	RoleSupport: {},
	RoleMember:  {},
}

// Permissions returns the permission set of r.
func (r Role) Permissions() []string {
	return rolePermissions[r]
}

// HasPermission reports whether r carries the permission.
func (r Role) HasPermission(permission string) bool {
	for _, p := range rolePermissions[r] {
		if p == permission {
			return true
		}
	}
	return false
}

// CanGrant reports whether r is entitled to grant target.
func (r Role) CanGrant(target Role) bool {
	for _, g := range grantableRoles[r] {
		if g == target {
			return true
		}
	}
	return false
}

// RoleAssignment is one append-only ledger entry. Rows are never physically
// deleted; revocation sets RevokedAt/RevokedBy and appends notes.
type RoleAssignment struct {
	ID         int64      `json:"id" db:"id"`
	UserID     string     `json:"user_id" db:"user_id"`
	Role       Role       `json:"role" db:"role"`
	AssignedAt time.Time  `json:"assigned_at" db:"assigned_at"`
	AssignedBy *string    `json:"assigned_by" db:"assigned_by"` // nil = system
	RevokedAt  *time.Time `json:"revoked_at" db:"revoked_at"`
	RevokedBy  *string    `json:"revoked_by" db:"revoked_by"`
	Notes      *string    `json:"notes" db:"notes"`
}

// IsActive reports whether the assignment is the user's current role.
func (a *RoleAssignment) IsActive() bool {
	return a.RevokedAt == nil
}
