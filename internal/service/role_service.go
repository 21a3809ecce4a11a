package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmorozov-pr/identity-service/internal/domain"
	"github.com/dmorozov-pr/identity-service/internal/identity"
	"github.com/dmorozov-pr/identity-service/internal/repository"
	"go.uber.org/zap"
)

// roleService implements RoleService over the append-only assignment
// ledger. A user holds at most one active role; switching roles is an
// explicit revoke-then-assign preserving full history.
type roleService struct {
	roleRepo repository.RoleRepository
	userRepo repository.UserRepository
	idp      identity.ExternalIdentityProvider
	logger   *zap.Logger
}

// NewRoleService creates the role ledger service.
func NewRoleService(
	roleRepo repository.RoleRepository,
	userRepo repository.UserRepository,
	idp identity.ExternalIdentityProvider,
	logger *zap.Logger,
) RoleService {
	return &roleService{
		roleRepo: roleRepo,
		userRepo: userRepo,
		idp:      idp,
		logger:   logger,
	}
}

// Assign grants a role. Fails if the user already holds an active role;
// the storage-level partial unique index serializes concurrent assigns.
func (s *roleService) Assign(ctx context.Context, userID string, role domain.Role, assignedBy, notes *string) error {
	if !role.IsValid() {
		return fmt.Errorf("%w: unknown role %q", ErrValidation, role)
	}

	if _, err := s.roleRepo.GetActiveByUserID(ctx, userID); err == nil {
		return ErrRoleConflict
	} else if !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("failed to check active role: %w", err)
	}

	assignment := &domain.RoleAssignment{
		UserID:     userID,
		Role:       role,
		AssignedBy: assignedBy,
		Notes:      notes,
	}

	if err := s.roleRepo.Insert(ctx, assignment); err != nil {
		if errors.Is(err, repository.ErrActiveRoleExists) {
			return ErrRoleConflict
		}
		return fmt.Errorf("failed to insert assignment: %w", err)
	}

	s.syncExternalRole(ctx, userID, role)

	return nil
}

// Revoke revokes the active assignment of the exact role. Fails when the
// user does not hold it.
func (s *roleService) Revoke(ctx context.Context, userID string, role domain.Role, revokedBy, notes *string) error {
	if !role.IsValid() {
		return fmt.Errorf("%w: unknown role %q", ErrValidation, role)
	}

	revoked, err := s.roleRepo.RevokeActive(ctx, userID, role, revokedBy, notes)
	if err != nil {
		return fmt.Errorf("failed to revoke role: %w", err)
	}
	if !revoked {
		return ErrNoActiveRole
	}

	return nil
}

// RevokeAll revokes every active assignment. Normally at most one exists.
func (s *roleService) RevokeAll(ctx context.Context, userID string, revokedBy, notes *string) error {
	if _, err := s.roleRepo.RevokeAllActive(ctx, userID, revokedBy, notes); err != nil {
		return fmt.Errorf("failed to revoke roles: %w", err)
	}
	return nil
}

// CurrentRole returns the user's active role; the second return is false
// when the user holds none.
func (s *roleService) CurrentRole(ctx context.Context, userID string) (domain.Role, bool, error) {
	assignment, err := s.roleRepo.GetActiveByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to get active role: %w", err)
	}

	return assignment.Role, true, nil
}

// History returns the full audit trail, newest first.
func (s *roleService) History(ctx context.Context, userID string) ([]*domain.RoleAssignment, error) {
	return s.roleRepo.HistoryByUserID(ctx, userID)
}

// UsersWithRole returns the ids of users currently holding the role.
func (s *roleService) UsersWithRole(ctx context.Context, role domain.Role) ([]string, error) {
	if !role.IsValid() {
		return nil, fmt.Errorf("%w: unknown role %q", ErrValidation, role)
	}
	return s.roleRepo.ActiveUserIDsByRole(ctx, role)
}

// HasPermission resolves the user's current role and checks its static
// permission set. A user without a role holds no permission.
func (s *roleService) HasPermission(ctx context.Context, userID, permission string) (bool, error) {
	role, ok, err := s.CurrentRole(ctx, userID)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	return role.HasPermission(permission), nil
}

// CanAssign checks the static grant table: the acting user's current role
// must be entitled to grant the target role.
func (s *roleService) CanAssign(ctx context.Context, actingUserID string, target domain.Role) (bool, error) {
	role, ok, err := s.CurrentRole(ctx, actingUserID)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	return role.CanGrant(target), nil
}

// Statistics aggregates active assignments per role, zero-filled for roles
// with no holders.
func (s *roleService) Statistics(ctx context.Context) (map[domain.Role]int, error) {
	counts, err := s.roleRepo.CountActiveByRole(ctx)
	if err != nil {
		return nil, err
	}

	stats := make(map[domain.Role]int, len(domain.AllRoles))
	for _, role := range domain.AllRoles {
		stats[role] = counts[role]
	}
	return stats, nil
}

// syncExternalRole mirrors a grant into the external identity provider,
// best-effort.
func (s *roleService) syncExternalRole(ctx context.Context, userID string, role domain.Role) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil || user.ExternalID == nil {
		return
	}

	if err := s.idp.AssignRole(ctx, *user.ExternalID, role); err != nil {
		s.logger.Warn("external role sync failed",
			zap.String("user_id", userID),
			zap.String("role", string(role)),
			zap.Error(err),
		)
	}
}
