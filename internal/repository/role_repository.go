package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmorozov-pr/identity-service/internal/domain"
	"github.com/dmorozov-pr/identity-service/pkg/database"
	"github.com/lib/pq"
)

// roleRepository implements RoleRepository interface
type roleRepository struct {
	db *database.Postgres
}

// NewRoleRepository creates a new role ledger repository
func NewRoleRepository(db *database.Postgres) RoleRepository {
	return &roleRepository{db: db}
}

const roleColumns = `id, user_id, role, assigned_at, assigned_by, revoked_at, revoked_by, notes`

// Insert appends a new assignment. The partial unique index on (user_id)
// where revoked_at is null serializes concurrent assigns; a violation maps
// to ErrActiveRoleExists.
func (r *roleRepository) Insert(ctx context.Context, assignment *domain.RoleAssignment) error {
	query := `
		INSERT INTO user_role_assignments (user_id, role, assigned_at, assigned_by, notes)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`

	if assignment.AssignedAt.IsZero() {
		assignment.AssignedAt = time.Now()
	}

	err := r.db.DB.QueryRowContext(ctx, query,
		assignment.UserID,
		assignment.Role,
		assignment.AssignedAt,
		assignment.AssignedBy,
		assignment.Notes,
	).Scan(&assignment.ID)

	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok {
			if pqErr.Code == "23505" { // unique_violation on the active-role index
				return fmt.Errorf("user %s: %w", assignment.UserID, ErrActiveRoleExists)
			}
		}
		return fmt.Errorf("failed to insert role assignment: %w", err)
	}

	return nil
}

// GetActiveByUserID retrieves the user's current assignment, newest first
// with highest id winning ties.
func (r *roleRepository) GetActiveByUserID(ctx context.Context, userID string) (*domain.RoleAssignment, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM user_role_assignments
		WHERE user_id = $1 AND revoked_at IS NULL
		ORDER BY assigned_at DESC, id DESC
		LIMIT 1
	`, roleColumns)

	assignment, err := r.scanOne(r.db.DB.QueryRowContext(ctx, query, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("no active role for user %s: %w", userID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get active role: %w", err)
	}

	return assignment, nil
}

// RevokeActive revokes the active assignment of the exact role; returns
// false when no such assignment exists.
func (r *roleRepository) RevokeActive(ctx context.Context, userID string, role domain.Role, revokedBy, notes *string) (bool, error) {
	query := `
		UPDATE user_role_assignments
		SET revoked_at = now(), revoked_by = $3,
		    notes = CASE WHEN $4::text IS NULL THEN notes
		                 WHEN notes IS NULL THEN $4
		                 ELSE notes || E'\n' || $4 END
		WHERE user_id = $1 AND role = $2 AND revoked_at IS NULL
	`

	result, err := r.db.DB.ExecContext(ctx, query, userID, role, revokedBy, notes)
	if err != nil {
		return false, fmt.Errorf("failed to revoke role: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}

// RevokeAllActive revokes every active assignment for a user
func (r *roleRepository) RevokeAllActive(ctx context.Context, userID string, revokedBy, notes *string) (int64, error) {
	query := `
		UPDATE user_role_assignments
		SET revoked_at = now(), revoked_by = $2,
		    notes = CASE WHEN $3::text IS NULL THEN notes
		                 WHEN notes IS NULL THEN $3
		                 ELSE notes || E'\n' || $3 END
		WHERE user_id = $1 AND revoked_at IS NULL
	`

	result, err := r.db.DB.ExecContext(ctx, query, userID, revokedBy, notes)
	if err != nil {
		return 0, fmt.Errorf("failed to revoke roles: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected, nil
}

// HistoryByUserID returns the full audit trail for a user, newest first
func (r *roleRepository) HistoryByUserID(ctx context.Context, userID string) ([]*domain.RoleAssignment, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM user_role_assignments
		WHERE user_id = $1
		ORDER BY assigned_at DESC, id DESC
	`, roleColumns)

	rows, err := r.db.DB.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get role history: %w", err)
	}
	defer rows.Close()

	var history []*domain.RoleAssignment
	for rows.Next() {
		assignment, err := r.scanOne(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan assignment: %w", err)
		}
		history = append(history, assignment)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate assignments: %w", err)
	}

	return history, nil
}

// ActiveUserIDsByRole returns the ids of users currently holding the role
func (r *roleRepository) ActiveUserIDsByRole(ctx context.Context, role domain.Role) ([]string, error) {
	query := `
		SELECT user_id FROM user_role_assignments
		WHERE role = $1 AND revoked_at IS NULL
		ORDER BY assigned_at DESC, id DESC
	`

	rows, err := r.db.DB.QueryContext(ctx, query, role)
	if err != nil {
		return nil, fmt.Errorf("failed to get users by role: %w", err)
	}
	defer rows.Close()

	var userIDs []string
	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return nil, fmt.Errorf("failed to scan user id: %w", err)
		}
		userIDs = append(userIDs, userID)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate user ids: %w", err)
	}

	return userIDs, nil
}

// CountActiveByRole aggregates active assignments per role
func (r *roleRepository) CountActiveByRole(ctx context.Context) (map[domain.Role]int, error) {
	query := `
		SELECT role, COUNT(*) FROM user_role_assignments
		WHERE revoked_at IS NULL
		GROUP BY role
	`

	rows, err := r.db.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to count roles: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.Role]int)
	for rows.Next() {
		var role domain.Role
		var count int
		if err := rows.Scan(&role, &count); err != nil {
			return nil, fmt.Errorf("failed to scan role count: %w", err)
		}
		counts[role] = count
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate role counts: %w", err)
	}

	return counts, nil
}

func (r *roleRepository) scanOne(row scannable) (*domain.RoleAssignment, error) {
	assignment := &domain.RoleAssignment{}
	var assignedBy, revokedBy, notes sql.NullString
	var revokedAt sql.NullTime

	err := row.Scan(
		&assignment.ID,
		&assignment.UserID,
		&assignment.Role,
		&assignment.AssignedAt,
		&assignedBy,
		&revokedAt,
		&revokedBy,
		&notes,
	)
	if err != nil {
		return nil, err
	}

	if assignedBy.Valid {
		assignment.AssignedBy = &assignedBy.String
	}
	if revokedAt.Valid {
		assignment.RevokedAt = &revokedAt.Time
	}
	if revokedBy.Valid {
		assignment.RevokedBy = &revokedBy.String
	}
	if notes.Valid {
		assignment.Notes = &notes.String
	}

	return assignment, nil
}
