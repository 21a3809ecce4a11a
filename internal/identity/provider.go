package identity

import (
	"context"

	"github.com/dmorozov-pr/identity-service/internal/domain"
)

// ExternalIdentityProvider mirrors local users and roles into a third-party
// identity provider. Every call is best-effort: failures are logged and
// retried later, never made transactional with local writes.
type ExternalIdentityProvider interface {
	CreateUser(ctx context.Context, user *domain.User) (externalID string, err error)
	UpdateUser(ctx context.Context, user *domain.User) error
	AssignRole(ctx context.Context, externalID string, role domain.Role) error
	Sync(ctx context.Context, user *domain.User) error
}

// Noop is the provider used when no external IdP is configured.
type Noop struct{}

func (Noop) CreateUser(ctx context.Context, user *domain.User) (string, error) { return "", nil }
func (Noop) UpdateUser(ctx context.Context, user *domain.User) error           { return nil }
func (Noop) AssignRole(ctx context.Context, externalID string, role domain.Role) error {
	return nil
}
func (Noop) Sync(ctx context.Context, user *domain.User) error { return nil }
