package user

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/carelink/agency/internal/platform/auth"
)

// UserRepository is tenant-scoped: every method takes the tenant explicitly.
type UserRepository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, tenantID, id uuid.UUID) (*User, error)
	ExistsByEmail(ctx context.Context, tenantID uuid.UUID, email string) (bool, error)
	List(ctx context.Context, tenantID uuid.UUID, f UserFilter, limit, offset int) ([]*User, int, error)
	ListActiveByRole(ctx context.Context, tenantID uuid.UUID, role auth.Role) ([]*User, error)
	ToggleActive(ctx context.Context, tenantID, id uuid.UUID) (*User, error)
}

type InvitationRepository interface {
	Create(ctx context.Context, inv *Invitation) error
	GetByID(ctx context.Context, tenantID, id uuid.UUID) (*Invitation, error)
	// GetByCode is not tenant-scoped; it backs the public activation endpoint.
	GetByCode(ctx context.Context, code string) (*Invitation, error)
	List(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*Invitation, int, error)
	HasLivePending(ctx context.Context, tenantID uuid.UUID, email string, now time.Time) (bool, error)
	// ExpireStale persists the expired status of pending invitations for
	// email whose expiry has passed, freeing the pending-email slot.
	ExpireStale(ctx context.Context, tenantID uuid.UUID, email string, now time.Time) error
	Reissue(ctx context.Context, inv *Invitation) error
	// TransitionStatus moves an invitation from one stored status to another
	// and reports whether a row changed.
	TransitionStatus(ctx context.Context, tenantID, id uuid.UUID, from, to InvitationStatus) (bool, error)
}

// Transactor runs fn in a single transaction on the privileged handle.
type Transactor interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}
