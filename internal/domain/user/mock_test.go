package user

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/carelink/agency/internal/platform/auth"
)

// -- Mock User Repository --

type mockUserRepo struct {
	users map[uuid.UUID]*User
	calls int
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[uuid.UUID]*User)}
}

func (m *mockUserRepo) Create(_ context.Context, u *User) error {
	m.calls++
	for _, existing := range m.users {
		if existing.TenantID == u.TenantID && strings.EqualFold(existing.Email, u.Email) {
			return ErrEmailTaken
		}
	}
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	u.CreatedAt = time.Now()
	u.UpdatedAt = u.CreatedAt
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *mockUserRepo) GetByID(_ context.Context, tenantID, id uuid.UUID) (*User, error) {
	m.calls++
	u, ok := m.users[id]
	if !ok || u.TenantID != tenantID {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *mockUserRepo) ExistsByEmail(_ context.Context, tenantID uuid.UUID, email string) (bool, error) {
	m.calls++
	for _, u := range m.users {
		if u.TenantID == tenantID && strings.EqualFold(u.Email, email) {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockUserRepo) List(_ context.Context, tenantID uuid.UUID, f UserFilter, limit, offset int) ([]*User, int, error) {
	m.calls++
	var out []*User
	for _, u := range m.users {
		if u.TenantID != tenantID {
			continue
		}
		if f.Role != nil && u.Role != *f.Role {
			continue
		}
		if f.Active != nil && u.Active != *f.Active {
			continue
		}
		cp := *u
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FullName < out[j].FullName })
	total := len(out)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return out[offset:end], total, nil
}

func (m *mockUserRepo) ListActiveByRole(ctx context.Context, tenantID uuid.UUID, role auth.Role) ([]*User, error) {
	active := true
	users, _, err := m.List(ctx, tenantID, UserFilter{Role: &role, Active: &active}, len(m.users), 0)
	return users, err
}

func (m *mockUserRepo) ToggleActive(_ context.Context, tenantID, id uuid.UUID) (*User, error) {
	m.calls++
	u, ok := m.users[id]
	if !ok || u.TenantID != tenantID {
		return nil, ErrNotFound
	}
	u.Active = !u.Active
	cp := *u
	return &cp, nil
}

// -- Mock Invitation Repository --

type mockInvitationRepo struct {
	invites map[uuid.UUID]*Invitation
	calls   int
}

func newMockInvitationRepo() *mockInvitationRepo {
	return &mockInvitationRepo{invites: make(map[uuid.UUID]*Invitation)}
}

func (m *mockInvitationRepo) Create(_ context.Context, inv *Invitation) error {
	m.calls++
	for _, existing := range m.invites {
		if existing.TenantID == inv.TenantID && existing.Status == StatusPending &&
			strings.EqualFold(existing.Email, inv.Email) {
			return ErrDuplicateInvitation
		}
	}
	if inv.ID == uuid.Nil {
		inv.ID = uuid.New()
	}
	inv.CreatedAt = time.Now()
	inv.UpdatedAt = inv.CreatedAt
	cp := *inv
	m.invites[inv.ID] = &cp
	return nil
}

func (m *mockInvitationRepo) GetByID(_ context.Context, tenantID, id uuid.UUID) (*Invitation, error) {
	m.calls++
	inv, ok := m.invites[id]
	if !ok || inv.TenantID != tenantID {
		return nil, ErrInvitationNotFound
	}
	cp := *inv
	return &cp, nil
}

func (m *mockInvitationRepo) GetByCode(_ context.Context, code string) (*Invitation, error) {
	m.calls++
	for _, inv := range m.invites {
		if inv.ActivationCode == code {
			cp := *inv
			return &cp, nil
		}
	}
	return nil, ErrInvitationNotFound
}

func (m *mockInvitationRepo) List(_ context.Context, tenantID uuid.UUID, limit, offset int) ([]*Invitation, int, error) {
	m.calls++
	var out []*Invitation
	for _, inv := range m.invites {
		if inv.TenantID == tenantID {
			cp := *inv
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	total := len(out)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return out[offset:end], total, nil
}

func (m *mockInvitationRepo) HasLivePending(_ context.Context, tenantID uuid.UUID, email string, now time.Time) (bool, error) {
	m.calls++
	for _, inv := range m.invites {
		if inv.TenantID == tenantID && strings.EqualFold(inv.Email, email) &&
			inv.Status == StatusPending && inv.ExpiresAt.After(now) {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockInvitationRepo) ExpireStale(_ context.Context, tenantID uuid.UUID, email string, now time.Time) error {
	m.calls++
	for _, inv := range m.invites {
		if inv.TenantID == tenantID && strings.EqualFold(inv.Email, email) &&
			inv.Status == StatusPending && !inv.ExpiresAt.After(now) {
			inv.Status = StatusExpired
		}
	}
	return nil
}

func (m *mockInvitationRepo) Reissue(_ context.Context, inv *Invitation) error {
	m.calls++
	stored, ok := m.invites[inv.ID]
	if !ok || stored.TenantID != inv.TenantID || stored.Status != StatusPending {
		return ErrInvitationNotPending
	}
	stored.ActivationCode = inv.ActivationCode
	stored.ActivationLink = inv.ActivationLink
	stored.ExpiresAt = inv.ExpiresAt
	return nil
}

func (m *mockInvitationRepo) TransitionStatus(_ context.Context, tenantID, id uuid.UUID, from, to InvitationStatus) (bool, error) {
	m.calls++
	inv, ok := m.invites[id]
	if !ok || inv.TenantID != tenantID || inv.Status != from {
		return false, nil
	}
	inv.Status = to
	return true, nil
}

// passthroughTx runs fn without a database; the mocks have no rollback.
type passthroughTx struct{ calls int }

func (p *passthroughTx) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	p.calls++
	return fn(ctx)
}
