package user

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/carelink/agency/internal/platform/auth"
	"github.com/carelink/agency/internal/platform/db"
)

// -- User Repository --

type userRepoPG struct {
	db *db.AdminDB
}

func NewUserRepo(adminDB *db.AdminDB) UserRepository {
	return &userRepoPG{db: adminDB}
}

const userColumns = `id, tenant_id, email, full_name, role, occupation, active, created_at, updated_at`

func (r *userRepoPG) Create(ctx context.Context, u *User) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	err := r.db.Conn(ctx).QueryRow(ctx, `
		INSERT INTO users (id, tenant_id, email, full_name, role, occupation, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at`,
		u.ID, u.TenantID, u.Email, u.FullName, string(u.Role), u.Occupation, u.Active,
	).Scan(&u.CreatedAt, &u.UpdatedAt)
	if db.IsUniqueViolation(err) {
		return ErrEmailTaken
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *userRepoPG) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*User, error) {
	return scanUser(r.db.Conn(ctx).QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE tenant_id = $1 AND id = $2`, tenantID, id))
}

func (r *userRepoPG) ExistsByEmail(ctx context.Context, tenantID uuid.UUID, email string) (bool, error) {
	var exists bool
	err := r.db.Conn(ctx).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM users WHERE tenant_id = $1 AND lower(email) = lower($2))`,
		tenantID, email,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check user email: %w", err)
	}
	return exists, nil
}

func (r *userRepoPG) List(ctx context.Context, tenantID uuid.UUID, f UserFilter, limit, offset int) ([]*User, int, error) {
	q := db.NewQuery("users", userColumns, "tenant_id", tenantID)
	if f.Role != nil {
		q.Add("role = $?", string(*f.Role))
	}
	if f.Active != nil {
		q.Add("active = $?", *f.Active)
	}
	q.OrderBy("full_name, id")

	var total int
	if err := r.db.Conn(ctx).QueryRow(ctx, q.CountSQL(), q.CountArgs()...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}
	users, err := r.query(ctx, q.DataSQL(limit, offset), q.DataArgs(limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

func (r *userRepoPG) ListActiveByRole(ctx context.Context, tenantID uuid.UUID, role auth.Role) ([]*User, error) {
	return r.query(ctx,
		`SELECT `+userColumns+` FROM users WHERE tenant_id = $1 AND role = $2 AND active ORDER BY full_name, id`,
		tenantID, string(role))
}

// ToggleActive flips the flag in a single statement so concurrent toggles
// cannot both read the same prior value.
func (r *userRepoPG) ToggleActive(ctx context.Context, tenantID, id uuid.UUID) (*User, error) {
	return scanUser(r.db.Conn(ctx).QueryRow(ctx, `
		UPDATE users SET active = NOT active, updated_at = NOW()
		WHERE tenant_id = $1 AND id = $2
		RETURNING `+userColumns, tenantID, id))
}

func (r *userRepoPG) query(ctx context.Context, sql string, args ...interface{}) ([]*User, error) {
	rows, err := r.db.Conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func scanUser(row pgx.Row) (*User, error) {
	var u User
	var role string
	err := row.Scan(&u.ID, &u.TenantID, &u.Email, &u.FullName, &role, &u.Occupation,
		&u.Active, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	u.Role = auth.Role(role)
	return &u, nil
}

// -- Invitation Repository --

type invitationRepoPG struct {
	db *db.AdminDB
}

func NewInvitationRepo(adminDB *db.AdminDB) InvitationRepository {
	return &invitationRepoPG{db: adminDB}
}

const invitationColumns = `id, tenant_id, email, full_name, role, occupation,
	activation_code, activation_link, expires_at, status, invited_by, created_at, updated_at`

func (r *invitationRepoPG) Create(ctx context.Context, inv *Invitation) error {
	if inv.ID == uuid.Nil {
		inv.ID = uuid.New()
	}
	err := r.db.Conn(ctx).QueryRow(ctx, `
		INSERT INTO invitations (
			id, tenant_id, email, full_name, role, occupation,
			activation_code, activation_link, expires_at, status, invited_by
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at, updated_at`,
		inv.ID, inv.TenantID, inv.Email, inv.FullName, string(inv.Role), inv.Occupation,
		inv.ActivationCode, inv.ActivationLink, inv.ExpiresAt, string(inv.Status), inv.InvitedBy,
	).Scan(&inv.CreatedAt, &inv.UpdatedAt)
	// The partial unique index on pending emails backs the service-level check.
	if db.IsUniqueViolation(err) {
		return ErrDuplicateInvitation
	}
	if err != nil {
		return fmt.Errorf("insert invitation: %w", err)
	}
	return nil
}

func (r *invitationRepoPG) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*Invitation, error) {
	return scanInvitation(r.db.Conn(ctx).QueryRow(ctx,
		`SELECT `+invitationColumns+` FROM invitations WHERE tenant_id = $1 AND id = $2`, tenantID, id))
}

func (r *invitationRepoPG) GetByCode(ctx context.Context, code string) (*Invitation, error) {
	return scanInvitation(r.db.Conn(ctx).QueryRow(ctx,
		`SELECT `+invitationColumns+` FROM invitations WHERE activation_code = $1`, code))
}

func (r *invitationRepoPG) List(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*Invitation, int, error) {
	var total int
	err := r.db.Conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM invitations WHERE tenant_id = $1`, tenantID).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count invitations: %w", err)
	}

	rows, err := r.db.Conn(ctx).Query(ctx,
		`SELECT `+invitationColumns+` FROM invitations WHERE tenant_id = $1
		ORDER BY created_at DESC, id LIMIT $2 OFFSET $3`, tenantID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list invitations: %w", err)
	}
	defer rows.Close()

	var invs []*Invitation
	for rows.Next() {
		inv, err := scanInvitation(rows)
		if err != nil {
			return nil, 0, err
		}
		invs = append(invs, inv)
	}
	return invs, total, rows.Err()
}

func (r *invitationRepoPG) HasLivePending(ctx context.Context, tenantID uuid.UUID, email string, now time.Time) (bool, error) {
	var exists bool
	err := r.db.Conn(ctx).QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM invitations
			WHERE tenant_id = $1 AND lower(email) = lower($2) AND status = 'pending' AND expires_at > $3
		)`, tenantID, email, now,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check pending invitation: %w", err)
	}
	return exists, nil
}

func (r *invitationRepoPG) ExpireStale(ctx context.Context, tenantID uuid.UUID, email string, now time.Time) error {
	_, err := r.db.Conn(ctx).Exec(ctx, `
		UPDATE invitations SET status = 'expired', updated_at = NOW()
		WHERE tenant_id = $1 AND lower(email) = lower($2) AND status = 'pending' AND expires_at <= $3`,
		tenantID, email, now)
	if err != nil {
		return fmt.Errorf("expire stale invitations: %w", err)
	}
	return nil
}

func (r *invitationRepoPG) Reissue(ctx context.Context, inv *Invitation) error {
	tag, err := r.db.Conn(ctx).Exec(ctx, `
		UPDATE invitations SET
			activation_code = $3, activation_link = $4, expires_at = $5, updated_at = NOW()
		WHERE tenant_id = $1 AND id = $2 AND status = 'pending'`,
		inv.TenantID, inv.ID, inv.ActivationCode, inv.ActivationLink, inv.ExpiresAt)
	if err != nil {
		return fmt.Errorf("reissue invitation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrInvitationNotPending
	}
	return nil
}

func (r *invitationRepoPG) TransitionStatus(ctx context.Context, tenantID, id uuid.UUID, from, to InvitationStatus) (bool, error) {
	tag, err := r.db.Conn(ctx).Exec(ctx, `
		UPDATE invitations SET status = $4, updated_at = NOW()
		WHERE tenant_id = $1 AND id = $2 AND status = $3`,
		tenantID, id, string(from), string(to))
	if err != nil {
		return false, fmt.Errorf("update invitation status: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func scanInvitation(row pgx.Row) (*Invitation, error) {
	var inv Invitation
	var role, status string
	err := row.Scan(&inv.ID, &inv.TenantID, &inv.Email, &inv.FullName, &role, &inv.Occupation,
		&inv.ActivationCode, &inv.ActivationLink, &inv.ExpiresAt, &status, &inv.InvitedBy,
		&inv.CreatedAt, &inv.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrInvitationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan invitation: %w", err)
	}
	inv.Role = auth.Role(role)
	inv.Status = InvitationStatus(status)
	return &inv, nil
}
