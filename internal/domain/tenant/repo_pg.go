package tenant

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/carelink/agency/internal/platform/db"
)

type tenantRepoPG struct {
	db *db.UserDB
}

func NewRepoPG(userDB *db.UserDB) Repository {
	return &tenantRepoPG{db: userDB}
}

func (r *tenantRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Tenant, error) {
	var t Tenant
	err := r.db.Conn(ctx).QueryRow(ctx,
		`SELECT id, name, slug, active, created_at FROM tenants WHERE id = $1`, id,
	).Scan(&t.ID, &t.Name, &t.Slug, &t.Active, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get tenant %s: %w", id, err)
	}
	return &t, nil
}
